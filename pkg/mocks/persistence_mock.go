// Package mocks provides testify mocks for the storage and messaging
// interfaces, shared across package tests.
package mocks

import (
	"context"

	"github.com/driphq/drip/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of the persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Rules(ctx context.Context) ([]*models.AutomationRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AutomationRule), args.Error(1)
}

func (m *MockPersistence) RuleByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.AutomationRule), args.Error(1)
}

func (m *MockPersistence) SaveRule(ctx context.Context, rule *models.AutomationRule) error {
	args := m.Called(ctx, rule)

	return args.Error(0)
}

func (m *MockPersistence) DeleteRule(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) RecordExecutionStart(ctx context.Context, execution *models.Execution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockPersistence) RecordExecutionEnd(ctx context.Context, execution *models.Execution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockPersistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockPersistence) ExecutionsByUser(ctx context.Context, userID string, limit int) ([]*models.Execution, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Execution), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
