// Package segment provides the add_to_segment and remove_from_segment action
// executors.
package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/profile"
	"github.com/driphq/drip/pkg/protocol"
)

// ErrMissingSegmentID is returned when the action parameters omit segment_id.
var ErrMissingSegmentID = errors.New("segment action requires a 'segment_id' parameter")

type operation int

const (
	opAdd operation = iota
	opRemove
)

type Action struct {
	SegmentID string

	op       operation
	profiles profile.Store
}

func newAction(params map[string]any, op operation, profiles profile.Store) (*Action, error) {
	segmentID, _ := params["segment_id"].(string)
	if segmentID == "" {
		return nil, ErrMissingSegmentID
	}

	return &Action{SegmentID: segmentID, op: op, profiles: profiles}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) error {
	userID := actionCtx.Execution.UserID

	var err error

	switch a.op {
	case opAdd:
		err = a.profiles.AddUserToSegment(ctx, userID, a.SegmentID)
	case opRemove:
		err = a.profiles.RemoveUserFromSegment(ctx, userID, a.SegmentID)
	}

	if err != nil {
		return fmt.Errorf("segment mutation failed for %s: %w", userID, err)
	}

	logger.InfoContext(ctx, "Segment membership changed",
		"user_id", userID,
		"segment_id", a.SegmentID,
		"added", a.op == opAdd)

	return nil
}

type AddFactory struct {
	profiles profile.Store
}

func NewAddFactory(profiles profile.Store) *AddFactory {
	return &AddFactory{profiles: profiles}
}

func (*AddFactory) ID() models.ActionType {
	return models.ActionAddToSegment
}

func (f *AddFactory) Create(params map[string]any) (protocol.ActionExecutor, error) {
	return newAction(params, opAdd, f.profiles)
}

func (*AddFactory) Schema() map[string]any {
	return segmentSchema()
}

type RemoveFactory struct {
	profiles profile.Store
}

func NewRemoveFactory(profiles profile.Store) *RemoveFactory {
	return &RemoveFactory{profiles: profiles}
}

func (*RemoveFactory) ID() models.ActionType {
	return models.ActionRemoveFromSegment
}

func (f *RemoveFactory) Create(params map[string]any) (protocol.ActionExecutor, error) {
	return newAction(params, opRemove, f.profiles)
}

func (*RemoveFactory) Schema() map[string]any {
	return segmentSchema()
}

func segmentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"segment_id": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"segment_id"},
	}
}
