// Package profileupdate provides the update_profile action executor.
package profileupdate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/profile"
	"github.com/driphq/drip/pkg/protocol"
)

// ErrMissingUpdates is returned when the action parameters omit the updates map.
var ErrMissingUpdates = errors.New("update_profile requires an 'updates' parameter")

type Action struct {
	Updates map[string]any

	profiles profile.Store
}

func NewAction(params map[string]any, profiles profile.Store) (*Action, error) {
	updates, ok := params["updates"].(map[string]any)
	if !ok || len(updates) == 0 {
		return nil, ErrMissingUpdates
	}

	return &Action{Updates: updates, profiles: profiles}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) error {
	userID := actionCtx.Execution.UserID

	err := a.profiles.UpdateUserProfile(ctx, userID, a.Updates)
	if err != nil {
		return fmt.Errorf("failed to update profile for %s: %w", userID, err)
	}

	logger.InfoContext(ctx, "Profile updated",
		"action_type", "update_profile",
		"user_id", userID,
		"fields", len(a.Updates))

	return nil
}

type Factory struct {
	profiles profile.Store
}

func NewFactory(profiles profile.Store) *Factory {
	return &Factory{profiles: profiles}
}

func (*Factory) ID() models.ActionType {
	return models.ActionUpdateProfile
}

func (f *Factory) Create(params map[string]any) (protocol.ActionExecutor, error) {
	return NewAction(params, f.profiles)
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"updates": map[string]any{"type": "object", "minProperties": 1},
		},
		"required": []any{"updates"},
	}
}
