// Package profile abstracts the user-profile store consumed by condition
// evaluation and profile-mutating actions.
package profile

import (
	"context"
	"errors"
)

// ErrUserNotFound indicates no profile exists for the given user.
var ErrUserNotFound = errors.New("user profile not found")

// Store supplies user attributes and receives profile and segment mutations.
// The engine treats it as an opaque boundary.
type Store interface {
	GetUserData(ctx context.Context, userID string) (map[string]any, error)
	UpdateUserProfile(ctx context.Context, userID string, updates map[string]any) error
	AddUserToSegment(ctx context.Context, userID, segmentID string) error
	RemoveUserFromSegment(ctx context.Context, userID, segmentID string) error
}
