package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// RedisStore keeps user attributes in a hash per user and segment membership
// in a set per user.
type RedisStore struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewRedisStore connects to Redis and returns a profile store backed by it.
func NewRedisStore(ctx context.Context, redisURL string, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		logger: logger.With("module", "profile_store"),
	}, nil
}

func attributesKey(userID string) string { return "drip:profile:" + userID }
func segmentsKey(userID string) string   { return "drip:segments:" + userID }

// GetUserData loads the user's attributes hash plus the "segments"
// pseudo-attribute. Attribute values are stored JSON-encoded to preserve
// types across the round trip.
func (s *RedisStore) GetUserData(ctx context.Context, userID string) (map[string]any, error) {
	raw, err := s.client.HGetAll(ctx, attributesKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for %s: %w", userID, err)
	}

	if len(raw) == 0 {
		return nil, ErrUserNotFound
	}

	out := make(map[string]any, len(raw)+1)

	for key, encoded := range raw {
		var value any

		err := json.Unmarshal([]byte(encoded), &value)
		if err != nil {
			// Legacy plain-string values are kept as-is.
			value = encoded
		}

		out[key] = value
	}

	segments, err := s.client.SMembers(ctx, segmentsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load segments for %s: %w", userID, err)
	}

	if len(segments) > 0 {
		out["segments"] = segments
	}

	return out, nil
}

// UpdateUserProfile writes the given attribute updates into the user's hash.
func (s *RedisStore) UpdateUserProfile(ctx context.Context, userID string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	fields := make(map[string]any, len(updates))

	for key, value := range updates {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode attribute %q: %w", key, err)
		}

		fields[key] = string(encoded)
	}

	err := s.client.HSet(ctx, attributesKey(userID), fields).Err()
	if err != nil {
		return fmt.Errorf("failed to update profile for %s: %w", userID, err)
	}

	return nil
}

// AddUserToSegment adds the segment to the user's membership set.
func (s *RedisStore) AddUserToSegment(ctx context.Context, userID, segmentID string) error {
	err := s.client.SAdd(ctx, segmentsKey(userID), segmentID).Err()
	if err != nil {
		return fmt.Errorf("failed to add %s to segment %s: %w", userID, segmentID, err)
	}

	return nil
}

// RemoveUserFromSegment removes the segment from the user's membership set.
func (s *RedisStore) RemoveUserFromSegment(ctx context.Context, userID, segmentID string) error {
	err := s.client.SRem(ctx, segmentsKey(userID), segmentID).Err()
	if err != nil {
		return fmt.Errorf("failed to remove %s from segment %s: %w", userID, segmentID, err)
	}

	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
