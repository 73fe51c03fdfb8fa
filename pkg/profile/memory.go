package profile

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is an in-memory profile store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]map[string]any
	segments map[string][]string
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]map[string]any),
		segments: make(map[string][]string),
	}
}

// GetUserData returns a copy of the user's attributes, including the
// "segments" pseudo-attribute.
func (s *MemoryStore) GetUserData(_ context.Context, userID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs, ok := s.profiles[userID]
	if !ok {
		return nil, ErrUserNotFound
	}

	out := make(map[string]any, len(attrs)+1)
	for key, value := range attrs {
		out[key] = value
	}

	if segments, ok := s.segments[userID]; ok {
		out["segments"] = slices.Clone(segments)
	}

	return out, nil
}

// UpdateUserProfile merges the given updates into the user's attributes,
// creating the profile if necessary.
func (s *MemoryStore) UpdateUserProfile(_ context.Context, userID string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs, ok := s.profiles[userID]
	if !ok {
		attrs = make(map[string]any, len(updates))
		s.profiles[userID] = attrs
	}

	for key, value := range updates {
		attrs[key] = value
	}

	return nil
}

// AddUserToSegment adds the user to a segment; adding twice is a no-op.
func (s *MemoryStore) AddUserToSegment(_ context.Context, userID, segmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.segments[userID], segmentID) {
		return nil
	}

	s.segments[userID] = append(s.segments[userID], segmentID)

	return nil
}

// RemoveUserFromSegment removes the user from a segment; removing a
// non-member is a no-op.
func (s *MemoryStore) RemoveUserFromSegment(_ context.Context, userID, segmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	segments := s.segments[userID]

	index := slices.Index(segments, segmentID)
	if index < 0 {
		return nil
	}

	s.segments[userID] = slices.Delete(segments, index, index+1)

	return nil
}
