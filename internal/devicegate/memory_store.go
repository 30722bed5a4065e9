package devicegate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/room-rental/internal/model"
)

// MemoryStore is a mutex-guarded Store for development and tests.  Token
// hashes stay unique across revoked rows, like the MySQL unique index.
type MemoryStore struct {
	mu       sync.Mutex
	seq      uint64
	sessions []*model.DeviceSession
	now      func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the time source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) Validate(ctx context.Context, userID, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ds := range s.sessions {
		if ds.TokenHash == tokenHash && ds.UserID == userID && ds.RevokedAt == nil {
			ds.LastSeenAt = s.now()
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Register(ctx context.Context, req RegisterRequest) (RegisterStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	var same *model.DeviceSession
	for _, ds := range s.sessions {
		if ds.RevokedAt == nil && ds.UserID == req.UserID && ds.DeviceID == req.DeviceID {
			same = ds
			continue
		}
		if ds.TokenHash == req.TokenHash {
			return "", ErrTokenHashConflict
		}
	}
	if same != nil {
		same.TokenHash = req.TokenHash
		same.LastSeenAt = now
		return StatusOK, nil
	}

	live := s.liveLocked(req.UserID)
	if len(live) >= req.MaxDevices {
		if !req.EvictOldest {
			return StatusLimitReached, nil
		}
		for _, ds := range live[:len(live)-req.MaxDevices+1] {
			t := now
			ds.RevokedAt = &t
		}
	}

	s.seq++
	s.sessions = append(s.sessions, &model.DeviceSession{
		ID:         s.seq,
		UserID:     req.UserID,
		DeviceID:   req.DeviceID,
		TokenHash:  req.TokenHash,
		CreatedAt:  now,
		LastSeenAt: now,
	})
	return StatusOK, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ds := range s.sessions {
		if ds.TokenHash == tokenHash && ds.RevokedAt == nil {
			t := s.now()
			ds.RevokedAt = &t
		}
	}
	return nil
}

func (s *MemoryStore) ListLive(ctx context.Context, userID string) ([]model.DeviceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.liveLocked(userID)
	out := make([]model.DeviceSession, len(live))
	for i, ds := range live {
		out[i] = *ds
	}
	return out, nil
}

// liveLocked returns the user's live sessions ordered by created_at, then id.
func (s *MemoryStore) liveLocked(userID string) []*model.DeviceSession {
	var live []*model.DeviceSession
	for _, ds := range s.sessions {
		if ds.UserID == userID && ds.RevokedAt == nil {
			live = append(live, ds)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.Before(live[j].CreatedAt)
		}
		return live[i].ID < live[j].ID
	})
	return live
}
