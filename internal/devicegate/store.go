package devicegate

import (
	"context"
	"errors"

	"github.com/iliyamo/room-rental/internal/model"
)

// RegisterStatus is the answer of a successful Register call.
type RegisterStatus string

const (
	StatusOK           RegisterStatus = "ok"
	StatusLimitReached RegisterStatus = "limit_reached"
)

// ErrTokenHashConflict is returned by Register when the token hash already
// belongs to another session row (a cloned or replayed cookie).
var ErrTokenHashConflict = errors.New("device token hash already registered")

// RegisterRequest binds a device to a user.  With EvictOldest=false a full
// user is answered with StatusLimitReached; with EvictOldest=true the live
// sessions with the oldest created_at are revoked to make room.
type RegisterRequest struct {
	UserID      string
	DeviceID    string
	TokenHash   string
	MaxDevices  int
	EvictOldest bool
}

// Store is the session store the gate consults.  Implementations must make
// Register's count-then-insert atomic per user; the gate does not
// coordinate concurrent requests itself.
//
// Re-registering a live (user, device) pair replaces its token hash and
// never consumes another slot.
type Store interface {
	// Validate reports whether tokenHash is a live session of userID and
	// touches its last-seen time when it is.
	Validate(ctx context.Context, userID, tokenHash string) (bool, error)
	Register(ctx context.Context, req RegisterRequest) (RegisterStatus, error)
	// Revoke is idempotent; unknown hashes are not an error.
	Revoke(ctx context.Context, tokenHash string) error
	// ListLive returns the user's live sessions, oldest first.
	ListLive(ctx context.Context, userID string) ([]model.DeviceSession, error)
}
