// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow handlers to tell failure
// scenarios apart: ErrRoomNotFound maps to HTTP 404, while
// ErrTokenHashConflict is consumed by the device gate, which rotates the
// token and retries once.
package repository

import (
	"errors"

	"github.com/iliyamo/room-rental/internal/devicegate"
)

// ErrRoomNotFound is returned when a room id does not exist.
var ErrRoomNotFound = errors.New("room not found")

// ErrTokenHashConflict re-exports the gate's conflict error for callers
// that only know the repository package.
var ErrTokenHashConflict = devicegate.ErrTokenHashConflict
