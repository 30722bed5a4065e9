// Package queue defines message payloads exchanged over the message broker.
package queue

// RoomChangedQueue is the durable queue every admin write publishes to.
const RoomChangedQueue = "room.changed"

// Room change actions.
const (
    ActionCreated = "created"
    ActionUpdated = "updated"
    ActionPrice   = "price"
    ActionMedia   = "media"
    ActionDeleted = "deleted"
)

// RoomChangedEvent is published after an admin write to a room has been
// committed.  Consumers use it to drop cached listing pages and to keep an
// audit trail without querying the primary database.
type RoomChangedEvent struct {
    RoomID    string `json:"room_id"`
    Action    string `json:"action"`
    ActorID   string `json:"actor_id"`
    ActorRole string `json:"actor_role"`
    PriceVND  *int64 `json:"price_vnd,omitempty"`
    ChangedAt string `json:"changed_at"`
}
