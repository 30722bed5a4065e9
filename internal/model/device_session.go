package model

import "time"

// DeviceSession binds one client device to a user.  The raw device token
// lives only in the client's httpOnly cookie; the table keeps its SHA-256
// hash.  A session is live while RevokedAt is nil.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – owner of the session.
//  DeviceID   – random id kept in the device_id cookie.
//  TokenHash  – base64url SHA-256 of the device_token cookie (unique).
//  CreatedAt  – registration time; eviction picks the smallest.
//  LastSeenAt – refreshed by every successful validation.
//  RevokedAt  – logout or eviction time (nil while live).
type DeviceSession struct {
	ID         uint64     `json:"-"`
	UserID     string     `json:"user_id"`
	DeviceID   string     `json:"device_id"`
	TokenHash  string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}
