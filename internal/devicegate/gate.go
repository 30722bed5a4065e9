// Package devicegate limits every admin identity to a fixed number of
// concurrently live devices.  A device is identified by a random token kept
// in an httpOnly cookie; the store only ever sees its SHA-256 hash.
//
// Check runs once per protected request:
//
//	no cookies        -> issue device id and token
//	validate(hash)    -> live: allowed
//	register(hash)    -> ok: validate again
//	                  -> limit_reached: kicked
//	                  -> hash conflict: rotate token, register once more
//	second validate   -> not live: limit
//
// Store faults never deny a request; the decision is FailOpen instead.
// Only the device ceiling itself closes the door.
package devicegate

import (
	"context"
	"errors"
	"log/slog"
)

// DefaultMaxDevices is the ceiling used when none is configured.
const DefaultMaxDevices = 2

// maxRotations bounds rotate-and-retry after a hash conflict.
const maxRotations = 1

// Device is the cookie pair a client presents.
type Device struct {
	ID    string
	Token string
}

// Outcome is what the caller should do with the request.
type Outcome int

const (
	// Allowed: the token was already live.
	Allowed Outcome = iota
	// Registered: first-seen device, registered and re-validated.
	Registered
	// Kicked: the user already has the maximum number of live devices.
	Kicked
	// LimitRevalidate: registration claimed success but the session is
	// not live afterwards.
	LimitRevalidate
	// FailOpen: the store failed; the request proceeds unchecked.
	FailOpen
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case Registered:
		return "registered"
	case Kicked:
		return "kicked"
	case LimitRevalidate:
		return "limit"
	case FailOpen:
		return "fail_open"
	}
	return "unknown"
}

// Denied reports whether the request must be rejected.
func (o Outcome) Denied() bool { return o == Kicked || o == LimitRevalidate }

// Decision is the result of one Check.  Device holds the cookie values the
// client must keep; CookiesChanged is set when they differ from the ones
// presented (bootstrap or rotation).
type Decision struct {
	Outcome        Outcome
	Device         Device
	CookiesChanged bool
	Rotations      int
	// Stage and Err describe the store fault behind a FailOpen.
	Stage string
	Err   error
}

// registerResult is the tagged result of a single register attempt.
type registerResult int

const (
	regOK registerResult = iota
	regCollision
	regLimitReached
	regFatal
)

// Gate runs the per-request device check against a Store.
type Gate struct {
	store      Store
	maxDevices int
	newToken   func() (string, error)
	newID      func() (string, error)
	log        *slog.Logger
}

// Option customises a Gate.
type Option func(*Gate)

// WithLogger sets the logger used for fail-open events.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// WithTokenSource replaces the random token generator.
func WithTokenSource(fn func() (string, error)) Option {
	return func(g *Gate) { g.newToken = fn }
}

// NewGate returns a gate allowing maxDevices live devices per user.
func NewGate(store Store, maxDevices int, opts ...Option) *Gate {
	if maxDevices < 1 {
		maxDevices = DefaultMaxDevices
	}
	g := &Gate{
		store:      store,
		maxDevices: maxDevices,
		newToken:   NewToken,
		newID:      NewDeviceID,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// MaxDevices returns the configured ceiling.
func (g *Gate) MaxDevices() int { return g.maxDevices }

// Store returns the underlying session store.
func (g *Gate) Store() Store { return g.store }

// Check validates dev for userID, registering it on first sight.  It never
// evicts another device.
func (g *Gate) Check(ctx context.Context, userID string, dev Device) Decision {
	d := Decision{Device: dev}
	if err := g.bootstrap(&d); err != nil {
		return g.failOpen(d, userID, "bootstrap", err)
	}

	ok, err := g.store.Validate(ctx, userID, HashToken(d.Device.Token))
	if err != nil {
		return g.failOpen(d, userID, "validate", err)
	}
	if ok {
		d.Outcome = Allowed
		return d
	}

	status, err := g.enroll(ctx, userID, &d, false)
	if err != nil {
		return g.failOpen(d, userID, "register", err)
	}
	if status == StatusLimitReached {
		d.Outcome = Kicked
		return d
	}

	ok, err = g.store.Validate(ctx, userID, HashToken(d.Device.Token))
	if err != nil {
		return g.failOpen(d, userID, "revalidate", err)
	}
	if !ok {
		d.Outcome = LimitRevalidate
		return d
	}
	d.Outcome = Registered
	return d
}

// ForceRegister is the explicit eviction flow: dev is registered for userID
// and, when the user is full, the oldest live sessions are revoked.  Unlike
// Check, store errors are returned to the caller.
func (g *Gate) ForceRegister(ctx context.Context, userID string, dev Device) (Decision, error) {
	d := Decision{Device: dev}
	if err := g.bootstrap(&d); err != nil {
		return d, err
	}
	status, err := g.enroll(ctx, userID, &d, true)
	if err != nil {
		return d, err
	}
	if status == StatusLimitReached {
		d.Outcome = Kicked
		return d, nil
	}
	d.Outcome = Registered
	return d, nil
}

// Release revokes the session behind token.  It is best effort: failures
// are logged and swallowed so logout always completes.
func (g *Gate) Release(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := g.store.Revoke(ctx, HashToken(token)); err != nil {
		g.log.Warn("device revoke failed", "error", err)
	}
}

// bootstrap fills in whichever cookie value is missing.
func (g *Gate) bootstrap(d *Decision) error {
	if d.Device.ID == "" {
		id, err := g.newID()
		if err != nil {
			return err
		}
		d.Device.ID = id
		d.CookiesChanged = true
	}
	if d.Device.Token == "" {
		tok, err := g.newToken()
		if err != nil {
			return err
		}
		d.Device.Token = tok
		d.CookiesChanged = true
	}
	return nil
}

// enroll registers d.Device, rotating the token at most maxRotations times
// on a hash conflict.  A conflict after the last rotation is an error.
func (g *Gate) enroll(ctx context.Context, userID string, d *Decision, evict bool) (RegisterStatus, error) {
	for {
		res, err := g.register(ctx, userID, d.Device, evict)
		switch res {
		case regOK:
			return StatusOK, nil
		case regLimitReached:
			return StatusLimitReached, nil
		case regCollision:
			if d.Rotations >= maxRotations {
				return "", err
			}
			tok, terr := g.newToken()
			if terr != nil {
				return "", terr
			}
			d.Device.Token = tok
			d.CookiesChanged = true
			d.Rotations++
		default:
			return "", err
		}
	}
}

func (g *Gate) register(ctx context.Context, userID string, dev Device, evict bool) (registerResult, error) {
	status, err := g.store.Register(ctx, RegisterRequest{
		UserID:      userID,
		DeviceID:    dev.ID,
		TokenHash:   HashToken(dev.Token),
		MaxDevices:  g.maxDevices,
		EvictOldest: evict,
	})
	switch {
	case errors.Is(err, ErrTokenHashConflict):
		return regCollision, err
	case err != nil:
		return regFatal, err
	case status == StatusLimitReached:
		return regLimitReached, nil
	case status == StatusOK:
		return regOK, nil
	}
	return regFatal, errors.New("devicegate: unknown register status " + string(status))
}

func (g *Gate) failOpen(d Decision, userID, stage string, err error) Decision {
	d.Outcome = FailOpen
	d.Stage = stage
	d.Err = err
	g.log.Warn("device gate failing open", "user_id", userID, "stage", stage, "error", err)
	return d
}
