package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/room-rental/internal/devicegate"
	"github.com/iliyamo/room-rental/internal/model"
)

// DeviceSessionRepo is the MySQL session store for the device gate.  The
// token_hash column carries a unique index that also covers revoked rows.
type DeviceSessionRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewDeviceSessionRepo(db *sql.DB) *DeviceSessionRepo {
	return &DeviceSessionRepo{db: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }}
}

// Validate touches last_seen_at of the live session and reports whether
// one matched.  Requires clientFoundRows so a same-microsecond touch still
// counts as a match.
func (r *DeviceSessionRepo) Validate(ctx context.Context, userID, tokenHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE device_sessions SET last_seen_at=? WHERE token_hash=? AND user_id=? AND revoked_at IS NULL",
		r.now(), tokenHash, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Register runs count-check-insert in one transaction.  Concurrent
// registrations for the same user queue on the users row lock, so a user
// without a row cannot register at all.
func (r *DeviceSessionRepo) Register(ctx context.Context, req devicegate.RegisterRequest) (status devicegate.RegisterStatus, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil || status != devicegate.StatusOK {
			_ = tx.Rollback()
		}
	}()

	var locked uint64
	err = tx.QueryRowContext(ctx, "SELECT id FROM users WHERE id=? FOR UPDATE", req.UserID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("device register for user %s: %w", req.UserID, ErrUserNotFound)
	}
	if err != nil {
		return "", err
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT id, device_id FROM device_sessions WHERE user_id=? AND revoked_at IS NULL ORDER BY created_at ASC, id ASC FOR UPDATE",
		req.UserID)
	if err != nil {
		return "", err
	}
	type liveRow struct {
		id       uint64
		deviceID string
	}
	var live []liveRow
	for rows.Next() {
		var lr liveRow
		if err = rows.Scan(&lr.id, &lr.deviceID); err != nil {
			rows.Close()
			return "", err
		}
		live = append(live, lr)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return "", err
	}

	now := r.now()
	for _, lr := range live {
		if lr.deviceID != req.DeviceID {
			continue
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE device_sessions SET token_hash=?, last_seen_at=? WHERE id=?",
			req.TokenHash, now, lr.id)
		if err != nil {
			return "", mapDuplicate(err)
		}
		if err = tx.Commit(); err != nil {
			return "", err
		}
		return devicegate.StatusOK, nil
	}

	if len(live) >= req.MaxDevices {
		if !req.EvictOldest {
			return devicegate.StatusLimitReached, nil
		}
		victims := live[:len(live)-req.MaxDevices+1]
		args := []any{now}
		for _, v := range victims {
			args = append(args, v.id)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE device_sessions SET revoked_at=? WHERE id IN ("+placeholders(len(victims))+")", args...)
		if err != nil {
			return "", err
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO device_sessions (user_id, device_id, token_hash, created_at, last_seen_at) VALUES (?,?,?,?,?)",
		req.UserID, req.DeviceID, req.TokenHash, now, now)
	if err != nil {
		return "", mapDuplicate(err)
	}
	if err = tx.Commit(); err != nil {
		return "", err
	}
	return devicegate.StatusOK, nil
}

// Revoke marks the session revoked; unknown or already revoked hashes are
// ignored.
func (r *DeviceSessionRepo) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE device_sessions SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		r.now(), tokenHash)
	return err
}

// RevokeAllForUser revokes every live session of a user.
func (r *DeviceSessionRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE device_sessions SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		r.now(), userID)
	return err
}

func (r *DeviceSessionRepo) ListLive(ctx context.Context, userID string) ([]model.DeviceSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, device_id, token_hash, created_at, last_seen_at
		   FROM device_sessions
		  WHERE user_id=? AND revoked_at IS NULL
		  ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.DeviceSession{}
	for rows.Next() {
		var ds model.DeviceSession
		if err := rows.Scan(&ds.ID, &ds.UserID, &ds.DeviceID, &ds.TokenHash, &ds.CreatedAt, &ds.LastSeenAt); err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// isDuplicateKey reports a MySQL 1062 duplicate entry error.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "1062")
}

func mapDuplicate(err error) error {
	if isDuplicateKey(err) {
		return ErrTokenHashConflict
	}
	return err
}
