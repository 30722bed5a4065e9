package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-rental/internal/devicegate"
)

func newDeviceRepo(t *testing.T) (*DeviceSessionRepo, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	repo := NewDeviceSessionRepo(db)
	repo.now = func() time.Time { return now }
	return repo, mock, now
}

func expectLock(mock sqlmock.Sqlmock, userID string, live [][2]any) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM users WHERE id=\? FOR UPDATE`).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	rows := sqlmock.NewRows([]string{"id", "device_id"})
	for _, r := range live {
		rows.AddRow(r[0], r[1])
	}
	mock.ExpectQuery(`SELECT id, device_id FROM device_sessions WHERE user_id=\? AND revoked_at IS NULL ORDER BY created_at ASC, id ASC FOR UPDATE`).
		WithArgs(userID).WillReturnRows(rows)
}

func TestDeviceSessionRepo_Validate(t *testing.T) {
	repo, mock, now := newDeviceRepo(t)
	mock.ExpectExec(`UPDATE device_sessions SET last_seen_at=\? WHERE token_hash=\? AND user_id=\? AND revoked_at IS NULL`).
		WithArgs(now, "h1", "1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE device_sessions SET last_seen_at`).
		WithArgs(now, "h2", "1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Validate(context.Background(), "1", "h1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Validate(context.Background(), "1", "h2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceSessionRepo_RegisterInsertsUnderLimit(t *testing.T) {
	repo, mock, now := newDeviceRepo(t)
	expectLock(mock, "1", [][2]any{{10, "phone"}})
	mock.ExpectExec(`INSERT INTO device_sessions`).
		WithArgs("1", "laptop", "h", now, now).WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	status, err := repo.Register(context.Background(), devicegate.RegisterRequest{
		UserID: "1", DeviceID: "laptop", TokenHash: "h", MaxDevices: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, devicegate.StatusOK, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceSessionRepo_RegisterLimitReached(t *testing.T) {
	repo, mock, _ := newDeviceRepo(t)
	expectLock(mock, "1", [][2]any{{10, "phone"}, {11, "laptop"}})
	mock.ExpectRollback()

	status, err := repo.Register(context.Background(), devicegate.RegisterRequest{
		UserID: "1", DeviceID: "tablet", TokenHash: "h", MaxDevices: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, devicegate.StatusLimitReached, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceSessionRepo_RegisterEvictsOldest(t *testing.T) {
	repo, mock, now := newDeviceRepo(t)
	expectLock(mock, "1", [][2]any{{10, "phone"}, {11, "laptop"}})
	mock.ExpectExec(`UPDATE device_sessions SET revoked_at=\? WHERE id IN \(\?\)`).
		WithArgs(now, 10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO device_sessions`).
		WithArgs("1", "tablet", "h", now, now).WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectCommit()

	status, err := repo.Register(context.Background(), devicegate.RegisterRequest{
		UserID: "1", DeviceID: "tablet", TokenHash: "h", MaxDevices: 2, EvictOldest: true,
	})
	require.NoError(t, err)
	assert.Equal(t, devicegate.StatusOK, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceSessionRepo_SameDeviceReplacesHash(t *testing.T) {
	repo, mock, now := newDeviceRepo(t)
	expectLock(mock, "1", [][2]any{{10, "phone"}, {11, "laptop"}})
	mock.ExpectExec(`UPDATE device_sessions SET token_hash=\?, last_seen_at=\? WHERE id=\?`).
		WithArgs("h2", now, 11).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	status, err := repo.Register(context.Background(), devicegate.RegisterRequest{
		UserID: "1", DeviceID: "laptop", TokenHash: "h2", MaxDevices: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, devicegate.StatusOK, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceSessionRepo_DuplicateHashIsConflict(t *testing.T) {
	repo, mock, _ := newDeviceRepo(t)
	expectLock(mock, "1", nil)
	mock.ExpectExec(`INSERT INTO device_sessions`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'h' for key 'uq_device_token_hash'"})
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), devicegate.RegisterRequest{
		UserID: "1", DeviceID: "d", TokenHash: "h", MaxDevices: 2,
	})
	assert.ErrorIs(t, err, devicegate.ErrTokenHashConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceSessionRepo_OtherErrorsPropagate(t *testing.T) {
	repo, mock, _ := newDeviceRepo(t)
	boom := errors.New("lock wait timeout")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM users`).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), devicegate.RegisterRequest{UserID: "1", DeviceID: "d", TokenHash: "h", MaxDevices: 2})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, devicegate.ErrTokenHashConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceSessionRepo_RevokeAndList(t *testing.T) {
	repo, mock, now := newDeviceRepo(t)
	mock.ExpectExec(`UPDATE device_sessions SET revoked_at=\? WHERE token_hash=\? AND revoked_at IS NULL`).
		WithArgs(now, "h").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.Revoke(context.Background(), "h"))

	mock.ExpectQuery(`FROM device_sessions\s+WHERE user_id=\? AND revoked_at IS NULL\s+ORDER BY created_at ASC, id ASC`).
		WithArgs("1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "device_id", "token_hash", "created_at", "last_seen_at"}).
			AddRow(1, "1", "phone", "h1", now, now).
			AddRow(2, "1", "laptop", "h2", now, now))
	live, err := repo.ListLive(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, "phone", live[0].DeviceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var (
	_ devicegate.Store = (*DeviceSessionRepo)(nil)
	_ devicegate.Store = (*RedisDeviceStore)(nil)
)

func TestDeviceSessionRepo_RegisterWithoutUserRowFails(t *testing.T) {
	repo, mock, _ := newDeviceRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM users WHERE id=\? FOR UPDATE`).WithArgs("404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), devicegate.RegisterRequest{
		UserID: "404", DeviceID: "phone", TokenHash: "h", MaxDevices: 2,
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
