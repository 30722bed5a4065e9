package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate.  Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role          ENUM('ADMIN','SUPER_ADMIN') NOT NULL DEFAULT 'ADMIN',
		is_active     TINYINT(1) NOT NULL DEFAULT 1,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS rooms (
		id             CHAR(36) PRIMARY KEY,
		title          VARCHAR(255) NOT NULL,
		district       VARCHAR(64) NOT NULL,
		room_type      VARCHAR(64) NOT NULL,
		price_vnd      BIGINT NOT NULL,
		access         VARCHAR(16) NOT NULL DEFAULT '',
		status         ENUM('AVAILABLE','DEPOSITED','RENTED','HIDDEN') NOT NULL DEFAULT 'AVAILABLE',
		amenities      JSON NULL,
		media          JSON NULL,
		address        VARCHAR(255) NOT NULL DEFAULT '',
		internal_note  TEXT NULL,
		landlord_name  VARCHAR(128) NOT NULL DEFAULT '',
		landlord_phone VARCHAR(32) NOT NULL DEFAULT '',
		commission_pct DECIMAL(5,2) NOT NULL DEFAULT 0,
		created_at     DATETIME(6) NOT NULL,
		updated_at     DATETIME(6) NOT NULL,
		KEY idx_rooms_updated (updated_at, created_at, id),
		KEY idx_rooms_price (price_vnd, id),
		KEY idx_rooms_district (district),
		KEY idx_rooms_type (room_type)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS device_sessions (
		id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id      VARCHAR(64) NOT NULL,
		device_id    VARCHAR(64) NOT NULL,
		token_hash   CHAR(43) NOT NULL,
		created_at   DATETIME(6) NOT NULL,
		last_seen_at DATETIME(6) NOT NULL,
		revoked_at   DATETIME(6) NULL,
		UNIQUE KEY uq_device_token_hash (token_hash),
		KEY idx_device_user_live (user_id, revoked_at, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
