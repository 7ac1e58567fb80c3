package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate.  Every statement is idempotent
// so Migrate can run on each start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS cities (
		id   BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(120)    NOT NULL,
		UNIQUE KEY uq_cities_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS cinemas (
		id      BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		city_id BIGINT UNSIGNED NOT NULL,
		name    VARCHAR(160)    NOT NULL,
		UNIQUE KEY uq_cinemas_city_name (city_id, name),
		CONSTRAINT fk_cinemas_city FOREIGN KEY (city_id) REFERENCES cities (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS movies (
		tmdb_id      BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		imdb_id      VARCHAR(12)     NULL,
		name         VARCHAR(255)    NOT NULL,
		release_date DATE            NULL,
		rating       INT             NOT NULL DEFAULT 0,
		genres       VARCHAR(255)    NOT NULL DEFAULT '',
		updated_at   TIMESTAMP       NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_movies_imdb (imdb_id),
		KEY idx_movies_release (release_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS hints (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		cinema_id   BIGINT UNSIGNED NOT NULL,
		movie_id    BIGINT UNSIGNED NOT NULL,
		report_date DATE            NOT NULL,
		score       INT             NOT NULL DEFAULT 0,
		guess_rank  INT             NULL,
		created_at  TIMESTAMP       NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_hints_triple (cinema_id, movie_id, report_date),
		KEY idx_hints_report (report_date),
		CONSTRAINT fk_hints_cinema FOREIGN KEY (cinema_id) REFERENCES cinemas (id),
		CONSTRAINT fk_hints_movie FOREIGN KEY (movie_id) REFERENCES movies (tmdb_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255)    NOT NULL,
		password_hash VARCHAR(255)    NOT NULL,
		role          VARCHAR(16)     NOT NULL DEFAULT 'MEMBER',
		is_active     TINYINT(1)      NOT NULL DEFAULT 1,
		created_at    TIMESTAMP       NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64)        NOT NULL,
		expires_at DATETIME        NOT NULL,
		revoked_at DATETIME        NULL,
		created_at TIMESTAMP       NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_hash (token_hash),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables used by the service when they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
