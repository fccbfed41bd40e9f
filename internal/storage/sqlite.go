// Package storage keeps the watchlist of probed servers in SQLite.
// Only targets are stored, probe results are never persisted.
package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/woozymasta/pulsar/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

const serverColumns = `id, game, host, port, label, added_at`

// AddServer registers a target in the watchlist. Adding an existing target updates its label
// when a non-empty one is given and keeps the original added_at.
func (r *Repository) AddServer(t models.Target, label string) (*models.WatchedServer, error) {
	query := `
	INSERT INTO servers (game, host, port, label, added_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(game, host, port) DO UPDATE SET
		label = CASE WHEN excluded.label != '' THEN excluded.label ELSE servers.label END;
	`

	if _, err := r.db.Exec(query, t.Game, t.Host, t.Port, label, time.Now().UTC()); err != nil {
		return nil, err
	}

	return scanServer(r.db.QueryRow(
		`SELECT `+serverColumns+` FROM servers WHERE game = ? AND host = ? AND port = ?`, t.Game, t.Host, t.Port))
}

// GetServers returns all watched servers ordered by game, host and port.
// A non-empty game restricts the result to that game type.
func (r *Repository) GetServers(game string) ([]models.WatchedServer, error) {
	query := `SELECT ` + serverColumns + ` FROM servers`
	var args []any

	if game != "" {
		query += ` WHERE game = ?`
		args = append(args, game)
	}
	query += ` ORDER BY game, host, port`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var servers []models.WatchedServer
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

// GetServer retrieves a watched server by id, nil if it does not exist.
func (r *Repository) GetServer(id int64) (*models.WatchedServer, error) {
	s, err := scanServer(r.db.QueryRow(`SELECT `+serverColumns+` FROM servers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return s, err
}

// DeleteServer removes a target from the watchlist and reports whether it existed.
func (r *Repository) DeleteServer(t models.Target) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM servers WHERE game = ? AND host = ? AND port = ?`, t.Game, t.Host, t.Port)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (*models.WatchedServer, error) {
	var s models.WatchedServer
	if err := row.Scan(&s.ID, &s.Game, &s.Host, &s.Port, &s.Label, &s.AddedAt); err != nil {
		return nil, err
	}

	return &s, nil
}
