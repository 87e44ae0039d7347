package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// ProfileStore persists saved birth/identity profiles. At most one profile is
// marked default. Deleting the default promotes the most recently created
// remaining profile; the ordering rule is this store's choice, callers must
// not rely on it beyond "some remaining profile, never nil while any exist".
type ProfileStore interface {
	Get(ctx context.Context, id string) (*Profile, error)
	Put(ctx context.Context, profile *Profile) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Profile, error)
	IDs(ctx context.Context) ([]string, error)
	DefaultID(ctx context.Context) (string, error)
	SetDefault(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Close() error
}

// SQLiteProfileStore implements ProfileStore using SQLite/libsql.
type SQLiteProfileStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewDefaultProfileStore opens the profile store in the default data directory.
func NewDefaultProfileStore(pm *PathManager) (ProfileStore, error) {
	dbPath, err := pm.ProfileDatabasePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get profile database path: %w", err)
	}
	return NewProfileStore(dbPath)
}

// NewProfileStore opens (or creates) a profile store at dbPath.
func NewProfileStore(dbPath string) (ProfileStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("libsql", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteProfileStore{db: db, now: time.Now}
	if err := execSchema(db, profileSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// execSchema runs each statement separately because the libsql driver only
// executes the first statement of a multi-statement Exec.
func execSchema(db *sql.DB, schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProfileStore) purgeExpired(ctx context.Context) error {
	cutoff := s.now().Add(-PendingRetention)
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM profiles WHERE pending_since IS NOT NULL AND pending_since < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge expired profiles: %w", err)
	}
	return nil
}

func (s *SQLiteProfileStore) Get(ctx context.Context, id string) (*Profile, error) {
	if err := s.purgeExpired(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, birth_date, birth_time, gender, city, label, created_at, updated_at, pending_since
		 FROM profiles WHERE id = ?`, id)

	profile, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

func (s *SQLiteProfileStore) Put(ctx context.Context, profile *Profile) error {
	var pending any
	if !profile.PendingSince.IsZero() {
		pending = profile.PendingSince
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, birth_date, birth_time, gender, city, label, created_at, updated_at, pending_since)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   birth_date = excluded.birth_date,
		   birth_time = excluded.birth_time,
		   gender = excluded.gender,
		   city = excluded.city,
		   label = excluded.label,
		   updated_at = excluded.updated_at,
		   pending_since = excluded.pending_since`,
		profile.ID, profile.BirthDate, nullable(profile.BirthTime), profile.Gender,
		nullable(profile.City), nullable(profile.Label),
		profile.CreatedAt, profile.UpdatedAt, pending)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Delete removes a profile. If it was the default, the most recently created
// remaining profile is promoted; with none remaining the default is cleared.
func (s *SQLiteProfileStore) Delete(ctx context.Context, id string) error {
	defaultID, err := s.DefaultID(ctx)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	if defaultID != id {
		return nil
	}

	var next sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM profiles ORDER BY created_at DESC, id LIMIT 1`).Scan(&next)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to pick replacement default: %w", err)
	}
	return s.writeDefault(ctx, next.String)
}

func (s *SQLiteProfileStore) List(ctx context.Context) ([]Profile, error) {
	if err := s.purgeExpired(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, birth_date, birth_time, gender, city, label, created_at, updated_at, pending_since
		 FROM profiles ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, *profile)
	}
	return profiles, rows.Err()
}

func (s *SQLiteProfileStore) IDs(ctx context.Context) ([]string, error) {
	if err := s.purgeExpired(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM profiles`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profile ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan profile id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteProfileStore) DefaultID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM profile_meta WHERE key = 'default_profile_id'`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get default profile: %w", err)
	}
	return id, nil
}

func (s *SQLiteProfileStore) SetDefault(ctx context.Context, id string) error {
	profile, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if profile == nil {
		return errProfileNotFound(id)
	}
	return s.writeDefault(ctx, id)
}

func (s *SQLiteProfileStore) writeDefault(ctx context.Context, id string) error {
	var err error
	if id == "" {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM profile_meta WHERE key = 'default_profile_id'`)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO profile_meta (key, value) VALUES ('default_profile_id', ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, id)
	}
	if err != nil {
		return fmt.Errorf("failed to set default profile: %w", err)
	}
	return nil
}

func (s *SQLiteProfileStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profiles`); err != nil {
		return fmt.Errorf("failed to clear profiles: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profile_meta`); err != nil {
		return fmt.Errorf("failed to clear profile meta: %w", err)
	}
	return nil
}

func (s *SQLiteProfileStore) Close() error {
	return s.db.Close()
}

func scanProfile(row scanner) (*Profile, error) {
	var profile Profile
	var birthTime, city, label sql.NullString
	var pending sql.NullTime

	err := row.Scan(&profile.ID, &profile.BirthDate, &birthTime, &profile.Gender,
		&city, &label, &profile.CreatedAt, &profile.UpdatedAt, &pending)
	if err != nil {
		return nil, err
	}

	profile.BirthTime = birthTime.String
	profile.City = city.String
	profile.Label = label.String
	if pending.Valid {
		profile.PendingSince = pending.Time
	}
	return &profile, nil
}

const profileSchema = `
CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    birth_date TEXT NOT NULL,
    birth_time TEXT,
    gender TEXT NOT NULL,
    city TEXT,
    label TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    pending_since TIMESTAMP,
    UNIQUE(id)
);

CREATE TABLE IF NOT EXISTS profile_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_profiles_created_at ON profiles(created_at DESC);
`
