package client

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// BuddyIconRecord is what the store remembers about one buddy's icon
type BuddyIconRecord struct {
	Handle   string
	Checksum int32
	URL      string
	Updated  time.Time
}

// PictureRecord is our own uploaded picture
type PictureRecord struct {
	URL      string
	Checksum int32
	Expires  time.Time
}

// Store persists account state between sessions: the last used handle,
// our uploaded picture and the checksums of buddy icons already fetched.
type Store struct {
	db  *sql.DB
	dir string
}

// migrations are applied in order; the schema version is their count
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS Config (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS BuddyIcons (
		handle   TEXT PRIMARY KEY,
		checksum INTEGER NOT NULL,
		url      TEXT NOT NULL DEFAULT '',
		updated  INTEGER NOT NULL
	)`,
}

// OpenStore opens or creates the state database at path
func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// One writer; the session runner is the only user
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, dir: dir}, nil
}

// runMigrations applies every migration newer than PRAGMA user_version
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bound parameters
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the state database
func (s *Store) Close() error {
	return s.db.Close()
}

// GetStateDir returns the directory where state is stored
func (s *Store) GetStateDir() string {
	return s.dir
}

// GetConfig retrieves a configuration value, "" when unset
func (s *Store) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM Config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetConfig stores a configuration value
func (s *Store) SetConfig(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO Config (key, value) VALUES (?, ?)`, key, value)
	return err
}

// GetLastUsername returns the handle of the last login
func (s *Store) GetLastUsername() string {
	name, _ := s.GetConfig("last_username")
	return name
}

// SetLastUsername stores the handle of the last login
func (s *Store) SetLastUsername(name string) error {
	return s.SetConfig("last_username", name)
}

// GetPicture returns our uploaded picture. ok is false when none is stored.
func (s *Store) GetPicture() (PictureRecord, bool) {
	url, _ := s.GetConfig("picture_url")
	if url == "" {
		return PictureRecord{}, false
	}
	rec := PictureRecord{URL: url}
	if v, _ := s.GetConfig("picture_checksum"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			rec.Checksum = int32(n)
		}
	}
	if v, _ := s.GetConfig("picture_expires"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			rec.Expires = time.Unix(n, 0)
		}
	}
	return rec, true
}

// SetPicture stores our uploaded picture
func (s *Store) SetPicture(rec PictureRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	values := map[string]string{
		"picture_url":      rec.URL,
		"picture_checksum": strconv.FormatInt(int64(rec.Checksum), 10),
		"picture_expires":  strconv.FormatInt(rec.Expires.Unix(), 10),
	}
	for k, v := range values {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO Config (key, value) VALUES (?, ?)`, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetBuddyIcon returns the stored icon for handle
func (s *Store) GetBuddyIcon(handle string) (BuddyIconRecord, bool, error) {
	rec := BuddyIconRecord{Handle: Normalize(handle)}
	var updated int64
	err := s.db.QueryRow(`SELECT checksum, url, updated FROM BuddyIcons WHERE handle = ?`, rec.Handle).
		Scan(&rec.Checksum, &rec.URL, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return BuddyIconRecord{}, false, nil
	}
	if err != nil {
		return BuddyIconRecord{}, false, err
	}
	rec.Updated = time.Unix(updated, 0)
	return rec, true, nil
}

// SaveBuddyIcon records the checksum and url of a fetched icon
func (s *Store) SaveBuddyIcon(rec BuddyIconRecord) error {
	if rec.Updated.IsZero() {
		rec.Updated = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO BuddyIcons (handle, checksum, url, updated)
		VALUES (?, ?, ?, ?)
	`, Normalize(rec.Handle), rec.Checksum, rec.URL, rec.Updated.Unix())
	return err
}

// ForgetBuddyIcon drops the stored icon for handle
func (s *Store) ForgetBuddyIcon(handle string) error {
	_, err := s.db.Exec(`DELETE FROM BuddyIcons WHERE handle = ?`, Normalize(handle))
	return err
}

// BuddyIcons lists every stored icon ordered by handle
func (s *Store) BuddyIcons() ([]BuddyIconRecord, error) {
	rows, err := s.db.Query(`SELECT handle, checksum, url, updated FROM BuddyIcons ORDER BY handle`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BuddyIconRecord
	for rows.Next() {
		var (
			rec     BuddyIconRecord
			updated int64
		)
		if err := rows.Scan(&rec.Handle, &rec.Checksum, &rec.URL, &updated); err != nil {
			return nil, err
		}
		rec.Updated = time.Unix(updated, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneBuddyIcons deletes icons not updated since before
func (s *Store) PruneBuddyIcons(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM BuddyIcons WHERE updated < ?`, before.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// String is used in logs
func (r BuddyIconRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s checksum=%d", r.Handle, r.Checksum)
	if r.URL != "" {
		fmt.Fprintf(&b, " url=%s", r.URL)
	}
	return b.String()
}
