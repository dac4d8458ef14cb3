// Package store persists provider match mappings in SQLite so that repeated
// lookups of the same AniList title skip the catalog search.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// IsCgoEnabled reports whether the sqlite driver is usable in this build
var IsCgoEnabled = true

var (
	ErrCgoDisabled    = errors.New("CGO disabled: sqlite mapping store not available")
	ErrStoreNotInited = errors.New("mapping store not initialized")
)

const (
	defaultCacheSize  = -8000 // 8MB
	busyTimeout       = 5000  // ms
	walAutoCheckpoint = 1000  // pages
	maxOpenConns      = 4
	maxIdleConns      = 2
)

// MappingStore is a SQLite backed store of provider matches
type MappingStore struct {
	db       *sql.DB
	upsertPS *sql.Stmt
	getPS    *sql.Stmt
	allPS    *sql.Stmt
	deletePS *sql.Stmt
	now      func() time.Time
}

// Open creates or opens the database at dbPath
func Open(dbPath string) (*MappingStore, error) {
	if !IsCgoEnabled {
		return nil, ErrCgoDisabled
	}
	if dbPath == "" {
		return nil, errors.New("empty database path")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, errors.Wrap(err, "creating data directory")
	}

	db, err := sql.Open("sqlite3", buildDSN(dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	if err := initializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &MappingStore{db: db, now: time.Now}
	if err := s.prepareStatements(); err != nil {
		_ = s.Close()
		return nil, err
	}

	util.Debug("Mapping store opened", "path", dbPath)
	return s, nil
}

// buildDSN encodes the pragmas in the connection string. Windows paths need
// forward slashes and an explicit create mode.
func buildDSN(dbPath string) string {
	pragmas := fmt.Sprintf("_journal_mode=WAL&_synchronous=NORMAL&_wal_autocheckpoint=%d&_busy_timeout=%d&_cache_size=%d",
		walAutoCheckpoint, busyTimeout, defaultCacheSize)
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("file:%s?%s&_mode=rwc", strings.ReplaceAll(dbPath, "\\", "/"), pragmas)
	}
	return fmt.Sprintf("file:%s?%s", dbPath, pragmas)
}

func initializeDatabase(db *sql.DB) error {
	schema := `CREATE TABLE IF NOT EXISTS provider_mappings (
		provider     TEXT    NOT NULL,
		anilist_id   INTEGER NOT NULL CHECK(anilist_id > 0),
		track        TEXT    NOT NULL CHECK(track IN ('sub', 'dub')),
		match_id     TEXT    NOT NULL,
		title        TEXT,
		last_updated INTEGER NOT NULL,
		PRIMARY KEY (provider, anilist_id, track)
	);`
	if _, err := db.Exec(schema); err != nil {
		return errors.Wrap(err, "schema creation failed")
	}
	return nil
}

func (s *MappingStore) prepareStatements() error {
	var err error
	if s.upsertPS, err = s.db.Prepare(`INSERT INTO provider_mappings (
		provider, anilist_id, track, match_id, title, last_updated
	) VALUES (?,?,?,?,?,?)
	ON CONFLICT(provider, anilist_id, track) DO UPDATE SET
		match_id = excluded.match_id,
		title = excluded.title,
		last_updated = excluded.last_updated`); err != nil {
		return errors.Wrap(err, "upsert preparation failed")
	}

	if s.getPS, err = s.db.Prepare(`SELECT match_id, title, last_updated
	FROM provider_mappings
	WHERE provider = ? AND anilist_id = ? AND track = ?`); err != nil {
		return errors.Wrap(err, "get preparation failed")
	}

	if s.allPS, err = s.db.Prepare(`SELECT provider, anilist_id, track, match_id, title, last_updated
	FROM provider_mappings
	ORDER BY last_updated DESC, provider, anilist_id, track`); err != nil {
		return errors.Wrap(err, "all preparation failed")
	}

	if s.deletePS, err = s.db.Prepare(`DELETE FROM provider_mappings
	WHERE provider = ? AND anilist_id = ?`); err != nil {
		return errors.Wrap(err, "delete preparation failed")
	}
	return nil
}

// Save records or replaces the match for (provider, anilist id, track)
func (s *MappingStore) Save(ctx context.Context, m models.Mapping) error {
	if s == nil || s.db == nil || s.upsertPS == nil {
		return ErrStoreNotInited
	}
	if m.AnilistID <= 0 || !m.Track.Valid() || m.MatchID == "" {
		return errors.Wrapf(models.ErrInvalidID, "invalid mapping %s/%d/%s", m.Provider, m.AnilistID, m.Track)
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = s.now()
	}

	_, err := s.upsertPS.ExecContext(ctx, m.Provider, m.AnilistID, string(m.Track), m.MatchID, m.Title, m.UpdatedAt.Unix())
	return errors.Wrap(err, "saving mapping")
}

// Lookup returns the stored match, or nil when there is none
func (s *MappingStore) Lookup(ctx context.Context, provider string, anilistID int, track models.SubOrDub) (*models.Mapping, error) {
	if s == nil || s.db == nil || s.getPS == nil {
		return nil, ErrStoreNotInited
	}

	m := models.Mapping{Provider: provider, AnilistID: anilistID, Track: track}
	var title sql.NullString
	var ts int64
	err := s.getPS.QueryRowContext(ctx, provider, anilistID, string(track)).Scan(&m.MatchID, &title, &ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "query failed")
	}

	m.Title = title.String
	m.UpdatedAt = time.Unix(ts, 0)
	return &m, nil
}

// List returns every stored mapping, most recent first
func (s *MappingStore) List(ctx context.Context) ([]models.Mapping, error) {
	if s == nil || s.db == nil || s.allPS == nil {
		return nil, ErrStoreNotInited
	}

	rows, err := s.allPS.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query failed")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			util.Warn("Error closing rows", "error", err)
		}
	}()

	var list []models.Mapping
	for rows.Next() {
		var m models.Mapping
		var track string
		var title sql.NullString
		var ts int64
		if err := rows.Scan(&m.Provider, &m.AnilistID, &track, &m.MatchID, &title, &ts); err != nil {
			return nil, errors.Wrap(err, "row scan failed")
		}
		m.Track = models.SubOrDub(track)
		m.Title = title.String
		m.UpdatedAt = time.Unix(ts, 0)
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows iteration failed")
	}
	return list, nil
}

// Delete forgets both tracks of a title for one provider
func (s *MappingStore) Delete(ctx context.Context, provider string, anilistID int) error {
	if s == nil || s.db == nil || s.deletePS == nil {
		return ErrStoreNotInited
	}
	_, err := s.deletePS.ExecContext(ctx, provider, anilistID)
	return errors.Wrap(err, "deleting mapping")
}

// Close releases the prepared statements and the database
func (s *MappingStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	var finalErr error
	for name, stmt := range map[string]*sql.Stmt{
		"upsert": s.upsertPS,
		"get":    s.getPS,
		"all":    s.allPS,
		"delete": s.deletePS,
	} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			finalErr = errors.Wrapf(err, "%s statement close error", name)
		}
	}

	if err := s.db.Close(); err != nil {
		finalErr = errors.Wrap(err, "database close error")
	}
	return finalErr
}
