package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite "modernc.org/sqlite"
)

// Community is an external content grouping being synced.
type Community struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	DisplayName string    `db:"display_name"`
	SourceRef   string    `db:"source_ref"`
	DirectURL   string    `db:"direct_url"`
	Active      bool      `db:"active"`
	Excluded    bool      `db:"excluded"`
	AddedOn     time.Time `db:"added_on"`
	UpdatedOn   time.Time `db:"updated_on"`
}

// Post is one ingested content item. Rows are created once during
// ingestion and never updated afterward.
type Post struct {
	ID          int64     `db:"id"`
	ExternalID  string    `db:"external_id"`
	Title       string    `db:"title"`
	Body        string    `db:"body"`
	Score       int       `db:"score"`
	Permalink   string    `db:"permalink"`
	CommunityID int64     `db:"community_id"`
	AddedOn     time.Time `db:"added_on"`
}

// Gallery groups the media assets of one multi-image post.
type Gallery struct {
	ID          int64  `db:"id"`
	ExternalID  string `db:"external_id"`
	URL         string `db:"url"`
	PostID      int64  `db:"post_id"`
	CommunityID int64  `db:"community_id"`
}

// MediaAsset is one validated media reference.
type MediaAsset struct {
	ID          int64         `db:"id"`
	ExternalID  string        `db:"external_id"`
	URL         string        `db:"url"`
	Filename    string        `db:"filename"`
	PostID      int64         `db:"post_id"`
	CommunityID int64         `db:"community_id"`
	GalleryID   sql.NullInt64 `db:"gallery_id"`
	AddedOn     time.Time     `db:"added_on"`
}

// Counts is an aggregate row count snapshot across all entities.
type Counts struct {
	Communities int `db:"communities"`
	Posts       int `db:"posts"`
	Assets      int `db:"assets"`
	Galleries   int `db:"galleries"`
	Ignored     int `db:"ignored"`
}

// Tx is the set of operations available inside one ingestion
// transaction.
type Tx interface {
	// IgnoredIDs returns the subset of ids present in the
	// suppression ledger.
	IgnoredIDs(ids []string) (map[string]bool, error)
	// ExistingPostIDs returns the subset of ids that already exist
	// as post rows.
	ExistingPostIDs(ids []string) (map[string]bool, error)
	InsertPosts(posts []*Post) error
	InsertMediaAsset(asset *MediaAsset) error
	GetOrCreateGallery(gallery *Gallery) (*Gallery, error)
	// AddIgnored records a post external id in the suppression
	// ledger; re-adding an existing id is a no-op.
	AddIgnored(externalID string) error
	// RemoveDuplicateAssets deletes all but the oldest asset row per
	// (external_id, community), returning how many were removed.
	RemoveDuplicateAssets(communityID int64) (int64, error)
}

// Store is the persistence interface.
type Store interface {
	GetOrCreateCommunity(ctx context.Context, ref string) (*Community, bool, error)
	UpdateCommunityMeta(ctx context.Context, id int64, name, displayName string) error
	ListActiveCommunities(ctx context.Context) ([]Community, error)
	Counts(ctx context.Context) (*Counts, error)
	// WithTx runs fn inside one transaction, committing on nil and
	// rolling back on error.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetOrCreateCommunity(ctx context.Context, ref string) (*Community, bool, error) {
	var c Community
	err := s.db.GetContext(ctx, &c, "SELECT * FROM communities WHERE source_ref = ?", ref)
	if err == nil {
		return &c, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("get community %s: %w", ref, err)
	}

	now := time.Now().UTC()
	c = Community{
		Name:      ref,
		SourceRef: ref,
		DirectURL: fmt.Sprintf("https://www.reddit.com/r/%s/", ref),
		Active:    true,
		AddedOn:   now,
		UpdatedOn: now,
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO communities (name, display_name, source_ref, direct_url, active, excluded, added_on, updated_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Name, c.DisplayName, c.SourceRef, c.DirectURL, c.Active, c.Excluded, c.AddedOn, c.UpdatedOn)
	if err != nil {
		return nil, false, fmt.Errorf("create community %s: %w", ref, err)
	}
	c.ID, _ = res.LastInsertId()
	return &c, true, nil
}

func (s *SQLiteStore) UpdateCommunityMeta(ctx context.Context, id int64, name, displayName string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE communities SET name = ?, display_name = ?, updated_on = ? WHERE id = ?
	`, name, displayName, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update community %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ListActiveCommunities(ctx context.Context) ([]Community, error) {
	var communities []Community
	err := s.db.SelectContext(ctx, &communities,
		"SELECT * FROM communities WHERE active = 1 AND excluded = 0 ORDER BY source_ref")
	if err != nil {
		return nil, fmt.Errorf("list active communities: %w", err)
	}
	return communities, nil
}

func (s *SQLiteStore) Counts(ctx context.Context) (*Counts, error) {
	var c Counts
	err := s.db.GetContext(ctx, &c, `
		SELECT
			(SELECT COUNT(*) FROM communities)   AS communities,
			(SELECT COUNT(*) FROM posts)         AS posts,
			(SELECT COUNT(*) FROM media_assets)  AS assets,
			(SELECT COUNT(*) FROM galleries)     AS galleries,
			(SELECT COUNT(*) FROM ignored_posts) AS ignored
	`)
	if err != nil {
		return nil, fmt.Errorf("counts: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IsBusy reports whether err is SQLite lock contention, the only
// storage error worth retrying.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == 5 || code == 6 // SQLITE_BUSY, SQLITE_LOCKED
	}
	return strings.Contains(err.Error(), "database is locked")
}

type sqliteTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

func (t *sqliteTx) selectIDs(query string, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	q, args, err := sqlx.In(query, ids)
	if err != nil {
		return nil, err
	}
	var found []string
	if err := t.tx.SelectContext(t.ctx, &found, q, args...); err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(found))
	for _, id := range found {
		set[id] = true
	}
	return set, nil
}

func (t *sqliteTx) IgnoredIDs(ids []string) (map[string]bool, error) {
	set, err := t.selectIDs("SELECT external_id FROM ignored_posts WHERE external_id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("ignored ids: %w", err)
	}
	return set, nil
}

func (t *sqliteTx) ExistingPostIDs(ids []string) (map[string]bool, error) {
	set, err := t.selectIDs("SELECT external_id FROM posts WHERE external_id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("existing post ids: %w", err)
	}
	return set, nil
}

func (t *sqliteTx) InsertPosts(posts []*Post) error {
	for _, p := range posts {
		if p.AddedOn.IsZero() {
			p.AddedOn = time.Now().UTC()
		}
		res, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO posts (external_id, title, body, score, permalink, community_id, added_on)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ExternalID, p.Title, p.Body, p.Score, p.Permalink, p.CommunityID, p.AddedOn)
		if err != nil {
			return fmt.Errorf("insert post %s: %w", p.ExternalID, err)
		}
		p.ID, _ = res.LastInsertId()
	}
	return nil
}

func (t *sqliteTx) InsertMediaAsset(asset *MediaAsset) error {
	if asset.AddedOn.IsZero() {
		asset.AddedOn = time.Now().UTC()
	}
	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO media_assets (external_id, url, filename, post_id, community_id, gallery_id, added_on)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, asset.ExternalID, asset.URL, asset.Filename, asset.PostID, asset.CommunityID, asset.GalleryID, asset.AddedOn)
	if err != nil {
		return fmt.Errorf("insert asset %s: %w", asset.ExternalID, err)
	}
	asset.ID, _ = res.LastInsertId()
	return nil
}

func (t *sqliteTx) GetOrCreateGallery(gallery *Gallery) (*Gallery, error) {
	var existing Gallery
	err := t.tx.GetContext(t.ctx, &existing,
		"SELECT * FROM galleries WHERE post_id = ?", gallery.PostID)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get gallery for post %d: %w", gallery.PostID, err)
	}

	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO galleries (external_id, url, post_id, community_id)
		VALUES (?, ?, ?, ?)
	`, gallery.ExternalID, gallery.URL, gallery.PostID, gallery.CommunityID)
	if err != nil {
		return nil, fmt.Errorf("insert gallery %s: %w", gallery.ExternalID, err)
	}
	gallery.ID, _ = res.LastInsertId()
	return gallery, nil
}

func (t *sqliteTx) AddIgnored(externalID string) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT OR IGNORE INTO ignored_posts (external_id, added_on) VALUES (?, ?)
	`, externalID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add ignored %s: %w", externalID, err)
	}
	return nil
}

func (t *sqliteTx) RemoveDuplicateAssets(communityID int64) (int64, error) {
	res, err := t.tx.ExecContext(t.ctx, `
		DELETE FROM media_assets
		WHERE community_id = ?
		  AND id NOT IN (
			SELECT MIN(id) FROM media_assets WHERE community_id = ? GROUP BY external_id
		  )
	`, communityID, communityID)
	if err != nil {
		return 0, fmt.Errorf("remove duplicate assets: %w", err)
	}
	removed, _ := res.RowsAffected()
	return removed, nil
}
