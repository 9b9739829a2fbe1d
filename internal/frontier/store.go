package frontier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

/*
Frontier Store (C2)

The durable table of URLs per crawl token. Ownership: this package owns
persistent truth; workers borrow rows transiently by claiming them
(fetched=true). All single-row writes commit before the call returns,
and the (token_id, hash_id) unique constraint makes add_url idempotent
under concurrent discovery of the same link.
*/

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	url        TEXT NOT NULL,
	mode       TEXT NOT NULL,
	created    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS urls (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	token_id   INTEGER NOT NULL REFERENCES tokens(id),
	url        TEXT NOT NULL,
	hash_id    TEXT NOT NULL,
	status     INTEGER,
	fetched    INTEGER NOT NULL DEFAULT 0,
	processed  INTEGER NOT NULL DEFAULT 0,
	UNIQUE(token_id, hash_id)
);

CREATE INDEX IF NOT EXISTS idx_urls_next
	ON urls(token_id, processed, fetched, id);

-- page_artifacts demonstrates that a content hook may define and write its
-- own tables in the same crawl database rather than a separate store.
CREATE TABLE IF NOT EXISTS page_artifacts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	token_id     INTEGER NOT NULL REFERENCES tokens(id),
	url          TEXT NOT NULL,
	path         TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	created      DATETIME NOT NULL
);
`

// Store is the sqlite-backed frontier. A single *sqlx.DB is shared
// across all workers of a session; sqlite serialises concurrent writers
// internally, which is what lets next_url's claim be atomic via a plain
// transaction instead of row-level locking.
type Store struct {
	db *sqlx.DB
}

// Open connects to a sqlite database at dsn and ensures the frontier
// schema exists. dsn is a file path, or ":memory:" for tests.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", dsn+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, newStoreError("open database", ErrCauseUnexpectedDB, err)
	}
	db.SetMaxOpenConns(1) // sqlite is a single-writer engine; serialise via one connection.

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, newStoreError("create schema", ErrCauseUnexpectedDB, err)
	}
	return &Store{db: db}, nil
}

// NewStoreForTest wraps an already-open, already-migrated handle.
func NewStoreForTest(db *sqlx.DB) Store {
	return Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession opens a single transaction that inserts a new Token and
// its seed URLRecord together, so a session never exists without its
// first frontier row. Returns the assigned token id.
func (s *Store) CreateSession(ctx context.Context, seedURL string, mode string, seedHashID string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, newStoreError("begin create session tx", ErrCauseUnexpectedDB, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO tokens (url, mode, created) VALUES (?, ?, ?)`,
		seedURL, mode, time.Now().UTC(),
	)
	if err != nil {
		return 0, newStoreError("create token", ErrCauseUnexpectedDB, err)
	}
	tokenID, err := res.LastInsertId()
	if err != nil {
		return 0, newStoreError("read token id", ErrCauseUnexpectedDB, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO urls (token_id, url, hash_id, fetched, processed) VALUES (?, ?, ?, 0, 0)`,
		tokenID, seedURL, seedHashID,
	); err != nil {
		return 0, newStoreError("insert seed url", ErrCauseUnexpectedDB, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, newStoreError("commit create session", ErrCauseUnexpectedDB, err)
	}
	return tokenID, nil
}

// RecordArtifact inserts a page_artifacts row for a page the content hook
// has written to disk. This is the hook's own table, reachable through
// the same *Store its frontier reads go through, rather than a separate
// store the hook would have to own and migrate itself.
func (s *Store) RecordArtifact(ctx context.Context, tokenID int64, url string, path string, contentHash string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO page_artifacts (token_id, url, path, content_hash, created) VALUES (?, ?, ?, ?, ?)`,
		tokenID, url, path, contentHash, time.Now().UTC(),
	); err != nil {
		return newStoreError("record artifact", ErrCauseUnexpectedDB, err)
	}
	return nil
}

// GetToken loads a Token row by id. Returns ErrCauseTokenNotFound if
// absent.
func (s *Store) GetToken(ctx context.Context, tokenID int64) (Token, error) {
	var tok Token
	err := s.db.GetContext(ctx, &tok, `SELECT id, url, mode, created FROM tokens WHERE id = ?`, tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, newStoreError(fmt.Sprintf("token %d not found", tokenID), ErrCauseTokenNotFound, err)
	}
	if err != nil {
		return Token{}, newStoreError("get token", ErrCauseUnexpectedDB, err)
	}
	return tok, nil
}

// AddURL inserts a discovered URL. Collisions on (token_id, hash_id)
// are swallowed silently — duplicate discovery across workers is
// expected and resolves to the single already-committed row.
func (s *Store) AddURL(ctx context.Context, tokenID int64, url string, hashID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO urls (token_id, url, hash_id, fetched, processed) VALUES (?, ?, ?, 0, 0)
		 ON CONFLICT(token_id, hash_id) DO NOTHING`,
		tokenID, url, hashID,
	)
	if err != nil {
		return newStoreError("add url", ErrCauseUnexpectedDB, err)
	}
	return nil
}

// HasHash reports whether a URL with this fingerprint is already known
// to the token.
func (s *Store) HasHash(ctx context.Context, tokenID int64, hashID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM urls WHERE token_id = ? AND hash_id = ?`, tokenID, hashID)
	if err != nil {
		return false, newStoreError("has hash", ErrCauseUnexpectedDB, err)
	}
	return count > 0, nil
}

// NextURL atomically claims the oldest unprocessed, unfetched row for
// the token: it is read and marked fetched=true inside a single
// transaction, so no two concurrent callers can ever observe and claim
// the same row. Returns ok=false when the frontier is empty for this
// token.
func (s *Store) NextURL(ctx context.Context, tokenID int64) (rec URLRecord, ok bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return URLRecord{}, false, newStoreError("begin claim tx", ErrCauseUnexpectedDB, err)
	}
	defer tx.Rollback()

	err = tx.GetContext(ctx, &rec,
		`SELECT id, token_id, url, hash_id, status, fetched, processed
		 FROM urls
		 WHERE token_id = ? AND processed = 0 AND fetched = 0
		 ORDER BY id ASC LIMIT 1`,
		tokenID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return URLRecord{}, false, nil
	}
	if err != nil {
		return URLRecord{}, false, newStoreError("select next url", ErrCauseUnexpectedDB, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE urls SET fetched = 1 WHERE id = ?`, rec.ID); err != nil {
		return URLRecord{}, false, newStoreError("claim url", ErrCauseUnexpectedDB, err)
	}

	if err := tx.Commit(); err != nil {
		return URLRecord{}, false, newStoreError("commit claim", ErrCauseUnexpectedDB, err)
	}

	rec.Fetched = true
	return rec, true, nil
}

// MarkFetched sets fetched=true for a row claimed outside NextURL's
// transaction (kept for callers that split claim and fetch-mark).
func (s *Store) MarkFetched(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE urls SET fetched = 1 WHERE id = ?`, id); err != nil {
		return newStoreError("mark fetched", ErrCauseUnexpectedDB, err)
	}
	return nil
}

// MarkProcessed records the final fetch status for a row.
func (s *Store) MarkProcessed(ctx context.Context, id int64, status int) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE urls SET processed = 1, status = ? WHERE id = ?`, status, id,
	); err != nil {
		return newStoreError("mark processed", ErrCauseUnexpectedDB, err)
	}
	return nil
}

// Count returns the total number of URLRecords for the token, used by
// the admission filter's soft URL cap.
func (s *Store) Count(ctx context.Context, tokenID int64) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM urls WHERE token_id = ?`, tokenID); err != nil {
		return 0, newStoreError("count", ErrCauseUnexpectedDB, err)
	}
	return count, nil
}

// UnprocessedCount returns the number of rows still awaiting a final
// status. Used by resume to decide whether a token is already finished.
func (s *Store) UnprocessedCount(ctx context.Context, tokenID int64) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM urls WHERE token_id = ? AND processed = 0`, tokenID,
	); err != nil {
		return 0, newStoreError("unprocessed count", ErrCauseUnexpectedDB, err)
	}
	return count, nil
}

// ResetInflight clears fetched=true on rows that were claimed but never
// reached processed=true. Executed exactly once at the start of resume.
func (s *Store) ResetInflight(ctx context.Context, tokenID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE urls SET fetched = 0 WHERE token_id = ? AND processed = 0 AND fetched = 1`, tokenID,
	); err != nil {
		return newStoreError("reset inflight", ErrCauseUnexpectedDB, err)
	}
	return nil
}

// ListTokens is an observability helper listing every known session: a
// per-token summary joining total and not-yet-processed URL counts.
func (s *Store) ListTokens(ctx context.Context) ([]TokenSummary, error) {
	var summaries []TokenSummary
	err := s.db.SelectContext(ctx, &summaries, `
		SELECT
			t.id AS id,
			t.url AS url,
			t.created AS created,
			COUNT(u.id) AS total_urls,
			COALESCE(SUM(CASE WHEN u.processed = 0 THEN 1 ELSE 0 END), 0) AS not_processed_urls
		FROM tokens t
		LEFT JOIN urls u ON u.token_id = t.id
		GROUP BY t.id, t.url, t.created
		ORDER BY t.id ASC
	`)
	if err != nil {
		return nil, newStoreError("list tokens", ErrCauseUnexpectedDB, err)
	}
	return summaries, nil
}
