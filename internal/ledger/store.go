// Package ledger is the durable project ledger: features, their relations,
// their documents, and document embeddings, persisted in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DBFileName is the ledger database file inside the project data directory.
const DBFileName = "ledger.db"

// Store is the SQLite-backed ledger for one project.
type Store struct {
	db     *sql.DB
	path   string
	prefix string
	now    func() time.Time
	mirror *MarkdownMirror
	retry  time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMarkdownMirror mirrors every document write to human-readable files.
func WithMarkdownMirror(m *MarkdownMirror) Option {
	return func(s *Store) { s.mirror = m }
}

// WithBusyRetry bounds how long writes retry when the database is locked
// by another writer.
func WithBusyRetry(d time.Duration) Option {
	return func(s *Store) { s.retry = d }
}

// Open opens (or creates) the ledger at dir/ledger.db. prefix is the project
// initials used for feature ids.
func Open(dir, prefix string, opts ...Option) (*Store, error) {
	if !ValidInitials(prefix) {
		return nil, fmt.Errorf("invalid project initials %q: want 1-4 uppercase letters", prefix)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	path := filepath.Join(dir, DBFileName)

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
		retry:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	slog.Debug("ledger opened", "path", path, "prefix", prefix)
	return s, nil
}

// dsn enables foreign keys and a busy timeout on every pooled connection and
// makes BeginTx issue BEGIN IMMEDIATE, so the id scan and the insert that
// follows it hold the write lock together.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS features (
		feature_id TEXT PRIMARY KEY,
		type TEXT NOT NULL CHECK (type IN ('new_feature', 'bug_fix', 'refactor', 'enhancement')),
		status TEXT NOT NULL DEFAULT 'requested' CHECK (status IN (
			'requested', 'in_review', 'awaiting_implementation',
			'awaiting_validation', 'validated', 'superseded')),
		title TEXT NOT NULL,
		description TEXT,
		keywords TEXT,                      -- JSON array
		date_created TEXT NOT NULL,
		date_implemented TEXT,
		date_superseded TEXT,
		commit_hash TEXT,
		changed_files TEXT,                 -- JSON array
		idempotency_key TEXT UNIQUE
	);

	CREATE TABLE IF NOT EXISTS feature_relations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feature_id TEXT NOT NULL,
		relation_type TEXT NOT NULL CHECK (relation_type IN ('builds_on', 'supersedes', 'refactors', 'fixes')),
		target_id TEXT NOT NULL,
		FOREIGN KEY (feature_id) REFERENCES features(feature_id) ON DELETE CASCADE,
		FOREIGN KEY (target_id) REFERENCES features(feature_id) ON DELETE CASCADE,
		UNIQUE(feature_id, relation_type, target_id)
	);

	CREATE TABLE IF NOT EXISTS feature_documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feature_id TEXT NOT NULL,
		document_type TEXT NOT NULL CHECK (document_type IN (
			'feature_request', 'technical_architecture_specification', 'feature_implementation_plan')),
		content TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (feature_id) REFERENCES features(feature_id) ON DELETE CASCADE,
		UNIQUE(feature_id, document_type)
	);

	CREATE TABLE IF NOT EXISTS feature_embeddings (
		feature_id TEXT NOT NULL,
		document_type TEXT NOT NULL,
		model TEXT NOT NULL,
		embedding BLOB NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (feature_id, document_type),
		FOREIGN KEY (feature_id) REFERENCES features(feature_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS policy_decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		decision_id TEXT NOT NULL UNIQUE,
		policy_path TEXT NOT NULL,
		result TEXT NOT NULL CHECK (result IN ('allow', 'deny')),
		violations TEXT,                    -- JSON array
		input_json TEXT,
		run_id TEXT,
		evaluated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_features_status ON features(status);
	CREATE INDEX IF NOT EXISTS idx_features_type ON features(type);
	CREATE INDEX IF NOT EXISTS idx_relations_feature ON feature_relations(feature_id);
	CREATE INDEX IF NOT EXISTS idx_relations_target ON feature_relations(target_id);
	CREATE INDEX IF NOT EXISTS idx_documents_feature ON feature_documents(feature_id);
	CREATE INDEX IF NOT EXISTS idx_documents_type ON feature_documents(document_type);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// coreTables lists the columns every ledger must carry, per table.
var coreTables = []struct {
	name    string
	columns []string
}{
	{"features", []string{"feature_id", "type", "status", "title", "description", "keywords",
		"date_created", "date_implemented", "date_superseded", "commit_hash", "changed_files", "idempotency_key"}},
	{"feature_relations", []string{"id", "feature_id", "relation_type", "target_id"}},
	{"feature_documents", []string{"id", "feature_id", "document_type", "content", "created_at", "updated_at"}},
}

// ValidateSchema verifies that the core ledger tables exist with the columns
// the store reads and writes. Open creates missing tables, so this catches
// ledgers written by an incompatible schema.
func (s *Store) ValidateSchema(ctx context.Context) error {
	for _, table := range coreTables {
		have, err := s.tableColumns(ctx, table.name)
		if err != nil {
			return fmt.Errorf("check table %s: %w", table.name, err)
		}
		if len(have) == 0 {
			return fmt.Errorf("%w: missing table %s", ErrSchemaInvalid, table.name)
		}
		for _, col := range table.columns {
			if !have[col] {
				return fmt.Errorf("%w: table %s is missing column %s", ErrSchemaInvalid, table.name, col)
			}
		}
	}
	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, checkRowsErr(rows)
}

// Prefix returns the project initials used for feature ids.
func (s *Store) Prefix() string {
	return s.prefix
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying connection for stores that share the ledger
// database, such as the policy decision audit.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
