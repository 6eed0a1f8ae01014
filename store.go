package engram

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite connection for cognitive memory persistence. It
// has no locking of its own: the writer-lock discipline from the
// concurrency model lives in Engine. Each mutating Store method is one
// transaction: InsertEngram and SaveEngrams open an explicit one, the
// rest are single statements.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database and runs migrations.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &StoreError{Op: "NewStore", Err: fmt.Errorf("mkdir %s: %w", dir, err)}
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, &StoreError{Op: "NewStore", Err: fmt.Errorf("open db: %w", err)}
	}

	// Single connection: the engine is single-writer, and SQLite's WAL
	// mode plus a shared connection avoids lock contention between our
	// own serialised writers and readers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, &StoreError{Op: "NewStore", Err: fmt.Errorf("migrate: %w", err)}
	}
	// Foreign keys are per-connection in SQLite; enable them on every open
	// (not only the first migration) so deletes cascade on reopened files.
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, &StoreError{Op: "NewStore", Err: fmt.Errorf("enable foreign keys: %w", err)}
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)

	if version < 1 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS engrams (
				id                   INTEGER PRIMARY KEY AUTOINCREMENT,
				content              TEXT    NOT NULL,
				kind                 TEXT    NOT NULL,
				layer                TEXT    NOT NULL DEFAULT 'working',
				created_at           TEXT    NOT NULL,
				working_strength     REAL    NOT NULL DEFAULT 0.5,
				core_strength        REAL    NOT NULL DEFAULT 0,
				importance           REAL    NOT NULL DEFAULT 0.3,
				pinned               INTEGER NOT NULL DEFAULT 0,
				consolidation_count  INTEGER NOT NULL DEFAULT 0,
				last_consolidated    TEXT,
				source               TEXT    NOT NULL DEFAULT '',
				embedding            BLOB
			);
			CREATE INDEX IF NOT EXISTS idx_engrams_kind  ON engrams(kind);
			CREATE INDEX IF NOT EXISTS idx_engrams_layer ON engrams(layer);

			CREATE TABLE IF NOT EXISTS access_log (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				engram_id  INTEGER NOT NULL REFERENCES engrams(id) ON DELETE CASCADE,
				ts         TEXT    NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_access_log_engram ON access_log(engram_id);

			CREATE TABLE IF NOT EXISTS graph_links (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				engram_id  INTEGER NOT NULL REFERENCES engrams(id) ON DELETE CASCADE,
				entity     TEXT    NOT NULL,
				relation   TEXT    NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_graph_links_engram ON graph_links(engram_id);
			CREATE INDEX IF NOT EXISTS idx_graph_links_entity ON graph_links(entity);

			CREATE VIRTUAL TABLE IF NOT EXISTS engrams_fts USING fts5(
				content,
				content='engrams',
				content_rowid='id'
			);

			CREATE TRIGGER IF NOT EXISTS engrams_ai AFTER INSERT ON engrams BEGIN
				INSERT INTO engrams_fts(rowid, content) VALUES (new.id, new.content);
			END;
			CREATE TRIGGER IF NOT EXISTS engrams_ad AFTER DELETE ON engrams BEGIN
				INSERT INTO engrams_fts(engrams_fts, rowid, content) VALUES ('delete', old.id, old.content);
			END;
			CREATE TRIGGER IF NOT EXISTS engrams_au AFTER UPDATE OF content ON engrams BEGIN
				INSERT INTO engrams_fts(engrams_fts, rowid, content) VALUES ('delete', old.id, old.content);
				INSERT INTO engrams_fts(rowid, content) VALUES (new.id, new.content);
			END;

			PRAGMA foreign_keys = ON;
		`); err != nil {
			return err
		}
		s.db.Exec(`INSERT INTO schema_version (version) VALUES (1)`)
	}

	return nil
}

// Close shuts down the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Embedding codec (opaque, host-supplied auxiliary signal; never
// read by any scoring formula) ---

// EncodeVector converts a float32 slice to a little-endian byte blob.
func EncodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector converts a little-endian byte blob back to a float32 slice.
func DecodeVector(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

const engramSelectCols = `id, content, kind, layer, created_at, working_strength,
	core_strength, importance, pinned, consolidation_count, last_consolidated,
	source, embedding`

const engramSelectColsPrefixed = `e.id, e.content, e.kind, e.layer, e.created_at, e.working_strength,
	e.core_strength, e.importance, e.pinned, e.consolidation_count, e.last_consolidated,
	e.source, e.embedding`

const timeLayout = time.RFC3339Nano

func scanEngram(scanner interface{ Scan(...any) error }) (*Engram, error) {
	var e Engram
	var created string
	var lastConsolidated sql.NullString
	var pinned int
	var embedding []byte

	if err := scanner.Scan(
		&e.ID, &e.Content, &e.Kind, &e.Layer, &created, &e.WorkingStrength,
		&e.CoreStrength, &e.Importance, &pinned, &e.ConsolidationCount,
		&lastConsolidated, &e.Source, &embedding,
	); err != nil {
		return nil, err
	}

	e.CreatedAt, _ = time.Parse(timeLayout, created)
	e.Pinned = pinned != 0
	if lastConsolidated.Valid && lastConsolidated.String != "" {
		t, _ := time.Parse(timeLayout, lastConsolidated.String)
		e.LastConsolidated = &t
	}
	e.Embedding = DecodeVector(embedding)
	return &e, nil
}

// InsertEngram stores a new engram, its first access_log row, and any
// graph links, then returns its ID. The created_at access is recorded
// so AccessTimes always has head = created_at, per the access-times
// invariant.
func (s *Store) InsertEngram(e *Engram, now time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, &StoreError{Op: "InsertEngram", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO engrams (content, kind, layer, created_at, working_strength,
			core_strength, importance, pinned, consolidation_count, source, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		e.Content, string(e.Kind), string(e.Layer), now.Format(timeLayout),
		e.WorkingStrength, e.CoreStrength, e.Importance, boolToInt(e.Pinned),
		e.Source, EncodeVector(e.Embedding),
	)
	if err != nil {
		return 0, &StoreError{Op: "InsertEngram", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &StoreError{Op: "InsertEngram", Err: err}
	}

	if _, err := tx.Exec(`INSERT INTO access_log (engram_id, ts) VALUES (?, ?)`, id, now.Format(timeLayout)); err != nil {
		return 0, &StoreError{Op: "InsertEngram", Err: err}
	}

	for _, link := range e.GraphLinks {
		if _, err := tx.Exec(`INSERT INTO graph_links (engram_id, entity, relation) VALUES (?, ?, ?)`,
			id, link.Entity, link.Relation); err != nil {
			return 0, &StoreError{Op: "InsertEngram", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &StoreError{Op: "InsertEngram", Err: err}
	}
	return id, nil
}

// GetEngram loads a single engram by ID, including its access times and
// graph links.
func (s *Store) GetEngram(id int64) (*Engram, error) {
	row := s.db.QueryRow(`SELECT `+engramSelectCols+` FROM engrams WHERE id = ?`, id)
	e, err := scanEngram(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, &StoreError{Op: "GetEngram", Err: err}
	}

	accessTimes, err := s.accessTimes(id)
	if err != nil {
		return nil, &StoreError{Op: "GetEngram", Err: err}
	}
	e.AccessTimes = accessTimes

	links, err := s.graphLinks(id)
	if err != nil {
		return nil, &StoreError{Op: "GetEngram", Err: err}
	}
	e.GraphLinks = links

	return e, nil
}

func (s *Store) accessTimes(id int64) ([]time.Time, error) {
	rows, err := s.db.Query(`SELECT ts FROM access_log WHERE engram_id = ? ORDER BY ts ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		t, _ := time.Parse(timeLayout, ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) graphLinks(id int64) ([]GraphLink, error) {
	rows, err := s.db.Query(`SELECT entity, relation FROM graph_links WHERE engram_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GraphLink
	for rows.Next() {
		var l GraphLink
		if err := rows.Scan(&l.Entity, &l.Relation); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AllEngrams loads every engram in the store, including access times
// and graph links. At the embedded-library scale this spec targets
// (personal-assistant / agent memory, not web-scale corpora) scoring in
// Go after a single bulk load is simpler and fast enough.
func (s *Store) AllEngrams() ([]*Engram, error) {
	return s.queryEngrams(`SELECT `+engramSelectCols+` FROM engrams`, "AllEngrams")
}

// AddGraphLink attaches an (entity, relation) edge to an existing
// engram, for links discovered after the engram was first added.
func (s *Store) AddGraphLink(id int64, entity, relation string) error {
	if _, err := s.db.Exec(`INSERT INTO graph_links (engram_id, entity, relation) VALUES (?, ?, ?)`,
		id, entity, relation); err != nil {
		return &StoreError{Op: "AddGraphLink", Err: err}
	}
	return nil
}

// ByKind returns every engram of the given kind, hydrated with access
// times and graph links, for plain filtered iteration outside the
// activation-ranked recall pipeline.
func (s *Store) ByKind(kind Kind) ([]*Engram, error) {
	return s.queryEngrams(`SELECT `+engramSelectCols+` FROM engrams WHERE kind = ?`, "ByKind", string(kind))
}

// ByLayer returns every engram in the given layer, hydrated with access
// times and graph links.
func (s *Store) ByLayer(layer Layer) ([]*Engram, error) {
	return s.queryEngrams(`SELECT `+engramSelectCols+` FROM engrams WHERE layer = ?`, "ByLayer", string(layer))
}

// queryEngrams runs a single-table engrams query and hydrates each row's
// access times and graph links. Shared by AllEngrams, ByKind, and
// ByLayer.
func (s *Store) queryEngrams(query string, op string, args ...any) ([]*Engram, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &StoreError{Op: op, Err: err}
	}

	var out []*Engram
	for rows.Next() {
		e, err := scanEngram(rows)
		if err != nil {
			rows.Close()
			return nil, &StoreError{Op: op, Err: err}
		}
		out = append(out, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: op, Err: err}
	}

	for _, e := range out {
		at, err := s.accessTimes(e.ID)
		if err != nil {
			return nil, &StoreError{Op: op, Err: err}
		}
		e.AccessTimes = at
		links, err := s.graphLinks(e.ID)
		if err != nil {
			return nil, &StoreError{Op: op, Err: err}
		}
		e.GraphLinks = links
	}
	return out, nil
}

// sanitiseFTSQuery converts free-form query text into a safe FTS5 MATCH
// expression: each token becomes a prefix term, OR'd together. Avoids
// surfacing raw FTS5 syntax errors from operator-looking user input.
func sanitiseFTSQuery(query string) string {
	replacer := strings.NewReplacer(
		`"`, ` `, `'`, ` `, `(`, ` `, `)`, ` `, `*`, ` `, `-`, ` `, `^`, ` `, `:`, ` `,
	)
	cleaned := replacer.Replace(query)
	words := strings.Fields(strings.ToLower(cleaned))

	var terms []string
	for _, w := range words {
		if len(w) >= 1 {
			terms = append(terms, w+"*")
		}
	}
	return strings.Join(terms, " OR ")
}

// FTSCandidates returns up to limit engrams whose content matches query,
// ranked by FTS5 relevance. An empty query falls back to the most
// recently created engrams, so a no-keyword recall still returns
// something sensible for activation to rank.
func (s *Store) FTSCandidates(query string, limit int) ([]*Engram, error) {
	if strings.TrimSpace(query) == "" {
		rows, err := s.db.Query(`SELECT `+engramSelectCols+` FROM engrams ORDER BY created_at DESC LIMIT ?`, limit)
		if err != nil {
			return nil, &StoreError{Op: "FTSCandidates", Err: err}
		}
		defer rows.Close()
		return scanEngramRows(rows)
	}

	ftsQuery := sanitiseFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT `+engramSelectColsPrefixed+`
		FROM engrams_fts fts
		JOIN engrams e ON e.id = fts.rowid
		WHERE engrams_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, &BadQueryError{Query: query, Err: err}
	}
	defer rows.Close()
	return scanEngramRows(rows)
}

func scanEngramRows(rows *sql.Rows) ([]*Engram, error) {
	var out []*Engram
	for rows.Next() {
		e, err := scanEngram(rows)
		if err != nil {
			return nil, &StoreError{Op: "scanEngramRows", Err: err}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "scanEngramRows", Err: err}
	}
	return out, nil
}

// Neighbors returns engrams that share at least one graph-link entity
// with id, excluding id itself. Used for one-hop graph expansion in the
// search pipeline.
func (s *Store) Neighbors(id int64) ([]*Engram, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT `+engramSelectColsPrefixed+`
		FROM graph_links gl1
		JOIN graph_links gl2 ON gl2.entity = gl1.entity AND gl2.engram_id != gl1.engram_id
		JOIN engrams e ON e.id = gl2.engram_id
		WHERE gl1.engram_id = ?`, id)
	if err != nil {
		return nil, &StoreError{Op: "Neighbors", Err: err}
	}
	defer rows.Close()

	out, err := scanEngramRows(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range out {
		at, err := s.accessTimes(e.ID)
		if err != nil {
			return nil, &StoreError{Op: "Neighbors", Err: err}
		}
		e.AccessTimes = at
		links, err := s.graphLinks(e.ID)
		if err != nil {
			return nil, &StoreError{Op: "Neighbors", Err: err}
		}
		e.GraphLinks = links
	}
	return out, nil
}

// RecordAccess appends an access_log row for id at ts.
func (s *Store) RecordAccess(id int64, ts time.Time) error {
	_, err := s.db.Exec(`INSERT INTO access_log (engram_id, ts) VALUES (?, ?)`, id, ts.Format(timeLayout))
	if err != nil {
		return &StoreError{Op: "RecordAccess", Err: err}
	}
	return nil
}

// SaveEngram persists the mutable fields of e (strengths, importance,
// layer, pinned, consolidation bookkeeping). Content, kind, and
// created_at are immutable once inserted.
func (s *Store) SaveEngram(e *Engram) error {
	var lastConsolidated any
	if e.LastConsolidated != nil {
		lastConsolidated = e.LastConsolidated.Format(timeLayout)
	}
	_, err := s.db.Exec(`
		UPDATE engrams SET
			layer = ?, working_strength = ?, core_strength = ?, importance = ?,
			pinned = ?, consolidation_count = ?, last_consolidated = ?
		WHERE id = ?`,
		string(e.Layer), e.WorkingStrength, e.CoreStrength, e.Importance,
		boolToInt(e.Pinned), e.ConsolidationCount, lastConsolidated, e.ID,
	)
	if err != nil {
		return &StoreError{Op: "SaveEngram", Err: err}
	}
	return nil
}

// SaveEngrams persists a batch of engrams inside a single transaction,
// so a consolidation or downscale pass is all-or-nothing.
func (s *Store) SaveEngrams(engrams []*Engram) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &StoreError{Op: "SaveEngrams", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE engrams SET
			layer = ?, working_strength = ?, core_strength = ?, importance = ?,
			pinned = ?, consolidation_count = ?, last_consolidated = ?
		WHERE id = ?`)
	if err != nil {
		return &StoreError{Op: "SaveEngrams", Err: err}
	}
	defer stmt.Close()

	for _, e := range engrams {
		var lastConsolidated any
		if e.LastConsolidated != nil {
			lastConsolidated = e.LastConsolidated.Format(timeLayout)
		}
		if _, err := stmt.Exec(
			string(e.Layer), e.WorkingStrength, e.CoreStrength, e.Importance,
			boolToInt(e.Pinned), e.ConsolidationCount, lastConsolidated, e.ID,
		); err != nil {
			return &StoreError{Op: "SaveEngrams", Err: err}
		}
	}

	return tx.Commit()
}

// DeleteEngram permanently removes an engram and its access log / graph
// links (cascade).
func (s *Store) DeleteEngram(id int64) error {
	res, err := s.db.Exec(`DELETE FROM engrams WHERE id = ?`, id)
	if err != nil {
		return &StoreError{Op: "DeleteEngram", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: "DeleteEngram", Err: err}
	}
	if n == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// exportTo copies the on-disk file backing this store to destPath.
func (s *Store) exportTo(destPath string) error {
	var currentPath string
	if err := s.db.QueryRow(`PRAGMA database_list`).Scan(new(int), new(string), &currentPath); err != nil {
		return &StoreError{Op: "Export", Err: err}
	}
	return copyFile(currentPath, destPath)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
