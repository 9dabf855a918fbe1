package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/editnori/psych-intake-brief-sub001/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all persistence interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.intakebrief/data/brief.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".intakebrief", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "brief.db")

	// Open database with WAL mode for better concurrency. Foreign keys
	// go in the DSN so every pooled connection enforces the cascades.
	db, err := sql.Open("sqlite",
		dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// SectionStore returns a SectionStore interface backed by this store.
func (s *Store) SectionStore() driven.SectionStore {
	return &sectionStore{store: s}
}

// QuestionStore returns a QuestionStore interface backed by this store.
func (s *Store) QuestionStore() driven.QuestionStore {
	return &questionStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.SourceDocument) error {
	if doc.AddedAt.IsZero() {
		doc.AddedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, name, kind, raw_text, document_type, episode_date,
			 chronological_order, episode_id, weight, tag, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			raw_text = excluded.raw_text,
			document_type = excluded.document_type,
			episode_date = excluded.episode_date,
			chronological_order = excluded.chronological_order,
			episode_id = excluded.episode_id,
			weight = excluded.weight,
			tag = excluded.tag
	`, doc.ID, doc.Name, string(doc.Kind), doc.RawText, string(doc.DocumentType),
		doc.EpisodeDate, doc.ChronologicalOrder, doc.EpisodeID, doc.Weight,
		string(doc.Tag), doc.AddedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// SaveChunks replaces the stored chunks for a document.
func (s *documentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Replace semantics: clear prior chunks of every affected document.
	seen := make(map[string]bool)
	for _, chunk := range chunks {
		if seen[chunk.SourceID] {
			continue
		}
		seen[chunk.SourceID] = true
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM chunks WHERE source_id = ?", chunk.SourceID); err != nil {
			return fmt.Errorf("clearing chunks: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks
			(id, source_id, source_name, text, start_offset, end_offset,
			 document_type, episode_date, doc_weight)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.SourceID, chunk.SourceName,
			chunk.Text, chunk.StartOffset, chunk.EndOffset,
			string(chunk.DocumentType), chunk.EpisodeDate, chunk.DocWeight); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.SourceDocument, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, kind, raw_text, document_type, episode_date,
		       chronological_order, episode_id, weight, tag, added_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// GetChunks retrieves all chunks for a document in offset order.
func (s *documentStore) GetChunks(ctx context.Context, sourceID string) ([]domain.Chunk, error) {
	return s.queryChunks(ctx, `
		SELECT id, source_id, source_name, text, start_offset, end_offset,
		       document_type, episode_date, doc_weight
		FROM chunks WHERE source_id = ?
		ORDER BY start_offset
	`, sourceID)
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source_id, source_name, text, start_offset, end_offset,
		       document_type, episode_date, doc_weight
		FROM chunks WHERE id = ?
	`, id)

	chunk, err := scanChunk(row.Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return chunk, err
}

// ListDocuments returns all documents ordered by AddedAt.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.SourceDocument, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, kind, raw_text, document_type, episode_date,
		       chronological_order, episode_id, weight, tag, added_at
		FROM documents
		ORDER BY added_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.SourceDocument //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// ListChunks returns the chunks of every stored document.
func (s *documentStore) ListChunks(ctx context.Context) ([]domain.Chunk, error) {
	return s.queryChunks(ctx, `
		SELECT id, source_id, source_name, text, start_offset, end_offset,
		       document_type, episode_date, doc_weight
		FROM chunks
		ORDER BY source_id, start_offset
	`)
}

// DeleteDocument removes a document and its chunks.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// queryChunks runs a chunk query and scans all rows.
func (s *documentStore) queryChunks(ctx context.Context, query string, args ...any) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// ==================== Section Store ====================

// sectionStore implements driven.SectionStore.
type sectionStore struct {
	store *Store
}

var _ driven.SectionStore = (*sectionStore)(nil)

// SaveResult stores the accepted result for a section.
func (s *sectionStore) SaveResult(ctx context.Context, sectionID string, result *domain.GenerationResult) error {
	citationsJSON, err := json.Marshal(result.Citations)
	if err != nil {
		return fmt.Errorf("marshalling citations: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sections (section_id, text, citations, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(section_id) DO UPDATE SET
			text = excluded.text,
			citations = excluded.citations,
			updated_at = excluded.updated_at
	`, sectionID, result.Text, string(citationsJSON), time.Now().UTC())

	if err != nil {
		return fmt.Errorf("saving section result: %w", err)
	}
	return nil
}

// GetResult retrieves the accepted result for a section.
func (s *sectionStore) GetResult(ctx context.Context, sectionID string) (*domain.GenerationResult, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT text, citations FROM sections WHERE section_id = ?
	`, sectionID)

	var result domain.GenerationResult
	var citationsJSON string
	if err := row.Scan(&result.Text, &citationsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning section result: %w", err)
	}

	if err := json.Unmarshal([]byte(citationsJSON), &result.Citations); err != nil {
		return nil, fmt.Errorf("unmarshaling citations: %w", err)
	}

	return &result, nil
}

// ListResults returns accepted results keyed by section ID.
func (s *sectionStore) ListResults(ctx context.Context) (map[string]*domain.GenerationResult, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT section_id, text, citations FROM sections
	`)
	if err != nil {
		return nil, fmt.Errorf("querying section results: %w", err)
	}
	defer rows.Close()

	results := make(map[string]*domain.GenerationResult)
	for rows.Next() {
		var sectionID, citationsJSON string
		var result domain.GenerationResult
		if err := rows.Scan(&sectionID, &result.Text, &citationsJSON); err != nil {
			return nil, fmt.Errorf("scanning section result: %w", err)
		}
		if err := json.Unmarshal([]byte(citationsJSON), &result.Citations); err != nil {
			return nil, fmt.Errorf("unmarshaling citations: %w", err)
		}
		results[sectionID] = &result
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating section results: %w", err)
	}

	return results, nil
}

// ==================== Question Store ====================

// questionStore implements driven.QuestionStore.
type questionStore struct {
	store *Store
}

var _ driven.QuestionStore = (*questionStore)(nil)

// Save stores or updates a question.
func (s *questionStore) Save(ctx context.Context, q *domain.OpenQuestion) error {
	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO questions (id, section_id, text, rationale, answer, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			section_id = excluded.section_id,
			text = excluded.text,
			rationale = excluded.rationale,
			answer = excluded.answer,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, q.ID, q.SectionID, q.Text, q.Rationale, q.Answer, string(q.Status),
		q.CreatedAt, q.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving question: %w", err)
	}
	return nil
}

// Get retrieves a question by ID.
func (s *questionStore) Get(ctx context.Context, id string) (*domain.OpenQuestion, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, section_id, text, rationale, answer, status, created_at, updated_at
		FROM questions WHERE id = ?
	`, id)

	q, err := scanQuestion(row.Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return q, err
}

// ListBySection returns all questions for a section, including resolved ones.
func (s *questionStore) ListBySection(ctx context.Context, sectionID string) ([]domain.OpenQuestion, error) {
	return s.queryQuestions(ctx, `
		SELECT id, section_id, text, rationale, answer, status, created_at, updated_at
		FROM questions WHERE section_id = ?
		ORDER BY created_at, id
	`, sectionID)
}

// List returns all questions ordered by CreatedAt.
func (s *questionStore) List(ctx context.Context) ([]domain.OpenQuestion, error) {
	return s.queryQuestions(ctx, `
		SELECT id, section_id, text, rationale, answer, status, created_at, updated_at
		FROM questions
		ORDER BY created_at, id
	`)
}

// Delete hard-removes a question.
func (s *questionStore) Delete(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM questions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting question: %w", err)
	}
	return nil
}

// queryQuestions runs a question query and scans all rows.
func (s *questionStore) queryQuestions(ctx context.Context, query string, args ...any) ([]domain.OpenQuestion, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.OpenQuestion //nolint:prealloc // size unknown from query
	for rows.Next() {
		q, err := scanQuestion(rows.Scan)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating questions: %w", err)
	}

	return questions, nil
}

// ==================== Helper Functions ====================

// scanDocument scans a document row via the given scan function.
func scanDocument(scan func(...any) error) (*domain.SourceDocument, error) {
	var doc domain.SourceDocument
	var kind, docType, tag string
	if err := scan(&doc.ID, &doc.Name, &kind, &doc.RawText, &docType,
		&doc.EpisodeDate, &doc.ChronologicalOrder, &doc.EpisodeID,
		&doc.Weight, &tag, &doc.AddedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.Kind = domain.DocumentKind(kind)
	doc.DocumentType = domain.DocumentType(docType)
	doc.Tag = domain.DocumentTag(tag)
	return &doc, nil
}

// scanQuestion scans a question row via the given scan function.
func scanQuestion(scan func(...any) error) (*domain.OpenQuestion, error) {
	var q domain.OpenQuestion
	var status string
	if err := scan(&q.ID, &q.SectionID, &q.Text, &q.Rationale, &q.Answer,
		&status, &q.CreatedAt, &q.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning question: %w", err)
	}
	q.Status = domain.QuestionStatus(status)
	return &q, nil
}

// scanChunk scans a chunk row via the given scan function.
func scanChunk(scan func(...any) error) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var docType string
	if err := scan(&chunk.ID, &chunk.SourceID, &chunk.SourceName, &chunk.Text,
		&chunk.StartOffset, &chunk.EndOffset, &docType,
		&chunk.EpisodeDate, &chunk.DocWeight); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	chunk.DocumentType = domain.DocumentType(docType)
	return &chunk, nil
}
