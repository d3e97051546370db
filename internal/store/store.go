package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Store persists documents and their summaries in Postgres.
type Store struct {
	DB *sql.DB
}

// Well-known document types. The column is free text; other values are stored as given.
const (
	DocumentTypeTOS                 = "tos"
	DocumentTypePrivacy             = "privacy"
	DocumentTypeCommunityGuidelines = "community_guidelines"
	DocumentTypeOther               = "other"
)

// PoolConfig bounds the connection pool shared by all request handlers.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Document is one fetched legal or policy document at one point in time.
type Document struct {
	ID           uuid.UUID
	URL          string
	ServiceName  string
	DocumentType string
	RawContent   string
	ContentHash  string
	ExtractedAt  time.Time
}

// NewDocument carries the caller-supplied fields of a document.
type NewDocument struct {
	URL          string
	ServiceName  string
	DocumentType string
	RawContent   string
	ContentHash  string
}

// Summary is one generated analysis of a document at a given version.
type Summary struct {
	ID                    uuid.UUID
	DocumentID            uuid.UUID
	Version               int
	RedFlags              RedFlags
	Rules                 Rules
	Concessions           Concessions
	ClarityScore          int
	ReadingLevel          string
	OriginalWordCount     int
	SummaryWordCount      int
	GeneratedAt           time.Time
	ModelVersion          string
	FindingsSchemaVersion int
}

// NewSummary carries the caller-supplied fields of a summary.
type NewSummary struct {
	DocumentID        uuid.UUID
	Version           int
	RedFlags          RedFlags
	Rules             Rules
	Concessions       Concessions
	ClarityScore      int
	ReadingLevel      string
	OriginalWordCount int
	SummaryWordCount  int
	ModelVersion      string
}

// NewWithDSN opens the pool, applies the pool bounds and verifies connectivity.
func NewWithDSN(ctx context.Context, dsn string, pool PoolConfig) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify("ping", err)
	}
	return &Store{DB: db}, nil
}

// Ping checks that a pooled connection can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, `SELECT 1`); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close releases every pooled connection.
func (s *Store) Close() error { return s.DB.Close() }

// ContentHash returns the hex sha256 digest used to detect changed re-fetches.
func ContentHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// withTx runs fn in one transaction. fn's error, or a failed commit, rolls it back.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			err = classify(op, err)
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = classify(op, cerr)
		}
	}()
	return fn(tx)
}

// CreateDocument inserts a document. url and content_hash are not unique; re-fetches add rows.
func (s *Store) CreateDocument(ctx context.Context, in NewDocument) (Document, error) {
	if in.ContentHash == "" {
		in.ContentHash = ContentHash(in.RawContent)
	}
	doc := Document{
		ID:           uuid.New(),
		URL:          in.URL,
		ServiceName:  in.ServiceName,
		DocumentType: in.DocumentType,
		RawContent:   in.RawContent,
		ContentHash:  in.ContentHash,
	}
	err := s.withTx(ctx, "create_document", func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
INSERT INTO documents (id, url, service_name, document_type, raw_content, content_hash)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING extracted_at
`, doc.ID, doc.URL, doc.ServiceName, doc.DocumentType, doc.RawContent, doc.ContentHash).Scan(&doc.ExtractedAt)
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

const documentColumns = `id, url, service_name, document_type, raw_content, content_hash, extracted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.URL, &d.ServiceName, &d.DocumentType, &d.RawContent, &d.ContentHash, &d.ExtractedAt)
	return d, err
}

// GetDocument returns the document with the given id or ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id)
	d, err := scanDocument(row)
	if err != nil {
		return Document{}, classify("get_document", err)
	}
	return d, nil
}

// LatestDocumentForURL returns the most recently extracted document fetched from url.
func (s *Store) LatestDocumentForURL(ctx context.Context, url string) (Document, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE url=$1
ORDER BY extracted_at DESC
LIMIT 1
`, url)
	d, err := scanDocument(row)
	if err != nil {
		return Document{}, classify("latest_document_for_url", err)
	}
	return d, nil
}

// ListDocumentsByServiceName returns every document of a service, newest first.
func (s *Store) ListDocumentsByServiceName(ctx context.Context, serviceName string) ([]Document, error) {
	return s.listDocuments(ctx, "list_documents_by_service", `
SELECT `+documentColumns+`
FROM documents
WHERE service_name=$1
ORDER BY extracted_at DESC, id
`, serviceName)
}

// ListDocumentsByContentHash returns every document sharing a content digest, newest first.
func (s *Store) ListDocumentsByContentHash(ctx context.Context, hash string) ([]Document, error) {
	return s.listDocuments(ctx, "list_documents_by_hash", `
SELECT `+documentColumns+`
FROM documents
WHERE content_hash=$1
ORDER BY extracted_at DESC, id
`, hash)
}

func (s *Store) listDocuments(ctx context.Context, op, query string, arg any) ([]Document, error) {
	rows, err := s.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// DeleteDocument removes a document; the foreign key cascades to its summaries in the same transaction.
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.withTx(ctx, "delete_document", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// CreateSummary inserts a summary. A document_id that names no document yields ErrReferentialIntegrity.
// Findings that would not read back are rejected with ErrInvalidFindings before any write.
func (s *Store) CreateSummary(ctx context.Context, in NewSummary) (Summary, error) {
	if in.Version <= 0 {
		return Summary{}, fmt.Errorf("summary version must be positive, got %d", in.Version)
	}
	for _, v := range []interface{ Validate() error }{in.RedFlags, in.Rules, in.Concessions} {
		if err := v.Validate(); err != nil {
			return Summary{}, err
		}
	}
	sm := Summary{
		ID:                    uuid.New(),
		DocumentID:            in.DocumentID,
		Version:               in.Version,
		RedFlags:              in.RedFlags,
		Rules:                 in.Rules,
		Concessions:           in.Concessions,
		ClarityScore:          in.ClarityScore,
		ReadingLevel:          in.ReadingLevel,
		OriginalWordCount:     in.OriginalWordCount,
		SummaryWordCount:      in.SummaryWordCount,
		ModelVersion:          in.ModelVersion,
		FindingsSchemaVersion: FindingsSchemaVersion,
	}
	err := s.withTx(ctx, "create_summary", func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
INSERT INTO summaries (id, document_id, version, red_flags, rules, concessions, clarity_score,
                       reading_level, original_word_count, summary_word_count, model_version, findings_schema_version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING generated_at
`, sm.ID, sm.DocumentID, sm.Version, sm.RedFlags, sm.Rules, sm.Concessions, sm.ClarityScore,
			sm.ReadingLevel, sm.OriginalWordCount, sm.SummaryWordCount, sm.ModelVersion, sm.FindingsSchemaVersion).Scan(&sm.GeneratedAt)
	})
	if err != nil {
		return Summary{}, err
	}
	if sm.RedFlags == nil {
		sm.RedFlags = RedFlags{}
	}
	if sm.Rules == nil {
		sm.Rules = Rules{}
	}
	if sm.Concessions == nil {
		sm.Concessions = Concessions{}
	}
	return sm, nil
}

const summaryColumns = `id, document_id, version, red_flags, rules, concessions, clarity_score,
       reading_level, original_word_count, summary_word_count, generated_at, model_version, findings_schema_version`

func scanSummary(row rowScanner) (Summary, error) {
	var sm Summary
	err := row.Scan(&sm.ID, &sm.DocumentID, &sm.Version, &sm.RedFlags, &sm.Rules, &sm.Concessions, &sm.ClarityScore,
		&sm.ReadingLevel, &sm.OriginalWordCount, &sm.SummaryWordCount, &sm.GeneratedAt, &sm.ModelVersion, &sm.FindingsSchemaVersion)
	if err != nil {
		return Summary{}, err
	}
	if sm.FindingsSchemaVersion != FindingsSchemaVersion {
		return Summary{}, fmt.Errorf("%w: summary %s has findings schema version %d", ErrCorruptFindings, sm.ID, sm.FindingsSchemaVersion)
	}
	return sm, nil
}

// GetSummary returns the summary with the given id or ErrNotFound.
func (s *Store) GetSummary(ctx context.Context, id uuid.UUID) (Summary, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM summaries WHERE id=$1`, id)
	sm, err := scanSummary(row)
	if err != nil {
		return Summary{}, classify("get_summary", err)
	}
	return sm, nil
}

// ListSummariesForDocument returns every summary owned by a document ordered by version.
func (s *Store) ListSummariesForDocument(ctx context.Context, documentID uuid.UUID) ([]Summary, error) {
	const op = "list_summaries"
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+summaryColumns+`
FROM summaries
WHERE document_id=$1
ORDER BY version, generated_at, id
`, documentID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		sm, err := scanSummary(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}
