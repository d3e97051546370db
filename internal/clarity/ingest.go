package clarity

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mohammad-safakhou/tosclarity/internal/store"
	"go.uber.org/zap"
)

// SummaryWriter is the slice of the store the ingestion path needs.
type SummaryWriter interface {
	CreateDocument(ctx context.Context, in store.NewDocument) (store.Document, error)
	CreateSummary(ctx context.Context, in store.NewSummary) (store.Summary, error)
	LatestDocumentForURL(ctx context.Context, url string) (store.Document, error)
}

// DocumentInput is the fetched document half of an analysis.
type DocumentInput struct {
	URL          string `json:"url" validate:"required,url"`
	ServiceName  string `json:"service_name" validate:"required"`
	DocumentType string `json:"document_type" validate:"required"`
	RawContent   string `json:"raw_content" validate:"required"`
	ContentHash  string `json:"content_hash,omitempty" validate:"omitempty,len=64,hexadecimal"`
}

// SummaryInput is the generated half of an analysis.
type SummaryInput struct {
	Version           int                `json:"version" validate:"omitempty,gte=1"`
	RedFlags          []store.RedFlag    `json:"red_flags" validate:"dive"`
	Rules             []store.Rule       `json:"rules" validate:"dive"`
	Concessions       []store.Concession `json:"concessions" validate:"dive"`
	ClarityScore      int                `json:"clarity_score"`
	ReadingLevel      string             `json:"reading_level" validate:"required"`
	OriginalWordCount int                `json:"original_word_count" validate:"gte=0"`
	SummaryWordCount  int                `json:"summary_word_count" validate:"gte=0"`
	ModelVersion      string             `json:"model_version,omitempty"`
}

// Analysis is one (document, summary) pair produced by the analysis pipeline.
type Analysis struct {
	Document DocumentInput `json:"document" validate:"required"`
	Summary  SummaryInput  `json:"summary" validate:"required"`
}

// RecordResult identifies the rows written for an analysis.
type RecordResult struct {
	DocumentID uuid.UUID `json:"document_id"`
	SummaryID  uuid.UUID `json:"summary_id"`
	// Reused is set when the latest document for the URL had the same content
	// and the summary was attached to it instead of a new document.
	Reused bool `json:"reused"`
}

// Ingestor validates analyses at the boundary and writes them to the store.
type Ingestor struct {
	store    SummaryWriter
	validate *validator.Validate
	log      *zap.Logger
	model    string
}

func NewIngestor(w SummaryWriter, v *validator.Validate, log *zap.Logger) *Ingestor {
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{store: w, validate: v, log: log}
}

// WithDefaultModel sets the model_version recorded when an analysis omits it.
func (i *Ingestor) WithDefaultModel(model string) *Ingestor {
	i.model = model
	return i
}

// Record stores an analysis. The URL is canonicalised and finding text other
// than source quotes is reduced to plain text. When the newest document fetched from the same
// URL has identical content the summary is attached to it; otherwise a new
// document row is written first. A zero summary version defaults to 1.
func (i *Ingestor) Record(ctx context.Context, a Analysis) (RecordResult, error) {
	if err := i.validate.StructCtx(ctx, a); err != nil {
		return RecordResult{}, fmt.Errorf("invalid analysis: %w", err)
	}
	docURL, err := CanonicalURL(a.Document.URL)
	if err != nil {
		return RecordResult{}, fmt.Errorf("invalid analysis: %w", err)
	}
	model := a.Summary.ModelVersion
	if model == "" {
		model = i.model
	}
	if model == "" {
		return RecordResult{}, fmt.Errorf("invalid analysis: model_version required")
	}
	hash := a.Document.ContentHash
	if hash == "" {
		hash = store.ContentHash(a.Document.RawContent)
	}
	if a.Summary.ClarityScore < 0 || a.Summary.ClarityScore > 100 {
		i.log.Warn("clarity score outside 0-100, storing as given",
			zap.String("url", docURL), zap.Int("clarity_score", a.Summary.ClarityScore))
	}

	// Markup-only text is empty once sanitised, so check again.
	flags, rules, concessions := sanitizeFindings(a.Summary)
	for _, v := range []interface{ Validate() error }{flags, rules, concessions} {
		if err := v.Validate(); err != nil {
			return RecordResult{}, fmt.Errorf("invalid analysis: %w", err)
		}
	}

	var res RecordResult
	doc, err := i.store.LatestDocumentForURL(ctx, docURL)
	switch {
	case err == nil && doc.ContentHash == hash:
		res.Reused = true
	case err == nil || isNotFound(err):
		doc, err = i.store.CreateDocument(ctx, store.NewDocument{
			URL:          docURL,
			ServiceName:  a.Document.ServiceName,
			DocumentType: a.Document.DocumentType,
			RawContent:   a.Document.RawContent,
			ContentHash:  hash,
		})
		if err != nil {
			return RecordResult{}, fmt.Errorf("create document: %w", err)
		}
	default:
		return RecordResult{}, fmt.Errorf("lookup document: %w", err)
	}
	res.DocumentID = doc.ID

	version := a.Summary.Version
	if version == 0 {
		version = 1
	}
	sm, err := i.store.CreateSummary(ctx, store.NewSummary{
		DocumentID:        doc.ID,
		Version:           version,
		RedFlags:          flags,
		Rules:             rules,
		Concessions:       concessions,
		ClarityScore:      a.Summary.ClarityScore,
		ReadingLevel:      a.Summary.ReadingLevel,
		OriginalWordCount: a.Summary.OriginalWordCount,
		SummaryWordCount:  a.Summary.SummaryWordCount,
		ModelVersion:      model,
	})
	if err != nil {
		return RecordResult{}, fmt.Errorf("create summary: %w", err)
	}
	res.SummaryID = sm.ID

	i.log.Info("analysis recorded",
		zap.String("document_id", res.DocumentID.String()),
		zap.String("summary_id", res.SummaryID.String()),
		zap.Int("version", version),
		zap.Bool("reused_document", res.Reused))
	return res, nil
}

func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
