// Package clarity joins stored summaries to their documents and shapes them
// for presentation, and records finished analyses into the store.
package clarity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/tosclarity/internal/store"
)

var (
	ErrSummaryNotFound  = errors.New("summary not found")
	ErrDocumentNotFound = errors.New("document not found")
)

// SummaryReader is the slice of the store the retrieval path needs.
type SummaryReader interface {
	GetSummary(ctx context.Context, id uuid.UUID) (store.Summary, error)
	GetDocument(ctx context.Context, id uuid.UUID) (store.Document, error)
	ListSummariesForDocument(ctx context.Context, documentID uuid.UUID) ([]store.Summary, error)
}

type RedFlagResponse struct {
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
	SourceQuote string `json:"source_quote"`
}

type RuleResponse struct {
	Category    string  `json:"category"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Consequence *string `json:"consequence"`
}

type ConcessionResponse struct {
	Category           string  `json:"category"`
	Title              string  `json:"title"`
	WhatYouGive        string  `json:"what_you_give"`
	WhyTheyWantIt      string  `json:"why_they_want_it"`
	CanOptOut          bool    `json:"can_opt_out"`
	OptOutInstructions *string `json:"opt_out_instructions"`
}

type SummaryMetadata struct {
	OriginalWordCount int    `json:"original_word_count"`
	SummaryWordCount  int    `json:"summary_word_count"`
	ReadingLevel      string `json:"reading_level"`
	ModelVersion      string `json:"model_version"`
}

// SummaryResponse is the public shape of one analysed document.
type SummaryResponse struct {
	ID           uuid.UUID            `json:"id"`
	ServiceName  string               `json:"service_name"`
	DocumentType string               `json:"document_type"`
	AnalyzedAt   time.Time            `json:"analyzed_at"`
	ClarityScore int                  `json:"clarity_score"`
	RedFlags     []RedFlagResponse    `json:"red_flags"`
	Rules        []RuleResponse       `json:"rules"`
	Concessions  []ConcessionResponse `json:"concessions"`
	Metadata     SummaryMetadata      `json:"metadata"`
}

type SummaryListItem struct {
	ID           uuid.UUID `json:"id"`
	Version      int       `json:"version"`
	ClarityScore int       `json:"clarity_score"`
	GeneratedAt  time.Time `json:"generated_at"`
	ModelVersion string    `json:"model_version"`
}

// DocumentResponse describes a stored document without its raw text.
type DocumentResponse struct {
	ID           uuid.UUID         `json:"id"`
	URL          string            `json:"url"`
	ServiceName  string            `json:"service_name"`
	DocumentType string            `json:"document_type"`
	ContentHash  string            `json:"content_hash"`
	ExtractedAt  time.Time         `json:"extracted_at"`
	Summaries    []SummaryListItem `json:"summaries"`
}

// Assembler implements the retrieval path over a SummaryReader.
type Assembler struct {
	store SummaryReader
}

func NewAssembler(r SummaryReader) *Assembler { return &Assembler{store: r} }

// Summary looks up a summary, then its owning document, and projects both.
// A missing summary and a missing document are reported separately.
func (a *Assembler) Summary(ctx context.Context, id uuid.UUID) (SummaryResponse, error) {
	sm, err := a.store.GetSummary(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SummaryResponse{}, fmt.Errorf("%w: %s", ErrSummaryNotFound, id)
		}
		return SummaryResponse{}, err
	}
	doc, err := a.store.GetDocument(ctx, sm.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SummaryResponse{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, sm.DocumentID)
		}
		return SummaryResponse{}, err
	}
	return project(doc, sm), nil
}

// Document returns a document with a listing of its summaries.
func (a *Assembler) Document(ctx context.Context, id uuid.UUID) (DocumentResponse, error) {
	doc, err := a.store.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return DocumentResponse{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		return DocumentResponse{}, err
	}
	summaries, err := a.store.ListSummariesForDocument(ctx, id)
	if err != nil {
		return DocumentResponse{}, err
	}
	resp := DocumentResponse{
		ID:           doc.ID,
		URL:          doc.URL,
		ServiceName:  doc.ServiceName,
		DocumentType: doc.DocumentType,
		ContentHash:  doc.ContentHash,
		ExtractedAt:  doc.ExtractedAt,
		Summaries:    make([]SummaryListItem, 0, len(summaries)),
	}
	for _, sm := range summaries {
		resp.Summaries = append(resp.Summaries, SummaryListItem{
			ID:           sm.ID,
			Version:      sm.Version,
			ClarityScore: sm.ClarityScore,
			GeneratedAt:  sm.GeneratedAt,
			ModelVersion: sm.ModelVersion,
		})
	}
	return resp, nil
}

func project(doc store.Document, sm store.Summary) SummaryResponse {
	resp := SummaryResponse{
		ID:           sm.ID,
		ServiceName:  doc.ServiceName,
		DocumentType: doc.DocumentType,
		AnalyzedAt:   sm.GeneratedAt,
		ClarityScore: sm.ClarityScore,
		RedFlags:     make([]RedFlagResponse, 0, len(sm.RedFlags)),
		Rules:        make([]RuleResponse, 0, len(sm.Rules)),
		Concessions:  make([]ConcessionResponse, 0, len(sm.Concessions)),
		Metadata: SummaryMetadata{
			OriginalWordCount: sm.OriginalWordCount,
			SummaryWordCount:  sm.SummaryWordCount,
			ReadingLevel:      sm.ReadingLevel,
			ModelVersion:      sm.ModelVersion,
		},
	}
	for _, f := range sm.RedFlags {
		resp.RedFlags = append(resp.RedFlags, RedFlagResponse{
			Severity:    string(f.Severity),
			Category:    f.Category,
			Title:       f.Title,
			Explanation: f.Explanation,
			SourceQuote: f.SourceQuote,
		})
	}
	for _, r := range sm.Rules {
		resp.Rules = append(resp.Rules, RuleResponse{
			Category:    r.Category,
			Title:       r.Title,
			Description: r.Description,
			Consequence: r.Consequence,
		})
	}
	for _, c := range sm.Concessions {
		resp.Concessions = append(resp.Concessions, ConcessionResponse{
			Category:           c.Category,
			Title:              c.Title,
			WhatYouGive:        c.WhatYouGive,
			WhyTheyWantIt:      c.WhyTheyWantIt,
			CanOptOut:          c.CanOptOut,
			OptOutInstructions: c.OptOutInstructions,
		})
	}
	return resp
}
