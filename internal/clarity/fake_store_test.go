package clarity

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/tosclarity/internal/store"
)

// memStore is an in-memory stand-in for *store.Store.
type memStore struct {
	docs      map[uuid.UUID]store.Document
	summaries map[uuid.UUID]store.Summary
	now       time.Time
	failWith  error
}

func newMemStore() *memStore {
	return &memStore{
		docs:      map[uuid.UUID]store.Document{},
		summaries: map[uuid.UUID]store.Summary{},
		now:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *memStore) CreateDocument(_ context.Context, in store.NewDocument) (store.Document, error) {
	if m.failWith != nil {
		return store.Document{}, m.failWith
	}
	d := store.Document{
		ID:           uuid.New(),
		URL:          in.URL,
		ServiceName:  in.ServiceName,
		DocumentType: in.DocumentType,
		RawContent:   in.RawContent,
		ContentHash:  in.ContentHash,
		ExtractedAt:  m.tick(),
	}
	if d.ContentHash == "" {
		d.ContentHash = store.ContentHash(in.RawContent)
	}
	m.docs[d.ID] = d
	return d, nil
}

func (m *memStore) CreateSummary(_ context.Context, in store.NewSummary) (store.Summary, error) {
	if m.failWith != nil {
		return store.Summary{}, m.failWith
	}
	if _, ok := m.docs[in.DocumentID]; !ok {
		return store.Summary{}, store.ErrReferentialIntegrity
	}
	s := store.Summary{
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
		GeneratedAt:           m.tick(),
		ModelVersion:          in.ModelVersion,
		FindingsSchemaVersion: store.FindingsSchemaVersion,
	}
	m.summaries[s.ID] = s
	return s, nil
}

func (m *memStore) GetSummary(_ context.Context, id uuid.UUID) (store.Summary, error) {
	if m.failWith != nil {
		return store.Summary{}, m.failWith
	}
	s, ok := m.summaries[id]
	if !ok {
		return store.Summary{}, store.ErrNotFound
	}
	return s, nil
}

func (m *memStore) GetDocument(_ context.Context, id uuid.UUID) (store.Document, error) {
	if m.failWith != nil {
		return store.Document{}, m.failWith
	}
	d, ok := m.docs[id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return d, nil
}

func (m *memStore) LatestDocumentForURL(_ context.Context, url string) (store.Document, error) {
	if m.failWith != nil {
		return store.Document{}, m.failWith
	}
	var (
		latest store.Document
		found  bool
	)
	for _, d := range m.docs {
		if d.URL == url && (!found || d.ExtractedAt.After(latest.ExtractedAt)) {
			latest, found = d, true
		}
	}
	if !found {
		return store.Document{}, store.ErrNotFound
	}
	return latest, nil
}

func (m *memStore) ListSummariesForDocument(_ context.Context, documentID uuid.UUID) ([]store.Summary, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []store.Summary
	for _, s := range m.summaries {
		if s.DocumentID == documentID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
