package clarity

import (
	"context"
	"testing"

	"github.com/mohammad-safakhou/tosclarity/internal/store"
)

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://example.com/tos", "https://example.com/tos"},
		{"HTTPS://Example.COM:443/legal/../tos#section-2", "https://example.com/tos"},
		{"http://example.com:80/privacy/", "http://example.com/privacy/"},
		{"https://example.com:8443/tos", "https://example.com:8443/tos"},
		{"https://example.com/tos?utm_source=mail&lang=en&b=2&a=1", "https://example.com/tos?a=1&b=2&lang=en"},
		{"https://example.com", "https://example.com/"},
		{"  https://example.com/tos  ", "https://example.com/tos"},
	}
	for _, tc := range cases {
		got, err := CanonicalURL(tc.in)
		if err != nil {
			t.Fatalf("CanonicalURL(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("CanonicalURL(%q): want %q got %q", tc.in, tc.want, got)
		}
	}
}

func TestCanonicalURLRejectsRelative(t *testing.T) {
	for _, raw := range []string{"", "/tos", "example.com/tos", "://bad"} {
		if _, err := CanonicalURL(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestPlainText(t *testing.T) {
	cases := map[string]string{
		"Broad Data Sharing":                     "Broad Data Sharing",
		"<b>Forced</b> arbitration":              "Forced arbitration",
		"Settings > Privacy & Security":          "Settings > Privacy & Security",
		"<script>alert(1)</script>Opt out":       "Opt out",
		"  padded  ":                             "padded",
		`<a href="javascript:x()">click</a> now`: "click now",
	}
	for in, want := range cases {
		if got := plainText(in); got != want {
			t.Fatalf("plainText(%q): want %q got %q", in, want, got)
		}
	}
}

func TestRecordCanonicalisesAndSanitises(t *testing.T) {
	m := newMemStore()
	a := sampleAnalysis()
	a.Document.URL = "https://Example.com/tos?utm_campaign=x#top"
	a.Summary.RedFlags[0].Title = "<em>Forced</em> arbitration"
	steps := "<p>Settings &gt; Privacy</p>"
	a.Summary.Concessions = []store.Concession{{
		Category: "data", Title: "Ads", WhatYouGive: "history", WhyTheyWantIt: "targeting",
		CanOptOut: true, OptOutInstructions: &steps,
	}}

	res, err := NewIngestor(m, nil, nil).Record(context.Background(), a)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got := m.docs[res.DocumentID].URL; got != "https://example.com/tos" {
		t.Fatalf("url not canonicalised: %q", got)
	}
	sm := m.summaries[res.SummaryID]
	if sm.RedFlags[0].Title != "Forced arbitration" {
		t.Fatalf("title not sanitised: %q", sm.RedFlags[0].Title)
	}
	if got := *sm.Concessions[0].OptOutInstructions; got != "Settings > Privacy" {
		t.Fatalf("opt out instructions not sanitised: %q", got)
	}
	if a.Summary.RedFlags[0].Title != "<em>Forced</em> arbitration" {
		t.Fatalf("input analysis was mutated")
	}
}

func TestRecordKeepsSourceQuoteVerbatim(t *testing.T) {
	m := newMemStore()
	a := sampleAnalysis()
	quote := "  We may share your data with <affiliates> and partners & vendors.\n"
	a.Summary.RedFlags[0].SourceQuote = quote

	res, err := NewIngestor(m, nil, nil).Record(context.Background(), a)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got := m.summaries[res.SummaryID].RedFlags[0].SourceQuote; got != quote {
		t.Fatalf("source quote rewritten: %q", got)
	}
}
