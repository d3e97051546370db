package store

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FindingsSchemaVersion is the encoding version of the red_flags, rules and
// concessions columns written by this package.
const FindingsSchemaVersion = 1

// Severity grades a red flag.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// RedFlag is a finding describing a concerning clause.
type RedFlag struct {
	Severity    Severity `json:"severity" validate:"required,oneof=critical warning info"`
	Category    string   `json:"category" validate:"required"`
	Title       string   `json:"title" validate:"required"`
	Explanation string   `json:"explanation" validate:"required"`
	SourceQuote string   `json:"source_quote" validate:"required"`
}

// Rule is a finding describing a user-facing obligation or restriction.
type Rule struct {
	Category    string  `json:"category" validate:"required"`
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Consequence *string `json:"consequence"`
}

// Concession is a finding describing what the user gives up and why.
// OptOutInstructions is expected only when CanOptOut is set; that is not enforced.
type Concession struct {
	Category           string  `json:"category" validate:"required"`
	Title              string  `json:"title" validate:"required"`
	WhatYouGive        string  `json:"what_you_give" validate:"required"`
	WhyTheyWantIt      string  `json:"why_they_want_it" validate:"required"`
	CanOptOut          bool    `json:"can_opt_out"`
	OptOutInstructions *string `json:"opt_out_instructions"`
}

// Required keys per record. Keys not listed are ignored on read, so rows
// carrying extra fields stay readable.
var (
	redFlagKeys    = recordKeys{"severity", "category", "title", "explanation", "source_quote"}
	ruleKeys       = recordKeys{"category", "title", "description"}
	concessionKeys = recordKeys{"category", "title", "what_you_give", "why_they_want_it", "can_opt_out"}
)

// RedFlags is the encoded form of the summaries.red_flags column.
type RedFlags []RedFlag

// Rules is the encoded form of the summaries.rules column.
type Rules []Rule

// Concessions is the encoded form of the summaries.concessions column.
type Concessions []Concession

var findingsValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every red flag against the shape accepted on read.
func (r RedFlags) Validate() error { return validateRecords("red_flags", r) }

// Validate checks every rule against the shape accepted on read.
func (r Rules) Validate() error { return validateRecords("rules", r) }

// Validate checks every concession against the shape accepted on read.
func (c Concessions) Validate() error { return validateRecords("concessions", c) }

func validateRecords[T any](column string, records []T) error {
	for i := range records {
		if err := findingsValidator.Struct(records[i]); err != nil {
			return fmt.Errorf("%w: %s[%d]: %w", ErrInvalidFindings, column, i, err)
		}
	}
	return nil
}

func (r RedFlags) Value() (driver.Value, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return encodeRecords(r)
}

func (r Rules) Value() (driver.Value, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return encodeRecords(r)
}

func (c Concessions) Value() (driver.Value, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return encodeRecords(c)
}

func (r *RedFlags) Scan(value any) error {
	if err := decodeRecords(value, "red_flags", redFlagKeys, (*[]RedFlag)(r)); err != nil {
		return err
	}
	for i, f := range *r {
		if !f.Severity.Valid() {
			return fmt.Errorf("%w: red_flags[%d]: unknown severity %q", ErrCorruptFindings, i, f.Severity)
		}
	}
	return nil
}

func (r *Rules) Scan(value any) error {
	return decodeRecords(value, "rules", ruleKeys, (*[]Rule)(r))
}

func (c *Concessions) Scan(value any) error {
	return decodeRecords(value, "concessions", concessionKeys, (*[]Concession)(c))
}

type recordKeys []string

func (k recordKeys) check(column string, i int, rec map[string]json.RawMessage) error {
	for _, key := range k {
		v, ok := rec[key]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return fmt.Errorf("%w: %s[%d]: missing %q", ErrCorruptFindings, column, i, key)
		}
	}
	return nil
}

// encodeRecords writes an empty array rather than null for a nil slice and
// leaves quoted text unescaped so it is stored as written.
func encodeRecords[T any](records []T) (driver.Value, error) {
	if records == nil {
		return "[]", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func decodeRecords[T any](value any, column string, keys recordKeys, out *[]T) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*out = []T{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("store.%s: unsupported Scan type %T", column, value)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*out = []T{}
		return nil
	}

	var shapes []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shapes); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptFindings, column, err)
	}
	for i, rec := range shapes {
		if err := keys.check(column, i, rec); err != nil {
			return err
		}
	}

	records := make([]T, 0, len(shapes))
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptFindings, column, err)
	}
	*out = records
	return nil
}
