package models

import "encoding/json"

// Status describes the lifecycle state of a single business-term value.
type Status string

const (
	StatusOK            Status = "ok"
	StatusMissing       Status = "missing"
	StatusCorrected     Status = "corrected"
	StatusDerived       Status = "derived"
	StatusWrongFormal   Status = "wrong_formal"
	StatusWrongSemantic Status = "wrong_semantic"
	StatusWrongMath     Status = "wrong_math"
	StatusAmbiguous     Status = "ambiguous"
)

// Source identifies where a value came from.
type Source string

const (
	SourceOCR        Source = "ocr"
	SourceRule       Source = "rule"
	SourceDerived    Source = "derived"
	SourceMultimodal Source = "multimodal"
	SourceUser       Source = "user"
)

// Scope selects which part of the invoice a patch targets.
type Scope string

const (
	ScopeHeader Scope = "header"
	ScopeTotals Scope = "totals"
	ScopeLine   Scope = "line"
)

// FieldValue is the state of one business term (BT code) on the invoice.
// Invariant: Status == StatusMissing exactly when Value is empty.
type FieldValue struct {
	Code       string            `json:"code"`
	Value      string            `json:"value"`
	RawValue   string            `json:"raw_value,omitempty"`
	Status     Status            `json:"status"`
	Source     Source            `json:"source"`
	Confidence *float64          `json:"confidence,omitempty"`
	Derivation string            `json:"derivation,omitempty"`
	Evidence   map[string]string `json:"evidence,omitempty"`
	RuleID     string            `json:"rule_id,omitempty"`
}

// Empty reports whether no value is present.
func (f *FieldValue) Empty() bool {
	return f == nil || f.Value == ""
}

// Line is one invoice line: an ordinal identifier plus its line-level terms.
type Line struct {
	ID     int                    `json:"line_id"`
	Fields map[string]*FieldValue `json:"fields"`
}

// Invoice is the in-memory canonical representation of one invoice for the
// duration of a canonicalization run. Field records are owned exclusively by
// the invoice; mutation happens only through patch application.
type Invoice struct {
	Header   map[string]*FieldValue `json:"header"`
	Totals   map[string]*FieldValue `json:"totals"`
	Lines    []*Line                `json:"lines"`
	Raw      json.RawMessage        `json:"raw,omitempty"`
	Text     string                 `json:"-"`
	PatchLog []AuditEntry           `json:"patches"`
}

// Locator addresses one field record on the invoice. LineID is meaningful
// only when Scope is ScopeLine.
type Locator struct {
	Scope  Scope
	LineID int
}

// Header addresses a header-level field.
func Header() Locator { return Locator{Scope: ScopeHeader} }

// Totals addresses a totals-level field.
func Totals() Locator { return Locator{Scope: ScopeTotals} }

// OnLine addresses a field on the line with the given identifier.
func OnLine(id int) Locator { return Locator{Scope: ScopeLine, LineID: id} }

// Patch is an immutable proposed mutation of a single field. Patches are
// values: they never alias records inside the invoice.
type Patch struct {
	Target     Locator
	Code       string
	NewValue   string
	Status     Status
	Source     Source
	Derivation string
	RuleID     string
	Evidence   map[string]string
}

// AuditEntry records one applied patch in the invoice's append-only log.
type AuditEntry struct {
	Code       string `json:"code"`
	Scope      Scope  `json:"scope"`
	LineID     *int   `json:"line_id,omitempty"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
	Status     Status `json:"status"`
	Derivation string `json:"derivation,omitempty"`
	RuleID     string `json:"rule_id,omitempty"`
}
