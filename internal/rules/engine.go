// Package rules implements deterministic canonicalization of OCR-extracted
// invoices: formal normalization, derivation of dependent terms, arithmetic
// validation and controlled resolution of ambiguities against the raw text.
package rules

import (
	"time"

	"go.uber.org/zap"

	"github.com/zugfix/invoice-canon-service/internal/canon"
	"github.com/zugfix/invoice-canon-service/internal/models"
)

// Phase orders rule execution. Within one engine pass every phase runs to
// completion before the next starts.
type Phase int

const (
	PhaseNormalize Phase = iota
	PhaseDerive
	PhaseValidate
	PhaseResolve
)

func (p Phase) String() string {
	switch p {
	case PhaseNormalize:
		return "normalize"
	case PhaseDerive:
		return "derive"
	case PhaseValidate:
		return "validate"
	case PhaseResolve:
		return "resolve"
	}
	return "unknown"
}

var phaseOrder = []Phase{PhaseNormalize, PhaseDerive, PhaseValidate, PhaseResolve}

// Rule is one registered canonicalization step. Compute reads the invoice as
// a snapshot and proposes patches without mutating anything; the engine owns
// application. When is an optional cheap gate evaluated before Compute.
type Rule struct {
	ID      string
	Phase   Phase
	When    func(*models.Invoice) bool
	Compute func(*models.Invoice) []models.Patch
}

// Engine runs the registered rules to a fixed point. Passes repeat until a
// full pass applies no patch, bounded by maxPasses; because every rule only
// re-proposes what it would compute again and the engine discards patches
// that restate the stored value, a converged invoice yields zero patches.
type Engine struct {
	rules     []Rule
	maxPasses int
	now       func() time.Time
	log       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock fixes the engine's notion of the current time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxPasses bounds the fixed-point iteration.
func WithMaxPasses(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPasses = n
		}
	}
}

// WithLogger attaches a logger for per-pass diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine builds an engine with the built-in rule set.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxPasses: 6,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rules = e.defaultRules()
	return e
}

func (e *Engine) defaultRules() []Rule {
	hasText := func(inv *models.Invoice) bool { return inv.Text != "" }
	hasLines := func(inv *models.Invoice) bool { return len(inv.Lines) > 0 }
	return []Rule{
		{ID: "normalize-dates", Phase: PhaseNormalize, Compute: normalizeDates},
		{ID: "normalize-identifiers", Phase: PhaseNormalize, Compute: normalizeIdentifiers},
		{ID: "normalize-countries", Phase: PhaseNormalize, Compute: normalizeCountries},
		{ID: "normalize-amounts", Phase: PhaseNormalize, Compute: normalizeAmounts},
		{ID: "normalize-duplicate-tokens", Phase: PhaseNormalize, Compute: normalizeDuplicateTokens},

		{ID: "derive-line-ids", Phase: PhaseDerive, When: hasLines, Compute: deriveLineIDs},
		{ID: "derive-geography", Phase: PhaseDerive, Compute: deriveGeography},
		{ID: "derive-skonto-terms", Phase: PhaseDerive, Compute: deriveSkontoFromTerms},
		{ID: "derive-line-vat-categories", Phase: PhaseDerive, When: hasLines, Compute: deriveLineVATCategories},
		{ID: "derive-line-net", Phase: PhaseDerive, When: hasLines, Compute: deriveLineNet},
		{ID: "derive-totals-sums", Phase: PhaseDerive, Compute: deriveTotalsSums},
		{ID: "derive-grand-totals", Phase: PhaseDerive, Compute: deriveGrandTotals},

		{ID: "validate-totals", Phase: PhaseValidate, Compute: validateTotals},

		{ID: "resolve-currency", Phase: PhaseResolve, When: hasText, Compute: resolveCurrency},
		{ID: "resolve-seller-country", Phase: PhaseResolve, Compute: resolveSellerCountry},
		{ID: "resolve-totals-from-text", Phase: PhaseResolve, When: hasText, Compute: resolveTotalsFromText},
		{ID: "resolve-charges", Phase: PhaseResolve, When: hasText, Compute: resolveCharges},
		{ID: "resolve-payment", Phase: PhaseResolve, Compute: e.resolvePayment},
		{ID: "resolve-line-ambiguity", Phase: PhaseResolve, When: hasLines, Compute: resolveLineAmbiguity},
	}
}

// Run executes all phases to a fixed point and returns the number of patches
// applied. The invoice's patch log carries the full audit trail afterwards.
func (e *Engine) Run(inv *models.Invoice) int {
	applied := 0
	for pass := 1; pass <= e.maxPasses; pass++ {
		passApplied := 0
		for _, phase := range phaseOrder {
			for _, rule := range e.rules {
				if rule.Phase != phase {
					continue
				}
				if rule.When != nil && !rule.When(inv) {
					continue
				}
				for _, patch := range rule.Compute(inv) {
					if e.restatesStored(inv, patch) {
						continue
					}
					if canon.Apply(inv, patch) {
						passApplied++
					}
				}
			}
		}
		e.log.Debug("canonicalization pass finished",
			zap.Int("pass", pass),
			zap.Int("patches", passApplied))
		applied += passApplied
		if passApplied == 0 {
			break
		}
	}
	return applied
}

// restatesStored reports whether the patch would write the value the record
// already holds. Discarding these is what makes reruns converge: a rule may
// keep proposing its result, but only a changed value counts as progress.
func (e *Engine) restatesStored(inv *models.Invoice, patch models.Patch) bool {
	record := canon.Resolve(inv, patch.Target, patch.Code)
	return record != nil && record.Value == patch.NewValue
}
