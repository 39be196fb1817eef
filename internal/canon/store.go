// Package canon owns construction of the canonical invoice and the single
// mutation path into it: patch application with an append-only audit log.
package canon

import (
	"github.com/zugfix/invoice-canon-service/internal/models"
	"github.com/zugfix/invoice-canon-service/internal/registry"
)

// EmptyField returns a fresh, unpopulated record for the given code.
func EmptyField(code string) *models.FieldValue {
	return &models.FieldValue{
		Code:   code,
		Status: models.StatusMissing,
		Source: models.SourceOCR,
	}
}

// NewInvoice builds an empty canonical invoice with one record per registered
// header and totals term. Lines are added by ingestion via NewLine.
func NewInvoice(reg registry.Registry) *models.Invoice {
	inv := &models.Invoice{
		Header:   make(map[string]*models.FieldValue),
		Totals:   make(map[string]*models.FieldValue),
		PatchLog: []models.AuditEntry{},
	}
	for code := range reg {
		switch reg.Bucket(code) {
		case registry.GroupHeader:
			inv.Header[code] = EmptyField(code)
		case registry.GroupTotals:
			inv.Totals[code] = EmptyField(code)
		}
	}
	return inv
}

// NewLine builds an empty line with one record per registered line-level term.
func NewLine(reg registry.Registry, id int) *models.Line {
	line := &models.Line{ID: id, Fields: make(map[string]*models.FieldValue)}
	for code := range reg {
		if reg.Bucket(code) == registry.GroupLine {
			line.Fields[code] = EmptyField(code)
		}
	}
	return line
}

// Resolve locates the field record a locator and code address, or nil when
// the scope, line id or code does not exist on this invoice.
func Resolve(inv *models.Invoice, target models.Locator, code string) *models.FieldValue {
	switch target.Scope {
	case models.ScopeHeader:
		return inv.Header[code]
	case models.ScopeTotals:
		return inv.Totals[code]
	case models.ScopeLine:
		for _, line := range inv.Lines {
			if line.ID == target.LineID {
				return line.Fields[code]
			}
		}
	}
	return nil
}

// Apply resolves the patch target and, if found, overwrites the record and
// appends an audit entry. A patch naming an unknown code or line id is
// dropped silently and Apply reports false: patches may originate from
// speculative sources and tolerance is the policy, not an error. Later
// patches overwrite earlier ones unconditionally; phase ordering in the
// engine is the only conflict resolution.
func Apply(inv *models.Invoice, patch models.Patch) bool {
	record := Resolve(inv, patch.Target, patch.Code)
	if record == nil {
		return false
	}

	oldValue := record.Value
	record.Value = patch.NewValue
	record.Status = patch.Status
	record.Source = patch.Source
	record.Derivation = patch.Derivation
	record.RuleID = patch.RuleID
	record.Evidence = patch.Evidence

	entry := models.AuditEntry{
		Code:       patch.Code,
		Scope:      patch.Target.Scope,
		OldValue:   oldValue,
		NewValue:   patch.NewValue,
		Status:     patch.Status,
		Derivation: patch.Derivation,
		RuleID:     patch.RuleID,
	}
	if patch.Target.Scope == models.ScopeLine {
		id := patch.Target.LineID
		entry.LineID = &id
	}
	inv.PatchLog = append(inv.PatchLog, entry)
	return true
}
