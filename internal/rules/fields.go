package rules

import (
	"github.com/shopspring/decimal"

	"github.com/zugfix/invoice-canon-service/internal/models"
)

func has(f *models.FieldValue) bool {
	return f != nil && f.Value != ""
}

func num(f *models.FieldValue) (decimal.Decimal, bool) {
	if !has(f) {
		return decimal.Decimal{}, false
	}
	return ParseDecimal(f.Value)
}

// numOrZero treats a missing or unparseable amount as zero. Only valid for
// additive terms like allowance and charge sums, never for checked operands.
func numOrZero(f *models.FieldValue) decimal.Decimal {
	if d, ok := num(f); ok {
		return d
	}
	return decimal.Decimal{}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func corrected(target models.Locator, code, value, derivation, ruleID string, evidence map[string]string) models.Patch {
	return models.Patch{
		Target:     target,
		Code:       code,
		NewValue:   value,
		Status:     models.StatusCorrected,
		Source:     models.SourceRule,
		Derivation: derivation,
		RuleID:     ruleID,
		Evidence:   evidence,
	}
}

func derived(target models.Locator, code, value, derivation, ruleID string, evidence map[string]string) models.Patch {
	return models.Patch{
		Target:     target,
		Code:       code,
		NewValue:   value,
		Status:     models.StatusDerived,
		Source:     models.SourceDerived,
		Derivation: derivation,
		RuleID:     ruleID,
		Evidence:   evidence,
	}
}

func wrongMath(target models.Locator, code, value, derivation, ruleID string) models.Patch {
	return models.Patch{
		Target:     target,
		Code:       code,
		NewValue:   value,
		Status:     models.StatusWrongMath,
		Source:     models.SourceRule,
		Derivation: derivation,
		RuleID:     ruleID,
	}
}
