package rules

import (
	"github.com/shopspring/decimal"

	"github.com/zugfix/invoice-canon-service/internal/models"
)

// Tolerance is the absolute deviation allowed before a totals identity is
// flagged as an arithmetic inconsistency. Two cents absorbs per-line
// rounding of VAT-inclusive prices.
var Tolerance = decimal.RequireFromString("0.02")

func beyondTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().GreaterThan(Tolerance)
}

// validateTotals checks the totals identities and overwrites a stored value
// with its recomputed counterpart when the deviation exceeds the tolerance.
// Overridden records keep status "wrong_math" so the discrepancy stays
// visible after the run.
func validateTotals(inv *models.Invoice) []models.Patch {
	var patches []models.Patch

	bt106, has106 := num(inv.Totals["BT-106"])
	bt107 := numOrZero(inv.Totals["BT-107"])
	bt108 := numOrZero(inv.Totals["BT-108"])
	bt109, has109 := num(inv.Totals["BT-109"])
	bt110, has110 := num(inv.Totals["BT-110"])
	bt112, has112 := num(inv.Totals["BT-112"])
	bt113, has113 := num(inv.Totals["BT-113"])
	bt115, has115 := num(inv.Totals["BT-115"])
	bt116, has116 := num(inv.Totals["BT-116"])

	var lineSum decimal.Decimal
	lines := 0
	for _, line := range inv.Lines {
		if net, ok := num(line.Fields["BT-131"]); ok {
			lineSum = lineSum.Add(net)
			lines++
		}
	}
	if lines > 0 && has106 {
		computed := round2(lineSum)
		if beyondTolerance(bt106, computed) && inv.Totals["BT-106"] != nil {
			patches = append(patches, wrongMath(models.Totals(), "BT-106", FormatAmount(computed),
				"Sum of line net amounts (BT-131)", "R-TOT-CHECK-004"))
		}
	}

	if has106 && has109 {
		computed := round2(bt106.Sub(bt107).Add(bt108))
		if beyondTolerance(bt109, computed) {
			patches = append(patches, wrongMath(models.Totals(), "BT-109", FormatAmount(computed),
				"BT-106 - BT-107 + BT-108", "R-TOT-CHECK-001"))
		}
	}

	if has109 && has110 && has112 {
		computed := round2(bt109.Add(bt110))
		if beyondTolerance(bt112, computed) {
			patches = append(patches, wrongMath(models.Totals(), "BT-112", FormatAmount(computed),
				"BT-109 + BT-110", "R-TOT-CHECK-002"))
		}
	}

	if has112 && has113 && has115 {
		computed := round2(bt112.Sub(bt113).Sub(bt107))
		if beyondTolerance(bt115, computed) {
			patches = append(patches, wrongMath(models.Totals(), "BT-115", FormatAmount(computed),
				"BT-112 - BT-113 - BT-107", "R-TOT-CHECK-003"))
		}
	}

	if has116 && has109 && countLineVATCategories(inv) <= 1 {
		if beyondTolerance(bt116, bt109) {
			patches = append(patches, wrongMath(models.Totals(), "BT-116", FormatAmount(bt109),
				"Taxable amount equals total without VAT (single VAT category)", "R-TOT-CHECK-005"))
		}
	}

	return patches
}
