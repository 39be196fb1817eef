package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zugfix/invoice-canon-service/internal/models"
)

// Resolution: controlled heuristics over the raw document text. Everything
// here is gated on the targeted record being empty, carrying a speculative
// status, or disagreeing with strong evidence.

var fullTextEvidence = map[string]string{"from": "full_text", "path": "analyzeResult.content"}
var totalsTextEvidence = map[string]string{"from": "full_text_totals", "path": "analyzeResult.content"}

func resolveCurrency(inv *models.Invoice) []models.Patch {
	bt5 := inv.Header["BT-5"]
	if bt5 == nil || !bt5.Empty() {
		return nil
	}
	// Currency tokens are uppercase, so the match is case-sensitive.
	doc := NewDocument(inv.Text)
	if doc.Contains("EUR") || doc.Contains("€") {
		return []models.Patch{corrected(models.Header(), "BT-5", "EUR",
			"Detected currency token in full text", "R-HDR-CURRENCY-001", fullTextEvidence)}
	}
	return nil
}

// The VAT identifier's country prefix is stronger evidence than whatever OCR
// read into the seller country field.
func resolveSellerCountry(inv *models.Invoice) []models.Patch {
	bt31 := inv.Header["BT-31"]
	bt40 := inv.Header["BT-40"]
	if bt40 == nil || !has(bt31) {
		return nil
	}
	vat := NormalizeVATID(bt31.Value)
	if len(vat) < 2 || bt40.Value == vat[:2] {
		return nil
	}
	return []models.Patch{corrected(models.Header(), "BT-40", vat[:2],
		"Derived from seller VAT prefix", "R-HDR-COUNTRY-SELLER-001", bt31.Evidence)}
}

// Grand totals read straight off the totals block, one label family per
// term. Reject words keep shipping rows out of the net family and
// "inkl. MwSt" price annotations out of the VAT family.
func resolveTotalsFromText(inv *models.Invoice) []models.Patch {
	doc := NewDocument(inv.Text)
	if doc.Empty() {
		return nil
	}

	extractions := []struct {
		code    string
		labels  []string
		rejects []string
		ruleID  string
		reason  string
	}{
		{"BT-112", grossTotalLabels, nil, "R-TOT-EXTRACT-001", "Extracted total with VAT from totals block"},
		{"BT-109", netTotalLabels, []string{"versand", "kostenlos", "ab"}, "R-TOT-EXTRACT-002", "Extracted total without VAT from totals block"},
		{"BT-110", vatTotalLabels, []string{"inkl"}, "R-TOT-EXTRACT-003", "Extracted VAT total from totals block"},
		{"BT-115", amountDueLabels, nil, "R-TOT-EXTRACT-004", "Extracted amount due from totals block"},
	}

	var patches []models.Patch
	for _, ex := range extractions {
		field := inv.Totals[ex.code]
		if field == nil || !field.Empty() {
			continue
		}
		amount, ok := doc.AmountAfterAny(ex.labels, ex.rejects...)
		if !ok {
			continue
		}
		patches = append(patches, corrected(models.Totals(), ex.code, FormatAmount(amount),
			ex.reason, ex.ruleID, totalsTextEvidence))
	}
	return patches
}

func resolveCharges(inv *models.Invoice) []models.Patch {
	doc := NewDocument(inv.Text)
	charges := doc.Charges()
	if len(charges) == 0 {
		return nil
	}

	total := decimal.Decimal{}
	var snippets []string
	for _, c := range charges {
		total = total.Add(c.Amount)
		snippets = append(snippets, c.Snippet)
	}
	total = round2(total)

	evidence := map[string]string{
		"from":    "full_text_totals",
		"snippet": strings.Join(snippets, " | "),
		"path":    "analyzeResult.content",
	}
	var patches []models.Patch
	if bt99 := inv.Totals["BT-99"]; bt99 != nil && bt99.Value != FormatAmount(total) {
		patches = append(patches, corrected(models.Totals(), "BT-99", FormatAmount(total),
			"Summed document-level charges from totals section", "R-TOT-CHARGE-003", evidence))
	}
	if bt100 := inv.Totals["BT-100"]; bt100 != nil && bt100.Empty() {
		patches = append(patches, derived(models.Totals(), "BT-100", FormatAmount(total),
			"Charge base set to charge amount", "R-TOT-CHARGE-004", nil))
	}
	if bt102 := inv.Totals["BT-102"]; bt102 != nil && bt102.Empty() {
		patches = append(patches, derived(models.Totals(), "BT-102", "S",
			"Standard VAT category for charges", "R-TOT-CHARGE-005", nil))
	}
	if bt103 := inv.Totals["BT-103"]; bt103 != nil && bt103.Empty() {
		if rate, ok := doc.VATRate(); ok {
			patches = append(patches, derived(models.Totals(), "BT-103", FormatAmount(rate),
				"Detected VAT rate in totals", "R-TOT-CHARGE-006", nil))
		}
	}
	if bt104 := inv.Totals["BT-104"]; bt104 != nil && bt104.Empty() && len(snippets) > 0 {
		reason, _, _ := strings.Cut(snippets[0], ":")
		patches = append(patches, derived(models.Totals(), "BT-104", reason,
			"Charge reason from totals label", "R-TOT-CHARGE-007", nil))
	}
	if bt108 := inv.Totals["BT-108"]; bt108 != nil && bt108.Empty() {
		patches = append(patches, derived(models.Totals(), "BT-108", FormatAmount(total),
			"Sum of document-level charges", "R-TOT-CHARGE-008", nil))
	}
	return patches
}

// settlementWritable reports whether a settlement amount may overwrite the
// record: empty, or previously written by derivation or a failed arithmetic
// check. Values read by OCR or provided by a user or an enrichment model are
// never displaced by settlement heuristics.
func settlementWritable(f *models.FieldValue) bool {
	if f == nil {
		return false
	}
	if f.Empty() {
		return true
	}
	return f.Status == models.StatusDerived || f.Status == models.StatusWrongMath
}

func (e *Engine) resolvePayment(inv *models.Invoice) []models.Patch {
	var patches []models.Patch

	doc := NewDocument(inv.Text)
	bt2 := inv.Header["BT-2"]
	bt9 := inv.Header["BT-9"]
	bt20 := inv.Header["BT-20"]
	bt81 := inv.Header["BT-81"]

	instant := false
	switch {
	case has(bt81) && IsInstantPayment(bt81.Value):
		instant = true
	case has(bt20) && IsInstantPayment(bt20.Value):
		instant = true
	case IsInstantPayment(inv.Text):
		instant = true
		if bt81 != nil && bt81.Empty() {
			switch {
			case doc.ContainsFold("vorkasse"):
				patches = append(patches, derived(models.Header(), "BT-81", "Vorkasse",
					"Detected payment means in full text", "R-HDR-PAYMEANS-LOCAL-001", fullTextEvidence))
			case doc.ContainsFold("paypal"):
				patches = append(patches, derived(models.Header(), "BT-81", "PayPal",
					"Detected payment means in full text", "R-HDR-PAYMEANS-LOCAL-002", fullTextEvidence))
			case doc.ContainsFold("kreditkarte") || doc.ContainsFold("credit card"):
				patches = append(patches, derived(models.Header(), "BT-81", "Credit card",
					"Detected payment means in full text", "R-HDR-PAYMEANS-LOCAL-003", fullTextEvidence))
			}
		}
	}

	// Due date from the due-date field's own text: explicit dates win, the
	// latest one when several are listed; day terms count from the issue date.
	if bt9 != nil {
		if dates := ExtractDates(bt9.Value); len(dates) > 0 {
			latest := maxDate(dates)
			if bt9.Value != latest {
				patches = append(patches, corrected(models.Header(), "BT-9", latest,
					"Selected latest payment due date", "R-HDR-DUEDATE-002", bt9.Evidence))
			}
		} else if days, ok := ExtractDayCount(bt9.Value); ok && days > 0 && has(bt2) {
			if due, ok := AddDays(bt2.Value, days); ok && bt9.Value != due {
				patches = append(patches, derived(models.Header(), "BT-9", due,
					fmt.Sprintf("Invoice date + %d days", days), "R-HDR-DUEDATE-003", bt9.Evidence))
			}
		}
	}

	// Same extraction from the payment terms when the due date is empty.
	if bt9 != nil && bt9.Empty() && has(bt20) {
		if dates := ExtractDates(bt20.Value); len(dates) > 0 {
			patches = append(patches, derived(models.Header(), "BT-9", maxDate(dates),
				"Derived due date from payment terms (latest date)", "R-HDR-DUEDATE-004", bt20.Evidence))
		} else if days, ok := ExtractDayCount(bt20.Value); ok && days > 0 && has(bt2) {
			if due, ok := AddDays(bt2.Value, days); ok {
				patches = append(patches, derived(models.Header(), "BT-9", due,
					fmt.Sprintf("Payment terms: invoice date + %d days", days), "R-HDR-DUEDATE-005", bt20.Evidence))
			}
		}
	}

	if instant {
		patches = append(patches, e.resolveInstantSettlement(inv, doc)...)
	}

	// Open invoice still within its term: the full gross amount is due.
	bt112 := inv.Totals["BT-112"]
	bt113 := inv.Totals["BT-113"]
	bt115 := inv.Totals["BT-115"]
	if bt115 != nil && bt115.Empty() && bt113 != nil && bt113.Empty() && has(bt112) && has(bt9) {
		if dueISO, ok := ParseDateISO(bt9.Value); ok {
			if due, err := time.Parse("2006-01-02", dueISO); err == nil && due.After(e.now()) {
				patches = append(patches, derived(models.Totals(), "BT-115", bt112.Value,
					"Due date in future and no paid amount; amount due equals total with VAT",
					"R-TOT-DUE-001", bt9.Evidence))
			}
		}
	}

	return patches
}

func (e *Engine) resolveInstantSettlement(inv *models.Invoice, doc *Document) []models.Patch {
	var patches []models.Patch

	bt2 := inv.Header["BT-2"]
	bt9 := inv.Header["BT-9"]
	bt20 := inv.Header["BT-20"]

	if bt9 != nil && bt9.Empty() && has(bt2) {
		patches = append(patches, derived(models.Header(), "BT-9", bt2.Value,
			"Instant payment: due date equals invoice date", "R-HDR-DUEDATE-001", nil))
	}

	totalWithVAT, hasTotal := num(inv.Totals["BT-112"])
	if !hasTotal {
		totalWithVAT, hasTotal = doc.AmountAfterAny(grossTotalLabels)
	}
	amountAfterSkonto, hasAfter := doc.AmountAfterAny(skontoTotalLabels)

	var skontoPercent, skontoAmount decimal.Decimal
	hasPercent, hasAmount := false, false
	if has(bt20) {
		skontoPercent, hasPercent = SkontoPercent(bt20.Value)
		skontoAmount, hasAmount = SkontoAmount(bt20.Value)
	}
	if p, ok := doc.SkontoPercentFromLines(); ok {
		skontoPercent, hasPercent = p, true
	}

	var allowance decimal.Decimal
	hasAllowance := false
	if hasTotal && hasAfter {
		allowance = round2(totalWithVAT.Sub(amountAfterSkonto))
		hasAllowance = !allowance.IsNegative() && !allowance.GreaterThan(totalWithVAT)
	}
	if hasAllowance && hasTotal && !totalWithVAT.IsZero() && !hasPercent {
		skontoPercent = round2(allowance.Div(totalWithVAT).Mul(decimal.NewFromInt(100)))
		hasPercent = true
	}
	if !hasAllowance && hasAmount {
		allowance, hasAllowance = skontoAmount, true
	}

	if hasPercent {
		if bt94 := inv.Totals["BT-94"]; bt94 != nil && bt94.Empty() {
			patches = append(patches, derived(models.Totals(), "BT-94", FormatAmount(skontoPercent),
				"Detected Skonto percentage in payment terms", "R-PAY-SKONTO-001", nil))
		}
	}
	bt92 := inv.Totals["BT-92"]
	if bt92 != nil && hasTotal {
		if !hasAllowance && hasPercent {
			allowance = round2(totalWithVAT.Mul(skontoPercent).Div(decimal.NewFromInt(100)))
			hasAllowance = true
		}
		existing, hasExisting := num(bt92)
		if hasAllowance && (!hasExisting || existing.IsZero()) {
			derivation := fmt.Sprintf("BT-112 * %s%% Skonto", FormatAmount(skontoPercent))
			if hasAfter {
				derivation = "BT-112 minus amount after Skonto"
			}
			patches = append(patches, derived(models.Totals(), "BT-92", FormatAmount(allowance),
				derivation, "R-PAY-SKONTO-002", nil))
		}
	}
	// Companion terms only make sense once an allowance exists.
	if hasAllowance || has(inv.Totals["BT-92"]) {
		if bt93 := inv.Totals["BT-93"]; bt93 != nil && bt93.Empty() && hasTotal {
			patches = append(patches, derived(models.Totals(), "BT-93", FormatAmount(totalWithVAT),
				"Allowance base = total with VAT", "R-PAY-SKONTO-003", nil))
		}
		if bt97 := inv.Totals["BT-97"]; bt97 != nil && bt97.Empty() {
			patches = append(patches, derived(models.Totals(), "BT-97", "Skonto",
				"Detected Skonto in payment terms", "R-PAY-SKONTO-004", nil))
		}
		if bt98 := inv.Totals["BT-98"]; bt98 != nil && bt98.Empty() {
			patches = append(patches, derived(models.Totals(), "BT-98", "SKONTO",
				"Allowance reason code placeholder for Skonto", "R-PAY-SKONTO-005", nil))
		}
	}
	if bt107 := inv.Totals["BT-107"]; bt107 != nil && bt107.Empty() && has(bt92) {
		patches = append(patches, derived(models.Totals(), "BT-107", bt92.Value,
			"Sum of document-level allowances", "R-TOT-ALLOW-001", nil))
	}

	bt107 := numOrZero(inv.Totals["BT-107"])
	if bt113 := inv.Totals["BT-113"]; settlementWritable(bt113) && hasTotal {
		var paid decimal.Decimal
		var derivation, ruleID string
		if hasAfter {
			paid = round2(amountAfterSkonto)
			derivation = "Extracted amount after Skonto from totals block"
			ruleID = "R-HDR-PAID-004"
		} else {
			paid = round2(totalWithVAT.Sub(bt107))
			derivation = "Instant payment: BT-112 - BT-107"
			ruleID = "R-HDR-PAID-002"
		}
		patches = append(patches, derived(models.Totals(), "BT-113", FormatAmount(paid),
			derivation, ruleID, nil))
	}
	if bt115 := inv.Totals["BT-115"]; settlementWritable(bt115) && hasTotal {
		due := decimal.Decimal{}
		if paid, ok := num(inv.Totals["BT-113"]); ok {
			due = round2(totalWithVAT.Sub(paid).Sub(bt107))
		}
		patches = append(patches, derived(models.Totals(), "BT-115", FormatAmount(due),
			"BT-112 - BT-113 - BT-107", "R-HDR-PAID-003", nil))
	}

	return patches
}

// resolveLineAmbiguity decides whether line amounts were extracted gross and
// deflates them to net when the line sum overshoots the documented net total.
// Any explicit allowance or charge disables the heuristic: those legitimately
// make the sums disagree.
func resolveLineAmbiguity(inv *models.Invoice) []models.Patch {
	var patches []models.Patch

	totalWithoutVAT, hasNetTotal := num(inv.Totals["BT-109"])
	docAllowances := numOrZero(inv.Totals["BT-107"])
	docCharges := numOrZero(inv.Totals["BT-108"])

	lineAllowances := decimal.Decimal{}
	lineSum := decimal.Decimal{}
	hasLineSum := false
	for _, line := range inv.Lines {
		if amount, ok := num(line.Fields["BT-131"]); ok {
			lineSum = lineSum.Add(amount)
			hasLineSum = true
		}
		if allowance, ok := num(line.Fields["BT-147"]); ok {
			lineAllowances = lineAllowances.Add(allowance)
		}
	}

	treatGross := false
	if docAllowances.IsZero() && docCharges.IsZero() && lineAllowances.IsZero() &&
		hasNetTotal && hasLineSum {
		expected := totalWithoutVAT.Add(docAllowances).Add(lineAllowances).Sub(docCharges)
		threshold := expected.Mul(decimal.RequireFromString("1.001"))
		treatGross = lineSum.GreaterThan(threshold)
	}

	for _, line := range inv.Lines {
		_, hasQty := num(line.Fields["BT-129"])
		rate, hasRate := num(line.Fields["BT-152"])
		unitPrice, hasUnit := num(line.Fields["BT-146"])
		amount, hasAmount := num(line.Fields["BT-131"])

		if treatGross && hasRate && rate.IsPositive() && hasAmount {
			factor := decimal.NewFromInt(1).Add(rate.Div(decimal.NewFromInt(100)))
			net := round2(amount.Div(factor))
			patches = append(patches, corrected(models.OnLine(line.ID), "BT-131", FormatAmount(net),
				fmt.Sprintf("%s / (1+%s%%)", amount, rate), "R-LINE-NETGROSS-001", nil))
			if hasUnit {
				netUnit := round2(unitPrice.Div(factor))
				patches = append(patches, corrected(models.OnLine(line.ID), "BT-146", FormatAmount(netUnit),
					fmt.Sprintf("%s / (1+%s%%)", unitPrice, rate), "R-LINE-NETGROSS-001", nil))
				patches = append(patches, corrected(models.OnLine(line.ID), "BT-148", FormatAmount(unitPrice),
					"Set gross price from extracted unit price", "R-LINE-NETGROSS-001", nil))
			}
		}

		if bt130 := line.Fields["BT-130"]; bt130 != nil && bt130.Empty() && hasQty {
			patches = append(patches, corrected(models.OnLine(line.ID), "BT-130", "C62",
				"Defaulted unit to pieces", "R-LINE-UOM-001", nil))
		}
	}
	return patches
}

func maxDate(dates []string) string {
	latest := dates[0]
	for _, d := range dates[1:] {
		if d > latest {
			latest = d
		}
	}
	return latest
}
