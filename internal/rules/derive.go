package rules

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/zugfix/invoice-canon-service/internal/models"
)

// Derivation: fill empty records from values already on the invoice.
// Patches carry status "derived" and source "derived"; populated records are
// never overwritten here.

func deriveLineIDs(inv *models.Invoice) []models.Patch {
	var patches []models.Patch
	for _, line := range inv.Lines {
		if bt126 := line.Fields["BT-126"]; bt126 != nil && bt126.Empty() {
			patches = append(patches, derived(models.OnLine(line.ID), "BT-126", strconv.Itoa(line.ID),
				"Assigned line number as identifier", "R-LINE-ID-001",
				map[string]string{"from": "line_index", "line_id": strconv.Itoa(line.ID)}))
		}
	}
	return patches
}

// partyGeo describes one postal-address triple: the postcode term feeding a
// country term and a subdivision term.
type partyGeo struct {
	postcode, country, subdivision string
	party                          string
}

var partyGeos = []partyGeo{
	{"BT-53", "BT-55", "BT-54", "buyer"},
	{"BT-38", "BT-40", "BT-39", "seller"},
	{"BT-67", "", "BT-68", "tax representative"},
	{"BT-78", "BT-80", "BT-79", "delivery"},
}

var geoRuleIDs = map[string][2]string{
	"buyer":              {"R-HDR-COUNTRY-BUYER-POST-001", "R-HDR-SUBDIV-BUYER-POST-001"},
	"seller":             {"R-HDR-COUNTRY-SELLER-POST-001", "R-HDR-SUBDIV-SELLER-POST-001"},
	"tax representative": {"", "R-HDR-SUBDIV-TAXREP-POST-001"},
	"delivery":           {"R-HDR-COUNTRY-DELIVERY-POST-001", "R-HDR-SUBDIV-DELIVERY-POST-001"},
}

func deriveGeography(inv *models.Invoice) []models.Patch {
	var patches []models.Patch
	for _, geo := range partyGeos {
		post := inv.Header[geo.postcode]
		if !has(post) {
			continue
		}
		ruleIDs := geoRuleIDs[geo.party]
		if geo.country != "" {
			if country := inv.Header[geo.country]; country != nil && country.Empty() && LooksLikeDEPostcode(post.Value) {
				patches = append(patches, derived(models.Header(), geo.country, "DE",
					fmt.Sprintf("Derived country code from %s post code", geo.party), ruleIDs[0], post.Evidence))
			}
		}
		if sub := inv.Header[geo.subdivision]; sub != nil && sub.Empty() {
			if code, ok := SubdivisionFromPostcode(post.Value); ok {
				patches = append(patches, derived(models.Header(), geo.subdivision, code,
					fmt.Sprintf("Derived country subdivision from German %s post code", geo.party), ruleIDs[1], post.Evidence))
			}
		}
	}
	return patches
}

// Cash discounts (Skonto) only apply when the invoice is settled at order
// time, so the derivation is gated on the payment means or terms naming an
// instant channel.
func deriveSkontoFromTerms(inv *models.Invoice) []models.Patch {
	bt20 := inv.Header["BT-20"]
	bt81 := inv.Header["BT-81"]
	if !has(bt20) {
		return nil
	}
	instant := has(bt81) && IsInstantPayment(bt81.Value)
	if !instant {
		instant = IsInstantPayment(bt20.Value)
	}
	if !instant {
		return nil
	}

	var patches []models.Patch
	if percent, ok := SkontoPercent(bt20.Value); ok {
		if bt94 := inv.Totals["BT-94"]; bt94 != nil && bt94.Empty() {
			patches = append(patches, derived(models.Totals(), "BT-94", FormatAmount(percent),
				"Skonto percentage from payment terms", "R-PAY-SKONTO-007", bt20.Evidence))
		}
	}
	if amount, ok := SkontoAmount(bt20.Value); ok {
		if bt92 := inv.Totals["BT-92"]; bt92 != nil && bt92.Empty() {
			patches = append(patches, derived(models.Totals(), "BT-92", FormatAmount(amount),
				"Skonto amount from payment terms", "R-PAY-SKONTO-008", bt20.Evidence))
			if bt107 := inv.Totals["BT-107"]; bt107 != nil && bt107.Empty() {
				patches = append(patches, derived(models.Totals(), "BT-107", FormatAmount(amount),
					"Sum of document-level allowances", "R-TOT-ALLOW-001", bt20.Evidence))
			}
		}
	}
	return patches
}

func deriveLineVATCategories(inv *models.Invoice) []models.Patch {
	var patches []models.Patch
	for _, line := range inv.Lines {
		bt151 := line.Fields["BT-151"]
		rate, ok := num(line.Fields["BT-152"])
		if bt151 == nil || !bt151.Empty() || !ok {
			continue
		}
		category := "S"
		if rate.IsZero() || rate.IsNegative() {
			category = "Z"
		}
		var evidence map[string]string
		if bt152 := line.Fields["BT-152"]; bt152 != nil {
			evidence = bt152.Evidence
		}
		patches = append(patches, derived(models.OnLine(line.ID), "BT-151", category,
			"Derived VAT category from rate", "R-LINE-VATCAT-001", evidence))
	}
	return patches
}

func deriveLineNet(inv *models.Invoice) []models.Patch {
	var patches []models.Patch
	for _, line := range inv.Lines {
		bt131 := line.Fields["BT-131"]
		if bt131 == nil || !bt131.Empty() {
			continue
		}
		qty, qok := num(line.Fields["BT-129"])
		unitPrice, uok := num(line.Fields["BT-146"])
		if !qok || !uok {
			continue
		}
		total := unitPrice.Mul(qty)
		if discount, ok := num(line.Fields["BT-138"]); ok {
			total = total.Mul(decimal.NewFromInt(1).Sub(discount.Div(decimal.NewFromInt(100))))
		}
		patches = append(patches, derived(models.OnLine(line.ID), "BT-131", FormatAmount(round2(total)),
			"BT-146 * BT-129 * (1 - BT-138%)", "R-LINE-NET-001", nil))
	}
	return patches
}

func deriveTotalsSums(inv *models.Invoice) []models.Patch {
	var patches []models.Patch

	// BT-106: sum of line net amounts. When a line has an allowance but no
	// discount percentage, BT-131 is likely pre-discount, so subtract it.
	var lineNets []decimal.Decimal
	for _, line := range inv.Lines {
		net, ok := num(line.Fields["BT-131"])
		if !ok {
			continue
		}
		_, hasDiscountPct := num(line.Fields["BT-138"])
		if allowance, ok := num(line.Fields["BT-147"]); ok && !hasDiscountPct {
			net = net.Sub(allowance)
		}
		lineNets = append(lineNets, net)
	}
	if len(lineNets) > 0 {
		if bt106 := inv.Totals["BT-106"]; bt106 != nil && bt106.Empty() {
			sum := decimal.Decimal{}
			for _, v := range lineNets {
				sum = sum.Add(v)
			}
			patches = append(patches, derived(models.Totals(), "BT-106", FormatAmount(round2(sum)),
				"Sum of line net amounts (line allowances applied)", "R-TOT-SUMS-001", nil))
		}
	}

	if charge, ok := num(inv.Totals["BT-99"]); ok {
		if bt108 := inv.Totals["BT-108"]; bt108 != nil && bt108.Empty() {
			patches = append(patches, derived(models.Totals(), "BT-108", FormatAmount(charge),
				"Derived from document charge amount", "R-TOT-SUMS-002", nil))
		}
	}
	if allowance, ok := num(inv.Totals["BT-92"]); ok {
		if bt107 := inv.Totals["BT-107"]; bt107 != nil && bt107.Empty() {
			patches = append(patches, derived(models.Totals(), "BT-107", FormatAmount(allowance),
				"Derived from document allowance amount", "R-TOT-SUMS-003", nil))
		}
	}
	return patches
}

// deriveGrandTotals links the totals chain: each call reads only values
// already stored, so at most one missing link is filled per engine pass and
// later passes cascade through the rest.
func deriveGrandTotals(inv *models.Invoice) []models.Patch {
	var patches []models.Patch

	bt106, has106 := num(inv.Totals["BT-106"])
	bt107 := numOrZero(inv.Totals["BT-107"])
	bt108 := numOrZero(inv.Totals["BT-108"])
	bt109, has109 := num(inv.Totals["BT-109"])
	bt110, has110 := num(inv.Totals["BT-110"])
	bt112, has112 := num(inv.Totals["BT-112"])
	bt113, has113 := num(inv.Totals["BT-113"])

	if has106 {
		if rec := inv.Totals["BT-109"]; rec != nil && rec.Empty() {
			patches = append(patches, derived(models.Totals(), "BT-109",
				FormatAmount(round2(bt106.Sub(bt107).Add(bt108))),
				"BT-106 - BT-107 + BT-108", "R-TOT-GRAND-001", nil))
		}
	}
	if has109 && has110 {
		if rec := inv.Totals["BT-112"]; rec != nil && rec.Empty() {
			patches = append(patches, derived(models.Totals(), "BT-112",
				FormatAmount(round2(bt109.Add(bt110))),
				"BT-109 + BT-110", "R-TOT-GRAND-002", nil))
		}
	}
	if has112 && has109 {
		if rec := inv.Totals["BT-110"]; rec != nil && rec.Empty() {
			patches = append(patches, derived(models.Totals(), "BT-110",
				FormatAmount(round2(bt112.Sub(bt109))),
				"BT-112 - BT-109", "R-TOT-GRAND-003", nil))
		}
	}
	if has112 && has113 {
		if rec := inv.Totals["BT-115"]; rec != nil && rec.Empty() {
			patches = append(patches, derived(models.Totals(), "BT-115",
				FormatAmount(round2(bt112.Sub(bt113).Sub(bt107))),
				"BT-112 - BT-113 - BT-107", "R-TOT-GRAND-005", nil))
		}
	}

	// VAT from net and rate when every line shares exactly one rate.
	if has109 {
		if rec := inv.Totals["BT-110"]; rec != nil && rec.Empty() {
			if rate, ok := singleLineVATRate(inv); ok {
				vat := round2(bt109.Mul(rate).Div(decimal.NewFromInt(100)))
				patches = append(patches, derived(models.Totals(), "BT-110", FormatAmount(vat),
					fmt.Sprintf("BT-109 * %s%%", FormatAmount(rate)), "R-TOT-VAT-001", nil))
			}
		}
	}

	// Taxable base when there is at most one VAT category in play.
	if rec := inv.Totals["BT-116"]; rec != nil && rec.Empty() {
		var taxable decimal.Decimal
		known := false
		if has109 {
			taxable, known = bt109, true
		} else if has106 {
			taxable, known = round2(bt106.Sub(bt107).Add(bt108)), true
		}
		if known && countLineVATCategories(inv) <= 1 {
			patches = append(patches, derived(models.Totals(), "BT-116", FormatAmount(taxable),
				"Taxable amount from total without VAT (single VAT category)", "R-TOT-TAXABLE-001", nil))
		}
	}
	return patches
}

func singleLineVATRate(inv *models.Invoice) (decimal.Decimal, bool) {
	rates := make(map[string]decimal.Decimal)
	for _, line := range inv.Lines {
		if rate, ok := num(line.Fields["BT-152"]); ok {
			rounded := round2(rate)
			rates[rounded.String()] = rounded
		}
	}
	if len(rates) != 1 {
		return decimal.Decimal{}, false
	}
	for _, rate := range rates {
		return rate, true
	}
	return decimal.Decimal{}, false
}

func countLineVATCategories(inv *models.Invoice) int {
	categories := make(map[string]struct{})
	for _, line := range inv.Lines {
		if cat := line.Fields["BT-151"]; has(cat) {
			categories[cat.Value] = struct{}{}
		}
	}
	return len(categories)
}
