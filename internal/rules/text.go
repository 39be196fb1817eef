package rules

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Document wraps the raw OCR text of an invoice for label-based extraction.
// Totals-block amounts sit either on the label line after a colon or on the
// following line.
type Document struct {
	content string
	lines   []string
}

// NewDocument splits raw text into trimmed, non-empty lines.
func NewDocument(content string) *Document {
	doc := &Document{content: content}
	for _, ln := range strings.Split(content, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			doc.lines = append(doc.lines, ln)
		}
	}
	return doc
}

func (d *Document) Empty() bool { return len(d.lines) == 0 }

// Contains reports whether the raw text contains the token, case-sensitive.
func (d *Document) Contains(token string) bool {
	return strings.Contains(d.content, token)
}

// ContainsFold reports whether the raw text contains the token, ignoring case.
func (d *Document) ContainsFold(token string) bool {
	return strings.Contains(strings.ToLower(d.content), strings.ToLower(token))
}

var vatShapedRe = regexp.MustCompile(`\b[A-Z]{2}\d{8,}\b`)

// Totals-block label vocabularies (German and English), most specific first.
var (
	grossTotalLabels  = []string{"Gesamtbetrag in EUR", "Gesamtbetrag", "Invoice total", "Total amount", "Bruttobetrag"}
	netTotalLabels    = []string{"Zwischensumme", "Nettobetrag", "Gesamtsumme netto", "Berechnungsgrundlage", "Total without VAT", "Subtotal"}
	vatTotalLabels    = []string{"MwSt", "USt", "VAT"}
	amountDueLabels   = []string{"Zahlbetrag", "Amount due", "Betrag fällig"}
	skontoTotalLabels = []string{"Gesamtbetrag abzgl. Skonto in EUR", "Gesamtbetrag abzgl. Skonto", "Gesamtbetrag abzl. Skonto"}
)

// AmountAfter finds a line containing the label and parses the amount after
// the colon, falling back to the rest of the line and then to the next line.
// Lines carrying a percent sign, a VAT-id-shaped token or one of the reject
// words are skipped and scanning continues: those are rate rows, identifier
// rows or lookalike labels, not amounts.
func (d *Document) AmountAfter(label string, rejectWords ...string) (decimal.Decimal, bool) {
	needle := strings.ToLower(label)
	for idx, line := range d.lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, needle) || rejectLine(line, lower, rejectWords) {
			continue
		}
		var amountText string
		if i := strings.LastIndex(line, ":"); i >= 0 {
			amountText = line[i+1:]
		} else {
			amountText = strings.Replace(line, label, "", 1)
		}
		if amount, ok := ParseDecimal(amountText); ok {
			return amount, true
		}
		if idx+1 < len(d.lines) {
			if amount, ok := ParseDecimal(d.lines[idx+1]); ok {
				return amount, true
			}
		}
	}
	return decimal.Decimal{}, false
}

func rejectLine(line, lower string, rejectWords []string) bool {
	if strings.Contains(line, "%") || vatShapedRe.MatchString(line) {
		return true
	}
	for _, word := range rejectWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// AmountAfterAny tries each label in order and returns the first hit.
func (d *Document) AmountAfterAny(labels []string, rejectWords ...string) (decimal.Decimal, bool) {
	for _, label := range labels {
		if amount, ok := d.AmountAfter(label, rejectWords...); ok {
			return amount, true
		}
	}
	return decimal.Decimal{}, false
}

// ChargeLine is a document-level charge found in the free text.
type ChargeLine struct {
	Amount  decimal.Decimal
	Snippet string
}

var chargePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bversandkosten\b`),
	regexp.MustCompile(`(?i)\bporto\b`),
	regexp.MustCompile(`(?i)\bshipping\b`),
	regexp.MustCompile(`(?i)\bdelivery charge\b`),
	regexp.MustCompile(`(?i)\bfreight\b`),
}

// Charges scans for shipping/freight lines and parses their amounts.
// Duplicate lines (OCR often repeats blocks) are counted once; rate rows and
// "Versandart" rows describe the shipping method, not a charge.
func (d *Document) Charges() []ChargeLine {
	var charges []ChargeLine
	seen := make(map[string]struct{})
	for idx, line := range d.lines {
		normalized := strings.Join(strings.Fields(strings.ToLower(line)), " ")
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		if strings.Contains(strings.ToLower(line), "versandart") {
			continue
		}
		if strings.Contains(line, "%") {
			continue
		}
		matched := false
		for _, pattern := range chargePatterns {
			if pattern.MatchString(line) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		amountText := line
		if i := strings.LastIndex(line, ":"); i >= 0 {
			amountText = line[i+1:]
		}
		snippet := line
		amount, ok := ParseDecimal(amountText)
		if !ok && idx+1 < len(d.lines) {
			if amount, ok = ParseDecimal(d.lines[idx+1]); ok {
				snippet = line + " " + d.lines[idx+1]
			}
		}
		if ok {
			charges = append(charges, ChargeLine{Amount: amount, Snippet: snippet})
		}
	}
	return charges
}

// VATRate finds a percent token on a MwSt/VAT line.
func (d *Document) VATRate() (decimal.Decimal, bool) {
	rate := decimal.Decimal{}
	found := false
	for _, line := range d.lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "mwst") && !strings.Contains(lower, "vat") {
			continue
		}
		for _, token := range strings.Fields(strings.ReplaceAll(line, ",", ".")) {
			i := strings.Index(token, "%")
			if i <= 0 {
				continue
			}
			if r, ok := ParseDecimal(token[:i]); ok {
				rate = r
				found = true
			}
			break
		}
	}
	return rate, found
}

var skontoPercentRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%\s*skonto`)
var skontoAmountRe = regexp.MustCompile(`(?i)\(([-\d.]+)\s*(?:eur|€)?\)`)

// SkontoPercent extracts a discount percentage from text like "2% Skonto",
// tolerating a comma decimal separator.
func SkontoPercent(text string) (decimal.Decimal, bool) {
	m := skontoPercentRe.FindStringSubmatch(strings.ReplaceAll(text, ",", "."))
	if m == nil {
		return decimal.Decimal{}, false
	}
	return ParseDecimal(m[1])
}

// SkontoAmount extracts a parenthesized discount amount from text like
// "2% Skonto (10 EUR)".
func SkontoAmount(text string) (decimal.Decimal, bool) {
	m := skontoAmountRe.FindStringSubmatch(strings.ReplaceAll(text, ",", "."))
	if m == nil {
		return decimal.Decimal{}, false
	}
	return ParseDecimal(m[1])
}

// SkontoPercentFromLines scans the document for the first Skonto line with a
// percentage.
func (d *Document) SkontoPercentFromLines() (decimal.Decimal, bool) {
	for _, line := range d.lines {
		if !strings.Contains(strings.ToLower(line), "skonto") {
			continue
		}
		if p, ok := SkontoPercent(line); ok {
			return p, true
		}
	}
	return decimal.Decimal{}, false
}

var instantTokens = []string{
	"vorkasse", "credit card", "kreditkarte", "paypal",
	"ebay", "klarna", "kaufland", "amazon", "online",
}

// IsInstantPayment reports whether the text names a payment channel that
// settles at order time rather than on invoice terms.
func IsInstantPayment(text string) bool {
	lower := strings.ToLower(text)
	for _, token := range instantTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
