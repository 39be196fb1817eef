package rules

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	decimalNoiseRe = regexp.MustCompile(`[^0-9,.\-]+`)
	dateDMYRe      = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})$`)
	dateISORe      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTokenRe    = regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{4}\b`)
	dayCountRe     = regexp.MustCompile(`(?i)(\d+)\s*Tage`)
	vatTokenRe     = regexp.MustCompile(`[A-Z]{2}\d+`)
	hrRegisterRe   = regexp.MustCompile(`\bHR[AB]\s*\d+\b`)
	taxRegLabelRe  = regexp.MustCompile(`(?i)\bNr\.?\b`)
	taxRegNoiseRe  = regexp.MustCompile(`[^0-9/.\- ]+`)
)

// ParseDecimal parses locale-ambiguous decimal text. When both "," and "."
// occur, the one appearing last is the decimal separator and the other is a
// thousands separator. Returns ok=false for text matching no numeric pattern;
// callers must treat that as unknown, never as zero.
func ParseDecimal(text string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Decimal{}, false
	}
	s = decimalNoiseRe.ReplaceAllString(s, "")
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// European format: 1.947,75
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			// US format: 1,947.75
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// FormatAmount renders an amount with exactly two decimal digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseDateISO normalizes DD.MM.YYYY or already-ISO text to YYYY-MM-DD.
// Unparseable dates return ok=false and are left untouched by callers.
func ParseDateISO(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", false
	}
	if m := dateDMYRe.FindStringSubmatch(s); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1], true
	}
	if dateISORe.MatchString(s) {
		return s, true
	}
	return "", false
}

// AddDays returns an ISO date shifted by the given number of days.
func AddDays(isoDate string, days int) (string, bool) {
	base, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return "", false
	}
	return base.AddDate(0, 0, days).Format("2006-01-02"), true
}

// ExtractDates finds all DD.MM.YYYY tokens in free text, normalized to ISO.
func ExtractDates(text string) []string {
	var dates []string
	for _, token := range dateTokenRe.FindAllString(text, -1) {
		if iso, ok := ParseDateISO(token); ok {
			dates = append(dates, iso)
		}
	}
	return dates
}

// ExtractDayCount finds a day-count phrase ("14 Tage") or a bare number and
// returns the largest count mentioned.
func ExtractDayCount(text string) (int, bool) {
	stripped := strings.TrimSpace(text)
	if n, err := strconv.Atoi(stripped); err == nil {
		return n, true
	}
	best := 0
	found := false
	for _, m := range dayCountRe.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && (!found || n > best) {
			best = n
			found = true
		}
	}
	return best, found
}

var countryNames = map[string]string{
	"deutschland":    "DE",
	"germany":        "DE",
	"österreich":     "AT",
	"austria":        "AT",
	"schweiz":        "CH",
	"switzerland":    "CH",
	"frankreich":     "FR",
	"france":         "FR",
	"niederlande":    "NL",
	"netherlands":    "NL",
	"belgien":        "BE",
	"belgium":        "BE",
	"italien":        "IT",
	"italy":          "IT",
	"spanien":        "ES",
	"spain":          "ES",
	"polen":          "PL",
	"poland":         "PL",
	"luxemburg":      "LU",
	"luxembourg":     "LU",
	"dänemark":       "DK",
	"denmark":        "DK",
	"tschechien":     "CZ",
	"czech republic": "CZ",
}

// NormalizeCountry maps German/English country names to ISO-3166 alpha-2 and
// passes bare two-letter codes through uppercased.
func NormalizeCountry(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", false
	}
	if code, ok := countryNames[strings.ToLower(s)]; ok {
		return code, true
	}
	if len(s) == 2 && isAlpha(s) {
		return strings.ToUpper(s), true
	}
	return "", false
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

// NormalizeVATID strips whitespace and uppercases a VAT identifier.
func NormalizeVATID(text string) string {
	s := strings.ToUpper(strings.TrimSpace(text))
	return strings.Join(strings.Fields(s), "")
}

// ExtractVATID pulls the two-letter-prefix + digits token out of noisier
// text, falling back to the normalized text when no such token is embedded.
func ExtractVATID(text string) string {
	s := NormalizeVATID(text)
	if s == "" {
		return ""
	}
	if m := vatTokenRe.FindString(s); m != "" {
		return m
	}
	return s
}

// ExtractRegistrationID pulls a commercial-register number (HRA/HRB) out of
// the text, falling back to the first line.
func ExtractRegistrationID(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if m := hrRegisterRe.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	first, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(first)
}

// NormalizeTaxRegistration strips label words and everything that is not a
// digit or a common separator from a tax registration number.
func NormalizeTaxRegistration(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	s = strings.TrimSpace(taxRegLabelRe.ReplaceAllString(s, ""))
	s = taxRegNoiseRe.ReplaceAllString(s, "")
	return strings.Trim(s, "/.- ")
}

// NormalizeEmail trims an electronic address.
func NormalizeEmail(text string) string {
	return strings.TrimSpace(text)
}

// DedupDoubledToken collapses a value whose first two whitespace-separated
// tokens are identical ("EUR EUR" -> "EUR").
func DedupDoubledToken(text string) (string, bool) {
	tokens := strings.Fields(text)
	if len(tokens) > 1 && tokens[0] == tokens[1] {
		return tokens[0], true
	}
	return "", false
}
