package rules

import (
	"github.com/zugfix/invoice-canon-service/internal/models"
)

// Formal normalization: canonical renderings of values already present.
// Every patch carries status "corrected" and source "rule"; nothing here
// invents a value.

func normalizeDates(inv *models.Invoice) []models.Patch {
	var patches []models.Patch
	if bt2 := inv.Header["BT-2"]; has(bt2) {
		raw := bt2.RawValue
		if raw == "" {
			raw = bt2.Value
		}
		if iso, ok := ParseDateISO(raw); ok && iso != bt2.Value {
			patches = append(patches, corrected(models.Header(), "BT-2", iso,
				"Normalized date to ISO", "R-HDR-DATE-001", bt2.Evidence))
		}
	}
	return patches
}

func normalizeIdentifiers(inv *models.Invoice) []models.Patch {
	var patches []models.Patch

	if bt31 := inv.Header["BT-31"]; has(bt31) {
		if vat := ExtractVATID(bt31.Value); vat != "" && vat != bt31.Value {
			patches = append(patches, corrected(models.Header(), "BT-31", vat,
				"Normalized VAT ID", "R-HDR-VAT-001", bt31.Evidence))
		}
	}
	if bt30 := inv.Header["BT-30"]; has(bt30) {
		if reg := ExtractRegistrationID(bt30.Value); reg != "" && reg != bt30.Value {
			patches = append(patches, corrected(models.Header(), "BT-30", reg,
				"Normalized registration identifier to single value", "R-HDR-REG-001", bt30.Evidence))
		}
	}
	if bt34 := inv.Header["BT-34"]; has(bt34) {
		if email := NormalizeEmail(bt34.Value); email != "" && email != bt34.Value {
			patches = append(patches, corrected(models.Header(), "BT-34", email,
				"Normalized email", "R-HDR-EMAIL-001", bt34.Evidence))
		}
	}
	if bt32 := inv.Header["BT-32"]; has(bt32) {
		if tax := NormalizeTaxRegistration(bt32.Value); tax != "" && tax != bt32.Value {
			patches = append(patches, corrected(models.Header(), "BT-32", tax,
				"Normalized tax registration identifier", "R-HDR-TAXREG-001", bt32.Evidence))
		}
	}
	return patches
}

func normalizeCountries(inv *models.Invoice) []models.Patch {
	var patches []models.Patch
	if bt55 := inv.Header["BT-55"]; has(bt55) {
		if code, ok := NormalizeCountry(bt55.Value); ok && code != bt55.Value {
			patches = append(patches, corrected(models.Header(), "BT-55", code,
				"Normalized country to ISO2", "R-HDR-COUNTRY-BUYER-001", bt55.Evidence))
		}
	}
	return patches
}

// totalsAmountCodes are the monetary totals terms whose rendering is fixed to
// two decimal digits.
var totalsAmountCodes = []string{
	"BT-92", "BT-93", "BT-94", "BT-99", "BT-100", "BT-103",
	"BT-106", "BT-107", "BT-108", "BT-109", "BT-110",
	"BT-112", "BT-113", "BT-115", "BT-116",
}

var lineAmountCodes = []string{"BT-131", "BT-146", "BT-147", "BT-148", "BT-149"}

func normalizeAmounts(inv *models.Invoice) []models.Patch {
	var patches []models.Patch
	for _, code := range totalsAmountCodes {
		record := inv.Totals[code]
		if !has(record) {
			continue
		}
		if numeric, ok := ParseDecimal(record.Value); ok {
			if rendered := FormatAmount(numeric); rendered != record.Value {
				patches = append(patches, corrected(models.Totals(), code, rendered,
					"Normalized amount format", "R-TOT-AMOUNT-NORM-001", record.Evidence))
			}
		}
	}
	for _, line := range inv.Lines {
		for _, code := range lineAmountCodes {
			record := line.Fields[code]
			if !has(record) {
				continue
			}
			if numeric, ok := ParseDecimal(record.Value); ok {
				if rendered := FormatAmount(numeric); rendered != record.Value {
					patches = append(patches, corrected(models.OnLine(line.ID), code, rendered,
						"Normalized amount format", "R-LINE-AMOUNT-NORM-001", record.Evidence))
				}
			}
		}
	}
	return patches
}

// OCR often doubles a token when the same value appears twice in a layout
// cell ("EUR EUR", "03.12.2020 03.12.2020").
func normalizeDuplicateTokens(inv *models.Invoice) []models.Patch {
	var patches []models.Patch
	if bt5 := inv.Header["BT-5"]; has(bt5) {
		if tok, ok := DedupDoubledToken(bt5.Value); ok {
			patches = append(patches, corrected(models.Header(), "BT-5", tok,
				"Removed duplicate currency token", "R-HDR-CURRENCY-DEDUP-001", bt5.Evidence))
		}
	}
	if bt72 := inv.Header["BT-72"]; has(bt72) {
		if tok, ok := DedupDoubledToken(bt72.Value); ok {
			patches = append(patches, corrected(models.Header(), "BT-72", tok,
				"Removed duplicate date token", "R-HDR-DATE-DEDUP-001", bt72.Evidence))
		}
	}
	return patches
}
