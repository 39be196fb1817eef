package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zugfix/invoice-canon-service/internal/canon"
	"github.com/zugfix/invoice-canon-service/internal/models"
	"github.com/zugfix/invoice-canon-service/internal/registry"
)

func testInvoice() *models.Invoice {
	return canon.NewInvoice(registry.Default())
}

func setOCR(f *models.FieldValue, value string) {
	f.Value = value
	f.RawValue = value
	f.Status = models.StatusOK
	f.Source = models.SourceOCR
}

func addLine(inv *models.Invoice, values map[string]string) *models.Line {
	line := canon.NewLine(registry.Default(), len(inv.Lines)+1)
	for code, value := range values {
		setOCR(line.Fields[code], value)
	}
	inv.Lines = append(inv.Lines, line)
	return line
}

func patchByCode(patches []models.Patch, code string) (models.Patch, bool) {
	for _, p := range patches {
		if p.Code == code {
			return p, true
		}
	}
	return models.Patch{}, false
}

func TestNormalizeDates(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Header["BT-2"], "03.12.2020")

	patches := normalizeDates(inv)
	require.Len(t, patches, 1)
	assert.Equal(t, "BT-2", patches[0].Code)
	assert.Equal(t, "2020-12-03", patches[0].NewValue)
	assert.Equal(t, models.StatusCorrected, patches[0].Status)
	assert.Equal(t, models.SourceRule, patches[0].Source)
}

func TestNormalizeDatesPrefersRawValue(t *testing.T) {
	inv := testInvoice()
	bt2 := inv.Header["BT-2"]
	setOCR(bt2, "2020-12-30")
	bt2.RawValue = "03.12.2020"

	patches := normalizeDates(inv)
	require.Len(t, patches, 1)
	assert.Equal(t, "2020-12-03", patches[0].NewValue)
}

func TestNormalizeIdentifiers(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Header["BT-31"], "DE 123 456 789")
	setOCR(inv.Header["BT-30"], "Amtsgericht Köln HRB 9999")
	setOCR(inv.Header["BT-32"], "Steuer-Nr. 143/123/45678")

	patches := normalizeIdentifiers(inv)
	vat, ok := patchByCode(patches, "BT-31")
	require.True(t, ok)
	assert.Equal(t, "DE123456789", vat.NewValue)

	reg, ok := patchByCode(patches, "BT-30")
	require.True(t, ok)
	assert.Equal(t, "HRB 9999", reg.NewValue)

	tax, ok := patchByCode(patches, "BT-32")
	require.True(t, ok)
	assert.Equal(t, "143/123/45678", tax.NewValue)
}

func TestNormalizeAmounts(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Totals["BT-112"], "1.947,75")
	line := addLine(inv, map[string]string{"BT-131": "15,9"})

	patches := normalizeAmounts(inv)
	total, ok := patchByCode(patches, "BT-112")
	require.True(t, ok)
	assert.Equal(t, "1947.75", total.NewValue)
	assert.Equal(t, models.ScopeTotals, total.Target.Scope)

	net, ok := patchByCode(patches, "BT-131")
	require.True(t, ok)
	assert.Equal(t, "15.90", net.NewValue)
	assert.Equal(t, line.ID, net.Target.LineID)
}

func TestNormalizeAmountsAlreadyCanonical(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Totals["BT-112"], "1947.75")
	assert.Empty(t, normalizeAmounts(inv))
}

func TestNormalizeDuplicateTokens(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Header["BT-5"], "EUR EUR")
	setOCR(inv.Header["BT-72"], "03.12.2020 03.12.2020")

	patches := normalizeDuplicateTokens(inv)
	currency, ok := patchByCode(patches, "BT-5")
	require.True(t, ok)
	assert.Equal(t, "EUR", currency.NewValue)

	date, ok := patchByCode(patches, "BT-72")
	require.True(t, ok)
	assert.Equal(t, "03.12.2020", date.NewValue)
}

func TestDeriveLineIDs(t *testing.T) {
	inv := testInvoice()
	addLine(inv, nil)
	addLine(inv, map[string]string{"BT-126": "7"})

	patches := deriveLineIDs(inv)
	require.Len(t, patches, 1)
	assert.Equal(t, "1", patches[0].NewValue)
	assert.Equal(t, 1, patches[0].Target.LineID)
	assert.Equal(t, models.StatusDerived, patches[0].Status)
}

func TestDeriveGeography(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Header["BT-53"], "10115")

	patches := deriveGeography(inv)
	country, ok := patchByCode(patches, "BT-55")
	require.True(t, ok)
	assert.Equal(t, "DE", country.NewValue)

	subdivision, ok := patchByCode(patches, "BT-54")
	require.True(t, ok)
	assert.Equal(t, "DE-BE", subdivision.NewValue)
}

func TestDeriveGeographyAmbiguousPostcode(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Header["BT-53"], "07919")

	patches := deriveGeography(inv)
	_, ok := patchByCode(patches, "BT-54")
	assert.False(t, ok, "border postcode must not pick a subdivision")

	// The country derivation only needs the value to look like a postcode.
	country, ok := patchByCode(patches, "BT-55")
	require.True(t, ok)
	assert.Equal(t, "DE", country.NewValue)
}

func TestDeriveGeographyKeepsExistingCountry(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Header["BT-53"], "10115")
	setOCR(inv.Header["BT-55"], "AT")

	patches := deriveGeography(inv)
	_, ok := patchByCode(patches, "BT-55")
	assert.False(t, ok)
}

func TestDeriveSkontoFromTerms(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Header["BT-81"], "Vorkasse")
	setOCR(inv.Header["BT-20"], "2% Skonto (10,00 EUR)")

	patches := deriveSkontoFromTerms(inv)
	percent, ok := patchByCode(patches, "BT-94")
	require.True(t, ok)
	assert.Equal(t, "2.00", percent.NewValue)

	amount, ok := patchByCode(patches, "BT-92")
	require.True(t, ok)
	assert.Equal(t, "10.00", amount.NewValue)

	allowanceSum, ok := patchByCode(patches, "BT-107")
	require.True(t, ok)
	assert.Equal(t, "10.00", allowanceSum.NewValue)
}

func TestDeriveSkontoRequiresInstantChannel(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Header["BT-20"], "2% Skonto (10,00 EUR), zahlbar per Überweisung")
	assert.Empty(t, deriveSkontoFromTerms(inv))
}

func TestDeriveLineVATCategories(t *testing.T) {
	inv := testInvoice()
	addLine(inv, map[string]string{"BT-152": "19"})
	addLine(inv, map[string]string{"BT-152": "0"})
	addLine(inv, map[string]string{"BT-151": "S", "BT-152": "19"})

	patches := deriveLineVATCategories(inv)
	require.Len(t, patches, 2)
	assert.Equal(t, "S", patches[0].NewValue)
	assert.Equal(t, "Z", patches[1].NewValue)
}

func TestDeriveLineNet(t *testing.T) {
	inv := testInvoice()
	addLine(inv, map[string]string{"BT-129": "3", "BT-146": "12,50"})
	addLine(inv, map[string]string{"BT-129": "2", "BT-146": "100,00", "BT-138": "10"})

	patches := deriveLineNet(inv)
	require.Len(t, patches, 2)
	assert.Equal(t, "37.50", patches[0].NewValue)
	assert.Equal(t, "180.00", patches[1].NewValue)
}

func TestDeriveTotalsSums(t *testing.T) {
	inv := testInvoice()
	addLine(inv, map[string]string{"BT-131": "100.00"})
	addLine(inv, map[string]string{"BT-131": "50.00"})

	patches := deriveTotalsSums(inv)
	sum, ok := patchByCode(patches, "BT-106")
	require.True(t, ok)
	assert.Equal(t, "150.00", sum.NewValue)
}

func TestDeriveTotalsSumsAppliesLineAllowance(t *testing.T) {
	inv := testInvoice()
	addLine(inv, map[string]string{"BT-131": "100.00", "BT-147": "10.00"})

	patches := deriveTotalsSums(inv)
	sum, ok := patchByCode(patches, "BT-106")
	require.True(t, ok)
	assert.Equal(t, "90.00", sum.NewValue)
}

func TestDeriveGrandTotals(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Totals["BT-106"], "150.00")
	addLine(inv, map[string]string{"BT-152": "19", "BT-151": "S"})

	patches := deriveGrandTotals(inv)
	net, ok := patchByCode(patches, "BT-109")
	require.True(t, ok)
	assert.Equal(t, "150.00", net.NewValue)

	// BT-110 needs a stored BT-109, so the first call cannot produce it yet.
	_, ok = patchByCode(patches, "BT-110")
	assert.False(t, ok)
}

func TestDeriveGrandTotalsVATFromSingleRate(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Totals["BT-109"], "150.00")
	addLine(inv, map[string]string{"BT-152": "19", "BT-151": "S"})

	patches := deriveGrandTotals(inv)
	vat, ok := patchByCode(patches, "BT-110")
	require.True(t, ok)
	assert.Equal(t, "28.50", vat.NewValue)

	taxable, ok := patchByCode(patches, "BT-116")
	require.True(t, ok)
	assert.Equal(t, "150.00", taxable.NewValue)
}

func TestDeriveGrandTotalsMixedRatesNoVAT(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Totals["BT-109"], "150.00")
	addLine(inv, map[string]string{"BT-152": "19"})
	addLine(inv, map[string]string{"BT-152": "7"})

	patches := deriveGrandTotals(inv)
	_, ok := patchByCode(patches, "BT-110")
	assert.False(t, ok)
}

func TestValidateTotalsFlagsLineSumMismatch(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Totals["BT-106"], "200.00")
	addLine(inv, map[string]string{"BT-131": "100.00"})
	addLine(inv, map[string]string{"BT-131": "50.00"})

	patches := validateTotals(inv)
	sum, ok := patchByCode(patches, "BT-106")
	require.True(t, ok)
	assert.Equal(t, "150.00", sum.NewValue)
	assert.Equal(t, models.StatusWrongMath, sum.Status)
}

func TestValidateTotalsWithinTolerance(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Totals["BT-106"], "150.01")
	addLine(inv, map[string]string{"BT-131": "100.00"})
	addLine(inv, map[string]string{"BT-131": "50.00"})

	assert.Empty(t, validateTotals(inv))
}

func TestValidateTotalsGrandTotalIdentity(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Totals["BT-109"], "150.00")
	setOCR(inv.Totals["BT-110"], "28.50")
	setOCR(inv.Totals["BT-112"], "175.00")

	patches := validateTotals(inv)
	total, ok := patchByCode(patches, "BT-112")
	require.True(t, ok)
	assert.Equal(t, "178.50", total.NewValue)
	assert.Equal(t, models.StatusWrongMath, total.Status)
}

func TestResolveCurrencyFromText(t *testing.T) {
	inv := testInvoice()
	inv.Text = "Rechnung\nGesamtbetrag in EUR: 178,50"

	patches := resolveCurrency(inv)
	require.Len(t, patches, 1)
	assert.Equal(t, "EUR", patches[0].NewValue)
}

func TestResolveCurrencyKeepsExisting(t *testing.T) {
	inv := testInvoice()
	inv.Text = "Betrag in EUR"
	setOCR(inv.Header["BT-5"], "USD")
	assert.Empty(t, resolveCurrency(inv))
}

func TestResolveSellerCountryFromVATPrefix(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Header["BT-31"], "DE123456789")
	setOCR(inv.Header["BT-40"], "Deutschland")

	patches := resolveSellerCountry(inv)
	require.Len(t, patches, 1)
	assert.Equal(t, "DE", patches[0].NewValue)
}

func TestResolveTotalsFromText(t *testing.T) {
	inv := testInvoice()
	inv.Text = "Zwischensumme: 150,00\nzzgl. MwSt 19%\nMwSt: 28,50\nZahlbetrag: 178,50\nGesamtbetrag in EUR: 178,50"

	patches := resolveTotalsFromText(inv)
	require.Len(t, patches, 4)

	gross, ok := patchByCode(patches, "BT-112")
	require.True(t, ok)
	assert.Equal(t, "178.50", gross.NewValue)

	net, ok := patchByCode(patches, "BT-109")
	require.True(t, ok)
	assert.Equal(t, "150.00", net.NewValue)

	// The 19% rate row is skipped; the VAT total row below it counts.
	vat, ok := patchByCode(patches, "BT-110")
	require.True(t, ok)
	assert.Equal(t, "28.50", vat.NewValue)

	due, ok := patchByCode(patches, "BT-115")
	require.True(t, ok)
	assert.Equal(t, "178.50", due.NewValue)
}

func TestResolveTotalsFromTextSkipsPopulatedAndAnnotatedRows(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Totals["BT-112"], "178.50")
	inv.Text = "Gesamtbetrag: 200,00\nAlle Preise inkl. MwSt: 28,50\nNettobetrag Versand: 4,90"

	patches := resolveTotalsFromText(inv)
	_, ok := patchByCode(patches, "BT-112")
	assert.False(t, ok, "a populated gross total must not be re-extracted")
	_, ok = patchByCode(patches, "BT-110")
	assert.False(t, ok, "price annotations are not VAT totals")
	_, ok = patchByCode(patches, "BT-109")
	assert.False(t, ok, "shipping rows are not net totals")
}

func TestResolveChargesFromText(t *testing.T) {
	inv := testInvoice()
	inv.Text = "Zwischensumme: 100,00\nVersandkosten: 4,90\nMwSt 19%: 19,93\nGesamtbetrag: 124,83"

	patches := resolveCharges(inv)
	charge, ok := patchByCode(patches, "BT-99")
	require.True(t, ok)
	assert.Equal(t, "4.90", charge.NewValue)

	base, ok := patchByCode(patches, "BT-100")
	require.True(t, ok)
	assert.Equal(t, "4.90", base.NewValue)

	category, ok := patchByCode(patches, "BT-102")
	require.True(t, ok)
	assert.Equal(t, "S", category.NewValue)

	rate, ok := patchByCode(patches, "BT-103")
	require.True(t, ok)
	assert.Equal(t, "19.00", rate.NewValue)

	reason, ok := patchByCode(patches, "BT-104")
	require.True(t, ok)
	assert.Equal(t, "Versandkosten", reason.NewValue)

	chargeSum, ok := patchByCode(patches, "BT-108")
	require.True(t, ok)
	assert.Equal(t, "4.90", chargeSum.NewValue)
}

func TestResolveLineAmbiguityDeflatesGrossLines(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Totals["BT-109"], "100.00")
	addLine(inv, map[string]string{
		"BT-129": "1",
		"BT-131": "119.00",
		"BT-146": "119.00",
		"BT-152": "19",
	})

	patches := resolveLineAmbiguity(inv)
	net, ok := patchByCode(patches, "BT-131")
	require.True(t, ok)
	assert.Equal(t, "100.00", net.NewValue)
	assert.Equal(t, models.StatusCorrected, net.Status)

	unit, ok := patchByCode(patches, "BT-146")
	require.True(t, ok)
	assert.Equal(t, "100.00", unit.NewValue)

	gross, ok := patchByCode(patches, "BT-148")
	require.True(t, ok)
	assert.Equal(t, "119.00", gross.NewValue)

	uom, ok := patchByCode(patches, "BT-130")
	require.True(t, ok)
	assert.Equal(t, "C62", uom.NewValue)
}

func TestResolveLineAmbiguityDisabledByAllowances(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Totals["BT-109"], "100.00")
	setOCR(inv.Totals["BT-107"], "19.00")
	addLine(inv, map[string]string{
		"BT-131": "119.00",
		"BT-152": "19",
	})

	patches := resolveLineAmbiguity(inv)
	_, ok := patchByCode(patches, "BT-131")
	assert.False(t, ok, "explicit allowances explain the mismatch")
}

func TestResolveLineAmbiguityMatchingSumsUntouched(t *testing.T) {
	inv := testInvoice()
	setOCR(inv.Totals["BT-109"], "150.00")
	addLine(inv, map[string]string{"BT-131": "150.00", "BT-152": "19"})

	patches := resolveLineAmbiguity(inv)
	_, ok := patchByCode(patches, "BT-131")
	assert.False(t, ok)
}
