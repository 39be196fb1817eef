package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"german thousands", "1.947,75", "1947.75", true},
		{"us thousands", "1,947.75", "1947.75", true},
		{"comma decimal", "15,90", "15.90", true},
		{"dot decimal", "15.90", "15.90", true},
		{"currency noise", "EUR 1.234,56", "1234.56", true},
		{"negative", "-4,90", "-4.90", true},
		{"integer", "42", "42.00", true},
		{"empty", "", "", false},
		{"letters only", "Versandkosten", "", false},
		{"whitespace", "   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDecimal(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, FormatAmount(got))
			}
		})
	}
}

func TestParseDecimalUnparseableIsNotZero(t *testing.T) {
	// An unreadable amount must surface as unknown, never as 0.00.
	_, ok := ParseDecimal("n/a")
	assert.False(t, ok)
}

func TestParseDateISO(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"03.12.2020", "2020-12-03", true},
		{"2020-12-03", "2020-12-03", true},
		{" 01.01.2021 ", "2021-01-01", true},
		{"3.12.2020", "", false},
		{"December 3rd", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDateISO(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestAddDays(t *testing.T) {
	got, ok := AddDays("2020-12-03", 14)
	require.True(t, ok)
	assert.Equal(t, "2020-12-17", got)

	got, ok = AddDays("2020-12-20", 30)
	require.True(t, ok)
	assert.Equal(t, "2021-01-19", got)

	_, ok = AddDays("03.12.2020", 14)
	assert.False(t, ok)
}

func TestExtractDates(t *testing.T) {
	dates := ExtractDates("zahlbar bis 10.12.2020, spätestens 20.12.2020")
	assert.Equal(t, []string{"2020-12-10", "2020-12-20"}, dates)

	assert.Empty(t, ExtractDates("zahlbar innerhalb 14 Tagen"))
}

func TestExtractDayCount(t *testing.T) {
	n, ok := ExtractDayCount("14 Tage")
	require.True(t, ok)
	assert.Equal(t, 14, n)

	n, ok = ExtractDayCount("30")
	require.True(t, ok)
	assert.Equal(t, 30, n)

	// Several day terms: the longest one wins.
	n, ok = ExtractDayCount("2% Skonto innerhalb 7 Tage, netto 30 Tage")
	require.True(t, ok)
	assert.Equal(t, 30, n)

	_, ok = ExtractDayCount("sofort fällig")
	assert.False(t, ok)
}

func TestNormalizeCountry(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"Deutschland", "DE", true},
		{"germany", "DE", true},
		{"Österreich", "AT", true},
		{"de", "DE", true},
		{"DE", "DE", true},
		{"Atlantis", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeCountry(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestExtractVATID(t *testing.T) {
	assert.Equal(t, "DE123456789", ExtractVATID("DE 123 456 789"))
	assert.Equal(t, "DE123456789", ExtractVATID("USt-IdNr.DE123456789"))
	assert.Equal(t, "ATU12345678", NormalizeVATID("atu 12345678"))
	assert.Equal(t, "", ExtractVATID("  "))
}

func TestExtractRegistrationID(t *testing.T) {
	assert.Equal(t, "HRB 12345", ExtractRegistrationID("Amtsgericht München HRB 12345"))
	assert.Equal(t, "HRA 98", ExtractRegistrationID("HRA 98\nUSt-IdNr. DE123456789"))
	assert.Equal(t, "Gewerberegister 4711", ExtractRegistrationID("Gewerberegister 4711\nzweite Zeile"))
	assert.Equal(t, "", ExtractRegistrationID(""))
}

func TestNormalizeTaxRegistration(t *testing.T) {
	assert.Equal(t, "143/123/45678", NormalizeTaxRegistration("Steuer-Nr. 143/123/45678"))
	assert.Equal(t, "12 345 67890", NormalizeTaxRegistration("St.-Nr.: 12 345 67890"))
}

func TestDedupDoubledToken(t *testing.T) {
	got, ok := DedupDoubledToken("EUR EUR")
	require.True(t, ok)
	assert.Equal(t, "EUR", got)

	got, ok = DedupDoubledToken("03.12.2020 03.12.2020")
	require.True(t, ok)
	assert.Equal(t, "03.12.2020", got)

	_, ok = DedupDoubledToken("EUR")
	assert.False(t, ok)

	_, ok = DedupDoubledToken("EUR USD")
	assert.False(t, ok)
}
