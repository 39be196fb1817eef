package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zugfix/invoice-canon-service/internal/models"
	"github.com/zugfix/invoice-canon-service/internal/registry"
)

const sampleAnalysis = `{
	"analyzeResult": {
		"content": "Rechnung 2020-4711\nGesamtbetrag in EUR: 178,50",
		"documents": [{
			"fields": {
				"InvoiceId BT-1": {"valueString": "2020-4711", "content": "2020-4711", "confidence": 0.98},
				"InvoiceDate BT-2": {"valueDate": "2020-12-03", "content": "03.12.2020", "confidence": 0.95},
				"InvoiceTotal BT-112": {"valueNumber": 178.5, "content": "178,50"},
				"VendorTaxId BT-31": {"valueString": "DE123456789"},
				"SomethingUnmapped": {"valueString": "ignored"},
				"Unknown BT-999": {"valueString": "ignored"},
				"Items": {
					"valueArray": [
						{"valueObject": {
							"Description BT-153": {"valueString": "Widget"},
							"Quantity BT-129": {"valueNumber": 2},
							"Amount BT-131": {"valueNumber": 100, "content": "100,00"}
						}},
						{"valueObject": {
							"Description BT-153": {"valueString": "Gadget"}
						}}
					]
				}
			}
		}]
	}
}`

func TestLoadMapsFieldsByBTCode(t *testing.T) {
	inv := Load([]byte(sampleAnalysis), registry.Default())

	bt1 := inv.Header["BT-1"]
	require.NotNil(t, bt1)
	assert.Equal(t, "2020-4711", bt1.Value)
	assert.Equal(t, models.StatusOK, bt1.Status)
	assert.Equal(t, models.SourceOCR, bt1.Source)
	require.NotNil(t, bt1.Confidence)
	assert.InDelta(t, 0.98, *bt1.Confidence, 1e-9)
	assert.Equal(t, "analyzeResult.documents[0].fields.InvoiceId BT-1", bt1.Evidence["path"])

	// valueDate fills the value, content keeps the raw OCR region.
	bt2 := inv.Header["BT-2"]
	assert.Equal(t, "2020-12-03", bt2.Value)
	assert.Equal(t, "03.12.2020", bt2.RawValue)

	// Numbers are rendered without trailing zeros; normalization is the
	// rule engine's job.
	assert.Equal(t, "178.5", inv.Totals["BT-112"].Value)

	assert.Equal(t, "DE123456789", inv.Header["BT-31"].Value)
	assert.Equal(t, "Rechnung 2020-4711\nGesamtbetrag in EUR: 178,50", inv.Text)
	assert.NotEmpty(t, inv.Raw)
}

func TestLoadBuildsLines(t *testing.T) {
	inv := Load([]byte(sampleAnalysis), registry.Default())
	require.Len(t, inv.Lines, 2)

	first := inv.Lines[0]
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "Widget", first.Fields["BT-153"].Value)
	assert.Equal(t, "2", first.Fields["BT-129"].Value)
	assert.Equal(t, "100", first.Fields["BT-131"].Value)
	assert.Equal(t, "100,00", first.Fields["BT-131"].RawValue)

	second := inv.Lines[1]
	assert.Equal(t, 2, second.ID)
	assert.Equal(t, "Gadget", second.Fields["BT-153"].Value)
	assert.Equal(t, models.StatusMissing, second.Fields["BT-131"].Status)
}

func TestLoadMalformedInput(t *testing.T) {
	for _, input := range [][]byte{nil, []byte(""), []byte("{broken"), []byte(`{"other": true}`)} {
		inv := Load(input, registry.Default())
		require.NotNil(t, inv)
		assert.Empty(t, inv.Lines)
		assert.True(t, inv.Header["BT-1"].Empty())
	}
}

func TestLoadUnregisteredCodesIgnored(t *testing.T) {
	inv := Load([]byte(sampleAnalysis), registry.Default())
	_, exists := inv.Header["BT-999"]
	assert.False(t, exists)
}
