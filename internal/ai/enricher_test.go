package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zugfix/invoice-canon-service/internal/models"
)

type stubProvider struct {
	output string
	err    error
	called bool
}

func (s *stubProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.called = true
	return s.output, s.err
}

func (s *stubProvider) Name() string { return "stub" }

func TestParseEnrichmentPlainJSON(t *testing.T) {
	result, err := parseEnrichment(`{"header": {"BT-1": "2020-4711"}, "totals": {"BT-112": 178.5}, "lines": []}`)
	require.NoError(t, err)
	assert.Equal(t, "2020-4711", result.Header["BT-1"])
}

func TestParseEnrichmentStripsCodeFences(t *testing.T) {
	result, err := parseEnrichment("```json\n{\"header\": {\"BT-5\": \"EUR\"}, \"totals\": {}, \"lines\": []}\n```")
	require.NoError(t, err)
	assert.Equal(t, "EUR", result.Header["BT-5"])
}

func TestParseEnrichmentRejectsGarbage(t *testing.T) {
	_, err := parseEnrichment("I could not find any fields.")
	assert.Error(t, err)
}

func TestBuildPatches(t *testing.T) {
	result, err := parseEnrichment(`{
		"header": {"BT-1": "2020-4711", "BT-9": ""},
		"totals": {"BT-112": 178.50},
		"lines": [
			{"line_id": 1, "bt": {"BT-131": 100.00}},
			{"line_id": 0, "bt": {"BT-131": 50.00}}
		]
	}`)
	require.NoError(t, err)

	patches := buildPatches(result)
	byCode := make(map[string]models.Patch)
	for _, p := range patches {
		byCode[p.Code+string(p.Target.Scope)] = p
	}

	header, ok := byCode["BT-1header"]
	require.True(t, ok)
	assert.Equal(t, "2020-4711", header.NewValue)
	assert.Equal(t, models.StatusCorrected, header.Status)
	assert.Equal(t, models.SourceMultimodal, header.Source)

	// json.Number keeps the literal rendering.
	total, ok := byCode["BT-112totals"]
	require.True(t, ok)
	assert.Equal(t, "178.50", total.NewValue)

	line, ok := byCode["BT-131line"]
	require.True(t, ok)
	assert.Equal(t, 1, line.Target.LineID)

	// Empty values and non-positive line ids contribute nothing.
	_, ok = byCode["BT-9header"]
	assert.False(t, ok)
	assert.Len(t, patches, 3)
}

func TestEnrichNilProvider(t *testing.T) {
	enricher := NewEnricher(nil, 0, nil)
	patches, err := enricher.Enrich(context.Background(), &models.Invoice{Text: "Rechnung"})
	assert.NoError(t, err)
	assert.Nil(t, patches)
}

func TestEnrichEmptyInput(t *testing.T) {
	provider := &stubProvider{}
	enricher := NewEnricher(provider, 0, nil)
	patches, err := enricher.Enrich(context.Background(), &models.Invoice{})
	assert.NoError(t, err)
	assert.Nil(t, patches)
	assert.False(t, provider.called)
}

func TestEnrichProviderError(t *testing.T) {
	provider := &stubProvider{err: errors.New("rate limited")}
	enricher := NewEnricher(provider, 0, nil)
	_, err := enricher.Enrich(context.Background(), &models.Invoice{Text: "Rechnung"})
	assert.Error(t, err)
}

func TestEnrichEndToEnd(t *testing.T) {
	provider := &stubProvider{output: `{"header": {"BT-5": "EUR"}, "totals": {}, "lines": []}`}
	enricher := NewEnricher(provider, 0, nil)

	patches, err := enricher.Enrich(context.Background(), &models.Invoice{Text: "Gesamtbetrag in EUR: 178,50"})
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, "BT-5", patches[0].Code)
	assert.Equal(t, "EUR", patches[0].NewValue)
	assert.True(t, provider.called)
}
