package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zugfix/invoice-canon-service/internal/models"
)

const systemPrompt = `You are an invoice extraction and correction assistant for EN16931 / ZUGFeRD / XRechnung.
Your task is to reconcile an invoice document against an extracted JSON and output corrected BT fields.
Return only JSON that matches the schema. Do not include explanations.`

const userPromptTemplate = `Context:
You are part of an invoice correction engine for EN16931 / ZUGFeRD / XRechnung.
Pipeline: read the document text, compare against the extracted JSON, and return corrected BT fields.
Only output fields you can see or derive from the invoice and the given rules. Do not invent data.
If the invoice has line items, always return them in the lines array with line_id starting at 1.
If no line items are visible, return an empty lines array.

Rules:
- Normalize dates to YYYY-MM-DD.
- Normalize numbers to dot decimals (e.g., 1.947,75 -> 1947.75).
- BT-106 = sum of line net amounts (BT-131).
- If BT-131 missing: BT-131 = BT-146 * BT-129 * (1 - BT-138%%).
- BT-107 = sum of BT-92 (invoice-level only).
- BT-108 = sum of BT-99 (invoice-level only).
- BT-109 = BT-106 - BT-107 + BT-108.
- If single VAT rate exists: BT-110 = BT-109 * VAT%%.
- BT-112 = BT-109 + BT-110.
- If immediate payment (Vorkasse/online/etc) and BT-20 has Skonto X%% (Y EUR): BT-92=Y, BT-94=X.
- Only set BT-93/BT-97/BT-98 when BT-92 is present.
- Only set BT-100/BT-102/BT-103/BT-104 when BT-99 is present.
- Only set BT-113/BT-115 when paid amount is explicitly stated OR immediate payment is confirmed by payment means (BT-81).
- If immediate payment: BT-113 = BT-112 - BT-107, BT-115 = BT-112 - BT-113 - BT-107.

Respond with JSON: {"header": {"BT-x": value}, "totals": {"BT-x": value}, "lines": [{"line_id": 1, "bt": {"BT-x": value}}]}

DOCUMENT_TEXT:
%s

EXTRACTED_JSON:
%s`

// enrichmentResult is the JSON shape the model is asked to produce. Values
// come back as strings or numbers depending on the field, so they are decoded
// generically and rendered to strings afterwards.
type enrichmentResult struct {
	Header map[string]any `json:"header"`
	Totals map[string]any `json:"totals"`
	Lines  []struct {
		LineID int            `json:"line_id"`
		BT     map[string]any `json:"bt"`
	} `json:"lines"`
}

// Enricher turns LLM output into canonicalization patches.
type Enricher struct {
	provider Provider
	timeout  time.Duration
	log      *zap.Logger
}

// NewEnricher creates an enricher. A nil provider is valid and produces no
// patches, so callers need no special casing when enrichment is disabled.
func NewEnricher(provider Provider, timeout time.Duration, log *zap.Logger) *Enricher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Enricher{provider: provider, timeout: timeout, log: log}
}

// Enrich asks the provider to reconcile the document text against the raw
// extraction and returns the proposed patches. Enrichment is advisory: a
// disabled provider or empty input yields zero patches and no error.
func (e *Enricher) Enrich(ctx context.Context, inv *models.Invoice) ([]models.Patch, error) {
	if e.provider == nil {
		return nil, nil
	}
	if inv.Text == "" && len(inv.Raw) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw := string(inv.Raw)
	if len(raw) > 200000 {
		raw = raw[:200000]
	}
	text := inv.Text
	if len(text) > 200000 {
		text = text[:200000]
	}
	prompt := fmt.Sprintf(userPromptTemplate, text, raw)

	output, err := e.provider.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("enrichment call failed: %w", err)
	}

	result, err := parseEnrichment(output)
	if err != nil {
		return nil, fmt.Errorf("failed to parse enrichment output: %w", err)
	}

	patches := buildPatches(result)
	e.log.Info("enrichment produced patches",
		zap.String("provider", e.provider.Name()),
		zap.Int("patches", len(patches)))
	return patches, nil
}

func parseEnrichment(output string) (*enrichmentResult, error) {
	// Some models wrap JSON in code fences despite instructions.
	output = strings.TrimSpace(output)
	output = strings.TrimPrefix(output, "```json")
	output = strings.TrimPrefix(output, "```")
	output = strings.TrimSuffix(output, "```")

	var result enrichmentResult
	dec := json.NewDecoder(bytes.NewReader([]byte(output)))
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func buildPatches(result *enrichmentResult) []models.Patch {
	var patches []models.Patch

	appendScope := func(target models.Locator, values map[string]any, ruleID string) {
		for code, value := range values {
			rendered := renderValue(value)
			if rendered == "" {
				continue
			}
			patches = append(patches, models.Patch{
				Target:     target,
				Code:       code,
				NewValue:   rendered,
				Status:     models.StatusCorrected,
				Source:     models.SourceMultimodal,
				Derivation: "LLM enrichment",
				RuleID:     ruleID,
			})
		}
	}

	appendScope(models.Header(), result.Header, "R-LLM-HEADER-001")
	appendScope(models.Totals(), result.Totals, "R-LLM-TOTALS-001")
	for _, line := range result.Lines {
		if line.LineID <= 0 {
			continue
		}
		appendScope(models.OnLine(line.LineID), line.BT, "R-LLM-LINE-001")
	}
	return patches
}

func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
