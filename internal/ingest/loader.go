// Package ingest builds the initial canonical invoice from OCR analysis
// output (Azure Document Intelligence layout).
package ingest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/zugfix/invoice-canon-service/internal/canon"
	"github.com/zugfix/invoice-canon-service/internal/models"
	"github.com/zugfix/invoice-canon-service/internal/registry"
)

var btCodeRe = regexp.MustCompile(`BT-\d+`)

type analyzeEnvelope struct {
	AnalyzeResult struct {
		Content   string `json:"content"`
		Documents []struct {
			Fields map[string]analyzeField `json:"fields"`
		} `json:"documents"`
	} `json:"analyzeResult"`
}

type analyzeField struct {
	Content     string        `json:"content"`
	ValueString *string       `json:"valueString"`
	ValueDate   *string       `json:"valueDate"`
	ValueNumber *float64      `json:"valueNumber"`
	Confidence  *float64      `json:"confidence"`
	ValueArray  []analyzeItem `json:"valueArray"`
}

type analyzeItem struct {
	ValueObject map[string]analyzeField `json:"valueObject"`
}

// value returns the typed value with valueString taking precedence over
// valueDate and valueNumber, plus the raw OCR content for that region.
func (f analyzeField) value() (string, string) {
	var value string
	switch {
	case f.ValueString != nil:
		value = *f.ValueString
	case f.ValueDate != nil:
		value = *f.ValueDate
	case f.ValueNumber != nil:
		value = strconv.FormatFloat(*f.ValueNumber, 'f', -1, 64)
	}
	raw := f.Content
	if raw == "" {
		raw = value
	}
	return value, raw
}

// Load maps OCR analysis JSON onto a canonical invoice. Field keys are
// matched by their embedded BT code; keys without one and codes not in the
// registry are ignored. Missing or malformed input yields an empty invoice
// rather than an error: the rule engine treats absent values as missing.
func Load(data []byte, reg registry.Registry) *models.Invoice {
	inv := canon.NewInvoice(reg)

	var envelope analyzeEnvelope
	if len(data) == 0 || json.Unmarshal(data, &envelope) != nil {
		return inv
	}
	inv.Raw = json.RawMessage(data)
	inv.Text = envelope.AnalyzeResult.Content

	if len(envelope.AnalyzeResult.Documents) == 0 {
		return inv
	}
	fields := envelope.AnalyzeResult.Documents[0].Fields

	for key, field := range fields {
		if key == "Items" {
			continue
		}
		code := btCodeRe.FindString(key)
		if code == "" {
			continue
		}
		record := inv.Header[code]
		if record == nil {
			record = inv.Totals[code]
		}
		if record == nil {
			continue
		}
		value, raw := field.value()
		fill(record, value, raw, field.Confidence,
			fmt.Sprintf("analyzeResult.documents[0].fields.%s", key))
	}

	for idx, item := range fields["Items"].ValueArray {
		line := canon.NewLine(reg, idx+1)
		for key, field := range item.ValueObject {
			code := btCodeRe.FindString(key)
			if code == "" {
				continue
			}
			record := line.Fields[code]
			if record == nil {
				continue
			}
			value, raw := field.value()
			fill(record, value, raw, field.Confidence,
				fmt.Sprintf("analyzeResult.documents[0].fields.Items.valueArray[%d].%s", idx, key))
		}
		inv.Lines = append(inv.Lines, line)
	}

	return inv
}

func fill(record *models.FieldValue, value, raw string, confidence *float64, path string) {
	record.Value = value
	record.RawValue = raw
	if value == "" {
		record.Status = models.StatusMissing
	} else {
		record.Status = models.StatusOK
	}
	record.Source = models.SourceOCR
	record.Confidence = confidence
	record.Evidence = map[string]string{"path": path}
}
