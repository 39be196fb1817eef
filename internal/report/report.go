// Package report projects a canonicalized invoice into its output documents:
// the corrections report and the EN16931 basic profile view.
package report

import (
	"github.com/zugfix/invoice-canon-service/internal/models"
)

// Corrections is the audit view of one run: every applied patch in order.
type Corrections struct {
	Entries []models.AuditEntry `json:"entries"`
}

// BuildCorrections collects the invoice's patch log.
func BuildCorrections(inv *models.Invoice) Corrections {
	entries := inv.PatchLog
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	return Corrections{Entries: entries}
}

// EN16931Basic is a flattened projection of the canonical invoice onto the
// basic EN16931 profile. Values are the canonical renderings; empty strings
// mean the term never got a value.
type EN16931Basic struct {
	Profile EN16931Profile      `json:"profile"`
	Header  EN16931Header       `json:"header"`
	Seller  EN16931Party        `json:"seller"`
	Buyer   EN16931Party        `json:"buyer"`
	Lines   []map[string]string `json:"lines"`
	Totals  EN16931Totals       `json:"totals"`
}

type EN16931Profile struct {
	SpecificationIdentifier string `json:"specification_identifier"`
	InvoiceTypeCode         string `json:"invoice_type_code"`
}

type EN16931Header struct {
	InvoiceNumber   string `json:"invoice_number"`
	IssueDate       string `json:"issue_date"`
	Currency        string `json:"currency"`
	NoteSubjectCode string `json:"note_subject_code"`
	PaymentTerms    string `json:"payment_terms"`
}

type EN16931Party struct {
	Name  string `json:"name"`
	VATID string `json:"vat_id,omitempty"`
}

type EN16931Totals struct {
	SumLineNet      string `json:"sum_line_net"`
	TotalWithoutVAT string `json:"total_without_vat"`
	VATTotal        string `json:"vat_total"`
	TotalWithVAT    string `json:"total_with_vat"`
	AmountDue       string `json:"amount_due"`
}

func headerValue(inv *models.Invoice, code string) string {
	if f := inv.Header[code]; f != nil {
		return f.Value
	}
	return ""
}

func totalsValue(inv *models.Invoice, code string) string {
	if f := inv.Totals[code]; f != nil {
		return f.Value
	}
	return ""
}

// BuildEN16931Basic projects the canonical invoice onto the basic profile.
func BuildEN16931Basic(inv *models.Invoice) EN16931Basic {
	lines := make([]map[string]string, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		fields := make(map[string]string, len(line.Fields))
		for code, f := range line.Fields {
			fields[code] = f.Value
		}
		lines = append(lines, fields)
	}

	return EN16931Basic{
		Profile: EN16931Profile{
			SpecificationIdentifier: headerValue(inv, "BT-24"),
			InvoiceTypeCode:         headerValue(inv, "BT-3"),
		},
		Header: EN16931Header{
			InvoiceNumber:   headerValue(inv, "BT-1"),
			IssueDate:       headerValue(inv, "BT-2"),
			Currency:        headerValue(inv, "BT-5"),
			NoteSubjectCode: headerValue(inv, "BT-21"),
			PaymentTerms:    headerValue(inv, "BT-20"),
		},
		Seller: EN16931Party{
			Name:  headerValue(inv, "BT-27"),
			VATID: headerValue(inv, "BT-31"),
		},
		Buyer: EN16931Party{
			Name: headerValue(inv, "BT-44"),
		},
		Lines: lines,
		Totals: EN16931Totals{
			SumLineNet:      totalsValue(inv, "BT-106"),
			TotalWithoutVAT: totalsValue(inv, "BT-109"),
			VATTotal:        totalsValue(inv, "BT-110"),
			TotalWithVAT:    totalsValue(inv, "BT-112"),
			AmountDue:       totalsValue(inv, "BT-115"),
		},
	}
}
