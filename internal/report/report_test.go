package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zugfix/invoice-canon-service/internal/canon"
	"github.com/zugfix/invoice-canon-service/internal/models"
	"github.com/zugfix/invoice-canon-service/internal/registry"
)

func builtInvoice() *models.Invoice {
	reg := registry.Default()
	inv := canon.NewInvoice(reg)
	set := func(f *models.FieldValue, v string) {
		f.Value = v
		f.Status = models.StatusOK
	}
	set(inv.Header["BT-1"], "2020-4711")
	set(inv.Header["BT-2"], "2020-12-03")
	set(inv.Header["BT-5"], "EUR")
	set(inv.Header["BT-27"], "Muster GmbH")
	set(inv.Header["BT-31"], "DE123456789")
	set(inv.Header["BT-44"], "Beispiel AG")
	set(inv.Totals["BT-106"], "150.00")
	set(inv.Totals["BT-109"], "150.00")
	set(inv.Totals["BT-110"], "28.50")
	set(inv.Totals["BT-112"], "178.50")
	set(inv.Totals["BT-115"], "178.50")

	line := canon.NewLine(reg, 1)
	set(line.Fields["BT-153"], "Widget")
	set(line.Fields["BT-131"], "150.00")
	inv.Lines = append(inv.Lines, line)
	return inv
}

func TestBuildEN16931Basic(t *testing.T) {
	out := BuildEN16931Basic(builtInvoice())

	assert.Equal(t, "2020-4711", out.Header.InvoiceNumber)
	assert.Equal(t, "2020-12-03", out.Header.IssueDate)
	assert.Equal(t, "EUR", out.Header.Currency)
	assert.Equal(t, "Muster GmbH", out.Seller.Name)
	assert.Equal(t, "DE123456789", out.Seller.VATID)
	assert.Equal(t, "Beispiel AG", out.Buyer.Name)

	assert.Equal(t, "150.00", out.Totals.SumLineNet)
	assert.Equal(t, "178.50", out.Totals.TotalWithVAT)
	assert.Equal(t, "178.50", out.Totals.AmountDue)

	require.Len(t, out.Lines, 1)
	assert.Equal(t, "Widget", out.Lines[0]["BT-153"])
	assert.Equal(t, "150.00", out.Lines[0]["BT-131"])
}

func TestBuildCorrections(t *testing.T) {
	inv := builtInvoice()
	canon.Apply(inv, models.Patch{
		Target:   models.Header(),
		Code:     "BT-2",
		NewValue: "2020-12-04",
		Status:   models.StatusCorrected,
		Source:   models.SourceRule,
		RuleID:   "R-HDR-DATE-001",
	})

	corrections := BuildCorrections(inv)
	require.Len(t, corrections.Entries, 1)
	assert.Equal(t, "BT-2", corrections.Entries[0].Code)
	assert.Equal(t, "2020-12-03", corrections.Entries[0].OldValue)
	assert.Equal(t, "2020-12-04", corrections.Entries[0].NewValue)
}

func TestBuildCorrectionsEmptyLogIsNotNil(t *testing.T) {
	inv := &models.Invoice{}
	corrections := BuildCorrections(inv)
	assert.NotNil(t, corrections.Entries)
	assert.Empty(t, corrections.Entries)
}
