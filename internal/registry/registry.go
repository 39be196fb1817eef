package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// Group classifies a business term within the invoice structure.
type Group string

const (
	GroupHeader     Group = "header"
	GroupTotals     Group = "totals"
	GroupLine       Group = "line"
	GroupAllowances Group = "allowances"
	GroupCharges    Group = "charges"
)

// Bucket folds the file-level grouping into the three canonical invoice
// sections: allowance and charge terms live in the totals map.
func (g Group) Bucket() Group {
	switch g {
	case GroupAllowances, GroupCharges:
		return GroupTotals
	default:
		return g
	}
}

// Entry describes one recognized business-term code.
type Entry struct {
	Group Group  `json:"group"`
	Name  string `json:"name"`
}

// Registry maps every recognized BT code to its group and display name.
// Codes outside the registry are ignored everywhere in the service.
type Registry map[string]Entry

// Contains reports whether the code is a recognized business term.
func (r Registry) Contains(code string) bool {
	_, ok := r[code]
	return ok
}

// Bucket returns the canonical section for a code, defaulting to header for
// unknown codes (callers should check Contains first).
func (r Registry) Bucket(code string) Group {
	if e, ok := r[code]; ok {
		return e.Group.Bucket()
	}
	return GroupHeader
}

// Load reads a registry override from a JSON file shaped
// {"BT-1": {"group": "header", "name": "Invoice number"}, ...}.
func Load(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	var r Registry
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}
	return r, nil
}

// Default returns the built-in EN16931/ZUGFeRD business-term registry.
func Default() Registry {
	return Registry{
		"BT-1":   {GroupHeader, "Invoice number"},
		"BT-2":   {GroupHeader, "Invoice issue date"},
		"BT-3":   {GroupHeader, "Invoice type code"},
		"BT-5":   {GroupHeader, "Invoice currency code"},
		"BT-9":   {GroupHeader, "Payment due date"},
		"BT-10":  {GroupHeader, "Buyer reference"},
		"BT-11":  {GroupHeader, "Project reference"},
		"BT-12":  {GroupHeader, "Contract reference"},
		"BT-13":  {GroupHeader, "Purchase order reference"},
		"BT-14":  {GroupHeader, "Seller order reference"},
		"BT-16":  {GroupHeader, "Despatch advice reference"},
		"BT-20":  {GroupHeader, "Payment terms"},
		"BT-21":  {GroupHeader, "Invoice note subject code"},
		"BT-24":  {GroupHeader, "Specification identifier"},
		"BT-25":  {GroupHeader, "Preceding invoice reference"},
		"BT-27":  {GroupHeader, "Seller name"},
		"BT-28":  {GroupHeader, "Seller trading name"},
		"BT-29":  {GroupHeader, "Seller identifier"},
		"BT-30":  {GroupHeader, "Seller legal registration identifier"},
		"BT-31":  {GroupHeader, "Seller VAT identifier"},
		"BT-32":  {GroupHeader, "Seller tax registration identifier"},
		"BT-34":  {GroupHeader, "Seller electronic address"},
		"BT-35":  {GroupHeader, "Seller address line 1"},
		"BT-36":  {GroupHeader, "Seller address line 2"},
		"BT-37":  {GroupHeader, "Seller city"},
		"BT-38":  {GroupHeader, "Seller post code"},
		"BT-39":  {GroupHeader, "Seller country subdivision"},
		"BT-40":  {GroupHeader, "Seller country code"},
		"BT-44":  {GroupHeader, "Buyer name"},
		"BT-46":  {GroupHeader, "Buyer identifier"},
		"BT-47":  {GroupHeader, "Buyer legal registration identifier"},
		"BT-48":  {GroupHeader, "Buyer VAT identifier"},
		"BT-49":  {GroupHeader, "Buyer electronic address"},
		"BT-50":  {GroupHeader, "Buyer address line 1"},
		"BT-51":  {GroupHeader, "Buyer address line 2"},
		"BT-52":  {GroupHeader, "Buyer city"},
		"BT-53":  {GroupHeader, "Buyer post code"},
		"BT-54":  {GroupHeader, "Buyer country subdivision"},
		"BT-55":  {GroupHeader, "Buyer country code"},
		"BT-59":  {GroupHeader, "Payee name"},
		"BT-60":  {GroupHeader, "Payee identifier"},
		"BT-61":  {GroupHeader, "Payee legal registration identifier"},
		"BT-62":  {GroupHeader, "Buyer tax representative name"},
		"BT-63":  {GroupHeader, "Seller tax representative VAT identifier"},
		"BT-64":  {GroupHeader, "Tax representative address line 1"},
		"BT-65":  {GroupHeader, "Tax representative address line 2"},
		"BT-66":  {GroupHeader, "Tax representative city"},
		"BT-67":  {GroupHeader, "Tax representative post code"},
		"BT-68":  {GroupHeader, "Tax representative country subdivision"},
		"BT-69":  {GroupHeader, "Tax representative country code"},
		"BT-70":  {GroupHeader, "Deliver-to party name"},
		"BT-71":  {GroupHeader, "Deliver-to location identifier"},
		"BT-72":  {GroupHeader, "Actual delivery date"},
		"BT-73":  {GroupHeader, "Invoicing period start date"},
		"BT-74":  {GroupHeader, "Invoicing period end date"},
		"BT-75":  {GroupHeader, "Deliver-to address line 1"},
		"BT-76":  {GroupHeader, "Deliver-to address line 2"},
		"BT-77":  {GroupHeader, "Deliver-to city"},
		"BT-78":  {GroupHeader, "Deliver-to post code"},
		"BT-79":  {GroupHeader, "Deliver-to country subdivision"},
		"BT-80":  {GroupHeader, "Deliver-to country code"},
		"BT-81":  {GroupHeader, "Payment means type code"},
		"BT-82":  {GroupHeader, "Payment means text"},
		"BT-83":  {GroupHeader, "Remittance information"},
		"BT-84":  {GroupHeader, "Payment account identifier"},
		"BT-86":  {GroupHeader, "Payment service provider identifier"},
		"BT-89":  {GroupHeader, "Mandate reference identifier"},
		"BT-92":  {GroupAllowances, "Document-level allowance amount"},
		"BT-93":  {GroupAllowances, "Document-level allowance base amount"},
		"BT-94":  {GroupAllowances, "Document-level allowance percentage"},
		"BT-97":  {GroupAllowances, "Document-level allowance reason"},
		"BT-98":  {GroupAllowances, "Document-level allowance reason code"},
		"BT-99":  {GroupCharges, "Document-level charge amount"},
		"BT-100": {GroupCharges, "Document-level charge base amount"},
		"BT-102": {GroupCharges, "Document-level charge VAT category code"},
		"BT-103": {GroupCharges, "Document-level charge VAT rate"},
		"BT-104": {GroupCharges, "Document-level charge reason"},
		"BT-106": {GroupTotals, "Sum of invoice line net amount"},
		"BT-107": {GroupTotals, "Sum of allowances on document level"},
		"BT-108": {GroupTotals, "Sum of charges on document level"},
		"BT-109": {GroupTotals, "Invoice total amount without VAT"},
		"BT-110": {GroupTotals, "Invoice total VAT amount"},
		"BT-112": {GroupTotals, "Invoice total amount with VAT"},
		"BT-113": {GroupTotals, "Paid amount"},
		"BT-115": {GroupTotals, "Amount due for payment"},
		"BT-116": {GroupTotals, "VAT category taxable amount"},
		"BT-126": {GroupLine, "Invoice line identifier"},
		"BT-128": {GroupLine, "Additional referenced document"},
		"BT-129": {GroupLine, "Invoiced quantity"},
		"BT-130": {GroupLine, "Invoiced quantity unit of measure"},
		"BT-131": {GroupLine, "Invoice line net amount"},
		"BT-138": {GroupLine, "Invoice line allowance percentage"},
		"BT-144": {GroupLine, "Invoice line charge reason"},
		"BT-145": {GroupLine, "Invoice line charge reason code"},
		"BT-146": {GroupLine, "Item net price"},
		"BT-147": {GroupLine, "Item price discount"},
		"BT-148": {GroupLine, "Item gross price"},
		"BT-149": {GroupLine, "Item price base quantity"},
		"BT-151": {GroupLine, "Invoiced item VAT category code"},
		"BT-152": {GroupLine, "Invoiced item VAT rate"},
		"BT-153": {GroupLine, "Item name"},
		"BT-154": {GroupLine, "Item description"},
		"BT-157": {GroupLine, "Item standard identifier"},
		"BT-162": {GroupHeader, "Seller address line 3"},
		"BT-163": {GroupHeader, "Buyer address line 3"},
		"BT-164": {GroupHeader, "Tax representative address line 3"},
		"BT-165": {GroupHeader, "Deliver-to address line 3"},
	}
}
