// Package services provides cross-field verification of a canonicalized
// invoice beyond what the rule engine corrects: formal syntax of identifiers
// and plausibility of dates. Findings are reported, never patched.
package services

import (
	"fmt"
	"regexp"
	"time"

	"github.com/zugfix/invoice-canon-service/internal/models"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ValidationWarning represents a non-critical issue
type ValidationWarning struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the response from validation
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	NeedsReview bool                `json:"needs_review"`
	Errors      []ValidationError   `json:"errors"`
	Warnings    []ValidationWarning `json:"warnings"`
}

// vatPatterns holds per-country VAT identifier syntax. The generic pattern
// catches the remaining EU formats loosely.
var vatPatterns = map[string]*regexp.Regexp{
	"DE": regexp.MustCompile(`^DE[0-9]{9}$`),
	"AT": regexp.MustCompile(`^ATU[0-9]{8}$`),
	"FR": regexp.MustCompile(`^FR[0-9A-Z]{2}[0-9]{9}$`),
	"NL": regexp.MustCompile(`^NL[0-9]{9}B[0-9]{2}$`),
	"BE": regexp.MustCompile(`^BE[01][0-9]{9}$`),
	"IT": regexp.MustCompile(`^IT[0-9]{11}$`),
	"ES": regexp.MustCompile(`^ES[0-9A-Z][0-9]{7}[0-9A-Z]$`),
	"PL": regexp.MustCompile(`^PL[0-9]{10}$`),
	"LU": regexp.MustCompile(`^LU[0-9]{8}$`),
	"DK": regexp.MustCompile(`^DK[0-9]{8}$`),
	"CZ": regexp.MustCompile(`^CZ[0-9]{8,10}$`),
}

var genericVATRe = regexp.MustCompile(`^[A-Z]{2}[0-9A-Z]{2,12}$`)
var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)
var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// FormalValidator checks identifier syntax and date plausibility
type FormalValidator struct{}

// NewFormalValidator creates a new validator
func NewFormalValidator() *FormalValidator {
	return &FormalValidator{}
}

// Validate performs all formal checks on a canonicalized invoice
func (v *FormalValidator) Validate(inv *models.Invoice) *ValidationResult {
	result := &ValidationResult{
		Valid:       true,
		NeedsReview: false,
		Errors:      []ValidationError{},
		Warnings:    []ValidationWarning{},
	}

	v.checkVATID(inv, "BT-31", result)
	v.checkVATID(inv, "BT-48", result)
	v.checkDates(inv, result)
	v.checkCurrency(inv, result)
	v.checkPresence(inv, result)

	result.Valid = len(result.Errors) == 0
	result.NeedsReview = !result.Valid || len(result.Warnings) > 0
	return result
}

func headerValue(inv *models.Invoice, code string) string {
	if f := inv.Header[code]; f != nil {
		return f.Value
	}
	return ""
}

func (v *FormalValidator) checkVATID(inv *models.Invoice, field string, result *ValidationResult) {
	value := headerValue(inv, field)
	if value == "" {
		return
	}
	if len(value) < 2 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   field,
			Code:    "VAT_ID_TOO_SHORT",
			Message: fmt.Sprintf("VAT identifier %q is too short", value),
		})
		return
	}
	pattern, known := vatPatterns[value[:2]]
	if known {
		if !pattern.MatchString(value) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Code:    "VAT_ID_SYNTAX",
				Message: fmt.Sprintf("VAT identifier %q does not match the %s format", value, value[:2]),
			})
		}
		return
	}
	if !genericVATRe.MatchString(value) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   field,
			Code:    "VAT_ID_SHAPE",
			Message: fmt.Sprintf("VAT identifier %q has no recognizable country format", value),
		})
	}
}

func (v *FormalValidator) checkDates(inv *models.Invoice, result *ValidationResult) {
	issue := headerValue(inv, "BT-2")
	due := headerValue(inv, "BT-9")

	issueDate, issueOK := parseISO(issue)
	if issue != "" && !issueOK {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "BT-2",
			Code:    "DATE_FORMAT",
			Message: fmt.Sprintf("issue date %q is not a valid ISO date", issue),
		})
	}
	dueDate, dueOK := parseISO(due)
	if due != "" && !dueOK {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "BT-9",
			Code:    "DATE_FORMAT",
			Message: fmt.Sprintf("due date %q is not a valid ISO date", due),
		})
	}
	if issueOK && dueOK && dueDate.Before(issueDate) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "BT-9",
			Code:    "DUE_BEFORE_ISSUE",
			Message: "payment due date precedes the issue date",
		})
	}
}

func (v *FormalValidator) checkCurrency(inv *models.Invoice, result *ValidationResult) {
	currency := headerValue(inv, "BT-5")
	if currency != "" && !currencyRe.MatchString(currency) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "BT-5",
			Code:    "CURRENCY_FORMAT",
			Message: fmt.Sprintf("currency %q is not a three-letter code", currency),
		})
	}
}

func (v *FormalValidator) checkPresence(inv *models.Invoice, result *ValidationResult) {
	for _, field := range []string{"BT-1", "BT-2"} {
		if headerValue(inv, field) == "" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   field,
				Code:    "REQUIRED_MISSING",
				Message: fmt.Sprintf("required term %s has no value after canonicalization", field),
			})
		}
	}
}

func parseISO(value string) (time.Time, bool) {
	if !isoDateRe.MatchString(value) {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", value)
	return t, err == nil
}
