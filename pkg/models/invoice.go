package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocCategory classifies the receptor's identifier.
type DocCategory string

const (
	// DocDNI is a national identity document number (7-8 digits).
	DocDNI DocCategory = "DNI"

	// DocCUIT is a tax identifier with a mod-11 check digit (11 digits).
	DocCUIT DocCategory = "CUIT"

	// DocConsumidorFinal is the fallback category used when identifier
	// validation fails or no identifier was provided.
	DocConsumidorFinal DocCategory = "CF"
)

// AFIPCode returns the coded identifier type the authority expects.
func (c DocCategory) AFIPCode() int {
	switch c {
	case DocCUIT:
		return 80
	case DocDNI:
		return 96
	default:
		return 99
	}
}

// Concept classifies invoice content and determines whether
// service-period dates are mandatory.
type Concept int

const (
	ConceptProducts Concept = 1
	ConceptServices Concept = 2
	ConceptBoth     Concept = 3
)

// IncludesServices reports whether the concept requires service-period dates.
func (c Concept) IncludesServices() bool {
	return c == ConceptServices || c == ConceptBoth
}

// InvoiceRequest is one structured invoicing command, parsed from a chat
// message and normalized before submission to the authority.
type InvoiceRequest struct {
	// RequestID correlates this request with its ledger row.
	RequestID string

	// IssueDate is the invoice date (zero value means "today", resolved
	// by the orchestrator before the row is appended).
	IssueDate time.Time

	// Receptor
	PayerName   string
	DocCategory DocCategory
	DocNumber   string // digit string; "0" for consumidor final

	// Line item
	Description string
	Quantity    decimal.Decimal // defaults to 1
	UnitPrice   decimal.Decimal // derived from Total when not given
	Unit        string
	Total       decimal.Decimal // non-negative, 2-decimal precision

	// Fiscal parameters
	SalesPoint  int
	InvoiceType int
	Concept     Concept

	// Service period, required when Concept includes services.
	// Zero values default to IssueDate at submission time.
	ServiceFrom time.Time
	ServiceTo   time.Time
}

// AuthorizationResult holds what the tax authority returns for an accepted
// voucher. Immutable once obtained; the authority does not permit
// re-submission of an already-authorized request.
type AuthorizationResult struct {
	CAE           string    // authorization code
	CAEExpiry     time.Time // authorization expiry date
	VoucherNumber int64     // authority-assigned sequence number
}

// RowStatus is the lifecycle state of a ledger row.
type RowStatus string

const (
	StatusPending RowStatus = "PENDING"
	StatusEmitted RowStatus = "EMITTED"
	StatusError   RowStatus = "ERROR"
)

// LedgerRow is the persisted mirror of an InvoiceRequest plus its outcome.
// Created in PENDING state before the authorization call, mutated exactly
// once to EMITTED or ERROR, never deleted.
type LedgerRow struct {
	Date        time.Time
	PayerName   string
	DocCategory DocCategory
	DocNumber   string
	Concept     Concept
	Description string
	Total       decimal.Decimal
	SalesPoint  int
	InvoiceType int

	Status RowStatus

	// Result fields, populated on EMITTED
	CAE           string
	CAEExpiry     time.Time
	VoucherNumber int64

	// ErrorMessage is a truncated human-readable cause, populated on ERROR.
	ErrorMessage string

	// DocumentLink points at the archived invoice document, when available.
	DocumentLink string

	// RequestID is the correlation key used to locate this row on write-back.
	RequestID string
}

// NewLedgerRow builds the PENDING row for a normalized request.
func NewLedgerRow(req InvoiceRequest) LedgerRow {
	return LedgerRow{
		Date:        req.IssueDate,
		PayerName:   req.PayerName,
		DocCategory: req.DocCategory,
		DocNumber:   req.DocNumber,
		Concept:     req.Concept,
		Description: req.Description,
		Total:       req.Total,
		SalesPoint:  req.SalesPoint,
		InvoiceType: req.InvoiceType,
		Status:      StatusPending,
		RequestID:   req.RequestID,
	}
}
