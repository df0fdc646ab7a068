// Package afip submits vouchers to the tax authority's electronic
// invoicing service and returns the granted CAE. The client speaks to an
// HTTP JSON bridge in front of the authority's SOAP service; certificate
// and session handling live behind that bridge, not here.
//
// The authority does not guarantee idempotent resubmission: a request
// that times out may still have been authorized. Callers must treat any
// failure of Authorize as final for the request and never retry it
// automatically.
package afip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"facturabot/internal/logger"
	"facturabot/pkg/models"
)

// Config carries the gateway endpoint and issuer identity.
type Config struct {
	// BaseURL of the authorization bridge, e.g. "https://afip.example.com".
	BaseURL string

	// Token authenticates this merchant against the bridge.
	Token string

	// IssuerCUIT is the merchant's own tax identifier.
	IssuerCUIT string
}

// Client is the authorization gateway. Safe for concurrent use; one
// long-lived instance per process.
type Client struct {
	baseURL    string
	token      string
	issuerCUIT string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient builds the gateway client. The HTTP client carries no
// timeout of its own: every call is bounded by the caller's context.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" || cfg.IssuerCUIT == "" {
		return nil, ErrMissingConfiguration
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		issuerCUIT: cfg.IssuerCUIT,
		httpClient: &http.Client{},
		log:        logger.WithComponent("afip"),
	}, nil
}

// voucherRequest is the wire payload for one voucher authorization.
type voucherRequest struct {
	CantReg      int    `json:"cantReg"`
	PtoVta       int    `json:"ptoVta"`
	CbteTipo     int    `json:"cbteTipo"`
	Concepto     int    `json:"concepto"`
	DocTipo      int    `json:"docTipo"`
	DocNro       string `json:"docNro"`
	CbteFch      string `json:"cbteFch"`
	ImpTotal     string `json:"impTotal"`
	ImpNeto      string `json:"impNeto"`
	ImpIVA       string `json:"impIVA"`
	ImpTrib      string `json:"impTrib"`
	MonID        string `json:"monId"`
	MonCotiz     int    `json:"monCotiz"`
	CondIVARec   int    `json:"condicionIVAReceptorId"`
	FchServDesde string `json:"fchServDesde,omitempty"`
	FchServHasta string `json:"fchServHasta,omitempty"`
	FchVtoPago   string `json:"fchVtoPago,omitempty"`
}

// voucherResponse is the bridge's answer.
type voucherResponse struct {
	Resultado     string `json:"resultado"` // "A" approved, "R" rejected
	CAE           string `json:"cae"`
	CAEFchVto     string `json:"caeFchVto"` // YYYY-MM-DD
	CbteDesde     int64  `json:"cbteDesde"`
	Observaciones []struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"observaciones"`
}

const wireDateLayout = "20060102"

// Authorize submits one voucher and returns the authorization result.
// The request must already be normalized: category and value jointly
// valid, amounts rounded. Timeout comes from ctx; a deadline hit is a
// plain failure, never retried here.
func (c *Client) Authorize(ctx context.Context, req models.InvoiceRequest) (models.AuthorizationResult, error) {
	const op = "Authorize"

	payload := c.buildVoucherRequest(req)

	body, err := json.Marshal(payload)
	if err != nil {
		return models.AuthorizationResult{}, &AuthorizationError{Op: op, Err: err}
	}

	c.log.Info().
		Str("request_id", req.RequestID).
		Int("pto_vta", payload.PtoVta).
		Int("cbte_tipo", payload.CbteTipo).
		Str("imp_total", payload.ImpTotal).
		Msg("Requesting voucher authorization")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fe/vouchers", bytes.NewReader(body))
	if err != nil {
		return models.AuthorizationResult{}, &AuthorizationError{Op: op, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return models.AuthorizationResult{}, &AuthorizationError{Op: op, Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.AuthorizationResult{}, &AuthorizationError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.AuthorizationResult{}, &AuthorizationError{
			Op:          op,
			Err:         fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode),
			Observation: strings.TrimSpace(string(respBody)),
		}
	}

	var vr voucherResponse
	if err := json.Unmarshal(respBody, &vr); err != nil {
		return models.AuthorizationResult{}, &AuthorizationError{Op: op, Err: fmt.Errorf("invalid response: %w", err)}
	}

	if vr.Resultado != "A" || vr.CAE == "" {
		return models.AuthorizationResult{}, &AuthorizationError{
			Op:          op,
			Err:         ErrRejected,
			Observation: joinObservations(vr),
		}
	}

	expiry, err := time.Parse("2006-01-02", vr.CAEFchVto)
	if err != nil {
		// tolerate the compact layout some bridge versions emit
		expiry, err = time.Parse(wireDateLayout, vr.CAEFchVto)
		if err != nil {
			return models.AuthorizationResult{}, &AuthorizationError{Op: op, Err: fmt.Errorf("invalid CAE expiry %q", vr.CAEFchVto)}
		}
	}

	result := models.AuthorizationResult{
		CAE:           vr.CAE,
		CAEExpiry:     expiry,
		VoucherNumber: vr.CbteDesde,
	}

	c.log.Info().
		Str("request_id", req.RequestID).
		Str("cae", result.CAE).
		Int64("voucher", result.VoucherNumber).
		Time("cae_expiry", result.CAEExpiry).
		Msg("Voucher authorized")

	return result, nil
}

// buildVoucherRequest maps a normalized request to the authority's field
// set. The supported invoice type is VAT-exempt, so net equals total and
// the VAT amount is zero. Service-period dates travel only when the
// concept covers services, each defaulting to the issue date.
func (c *Client) buildVoucherRequest(req models.InvoiceRequest) voucherRequest {
	total := req.Total.StringFixed(2)

	payload := voucherRequest{
		CantReg:    1,
		PtoVta:     req.SalesPoint,
		CbteTipo:   req.InvoiceType,
		Concepto:   int(req.Concept),
		DocTipo:    req.DocCategory.AFIPCode(),
		DocNro:     req.DocNumber,
		CbteFch:    req.IssueDate.Format(wireDateLayout),
		ImpTotal:   total,
		ImpNeto:    total,
		ImpIVA:     "0.00",
		ImpTrib:    "0.00",
		MonID:      "PES",
		MonCotiz:   1,
		CondIVARec: receptorVATCondition(req.DocCategory),
	}

	if req.Concept.IncludesServices() {
		payload.FchServDesde = orIssueDate(req.ServiceFrom, req.IssueDate)
		payload.FchServHasta = orIssueDate(req.ServiceTo, req.IssueDate)
		payload.FchVtoPago = req.IssueDate.Format(wireDateLayout)
	}

	return payload
}

// receptorVATCondition maps the identifier category to the coded VAT
// condition of the receptor: registered taxpayers identify with CUIT,
// everyone else is a final consumer.
func receptorVATCondition(c models.DocCategory) int {
	if c == models.DocCUIT {
		return 1 // IVA responsable inscripto
	}
	return 5 // consumidor final
}

func orIssueDate(d, issue time.Time) string {
	if d.IsZero() {
		return issue.Format(wireDateLayout)
	}
	return d.Format(wireDateLayout)
}

func joinObservations(vr voucherResponse) string {
	if len(vr.Observaciones) == 0 {
		return "no observations returned"
	}
	parts := make([]string, 0, len(vr.Observaciones))
	for _, o := range vr.Observaciones {
		parts = append(parts, fmt.Sprintf("[%d] %s", o.Code, o.Msg))
	}
	return strings.Join(parts, "; ")
}
