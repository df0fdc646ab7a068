package render

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"facturabot/internal/normalize"
	"facturabot/pkg/models"
)

// VerificationURLPrefix is the authority's voucher verification portal.
// The QR content is this prefix plus the base64url-encoded payload.
const VerificationURLPrefix = "https://www.afip.gob.ar/fe/qr/?p="

// qrPayload is the compliance payload embedded in the invoice QR code.
// Field set and order are fixed by the authority's QR specification; the
// payload is fully derived from the request and its authorization, with
// no generation timestamp, so re-rendering the same invoice yields
// byte-identical content.
type qrPayload struct {
	Ver        int         `json:"ver"`
	Fecha      string      `json:"fecha"`
	CUIT       json.Number `json:"cuit"`
	PtoVta     int         `json:"ptoVta"`
	TipoCmp    int         `json:"tipoCmp"`
	NroCmp     int64       `json:"nroCmp"`
	Importe    json.Number `json:"importe"`
	Moneda     string      `json:"moneda"`
	Ctz        int         `json:"ctz"`
	TipoDocRec int         `json:"tipoDocRec"`
	NroDocRec  json.Number `json:"nroDocRec"`
	TipoCodAut string      `json:"tipoCodAut"`
	CodAut     json.Number `json:"codAut"`
}

// BuildQRContent returns the full verification URL for an authorized
// invoice: prefix plus base64url (unpadded) JSON payload.
func BuildQRContent(req models.InvoiceRequest, res models.AuthorizationResult, issuerCUIT string) (string, error) {
	const op = "BuildQRContent"

	issuer := normalize.Digits(issuerCUIT)
	if issuer == "" {
		return "", fmt.Errorf("%s: issuer CUIT is empty", op)
	}

	payload := qrPayload{
		Ver:        1,
		Fecha:      req.IssueDate.Format("2006-01-02"),
		CUIT:       json.Number(issuer),
		PtoVta:     req.SalesPoint,
		TipoCmp:    req.InvoiceType,
		NroCmp:     res.VoucherNumber,
		Importe:    json.Number(req.Total.StringFixed(2)),
		Moneda:     "PES",
		Ctz:        1,
		TipoDocRec: req.DocCategory.AFIPCode(),
		NroDocRec:  json.Number(req.DocNumber),
		TipoCodAut: "E",
		CodAut:     json.Number(res.CAE),
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return VerificationURLPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}
