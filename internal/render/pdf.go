// Package render builds the printable invoice artifact: a one-page PDF
// with the authority's compliance QR code. Every figure on the page is
// taken verbatim from the authorized request; nothing is recomputed here,
// so the document can never diverge from what the authority approved.
package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"facturabot/pkg/models"
)

// Issuer identifies the merchant on the invoice header.
type Issuer struct {
	Name    string
	CUIT    string
	Address string
}

// invoiceTypeGlyph returns the letter printed in the header box for the
// voucher type code. Type 11 is "Factura C".
func invoiceTypeGlyph(code int) string {
	switch code {
	case 1, 2, 3:
		return "A"
	case 6, 7, 8:
		return "B"
	case 11, 12, 13:
		return "C"
	default:
		return "?"
	}
}

// dashIfEmpty renders a placeholder for missing optional receptor fields.
func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// PDF renders the invoice document for an authorized request.
func PDF(req models.InvoiceRequest, res models.AuthorizationResult, issuer Issuer) ([]byte, error) {
	const op = "render.PDF"

	qrContent, err := BuildQRContent(req, res, issuer.CUIT)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	qrPNG, err := qrcode.Encode(qrContent, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode QR: %w", op, err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("Factura %s %04d-%08d", invoiceTypeGlyph(req.InvoiceType), req.SalesPoint, res.VoucherNumber), false)
	pdf.AddPage()

	// Header: issuer identity left, voucher identity right, type glyph center
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(80, 8, tr(issuer.Name), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(30, 10, invoiceTypeGlyph(req.InvoiceType), "1", 0, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("FACTURA N° %04d-%08d", req.SalesPoint, res.VoucherNumber)), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(80, 5, tr("CUIT: "+issuer.CUIT), "", 0, "L", false, 0, "")
	pdf.CellFormat(30, 5, "", "", 0, "C", false, 0, "")
	pdf.CellFormat(0, 5, "Fecha: "+req.IssueDate.Format("02/01/2006"), "", 1, "R", false, 0, "")
	pdf.CellFormat(80, 5, tr(dashIfEmpty(issuer.Address)), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	// Receptor block
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Receptor", "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Nombre: "+dashIfEmpty(req.PayerName)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("%s: %s", req.DocCategory, dashIfEmpty(req.DocNumber)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Line-item table: description, quantity, unit price, extended amount
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(90, 7, "Detalle", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 7, "Cantidad", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Precio Unit.", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, "Importe", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(90, 7, tr(dashIfEmpty(req.Description)), "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 7, req.Quantity.String(), "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, req.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, req.Total.StringFixed(2), "1", 1, "R", false, 0, "")

	// Totals block
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(150, 8, "TOTAL $", "", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, req.Total.StringFixed(2), "1", 1, "R", false, 0, "")
	pdf.Ln(8)

	// Authorization block: CAE, expiry, QR
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "CAE: "+res.CAE, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Vencimiento CAE: "+res.CAEExpiry.Format("02/01/2006"), "", 1, "L", false, 0, "")

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 10, pdf.GetY()+4, 40, 40, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%s: failed to write PDF: %w", op, err)
	}

	return buf.Bytes(), nil
}

// Renderer binds an issuer identity so the orchestrator can render
// documents without carrying layout concerns.
type Renderer struct {
	issuer Issuer
}

// NewRenderer builds a renderer for one issuer.
func NewRenderer(issuer Issuer) *Renderer {
	return &Renderer{issuer: issuer}
}

// Render produces the invoice PDF for an authorized request.
func (r *Renderer) Render(req models.InvoiceRequest, res models.AuthorizationResult) ([]byte, error) {
	return PDF(req, res, r.issuer)
}
