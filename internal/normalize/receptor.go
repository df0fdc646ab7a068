package normalize

import "facturabot/pkg/models"

// NormalizeReceptor enforces identifier/category consistency on a parsed
// request. A request whose category and value are not jointly valid is
// downgraded to consumidor final with the sentinel value "0", so the
// output is always submittable to the authority. Never fails.
func NormalizeReceptor(req models.InvoiceRequest) models.InvoiceRequest {
	digits := Digits(req.DocNumber)

	switch req.DocCategory {
	case models.DocCUIT:
		if ValidCUIT(digits) {
			req.DocNumber = digits
			return req
		}
	case models.DocDNI:
		if n := len(digits); n >= 7 && n <= 8 {
			req.DocNumber = digits
			return req
		}
	}

	req.DocCategory = models.DocConsumidorFinal
	req.DocNumber = "0"
	return req
}
