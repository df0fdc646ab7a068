// Package command turns one free-text chat message into a structured
// invoice request. Two grammars are supported and selected by message
// shape: pipe-delimited fields, and free text tagged with keywords.
package command

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"facturabot/internal/normalize"
	"facturabot/pkg/models"
)

// ErrMalformed is returned when a message cannot be interpreted as an
// invoicing command: too few fields, or a required numeric field that
// does not parse.
var ErrMalformed = errors.New("malformed command")

// minDelimitedFields is the minimum number of pipe-separated fields:
// name, document, description, total.
const minDelimitedFields = 4

// No trailing \b: the keyword may be glued to the digits ("DNI12345678").
var docTokenRe = regexp.MustCompile(`(?i)\b(dni|cuit)`)

// Parse interprets text as an invoicing command. Messages with at least
// three '|' separators use the delimited grammar; everything else goes
// through the keyword grammar. The result is a request skeleton: receptor
// validation, fiscal defaults and the correlation id are applied later.
func Parse(text string) (models.InvoiceRequest, error) {
	if strings.Count(text, "|") >= minDelimitedFields-1 {
		return parseDelimited(text)
	}
	return parseKeywords(text)
}

// parseDelimited handles `Name | DocTypeAndNumber | Description | Total`.
func parseDelimited(text string) (models.InvoiceRequest, error) {
	parts := strings.Split(text, "|")
	if len(parts) < minDelimitedFields {
		return models.InvoiceRequest{}, fmt.Errorf("%w: need %d fields, got %d", ErrMalformed, minDelimitedFields, len(parts))
	}

	fields := make([]string, len(parts))
	for i, p := range parts {
		fields[i] = strings.TrimSpace(p)
	}

	category, number := parseDocField(fields[1])
	if number == "" {
		return models.InvoiceRequest{}, fmt.Errorf("%w: document field %q has no digits", ErrMalformed, fields[1])
	}

	total, err := normalize.ParseAmount(fields[3])
	if err != nil {
		return models.InvoiceRequest{}, fmt.Errorf("%w: total %q: %v", ErrMalformed, fields[3], err)
	}
	total = normalize.Round2(total)

	return models.InvoiceRequest{
		PayerName:   fields[0],
		DocCategory: category,
		DocNumber:   number,
		Description: fields[2],
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   total,
		Total:       total,
	}, nil
}

// parseDocField extracts the identifier category and digit value from a
// field like "DNI 12345678", "cuit 20-40937847-2" or bare "12345678".
// Absent a category keyword the lower-trust DNI category is assumed and
// every digit character of the field forms the value.
func parseDocField(field string) (models.DocCategory, string) {
	category := models.DocDNI
	rest := field

	if m := docTokenRe.FindStringSubmatchIndex(field); m != nil {
		if strings.EqualFold(field[m[2]:m[3]], "cuit") {
			category = models.DocCUIT
		}
		rest = field[m[1]:]
	}

	return category, normalize.Digits(rest)
}

// Keyword grammar tokens. Values follow their keyword; description runs
// until the next recognized keyword.
var keywordSet = map[string]bool{
	"dni": true, "cuit": true,
	"cantidad": true, "precio": true, "unidad": true,
	"descripcion": true, "descripción": true, "detalle": true,
	"fecha": true, "desde": true, "hasta": true,
	"nombre": true,
}

// parseKeywords handles free text such as
// "dni 12345678 cantidad 2 precio 1500,50 detalle sesion kinesiologia".
func parseKeywords(text string) (models.InvoiceRequest, error) {
	tokens := strings.Fields(text)

	req := models.InvoiceRequest{
		DocCategory: models.DocConsumidorFinal,
		DocNumber:   "0",
		Quantity:    decimal.NewFromInt(1),
	}
	var price decimal.Decimal
	havePrice := false
	haveDoc := false

	for i := 0; i < len(tokens); i++ {
		key := strings.ToLower(tokens[i])
		if !keywordSet[key] {
			continue
		}

		switch key {
		case "dni", "cuit":
			value, next := takeValue(tokens, i)
			digits := normalize.Digits(value)
			if digits == "" {
				return models.InvoiceRequest{}, fmt.Errorf("%w: %s without digits", ErrMalformed, key)
			}
			if key == "cuit" {
				req.DocCategory = models.DocCUIT
			} else {
				req.DocCategory = models.DocDNI
			}
			req.DocNumber = digits
			haveDoc = true
			i = next

		case "cantidad":
			value, next := takeValue(tokens, i)
			q, err := normalize.ParseAmount(value)
			if err != nil {
				return models.InvoiceRequest{}, fmt.Errorf("%w: cantidad %q: %v", ErrMalformed, value, err)
			}
			req.Quantity = q
			i = next

		case "precio":
			value, next := takeValue(tokens, i)
			p, err := normalize.ParseAmount(value)
			if err != nil {
				return models.InvoiceRequest{}, fmt.Errorf("%w: precio %q: %v", ErrMalformed, value, err)
			}
			price = p
			havePrice = true
			i = next

		case "unidad":
			value, next := takeValue(tokens, i)
			req.Unit = value
			i = next

		case "descripcion", "descripción", "detalle":
			words, next := takeUntilKeyword(tokens, i)
			req.Description = strings.Join(words, " ")
			i = next

		case "nombre":
			words, next := takeUntilKeyword(tokens, i)
			req.PayerName = strings.Join(words, " ")
			i = next

		case "fecha", "desde", "hasta":
			value, next := takeValue(tokens, i)
			d, err := ParseDate(value)
			if err != nil {
				return models.InvoiceRequest{}, fmt.Errorf("%w: %s %q: %v", ErrMalformed, key, value, err)
			}
			switch key {
			case "fecha":
				req.IssueDate = d
			case "desde":
				req.ServiceFrom = d
			case "hasta":
				req.ServiceTo = d
			}
			i = next
		}
	}

	if !haveDoc {
		return models.InvoiceRequest{}, fmt.Errorf("%w: no dni/cuit token found", ErrMalformed)
	}
	if !havePrice {
		return models.InvoiceRequest{}, fmt.Errorf("%w: no precio token found", ErrMalformed)
	}

	req.UnitPrice = normalize.Round2(price)
	req.Total = normalize.Round2(req.Quantity.Mul(price))
	return req, nil
}

// takeValue returns the token after position i and the index to resume at.
func takeValue(tokens []string, i int) (string, int) {
	if i+1 < len(tokens) {
		return tokens[i+1], i + 1
	}
	return "", i
}

// takeUntilKeyword collects tokens after position i up to the next
// recognized keyword.
func takeUntilKeyword(tokens []string, i int) ([]string, int) {
	var words []string
	j := i + 1
	for ; j < len(tokens); j++ {
		if keywordSet[strings.ToLower(tokens[j])] {
			break
		}
		words = append(words, tokens[j])
	}
	return words, j - 1
}

// ParseDate accepts YYYY-MM-DD or YYYYMMDD.
func ParseDate(s string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, nil
	}
	if d, err := time.Parse("20060102", s); err == nil {
		return d, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
