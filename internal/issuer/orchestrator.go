// Package issuer sequences the invoice issuance pipeline: parse the
// command, append a PENDING ledger row, request authorization, render the
// document, archive it, reconcile the row and notify the user.
//
// Three independent external systems are touched (ledger, tax authority,
// object storage) and the ordering of effects is the whole design:
// nothing is sent to the authority before a PENDING row exists, and once
// the authority grants a CAE no downstream failure may undo the row or
// retry the authorization.
package issuer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"facturabot/internal/command"
	"facturabot/internal/logger"
	"facturabot/internal/normalize"
	"facturabot/pkg/models"
)

// Ledger is the row store. The orchestrator is its sole writer.
type Ledger interface {
	AppendPending(ctx context.Context, row models.LedgerRow) error
	MarkEmitted(ctx context.Context, requestID string, res models.AuthorizationResult, docLink string) error
	MarkError(ctx context.Context, requestID, cause string) error
}

// Authorizer submits one voucher to the tax authority. Never called
// twice for the same request.
type Authorizer interface {
	Authorize(ctx context.Context, req models.InvoiceRequest) (models.AuthorizationResult, error)
}

// Renderer produces the invoice document for an authorized request.
type Renderer interface {
	Render(req models.InvoiceRequest, res models.AuthorizationResult) ([]byte, error)
}

// Archiver stores a rendered document and returns a shareable link.
type Archiver interface {
	Upload(ctx context.Context, name string, content []byte) (string, error)
}

// Notifier reports pipeline milestones back to the chat.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) error
}

// ReceptorLookup resolves an identifier to a display name from a
// reference table.
type ReceptorLookup interface {
	Lookup(ctx context.Context, docNumber string) (string, bool, error)
}

// Options carry fiscal defaults and the per-step timeout budgets.
type Options struct {
	SalesPoint  int
	InvoiceType int
	Concept     models.Concept

	AuthTimeout    time.Duration
	RenderTimeout  time.Duration
	ArchiveTimeout time.Duration
	NotifyTimeout  time.Duration

	// WatchdogAfter is when the interim "still working" notice fires.
	// Observational only; in-flight work is never cancelled by it.
	WatchdogAfter time.Duration
}

// DefaultOptions returns the timeout budgets the pipeline ships with.
func DefaultOptions() Options {
	return Options{
		SalesPoint:     1,
		InvoiceType:    11, // Factura C
		Concept:        models.ConceptProducts,
		AuthTimeout:    20 * time.Second,
		RenderTimeout:  12 * time.Second,
		ArchiveTimeout: 15 * time.Second,
		NotifyTimeout:  12 * time.Second,
		WatchdogAfter:  35 * time.Second,
	}
}

// Orchestrator is the core control component. One instance serves every
// request; per-request state lives on the stack and in the ledger's
// status column, so interleaved pipelines do not share anything mutable.
type Orchestrator struct {
	ledger     Ledger
	authorizer Authorizer
	renderer   Renderer
	archiver   Archiver       // nil when no archive target is configured
	notifier   Notifier
	lookup     ReceptorLookup // nil when no reference table is configured
	opts       Options
	log        zerolog.Logger

	now   func() time.Time
	newID func() string
}

// New wires the orchestrator. archiver and lookup may be nil.
func New(ledger Ledger, authorizer Authorizer, renderer Renderer, archiver Archiver, notifier Notifier, lookup ReceptorLookup, opts Options) *Orchestrator {
	return &Orchestrator{
		ledger:     ledger,
		authorizer: authorizer,
		renderer:   renderer,
		archiver:   archiver,
		notifier:   notifier,
		lookup:     lookup,
		opts:       opts,
		log:        logger.WithComponent("issuer"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// HandleMessage runs the whole pipeline for one chat message. It never
// panics outward: an unforeseen failure marks the PENDING row ERROR
// (best effort) and sends a generic notice, so one bad request cannot
// take the process down.
func (o *Orchestrator) HandleMessage(ctx context.Context, chatID int64, text string) {
	var requestID string

	defer func() {
		if r := recover(); r != nil {
			o.log.Error().
				Interface("panic", r).
				Str("request_id", requestID).
				Int64("chat_id", chatID).
				Msg("Pipeline panicked")
			if requestID != "" {
				o.markErrorBestEffort(requestID, fmt.Sprintf("internal failure: %v", r))
			}
			o.notify(chatID, "Ocurrió un error interno procesando tu solicitud. No se emitió la factura.")
		}
	}()

	if err := o.issue(ctx, chatID, text, &requestID); err != nil {
		o.log.Warn().
			Err(err).
			Str("request_id", requestID).
			Int64("chat_id", chatID).
			Msg("Pipeline finished with error")
	}
}

// Issue runs the pipeline and reports the terminal failure, if any.
// Exposed for the CLI; the webhook path goes through HandleMessage.
func (o *Orchestrator) Issue(ctx context.Context, chatID int64, text string) error {
	var requestID string
	return o.issue(ctx, chatID, text, &requestID)
}

func (o *Orchestrator) issue(ctx context.Context, chatID int64, text string, requestID *string) error {
	started := o.now()

	watchdog := time.AfterFunc(o.opts.WatchdogAfter, func() {
		o.notify(chatID, "Sigo trabajando en tu factura, esto está tardando más de lo habitual...")
	})
	defer watchdog.Stop()

	// RECEIVED -> PARSED
	req, err := command.Parse(text)
	if err != nil {
		o.notify(chatID, "No entendí el pedido. Formato: Nombre | DNI 12345678 | Detalle | 5000 — o palabras clave dni/cuit, precio, cantidad, detalle.")
		return stageErr(ErrMalformedCommand, err)
	}

	req = o.applyDefaults(req)
	req = normalize.NormalizeReceptor(req)
	o.enrichReceptor(ctx, &req)
	*requestID = req.RequestID

	log := o.log.With().Str("request_id", req.RequestID).Int64("chat_id", chatID).Logger()
	log.Info().
		Str("receptor", req.PayerName).
		Str("doc", fmt.Sprintf("%s %s", req.DocCategory, req.DocNumber)).
		Str("total", req.Total.StringFixed(2)).
		Msg("Command parsed")

	o.notify(chatID, fmt.Sprintf("Recibido. Registrando factura por $%s...", req.Total.StringFixed(2)))

	// PARSED -> LOGGED: the PENDING row must exist before the authority
	// hears about the request. No retry on failure: one ledger row at
	// most per request beats risking a double submission.
	if err := o.ledger.AppendPending(ctx, models.NewLedgerRow(req)); err != nil {
		o.notify(chatID, "No pude registrar la factura en la planilla: "+truncateCause(err))
		return stageErr(ErrLedgerWrite, err)
	}

	o.notify(chatID, "Solicitando autorización al fisco...")

	// LOGGED -> AUTHORIZING -> {AUTHORIZED | AUTH_FAILED}. Timeout is a
	// failure, never an automatic retry: the authority does not promise
	// idempotent resubmission.
	authCtx, cancel := context.WithTimeout(ctx, o.opts.AuthTimeout)
	res, err := o.authorizer.Authorize(authCtx, req)
	cancel()
	if err != nil {
		cause := truncateCause(err)
		o.markErrorBestEffort(req.RequestID, cause)
		o.notify(chatID, "El fisco rechazó o no respondió la solicitud: "+cause)
		return stageErr(ErrAuthorization, err)
	}

	log.Info().Str("cae", res.CAE).Int64("voucher", res.VoucherNumber).Msg("Voucher authorized")
	o.notify(chatID, fmt.Sprintf("Factura autorizada. CAE %s, comprobante %04d-%08d.", res.CAE, req.SalesPoint, res.VoucherNumber))

	// AUTHORIZED -> RENDERED (best effort). The invoice legally exists;
	// a render failure must not touch the ledger row.
	docName := fmt.Sprintf("factura_%04d_%08d.pdf", req.SalesPoint, res.VoucherNumber)
	doc, err := o.renderDocument(ctx, req, res)
	if err != nil {
		log.Warn().Err(err).Msg("Document render failed, invoice remains issued")
		o.notify(chatID, "La factura fue emitida pero no pude generar el PDF: "+truncateCause(err))
	} else {
		o.sendDocument(chatID, docName, doc, fmt.Sprintf("Factura %04d-%08d", req.SalesPoint, res.VoucherNumber))
	}

	// RENDERED -> ARCHIVED (optional, best effort).
	var docLink string
	if o.archiver != nil && doc != nil {
		archiveCtx, cancel := context.WithTimeout(ctx, o.opts.ArchiveTimeout)
		docLink, err = o.archiver.Upload(archiveCtx, docName, doc)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Archive upload failed, continuing to reconciliation")
			o.notify(chatID, "No pude archivar la copia en Drive: "+truncateCause(err))
			docLink = ""
		} else if docLink != "" {
			o.notify(chatID, "Copia archivada: "+docLink)
		}
	}

	// -> RECONCILED | RECONCILE_FAILED. The row is matched by request
	// id; a miss means the bookkeeping is incomplete, not the invoice.
	if err := o.ledger.MarkEmitted(ctx, req.RequestID, res, docLink); err != nil {
		log.Error().Err(err).Msg("Reconciliation failed, invoice issued but row not updated")
		o.notify(chatID, fmt.Sprintf("Listo: factura emitida con CAE %s. (No pude actualizar la planilla, revisala manualmente.)", res.CAE))
		return stageErr(ErrReconcile, err)
	}

	log.Info().Dur("elapsed", o.now().Sub(started)).Msg("Pipeline completed")
	o.notify(chatID, fmt.Sprintf("Listo: factura %04d-%08d emitida y registrada. Vencimiento CAE %s.",
		req.SalesPoint, res.VoucherNumber, res.CAEExpiry.Format("02/01/2006")))
	return nil
}

// applyDefaults fills the correlation id, fiscal defaults and derived
// fields the parser leaves open.
func (o *Orchestrator) applyDefaults(req models.InvoiceRequest) models.InvoiceRequest {
	req.RequestID = o.newID()

	if req.IssueDate.IsZero() {
		now := o.now()
		req.IssueDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if req.SalesPoint == 0 {
		req.SalesPoint = o.opts.SalesPoint
	}
	if req.InvoiceType == 0 {
		req.InvoiceType = o.opts.InvoiceType
	}
	if req.Concept == 0 {
		req.Concept = o.opts.Concept
	}
	if req.Quantity.IsZero() {
		req.Quantity = decimal.NewFromInt(1)
	}
	if req.UnitPrice.IsZero() && !req.Quantity.IsZero() {
		req.UnitPrice = normalize.Round2(req.Total.Div(req.Quantity))
	}
	return req
}

// enrichReceptor fills a missing payer name from the reference table.
// Best effort: lookup failures leave the request as parsed.
func (o *Orchestrator) enrichReceptor(ctx context.Context, req *models.InvoiceRequest) {
	if o.lookup == nil || req.PayerName != "" || req.DocNumber == "0" {
		return
	}

	name, found, err := o.lookup.Lookup(ctx, req.DocNumber)
	if err != nil {
		o.log.Warn().Err(err).Str("doc", req.DocNumber).Msg("Receptor lookup failed")
		return
	}
	if found {
		req.PayerName = name
	}
}

// renderDocument bounds the renderer with the render budget. The work is
// not cancelled on timeout, only abandoned.
func (o *Orchestrator) renderDocument(ctx context.Context, req models.InvoiceRequest, res models.AuthorizationResult) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.RenderTimeout)
	defer cancel()

	type rendered struct {
		data []byte
		err  error
	}
	ch := make(chan rendered, 1)
	go func() {
		data, err := o.renderer.Render(req, res)
		ch <- rendered{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, stageErr(ErrRender, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, stageErr(ErrRender, r.err)
		}
		return r.data, nil
	}
}

// notify sends a milestone text under the notify budget. Failures are
// logged, never propagated: a broken chat must not affect the ledger or
// the authority.
func (o *Orchestrator) notify(chatID int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.NotifyTimeout)
	defer cancel()

	if err := o.notifier.SendText(ctx, chatID, text); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send notification")
	}
}

func (o *Orchestrator) sendDocument(chatID int64, name string, data []byte, caption string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.NotifyTimeout)
	defer cancel()

	if err := o.notifier.SendDocument(ctx, chatID, name, data, caption); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send document")
	}
}

// markErrorBestEffort writes the ERROR status outside the request's
// context so an expired budget cannot strand the row in PENDING.
func (o *Orchestrator) markErrorBestEffort(requestID, cause string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.ledger.MarkError(ctx, requestID, cause); err != nil {
		o.log.Error().Err(err).Str("request_id", requestID).Msg("Failed to mark ledger row ERROR")
	}
}
