package cmd

import (
	"context"
	"fmt"

	"facturabot/internal/afip"
	"facturabot/internal/archive"
	"facturabot/internal/config"
	"facturabot/internal/issuer"
	"facturabot/internal/ledger"
	"facturabot/internal/lookup"
	"facturabot/internal/render"
	"facturabot/internal/telegram"
)

// buildOrchestrator wires the long-lived gateway clients and the
// orchestrator from configuration. The notifier is passed in because the
// serve and issue commands pick different ones.
func buildOrchestrator(ctx context.Context, cfg *config.Config, notifier issuer.Notifier) (*issuer.Orchestrator, error) {
	ledgerService, err := ledger.New(ctx, cfg.GoogleSheetURL, cfg.GoogleSheetWorksheet)
	if err != nil {
		return nil, fmt.Errorf("create ledger gateway: %w", err)
	}

	authClient, err := afip.NewClient(afip.Config{
		BaseURL:    cfg.AFIPBaseURL,
		Token:      cfg.AFIPToken,
		IssuerCUIT: cfg.IssuerCUIT,
	})
	if err != nil {
		return nil, fmt.Errorf("create authorization gateway: %w", err)
	}

	renderer := render.NewRenderer(render.Issuer{
		Name:    cfg.IssuerName,
		CUIT:    cfg.IssuerCUIT,
		Address: cfg.IssuerAddress,
	})

	var archiver issuer.Archiver
	if cfg.DriveFolderID != "" {
		archiveService, err := archive.New(ctx, cfg.DriveFolderID)
		if err != nil {
			return nil, fmt.Errorf("create archive gateway: %w", err)
		}
		archiver = archiveService
	}

	var receptorLookup issuer.ReceptorLookup
	if cfg.LookupWorksheet != "" {
		lookupService, err := lookup.New(ctx, cfg.GoogleSheetURL, cfg.LookupWorksheet)
		if err != nil {
			return nil, fmt.Errorf("create lookup service: %w", err)
		}
		receptorLookup = lookupService
	}

	opts := issuer.Options{
		SalesPoint:     cfg.SalesPoint,
		InvoiceType:    cfg.InvoiceType,
		Concept:        cfg.Concept,
		AuthTimeout:    cfg.AuthTimeout,
		RenderTimeout:  cfg.RenderTimeout,
		ArchiveTimeout: cfg.ArchiveTimeout,
		NotifyTimeout:  cfg.NotifyTimeout,
		WatchdogAfter:  cfg.WatchdogAfter,
	}

	return issuer.New(ledgerService, authClient, renderer, archiver, notifier, receptorLookup, opts), nil
}

// newNotifier authenticates the chat notifier from configuration.
func newNotifier(cfg *config.Config) (*telegram.Notifier, error) {
	return telegram.New(cfg.TelegramToken)
}
