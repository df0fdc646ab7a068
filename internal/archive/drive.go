// Package archive uploads rendered invoice documents to Google Drive and
// hands back a shareable link. Archiving is best-effort: the orchestrator
// treats any failure here as a soft warning.
package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"facturabot/internal/googleauth"
	"facturabot/internal/logger"
)

// Service uploads documents into one Drive folder.
type Service struct {
	driveService *drive.Service
	folderID     string
	log          zerolog.Logger
}

// New creates the archive service. Credentials come from the environment
// (see package googleauth); folderID is the Drive folder that receives
// the documents.
func New(ctx context.Context, folderID string) (*Service, error) {
	const op = "archive.New"

	if folderID == "" {
		return nil, fmt.Errorf("%s: folder ID is required", op)
	}

	client, err := googleauth.HTTPClient(ctx, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	driveService, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create drive service: %w", op, err)
	}

	return &Service{
		driveService: driveService,
		folderID:     folderID,
		log:          logger.WithComponent("archive"),
	}, nil
}

// Upload stores content under name and returns a link anyone can open.
func (s *Service) Upload(ctx context.Context, name string, content []byte) (string, error) {
	const op = "Upload"

	file := &drive.File{
		Name:     name,
		MimeType: "application/pdf",
		Parents:  []string{s.folderID},
	}

	created, err := s.driveService.Files.Create(file).
		Media(bytes.NewReader(content)).
		Fields("id", "webViewLink").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%s: failed to upload %s: %w", op, name, err)
	}

	// Link sharing; the document itself is already stored if this fails.
	_, err = s.driveService.Permissions.Create(created.Id, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	if err != nil {
		s.log.Warn().Err(err).Str("file_id", created.Id).Msg("Failed to set link sharing on archived document")
	}

	s.log.Info().
		Str("file_id", created.Id).
		Str("name", name).
		Int("size_bytes", len(content)).
		Msg("Archived invoice document")

	return created.WebViewLink, nil
}
