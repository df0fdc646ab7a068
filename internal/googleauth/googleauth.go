// Package googleauth builds authenticated HTTP clients for the Google
// APIs (Sheets, Drive) from service-account credentials supplied via the
// environment.
package googleauth

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
)

// HTTPClient returns an HTTP client authorized for the given scopes.
// Credentials are read from GOOGLE_APPLICATION_CREDENTIALS (a file path)
// or GOOGLE_CREDENTIALS (inline JSON), in that order.
func HTTPClient(ctx context.Context, scopes ...string) (*http.Client, error) {
	const op = "googleauth.HTTPClient"

	var creds []byte
	var err error
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	return config.Client(ctx), nil
}
