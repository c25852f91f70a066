// Package runtime wires the pipeline to the real Google services: OAuth
// setup, the Gmail mailbox adapter, and the Sheets tabular adapter.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mbrt/gmailctl/cmd/gmailctl/localcred"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/threadstock/threadstock/internal/mailbox"
)

// NewGmailClient authenticates against Gmail using the credentials stored in
// cfgDir. Scopes are fixed by the stored credentials; the account must grant
// modify access so the pipeline can search, read, and label.
func NewGmailClient(ctx context.Context, cfgDir string) (mailbox.Client, error) {
	svc, err := (localcred.Provider{}).Service(ctx, cfgDir)
	if err != nil {
		return nil, fmt.Errorf("gmail auth: %w", err)
	}
	return NewGmailAdapter(svc), nil
}

// NewSheetsService builds a Sheets client from a service-account key file, or
// from application default credentials when the path is empty.
func NewSheetsService(ctx context.Context, credentialsFile string) (*sheets.Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets auth: %w", err)
	}
	return svc, nil
}

func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
