package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
	"github.com/odyssey-erp/riskdesk/internal/platform/db"
	"github.com/odyssey-erp/riskdesk/internal/store"
	"github.com/odyssey-erp/riskdesk/internal/upstream"
)

// Backend is the data source selected by SOURCE_MODE together with what the
// binaries need to shut it down and act as a service.
type Backend struct {
	Source compliance.Source
	Signer *auth.Signer
	Close  func()
	mode   string
	token  string
}

// OpenBackend connects the configured data source. In postgres mode the
// embedded schema is applied before returning.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.SourceMode {
	case SourceHTTP:
		logger.Info("using upstream compliance api", slog.String("url", cfg.UpstreamURL))
		return &Backend{
			Source: upstream.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout),
			Close:  func() {},
			mode:   SourceHTTP,
			token:  cfg.UpstreamServiceToken,
		}, nil
	case SourcePostgres:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		signer := auth.NewSigner(cfg.JWTSecret, cfg.JWTTokenTTL)
		st := store.New(pool, signer)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("using postgres compliance store")
		return &Backend{Source: st, Signer: signer, Close: pool.Close, mode: SourcePostgres}, nil
	default:
		return nil, fmt.Errorf("unknown source mode %q", cfg.SourceMode)
	}
}

// ServiceCredential returns a credential for background work. Postgres mode
// mints a fresh token per call; http mode relies on UPSTREAM_SERVICE_TOKEN.
func (b *Backend) ServiceCredential() (auth.Credential, error) {
	if b.mode == SourcePostgres && b.Signer != nil {
		return b.Signer.Issue("service:worker", "service")
	}
	if b.token == "" {
		return auth.Credential{}, errors.New("app: UPSTREAM_SERVICE_TOKEN not set")
	}
	return auth.ParseCredential(b.token), nil
}
