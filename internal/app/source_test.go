package app

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/upstream"
)

func TestOpenBackendHTTPMode(t *testing.T) {
	cfg := &Config{SourceMode: SourceHTTP, UpstreamURL: "http://api.local/", UpstreamTimeout: time.Second}
	backend, err := OpenBackend(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	defer backend.Close()

	assert.IsType(t, &upstream.Client{}, backend.Source)
	_, err = backend.ServiceCredential()
	assert.Error(t, err)
}

func TestServiceCredentialUsesConfiguredToken(t *testing.T) {
	cfg := &Config{SourceMode: SourceHTTP, UpstreamURL: "http://api.local", UpstreamServiceToken: "svc-token"}
	backend, err := OpenBackend(context.Background(), cfg, slog.Default())
	require.NoError(t, err)

	cred, err := backend.ServiceCredential()
	require.NoError(t, err)
	assert.Equal(t, "svc-token", cred.Token)
}

func TestServiceCredentialMintsInPostgresMode(t *testing.T) {
	backend := &Backend{mode: SourcePostgres, Signer: auth.NewSigner("secret", time.Minute)}
	cred, err := backend.ServiceCredential()
	require.NoError(t, err)
	assert.Equal(t, "service:worker", cred.Subject)
	assert.True(t, cred.Valid())
}

func TestOpenBackendRejectsUnknownMode(t *testing.T) {
	_, err := OpenBackend(context.Background(), &Config{SourceMode: "grpc"}, slog.Default())
	assert.Error(t, err)
}
