//go:build pact

package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	pact "github.com/pact-foundation/pact-go/v2/provider"
	"github.com/stretchr/testify/require"
)

// Run with: go test -tags pact ./internal/api -run TestPactProvider
// PACT_DIR points at the consumer pacts, which need the pact FFI library.
func TestPactProvider(t *testing.T) {
	pactDir := os.Getenv("PACT_DIR")
	if pactDir == "" {
		pactDir = "../../contracts/pacts"
	}
	absPactDir, err := filepath.Abs(pactDir)
	require.NoError(t, err)

	if _, err := os.Stat(absPactDir); os.IsNotExist(err) {
		t.Skip("No pacts found - run consumer tests first")
	}

	// Every provider state starts from an empty store.
	var current atomic.Pointer[testServer]
	current.Store(newTestServer(t))
	reset := func() *testServer {
		s := newTestServer(t)
		current.Store(s)
		return s
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current.Load().router.ServeHTTP(w, r)
	}))
	defer server.Close()

	verifier := pact.NewVerifier()
	err = verifier.VerifyProvider(t, pact.VerifyRequest{
		Provider:        "reservation-service",
		ProviderBaseURL: server.URL,
		PactDirs:        []string{absPactDir},
		StateHandlers: map[string]pact.StateHandlerFunc{
			"stock is available": func(setup bool, _ pact.ProviderState) (pact.ProviderStateResponse, error) {
				if setup {
					reset().receive(t, "P-1", "W-1", "100")
				}
				return nil, nil
			},
			"a pending quotation exists": func(setup bool, _ pact.ProviderState) (pact.ProviderStateResponse, error) {
				if setup {
					s := reset()
					s.receive(t, "P-1", "W-1", "100")
					w := s.createQuotation(t, "QUO-1", QuotationLineRequest{ProductID: "P-1", WarehouseID: "W-1", Quantity: "10"})
					require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
				}
				return nil, nil
			},
		},
	})
	require.NoError(t, err)
}
