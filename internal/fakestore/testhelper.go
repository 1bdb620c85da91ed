package fakestore

import (
	"net/http/httptest"
	"testing"
)

// TestServer starts the default storefront on a loopback port. The server
// is closed when the test completes.
func TestServer(t testing.TB) (*Server, *httptest.Server) {
	t.Helper()

	store, err := New(nil)
	if err != nil {
		t.Fatalf("failed to build fake storefront: %v", err)
	}
	ts := httptest.NewServer(store)
	t.Cleanup(ts.Close)
	return store, ts
}
