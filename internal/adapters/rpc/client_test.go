package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"veil-chat/go-handoff/internal/keyring"
	"veil-chat/go-handoff/pkg/models"
)

func newClientTestPair(t *testing.T, fake *fakeDaemon, token string) *Client {
	t.Helper()
	s := newTestServer(t, fake, Options{Token: token, RequireToken: token != ""})
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", s.HandleRPC)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return NewClient(strings.TrimPrefix(ts.URL, "http://"), token)
}

func TestClientHealthRoundTrip(t *testing.T) {
	client := newClientTestPair(t, newFakeDaemon(), "secret")

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestClientStartExportForwardsFormat(t *testing.T) {
	fake := newFakeDaemon()
	fake.state = models.ExchangeState{Phase: models.PhaseExporting, Format: models.FormatLink}
	client := newClientTestPair(t, fake, "")

	state, err := client.StartExport(context.Background(), "link")
	if err != nil {
		t.Fatalf("start export: %v", err)
	}
	if state.Phase != models.PhaseExporting {
		t.Fatalf("expected exporting phase, got %q", state.Phase)
	}
	if fake.lastFormat != "link" {
		t.Fatalf("expected forwarded format link, got %q", fake.lastFormat)
	}
}

func TestClientSurfacesRPCErrorCode(t *testing.T) {
	fake := newFakeDaemon()
	fake.startErr = keyring.ErrNoCredential
	client := newClientTestPair(t, fake, "")

	_, err := client.StartExport(context.Background(), "raw")
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected CallError, got %v", err)
	}
	if callErr.Code != CodeNoCredential {
		t.Fatalf("expected code %d, got %d", CodeNoCredential, callErr.Code)
	}
}

func TestClientRejectedWithoutToken(t *testing.T) {
	client := newClientTestPair(t, newFakeDaemon(), "secret")
	client.Token = ""

	err := client.Health(context.Background())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 status error, got %v", err)
	}
}

func TestClientEventsDecodeBacklog(t *testing.T) {
	fake := newFakeDaemon()
	fake.hub.Publish(models.ExchangeState{Phase: models.PhaseExporting})
	fake.hub.Publish(models.ExchangeState{Phase: models.PhaseIdle})
	client := newClientTestPair(t, fake, "")

	events, err := client.Events(context.Background(), 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].State.Phase != models.PhaseIdle {
		t.Fatalf("expected idle tail event, got %q", events[1].State.Phase)
	}
}

func TestClientBackupRoundTrip(t *testing.T) {
	fake := newFakeDaemon()
	fake.backupBlob = "c2VhbGVk"
	fake.restoreUser = "alice"
	client := newClientTestPair(t, fake, "")

	blob, err := client.BackupExport(context.Background(), "I_UNDERSTAND_BACKUP_RISK", "pw")
	if err != nil {
		t.Fatalf("backup export: %v", err)
	}
	if blob != "c2VhbGVk" {
		t.Fatalf("unexpected blob: %q", blob)
	}

	username, err := client.BackupRestore(context.Background(), "I_UNDERSTAND_BACKUP_RISK", "pw", blob)
	if err != nil {
		t.Fatalf("backup restore: %v", err)
	}
	if username != "alice" {
		t.Fatalf("unexpected username: %q", username)
	}
}
