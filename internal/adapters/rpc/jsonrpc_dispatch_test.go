package rpc

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"veil-chat/go-handoff/internal/api"
	"veil-chat/go-handoff/internal/envelope"
	"veil-chat/go-handoff/internal/exchange"
	"veil-chat/go-handoff/internal/keyring"
	"veil-chat/go-handoff/internal/platform/metrics"
	"veil-chat/go-handoff/internal/securestore"
	"veil-chat/go-handoff/pkg/models"
)

func decodeStateResult(t *testing.T, resp rpcResponse) models.ExchangeState {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-encode result: %v", err)
	}
	var state models.ExchangeState
	if err := json.Unmarshal(raw, &state); err != nil {
		t.Fatalf("decode state result: %v", err)
	}
	return state
}

func TestStartExportDispatch(t *testing.T) {
	fake := newFakeDaemon()
	fake.state = models.ExchangeState{
		Phase:  models.PhaseExporting,
		Format: models.FormatLink,
	}
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"exchange.start_export","params":{"format":"link"}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	state := decodeStateResult(t, resp)
	if state.Phase != models.PhaseExporting {
		t.Fatalf("expected exporting phase, got %q", state.Phase)
	}
	if fake.lastFormat != "link" {
		t.Fatalf("expected format forwarded as link, got %q", fake.lastFormat)
	}
}

func TestStartExportDefaultsFormatWhenParamsOmitted(t *testing.T) {
	fake := newFakeDaemon()
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"exchange.start_export"}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	if fake.lastFormat != "" {
		t.Fatalf("expected empty format forwarded, got %q", fake.lastFormat)
	}
}

func TestStartExportMapsNoCredential(t *testing.T) {
	fake := newFakeDaemon()
	fake.startErr = keyring.ErrNoCredential
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"exchange.start_export","params":{}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != CodeNoCredential {
		t.Fatalf("expected code %d, got %+v", CodeNoCredential, resp.Error)
	}
}

func TestStartExportMapsUnknownFormatToInvalidParams(t *testing.T) {
	fake := newFakeDaemon()
	fake.startErr = envelope.ErrUnknownFormat
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"exchange.start_export","params":{"format":"qr"}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected invalid params -32602, got %+v", resp.Error)
	}
}

func TestSubmitScanRequiresPayload(t *testing.T) {
	s := newTestServer(t, newFakeDaemon(), Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"exchange.submit_scan","params":{}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected invalid params -32602, got %+v", resp.Error)
	}
}

func TestSubmitScanMapsScanNotActive(t *testing.T) {
	fake := newFakeDaemon()
	fake.submitErr = exchange.ErrScanNotActive
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"exchange.submit_scan","params":{"payload":"{}"}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != CodeScanNotActive {
		t.Fatalf("expected code %d, got %+v", CodeScanNotActive, resp.Error)
	}
}

func TestSubmitScanForwardsPayload(t *testing.T) {
	fake := newFakeDaemon()
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"exchange.submit_scan","params":["{\"type\":\"veil-credential\"}"]}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	if fake.lastPayload != `{"type":"veil-credential"}` {
		t.Fatalf("unexpected forwarded payload: %q", fake.lastPayload)
	}
}

func TestReportScanErrorRequiresReason(t *testing.T) {
	s := newTestServer(t, newFakeDaemon(), Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"exchange.report_scan_error","params":{"reason":"  "}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected invalid params -32602, got %+v", resp.Error)
	}
}

func TestReportScanErrorForwardsTrimmedReason(t *testing.T) {
	fake := newFakeDaemon()
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"exchange.report_scan_error","params":{"reason":" camera permission denied "}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	if fake.lastReason != "camera permission denied" {
		t.Fatalf("unexpected forwarded reason: %q", fake.lastReason)
	}
}

func TestExchangeEventsReturnsBacklog(t *testing.T) {
	fake := newFakeDaemon()
	first := fake.hub.Publish(models.ExchangeState{Phase: models.PhaseExporting})
	fake.hub.Publish(models.ExchangeState{Phase: models.PhaseIdle})
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"exchange.events","params":{"from_seq":1}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-encode result: %v", err)
	}
	var result struct {
		Events []exchange.Event `json:"events"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode events result: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("expected 1 event after seq %d, got %d", first.Seq, len(result.Events))
	}
	if result.Events[0].State.Phase != models.PhaseIdle {
		t.Fatalf("expected idle event, got %q", result.Events[0].State.Phase)
	}
}

func TestExchangeEventsRejectsFractionalCursor(t *testing.T) {
	s := newTestServer(t, newFakeDaemon(), Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"exchange.events","params":{"from_seq":1.5}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected invalid params -32602, got %+v", resp.Error)
	}
}

func TestAccountGetReturnsActiveAccount(t *testing.T) {
	fake := newFakeDaemon()
	fake.account = models.Account{ID: "acct_1", Alias: "alice"}
	fake.hasAccount = true
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"account.get","params":{}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-encode result: %v", err)
	}
	var account models.Account
	if err := json.Unmarshal(raw, &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if account.Alias != "alice" {
		t.Fatalf("expected alias alice, got %q", account.Alias)
	}
}

func TestAccountGetMapsMissingAccount(t *testing.T) {
	s := newTestServer(t, newFakeDaemon(), Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"account.get","params":{}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != CodeNoAccount {
		t.Fatalf("expected code %d, got %+v", CodeNoAccount, resp.Error)
	}
}

func TestBackupExportMapsConsentError(t *testing.T) {
	fake := newFakeDaemon()
	fake.backupErr = api.ErrBackupConsentRequired
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"backup.export","params":{"consent":"no","passphrase":"pw"}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != CodeBackupConsent {
		t.Fatalf("expected code %d, got %+v", CodeBackupConsent, resp.Error)
	}
}

func TestBackupExportReturnsBlob(t *testing.T) {
	fake := newFakeDaemon()
	fake.backupBlob = "c2VhbGVk"
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"backup.export","params":{"consent":"I_UNDERSTAND_BACKUP_RISK","passphrase":"pw"}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %#v", resp.Result)
	}
	if result["blob"] != "c2VhbGVk" {
		t.Fatalf("unexpected blob: %#v", result["blob"])
	}
}

func TestBackupRestoreMapsBadSecret(t *testing.T) {
	fake := newFakeDaemon()
	fake.restoreErr = securestore.ErrAuthFailed
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"backup.restore","params":{"consent":"I_UNDERSTAND_BACKUP_RISK","passphrase":"wrong","blob":"AAAA"}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != CodeBackupBadSecret {
		t.Fatalf("expected code %d, got %+v", CodeBackupBadSecret, resp.Error)
	}
}

func TestBackupRestoreMapsMalformedBlob(t *testing.T) {
	fake := newFakeDaemon()
	fake.restoreErr = envelope.ErrMalformedPayload
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"backup.restore","params":{"consent":"I_UNDERSTAND_BACKUP_RISK","passphrase":"pw","blob":"AAAA"}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != CodeBackupBadBlob {
		t.Fatalf("expected code %d, got %+v", CodeBackupBadBlob, resp.Error)
	}
}

func TestBackupRestoreReportsUsername(t *testing.T) {
	fake := newFakeDaemon()
	fake.restoreUser = "alice"
	s := newTestServer(t, fake, Options{})

	rec := rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"backup.restore","params":{"consent":"I_UNDERSTAND_BACKUP_RISK","passphrase":"pw","blob":"AAAA"}}`, "")

	resp := decodeRPCResponse(t, rec)
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %#v", resp.Result)
	}
	if result["restored"] != true || result["username"] != "alice" {
		t.Fatalf("unexpected restore result: %#v", result)
	}
}

func TestRPCRequestsAreCounted(t *testing.T) {
	set := metrics.NewSet()
	s := newTestServer(t, newFakeDaemon(), Options{Metrics: set})

	rpcCall(t, s, `{"jsonrpc":"2.0","id":1,"method":"health_check","params":{}}`, "")
	rpcCall(t, s, `{"jsonrpc":"2.0","id":2,"method":"no.such_method","params":{}}`, "")

	if got := testutil.ToFloat64(set.RPCRequests.WithLabelValues("health_check", "ok")); got != 1 {
		t.Fatalf("expected 1 ok health_check, got %v", got)
	}
	if got := testutil.ToFloat64(set.RPCRequests.WithLabelValues("no.such_method", "-32601")); got != 1 {
		t.Fatalf("expected 1 method-not-found count, got %v", got)
	}
}
