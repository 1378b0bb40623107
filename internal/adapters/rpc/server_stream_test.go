package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"veil-chat/go-handoff/pkg/models"
)

func newStreamTestServer(t *testing.T, fake *fakeDaemon) *httptest.Server {
	t.Helper()
	s := newTestServer(t, fake, Options{})
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc/stream", s.HandleRPCStream)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func openStream(t *testing.T, baseURL string, cursor int64) *http.Response {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/rpc/stream?cursor="+strconv.FormatInt(cursor, 10), nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func readStreamEvent(t *testing.T, body io.Reader) (string, int64, models.ExchangePhase) {
	t.Helper()
	line, err := readSSEDataLine(body, 2*time.Second)
	if err != nil {
		t.Fatalf("read sse: %v", err)
	}
	var notification struct {
		Method string `json:"method"`
		Params struct {
			Seq   int64                `json:"seq"`
			State models.ExchangeState `json:"state"`
		} `json:"params"`
	}
	if err := json.Unmarshal([]byte(line), &notification); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	return notification.Method, notification.Params.Seq, notification.Params.State.Phase
}

func readSSEDataLine(body io.Reader, timeout time.Duration) (string, error) {
	result := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data: ") {
				result <- strings.TrimPrefix(line, "data: ")
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
			return
		}
		errCh <- context.Canceled
	}()
	select {
	case out := <-result:
		return out, nil
	case err := <-errCh:
		return "", err
	case <-time.After(timeout):
		return "", context.DeadlineExceeded
	}
}

func TestRPCStreamReplaysFromCursor(t *testing.T) {
	fake := newFakeDaemon()
	first := fake.hub.Publish(models.ExchangeState{Phase: models.PhaseExporting})
	second := fake.hub.Publish(models.ExchangeState{Phase: models.PhaseIdle})
	ts := newStreamTestServer(t, fake)

	resp := openStream(t, ts.URL, first.Seq)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	method, seq, phase := readStreamEvent(t, resp.Body)
	if method != "exchange.state_changed" {
		t.Fatalf("unexpected method: %s", method)
	}
	if seq != second.Seq {
		t.Fatalf("expected seq %d, got %d", second.Seq, seq)
	}
	if phase != models.PhaseIdle {
		t.Fatalf("expected idle phase, got %q", phase)
	}
}

func TestRPCStreamDeliversLiveEvents(t *testing.T) {
	fake := newFakeDaemon()
	ts := newStreamTestServer(t, fake)

	respCh := make(chan *http.Response, 1)
	errCh := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/rpc/stream?cursor=0", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	go func() {
		resp, reqErr := http.DefaultClient.Do(req)
		if reqErr != nil {
			errCh <- reqErr
			return
		}
		respCh <- resp
	}()

	// Headers are not flushed until the first event, so publish before
	// awaiting the response. The cursor-0 replay covers either ordering.
	published := fake.hub.Publish(models.ExchangeState{Phase: models.PhaseAwaitingScan})

	var resp *http.Response
	select {
	case resp = <-respCh:
	case err := <-errCh:
		t.Fatalf("stream request: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream response")
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})

	_, seq, phase := readStreamEvent(t, resp.Body)
	if seq != published.Seq {
		t.Fatalf("expected seq %d, got %d", published.Seq, seq)
	}
	if phase != models.PhaseAwaitingScan {
		t.Fatalf("expected awaiting_scan, got %q", phase)
	}
}

func TestRPCStreamRejectsInvalidCursor(t *testing.T) {
	ts := newStreamTestServer(t, newFakeDaemon())

	resp, err := http.Get(ts.URL + "/rpc/stream?cursor=abc")
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestRPCStreamRequiresToken(t *testing.T) {
	fake := newFakeDaemon()
	s := newTestServer(t, fake, Options{Token: "secret", RequireToken: true})
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc/stream", s.HandleRPCStream)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/rpc/stream?cursor=0")
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.StatusCode)
	}
}
