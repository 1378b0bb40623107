package rpc

import (
	"encoding/json"
	"testing"
)

func TestDecodeFormatParam(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "absent", raw: "", want: ""},
		{name: "object", raw: `{"format":"link"}`, want: "link"},
		{name: "object empty", raw: `{}`, want: ""},
		{name: "object trims", raw: `{"format":" raw "}`, want: "raw"},
		{name: "positional", raw: `["raw"]`, want: "raw"},
		{name: "empty array", raw: `[]`, want: ""},
		{name: "too many positional", raw: `["raw","link"]`, wantErr: true},
		{name: "wrong type", raw: `{"format":5}`, wantErr: true},
		{name: "bare string", raw: `"raw"`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeFormatParam(json.RawMessage(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestDecodePayloadParam(t *testing.T) {
	got, err := decodePayloadParam(json.RawMessage(`{"payload":"{\"a\":1}"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"a":1}` {
		t.Fatalf("unexpected payload: %q", got)
	}

	got, err = decodePayloadParam(json.RawMessage(`["scanned"]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "scanned" {
		t.Fatalf("unexpected payload: %q", got)
	}

	if _, err := decodePayloadParam(json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for missing payload")
	}
	if _, err := decodePayloadParam(json.RawMessage(`[]`)); err == nil {
		t.Fatal("expected error for empty positional params")
	}
}

func TestDecodeReasonParam(t *testing.T) {
	got, err := decodeReasonParam(json.RawMessage(`{"reason":" camera denied "}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "camera denied" {
		t.Fatalf("expected trimmed reason, got %q", got)
	}

	if _, err := decodeReasonParam(json.RawMessage(`{"reason":"   "}`)); err == nil {
		t.Fatal("expected error for blank reason")
	}
}

func TestDecodeFromSeqParam(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    int64
		wantErr bool
	}{
		{name: "absent", raw: "", want: 0},
		{name: "object", raw: `{"from_seq":7}`, want: 7},
		{name: "object missing", raw: `{}`, want: 0},
		{name: "positional", raw: `[3]`, want: 3},
		{name: "empty array", raw: `[]`, want: 0},
		{name: "negative", raw: `{"from_seq":-1}`, wantErr: true},
		{name: "fractional", raw: `{"from_seq":2.5}`, wantErr: true},
		{name: "overflow", raw: `{"from_seq":1e300}`, wantErr: true},
		{name: "wrong type", raw: `{"from_seq":"7"}`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeFromSeqParam(json.RawMessage(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestDecodeBackupParams(t *testing.T) {
	consent, passphrase, err := decodeBackupExportParams(json.RawMessage(`{"consent":"I_UNDERSTAND_BACKUP_RISK","passphrase":"pw"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consent != "I_UNDERSTAND_BACKUP_RISK" || passphrase != "pw" {
		t.Fatalf("unexpected export params: %q %q", consent, passphrase)
	}

	consent, passphrase, err = decodeBackupExportParams(json.RawMessage(`["token","secret"]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consent != "token" || passphrase != "secret" {
		t.Fatalf("unexpected positional export params: %q %q", consent, passphrase)
	}

	if _, _, err := decodeBackupExportParams(json.RawMessage(`{"passphrase":"pw"}`)); err == nil {
		t.Fatal("expected error when consent is missing")
	}

	consent, passphrase, blob, err := decodeBackupRestoreParams(json.RawMessage(`{"consent":"c","passphrase":"p","blob":"b"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consent != "c" || passphrase != "p" || blob != "b" {
		t.Fatalf("unexpected restore params: %q %q %q", consent, passphrase, blob)
	}

	if _, _, _, err := decodeBackupRestoreParams(json.RawMessage(`{"consent":"c","passphrase":"p"}`)); err == nil {
		t.Fatal("expected error when blob is missing")
	}
}
