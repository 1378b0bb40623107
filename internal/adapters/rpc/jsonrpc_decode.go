package rpc

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
)

var errInvalidParams = errors.New("invalid params")

// Params are accepted in object form, or positionally as a one-element
// array for the single-argument methods, mirroring how JSON-RPC clients
// commonly send them.

func decodeFormatParam(raw json.RawMessage) (string, error) {
	// Absent params mean the default format.
	if len(raw) == 0 {
		return "", nil
	}
	var obj struct {
		Format string `json:"format"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Format), nil
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		switch len(arr) {
		case 0:
			return "", nil
		case 1:
			return strings.TrimSpace(arr[0]), nil
		}
	}
	return "", errInvalidParams
}

func decodePayloadParam(raw json.RawMessage) (string, error) {
	var obj struct {
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Payload != "" {
		return obj.Payload, nil
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 1 && arr[0] != "" {
		return arr[0], nil
	}
	return "", errInvalidParams
}

func decodeReasonParam(raw json.RawMessage) (string, error) {
	var obj struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Reason) != "" {
		return strings.TrimSpace(obj.Reason), nil
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 1 && strings.TrimSpace(arr[0]) != "" {
		return strings.TrimSpace(arr[0]), nil
	}
	return "", errInvalidParams
}

func decodeFromSeqParam(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var obj struct {
		FromSeq *float64 `json:"from_seq"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.FromSeq == nil {
			return 0, nil
		}
		return decodeStrictSeq(*obj.FromSeq)
	}
	var arr []float64
	if err := json.Unmarshal(raw, &arr); err == nil {
		switch len(arr) {
		case 0:
			return 0, nil
		case 1:
			return decodeStrictSeq(arr[0])
		}
	}
	return 0, errInvalidParams
}

func decodeStrictSeq(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || math.Trunc(v) != v || v > math.MaxInt64 {
		return 0, errInvalidParams
	}
	return int64(v), nil
}

func decodeBackupExportParams(raw json.RawMessage) (string, string, error) {
	var obj struct {
		Consent    string `json:"consent"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Consent != "" {
		return obj.Consent, obj.Passphrase, nil
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 2 && arr[0] != "" {
		return arr[0], arr[1], nil
	}
	return "", "", errInvalidParams
}

func decodeBackupRestoreParams(raw json.RawMessage) (string, string, string, error) {
	var obj struct {
		Consent    string `json:"consent"`
		Passphrase string `json:"passphrase"`
		Blob       string `json:"blob"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Consent != "" && obj.Blob != "" {
		return obj.Consent, obj.Passphrase, obj.Blob, nil
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 3 && arr[0] != "" && arr[2] != "" {
		return arr[0], arr[1], arr[2], nil
	}
	return "", "", "", errInvalidParams
}
