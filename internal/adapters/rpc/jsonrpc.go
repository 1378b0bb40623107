package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

const maxRPCBodyBytes int64 = 1 << 20 // 1 MiB

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.applyCORS(w, r) {
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !s.authorizeRPC(w, r) {
		return
	}
	if !s.limiter.allow(rpcRateLimitKey(r, s.extractRPCToken(r)), time.Now()) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	if s.service == nil {
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32099, Message: "service is not initialized"},
		})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32700, Message: "parse error"},
		})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPCInvalidRequest(w, req.ID)
		return
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCInvalidRequest(w, req.ID)
		return
	}
	started := time.Now()

	result, rpcErr := s.dispatchRPC(req.Method, req.Params)
	code := "ok"
	if rpcErr != nil {
		code = strconv.Itoa(rpcErr.Code)
		s.logger.Warn("rpc failed", "method", req.Method, "rpc_code", rpcErr.Code, "latency_ms", time.Since(started).Milliseconds())
	} else {
		s.logger.Debug("rpc served", "method", req.Method, "latency_ms", time.Since(started).Milliseconds())
	}
	if s.metrics != nil {
		s.metrics.RPCRequests.WithLabelValues(req.Method, code).Inc()
	}

	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	})
}

func (s *Server) dispatchRPC(method string, rawParams json.RawMessage) (any, *rpcError) {
	switch method {
	case "health_check":
		return map[string]string{"status": "ok"}, nil

	case "exchange.start_export":
		format, err := decodeFormatParam(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		state, err := s.service.StartExport(format)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return state, nil

	case "exchange.begin_scan":
		return s.service.BeginScan(), nil

	case "exchange.submit_scan":
		payload, err := decodePayloadParam(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		state, err := s.service.SubmitScan(payload)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return state, nil

	case "exchange.report_scan_error":
		reason, err := decodeReasonParam(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		state, err := s.service.ReportScanError(reason)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return state, nil

	case "exchange.cancel":
		return s.service.CancelExchange(), nil

	case "exchange.reset":
		return s.service.ResetExchange(), nil

	case "exchange.get_state":
		return s.service.ExchangeState(), nil

	case "exchange.events":
		fromSeq, err := decodeFromSeqParam(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		return map[string]any{"events": s.service.EventsSince(fromSeq)}, nil

	case "account.get":
		account, ok := s.service.ActiveAccount()
		if !ok {
			return nil, &rpcError{Code: CodeNoAccount, Message: "no active account"}
		}
		return account, nil

	case "backup.export":
		consent, passphrase, err := decodeBackupExportParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		blob, err := s.service.ExportBackup(consent, passphrase)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]string{"blob": blob}, nil

	case "backup.restore":
		consent, passphrase, blob, err := decodeBackupRestoreParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		username, err := s.service.RestoreBackup(consent, passphrase, blob)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]any{"restored": true, "username": username}, nil
	}

	return nil, &rpcError{Code: -32601, Message: "method not found"}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCInvalidRequest(w http.ResponseWriter, id json.RawMessage) {
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: -32600, Message: "invalid request"},
	})
}
