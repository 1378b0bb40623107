package api

import (
	"veil-chat/go-handoff/internal/exchange"
	"veil-chat/go-handoff/internal/platform/metrics"
	"veil-chat/go-handoff/pkg/models"
)

// watchTransitions feeds controller transitions into the telemetry
// counters. It subscribes like any other hub consumer so the controller
// stays free of metrics knowledge.
func watchTransitions(hub *exchange.Hub, set *metrics.Set) func() {
	_, ch, cancel := hub.Subscribe(0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range ch {
			recordTransition(set, evt.State)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func recordTransition(set *metrics.Set, state models.ExchangeState) {
	switch state.Phase {
	case models.PhaseExporting:
		set.Exports.WithLabelValues(string(state.Format)).Inc()
	case models.PhaseAuthenticated:
		set.Imports.WithLabelValues("authenticated").Inc()
	case models.PhaseFailed:
		if state.Failure == nil {
			return
		}
		kind := state.Failure.Kind
		switch kind {
		case models.FailureMalformedPayload,
			models.FailureWrongType,
			models.FailureUnsupportedVersion,
			models.FailureIncompleteKeypair,
			models.FailureScanError:
			set.Imports.WithLabelValues(string(kind)).Inc()
			set.ScanRejected.Inc()
		case models.FailureAuthenticationRejected:
			set.Imports.WithLabelValues(string(kind)).Inc()
		}
	}
}
