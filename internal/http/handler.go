// Package http exposes the chat pipeline over HTTP: a JSON-in,
// SSE-out chat endpoint plus a health check.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/manuelagm/portfolio-assistant/internal/assistant"
)

// User-facing error messages. Internals go to the log, not the client.
const (
	msgNotConfigured    = "the assistant is not configured"
	msgTemporarilyBusy  = "the assistant is temporarily unavailable, please try again in a moment"
	msgGenerationFailed = "the assistant could not generate a response"
)

type Handler struct {
	service        *assistant.Service
	logger         *slog.Logger
	requestTimeout time.Duration

	// validate runs the fail-fast configuration check before any
	// upstream call.
	validate func() error
}

func NewHandler(service *assistant.Service, logger *slog.Logger, requestTimeout time.Duration, validate func() error) *Handler {
	if validate == nil {
		validate = func() error { return nil }
	}
	return &Handler{
		service:        service,
		logger:         logger,
		requestTimeout: requestTimeout,
		validate:       validate,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Chat runs one request through the pipeline and streams the answer.
//
// Failures before the first fragment are reported as a single JSON error
// object; once streaming has begun, headers are committed and failures
// degrade the open stream with an error event instead.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("request_id", requestIDFrom(r.Context()))

	if err := h.validate(); err != nil {
		logger.Error("configuration check failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	var req assistant.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	ctx := r.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	stream, err := h.service.Chat(ctx, req)
	if err != nil {
		h.writeChatError(w, logger, err)
		return
	}

	// The SSE writer is created lazily so a failure on the very first
	// fragment can still be reported as JSON.
	var sw *sseWriter
	for fragment, err := range stream {
		select {
		case <-ctx.Done():
			logger.Info("client disconnected or request timed out", "cause", ctx.Err())
			return
		default:
		}

		if err != nil {
			if sw == nil {
				h.writeChatError(w, logger, err)
			} else {
				logger.Error("stream failed mid-flight", "error", err)
				if werr := sw.WriteError(errorCode(err), msgGenerationFailed); werr != nil {
					logger.Debug("could not deliver error event", "error", werr)
				}
			}
			return
		}

		if sw == nil {
			sw, err = newSSEWriter(w)
			if err != nil {
				logger.Error("sse unsupported", "error", err)
				writeJSONError(w, http.StatusInternalServerError, msgGenerationFailed)
				return
			}
		}
		if err := sw.WriteFragment(fragment); err != nil {
			// Client went away; stop consuming upstream.
			logger.Debug("stopped writing to closed connection", "error", err)
			return
		}
	}

	// Empty but successful completion still closes as a clean stream.
	if sw == nil {
		if _, err := newSSEWriter(w); err != nil {
			writeJSONError(w, http.StatusInternalServerError, msgGenerationFailed)
		}
	}
}

func (h *Handler) writeChatError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, assistant.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, assistant.ErrUpstreamQuota):
		logger.Warn("upstream quota exceeded", "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, msgTemporarilyBusy)
	case errors.Is(err, assistant.ErrConfiguration):
		logger.Error("configuration error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, msgNotConfigured)
	default:
		logger.Error("chat pipeline failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, msgGenerationFailed)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, assistant.ErrUpstreamQuota):
		return "quota_exceeded"
	case errors.Is(err, assistant.ErrUpstreamProtocol):
		return "protocol_error"
	default:
		return "upstream_error"
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
