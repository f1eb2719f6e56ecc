// Package stream implements a Server-Sent Events (SSE) feed of the selection.
// Clients connect via GET /api/v1/stream/selection and receive the full
// selection after every effective change, so every open page stays in sync.
//
// SSE message format:
//
//	event: selection
//	data: {"type":"selection","stream_id":"...","seq":3,"ids":[25544,20580],"count":2,"max":10}
//
// The first message on every connection is the current selection (seq 0).
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval of silence.
package stream

import (
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/star/satexplorer/internal/httputil"
	"github.com/star/satexplorer/internal/metrics"
	"github.com/star/satexplorer/internal/selection"
)

// Config holds streaming limits.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Global stream cap (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Take the client IP from proxy headers.
}

// SelectionSource reports the current selection.
type SelectionSource interface {
	Selected() []int
}

// Handler manages SSE streaming connections.
type Handler struct {
	broadcaster *Broadcaster
	selection   SelectionSource
	config      Config
	limiter     *streamLimiter
	logger      *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a new streaming handler.
func NewHandler(b *Broadcaster, sel SelectionSource, config Config, logger *slog.Logger) *Handler {
	return &Handler{
		broadcaster: b,
		selection:   sel,
		config:      config,
		limiter:     newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Close ends every open stream. Register it with http.Server.RegisterOnShutdown
// so graceful shutdown does not wait on idle streams.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// HandleSelection serves the SSE selection stream.
// GET /api/v1/stream/selection
func (h *Handler) HandleSelection(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"component", "stream",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}
	defer h.limiter.release(ip)

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	id, updates, cancel := h.broadcaster.Subscribe()
	defer cancel()

	metrics.IncStreamsActive()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"component", "stream",
		"stream_id", id,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
	)

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      http.NewResponseController(w),
		id:      id,
		logger:  h.logger,
	}

	defer func() {
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"component", "stream",
			"stream_id", id,
			"remote_ip", ip,
			"messages", c.messagesSent,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's WriteTimeout for this long-lived connection.
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "component", "stream", "error", err)
	}

	// Jittered retry (3-7s) spreads reconnects after a restart.
	if err := c.sendRetry(3000 + rand.Intn(4000)); err != nil {
		metrics.IncStreamErrors("send_error")
		return
	}

	var seq int64
	if err := c.sendEvent("selection", newSelectionMessage(id, seq, h.selection.Selected())); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (initial)", "component", "stream", "stream_id", id, "error", err)
		return
	}

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-h.done:
			return

		case ids := <-updates:
			seq++
			if err := c.sendEvent("selection", newSelectionMessage(id, seq, ids)); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "component", "stream", "stream_id", id, "error", err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "component", "stream", "stream_id", id, "error", err)
				return
			}
		}
	}
}

type selectionMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Seq      int64  `json:"seq"`
	IDs      []int  `json:"ids"`
	Count    int    `json:"count"`
	Max      int    `json:"max"`
}

func newSelectionMessage(streamID string, seq int64, ids []int) selectionMessage {
	if ids == nil {
		ids = []int{}
	}
	return selectionMessage{
		Type:     "selection",
		StreamID: streamID,
		Seq:      seq,
		IDs:      ids,
		Count:    len(ids),
		Max:      selection.MaxSelected,
	}
}
