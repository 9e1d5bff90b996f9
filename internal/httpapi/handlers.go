package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/eventlog"
	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
	"github.com/rmacdonaldsmith/meshchat-go/pkg/routingtable"
)

const (
	// DefaultHistoryLimit is the page size when no limit is given
	DefaultHistoryLimit = 100
	// MaxHistoryLimit caps a single history page
	MaxHistoryLimit = 1000

	// streamBuffer is the per-stream event backlog before events are dropped
	streamBuffer = 256

	contentTypeCBOR = "application/cbor"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	node      meshnode.MeshNode
	history   eventlog.EventLog
	routes    routingtable.RoutingTable
	jwtAuth   *JWTAuth
	logger    *zap.Logger
	keepalive time.Duration
	streamSeq atomic.Uint64
}

// NewHandlers creates a new handlers instance
func NewHandlers(node meshnode.MeshNode, history eventlog.EventLog, routes routingtable.RoutingTable, jwtAuth *JWTAuth, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		node:      node,
		history:   history,
		routes:    routes,
		jwtAuth:   jwtAuth,
		logger:    logger,
		keepalive: DefaultKeepaliveInterval,
	}
}

// Auth endpoints

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validateAuthRequest(&req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// clientId-based login, no credential store
	isAdmin := req.ClientID == "admin"

	token, expiresAt, err := h.jwtAuth.GenerateToken(req.ClientID, isAdmin)
	if err != nil {
		writeError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, AuthResponse{
		Token:     token,
		ClientID:  req.ClientID,
		ExpiresAt: expiresAt,
	}, http.StatusOK)
}

// Chat endpoints

// SendMessage handles POST /api/v1/messages
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		writeError(w, "text is required", http.StatusBadRequest)
		return
	}

	recipients := len(h.node.Peers())
	if err := h.node.Send(req.Text); err != nil {
		if errors.Is(err, meshnode.ErrNodeClosed) {
			writeError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		// The message was emitted locally; some peers did not get it.
		h.logger.Warn("broadcast incomplete",
			zap.String("client_id", GetClientID(r)),
			zap.Error(err),
		)
		writeError(w, "Broadcast failed for some peers: "+err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, SendResponse{
		Recipients: recipients,
		Timestamp:  time.Now().UTC(),
	}, http.StatusOK)
}

// ListPeers handles GET /api/v1/peers
func (h *Handlers) ListPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, PeersResponse{
		LocalEndpoint: h.node.LocalEndpoint().String(),
		State:         h.node.State().String(),
		Peers:         endpointStrings(h.node.Peers()),
	}, http.StatusOK)
}

// Connect handles POST /api/v1/peers/connect
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	target, err := meshnode.ParseEndpoint(req.Endpoint)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.node.Connect(r.Context(), target); err != nil {
		writeError(w, err.Error(), connectStatus(err))
		return
	}

	writeJSON(w, ConnectResponse{
		Target: target.String(),
		Peers:  endpointStrings(h.node.Peers()),
	}, http.StatusOK)
}

// History handles GET /api/v1/history?offset={offset}&limit={limit}
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	startOffset, err := h.history.StartOffset(ctx)
	if err != nil {
		writeError(w, "Failed to read history: "+err.Error(), http.StatusInternalServerError)
		return
	}

	offset := startOffset
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || offset < 0 {
			writeError(w, "offset must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(limit, MaxHistoryLimit)
	}

	records, err := h.history.Read(ctx, offset, limit)
	if err != nil {
		writeError(w, "Failed to read history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	endOffset, err := h.history.EndOffset(ctx)
	if err != nil {
		writeError(w, "Failed to read history: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := HistoryResponse{
		Records:     records,
		StartOffset: startOffset,
		EndOffset:   endOffset,
		Count:       len(records),
	}

	if strings.Contains(r.Header.Get("Accept"), contentTypeCBOR) {
		data, err := cbor.Marshal(resp)
		if err != nil {
			writeError(w, "Failed to encode history", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentTypeCBOR)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	writeJSON(w, resp, http.StatusOK)
}

// StreamEvents handles GET /api/v1/events/stream?kind={kind}
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	pattern, err := routingtable.NormalizePattern(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	id := fmt.Sprintf("%s-%d", GetClientID(r), h.streamSeq.Add(1))
	subscriber := routingtable.NewChannelSubscriber(id, routingtable.HTTPStream, streamBuffer)
	if err := h.routes.Subscribe(ctx, pattern, subscriber); err != nil {
		writeError(w, "Failed to subscribe: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer func() {
		// request context is done by now
		_ = h.routes.UnsubscribeAll(context.WithoutCancel(ctx), id)
		_ = subscriber.Close()
		h.logger.Debug("event stream closed",
			zap.String("subscriber", id),
			zap.Int64("dropped", subscriber.Dropped()),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case event, ok := <-subscriber.Events():
			if !ok {
				return
			}
			if err := h.writeSSEMessage(w, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := h.node.GetHealth()

	resp := HealthResponse{
		Healthy:        health.Healthy,
		State:          health.State.String(),
		LocalEndpoint:  health.LocalEndpoint.String(),
		ConnectedPeers: health.ConnectedPeers,
		Message:        health.Message,
	}
	if count, err := h.routes.GetSubscriberCount(r.Context()); err == nil {
		resp.StreamSubscribers = count
	}
	if stats, err := h.history.GetStatistics(r.Context()); err == nil {
		resp.HistoryRetained = stats.Retained
	}

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, resp, status)
}

// Admin endpoints

// AdminSubscriptions handles GET /api/v1/admin/subscriptions
func (h *Handlers) AdminSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.routes.GetAllSubscriptions(r.Context())
	if err != nil {
		writeError(w, "Failed to list subscriptions: "+err.Error(), http.StatusInternalServerError)
		return
	}

	type subscriptionInfo struct {
		SubscriberID string `json:"subscriberId"`
		Type         string `json:"type"`
		Pattern      string `json:"pattern"`
	}
	infos := make([]subscriptionInfo, 0, len(subs))
	for _, sub := range subs {
		infos = append(infos, subscriptionInfo{
			SubscriberID: sub.Subscriber.ID(),
			Type:         sub.Subscriber.Type().String(),
			Pattern:      sub.Pattern,
		})
	}

	writeJSON(w, map[string]interface{}{
		"subscriptions": infos,
		"count":         len(infos),
	}, http.StatusOK)
}

// AdminStats handles GET /api/v1/admin/stats
func (h *Handlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.history.GetStatistics(r.Context())
	if err != nil {
		writeError(w, "Failed to read statistics: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"state":          h.node.State().String(),
		"connectedPeers": len(h.node.Peers()),
		"history":        stats,
	}, http.StatusOK)
}

// Helper methods

// validateJSON validates that the request has valid JSON content-type
func (h *Handlers) validateJSON(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return fmt.Errorf("Content-Type must be application/json")
	}
	return nil
}

// validateAuthRequest validates authentication request fields
func (h *Handlers) validateAuthRequest(req *AuthRequest) error {
	if req.ClientID == "" {
		return fmt.Errorf("clientId is required")
	}
	if len(req.ClientID) < 2 {
		return fmt.Errorf("clientId must be at least 2 characters")
	}
	return nil
}

// writeSSEMessage writes an event as "event: {kind}\ndata: {json}\n\n"
func (h *Handlers) writeSSEMessage(w http.ResponseWriter, event meshnode.Event) error {
	jsonData, err := json.Marshal(EventStreamMessage{
		Kind:      event.Kind.String(),
		Peer:      event.Peer.String(),
		Payload:   event.Payload,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal SSE message: %w", err)
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, jsonData)
	return err
}

// connectStatus maps a join failure to an HTTP status
func connectStatus(err error) int {
	switch {
	case errors.Is(err, meshnode.ErrAlreadyInChat), errors.Is(err, meshnode.ErrDuplicatePeer):
		return http.StatusConflict
	case errors.Is(err, meshnode.ErrSelfConnect), errors.Is(err, meshnode.ErrInvalidEndpoint):
		return http.StatusBadRequest
	case errors.Is(err, meshnode.ErrNodeClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func endpointStrings(endpoints []meshnode.Endpoint) []string {
	out := make([]string, len(endpoints))
	for i, ep := range endpoints {
		out[i] = ep.String()
	}
	return out
}
