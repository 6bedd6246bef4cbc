package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/rbac"
	"github.com/isagip/barangay-dashboard-api/internal/service"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 512
	sseKeepAlive     = 25 * time.Second
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// collectionCapabilities lists the capabilities that may watch a collection.
var collectionCapabilities = map[string][]rbac.Capability{
	models.CollectionReports:       {rbac.CapReportsViewing, rbac.CapReports, rbac.CapDashboard},
	models.CollectionAmbulances:    {rbac.CapAmbulance, rbac.CapDashboard},
	models.CollectionNotifications: {rbac.CapDashboard, rbac.CapReports},
	models.CollectionRegistrations: {rbac.CapRegistration, rbac.CapResidentManagement},
	models.CollectionResidents:     {rbac.CapResidentManagement, rbac.CapRegistration},
	models.CollectionAccounts:      {rbac.CapRegistration},
}

type feedService interface {
	Subscribe(ctx context.Context, collection string, filter models.ReportFilter) (<-chan service.FeedSnapshot, error)
}

type capabilityChecker interface {
	Can(role string, capability rbac.Capability) bool
}

// StreamHandler pushes live collection snapshots over SSE and websockets.
type StreamHandler struct {
	feeds  feedService
	access capabilityChecker
	logger *zap.Logger
}

// NewStreamHandler constructs the handler.
func NewStreamHandler(feeds feedService, access capabilityChecker, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{feeds: feeds, access: access, logger: logger}
}

// authorize resolves the collection and filter or writes the error.
func (h *StreamHandler) authorize(c *gin.Context) (string, models.ReportFilter, bool) {
	collection := c.Param("collection")
	var filter models.ReportFilter
	caps, ok := collectionCapabilities[collection]
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown collection "+collection))
		return "", filter, false
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", filter, false
	}
	allowed := false
	for _, capability := range caps {
		if h.access.Can(claims.Role, capability) {
			allowed = true
			break
		}
	}
	if !allowed {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role cannot watch "+collection))
		return "", filter, false
	}
	if collection == models.CollectionReports {
		var query dto.ReportQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
			return "", filter, false
		}
		parsed, err := service.ParseFilter(query)
		if err != nil {
			response.Error(c, err)
			return "", filter, false
		}
		filter = parsed
	}
	return collection, filter, true
}

// SSE godoc
// @Summary Live collection snapshots (Server-Sent Events)
// @Description Emits a "snapshot" event immediately and after every change.
// @Tags Streams
// @Security BearerAuth
// @Produce text/event-stream
// @Param collection path string true "reports, ambulances, residents, registrations, accounts or notifications"
// @Success 200 {string} string "event stream"
// @Router /stream/{collection} [get]
func (h *StreamHandler) SSE(c *gin.Context) {
	collection, filter, ok := h.authorize(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	snapshots, err := h.feeds.Subscribe(ctx, collection, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.NoStore(c)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, open := <-snapshots:
			if !open {
				return false
			}
			c.SSEvent("snapshot", snap)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
	h.logger.Debug("stream closed", zap.String("collection", collection))
}

// WebSocket godoc
// @Summary Live collection snapshots (websocket)
// @Tags Streams
// @Security BearerAuth
// @Param collection path string true "Collection name"
// @Param access_token query string false "JWT for clients that cannot set headers"
// @Success 101
// @Router /ws/{collection} [get]
func (h *StreamHandler) WebSocket(c *gin.Context) {
	collection, filter, ok := h.authorize(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	snapshots, err := h.feeds.Subscribe(ctx, collection, filter)
	if err != nil {
		cancel()
		response.Error(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancel()
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.logger.Debug("websocket connected", zap.String("collection", collection), zap.String("actor", actor(c)))

	go h.readPump(conn, cancel)
	h.writePump(conn, snapshots, cancel)
}

// readPump drains client frames so pongs and close messages are processed.
func (h *StreamHandler) readPump(conn *gorilla.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if gorilla.IsUnexpectedCloseError(err, gorilla.CloseGoingAway, gorilla.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *gorilla.Conn, snapshots <-chan service.FeedSnapshot, cancel context.CancelFunc) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		_ = conn.Close()
	}()
	for {
		select {
		case snap, open := <-snapshots:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !open {
				_ = conn.WriteMessage(gorilla.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				h.logger.Error("encode snapshot", zap.Error(err))
				continue
			}
			w, err := conn.NextWriter(gorilla.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				_ = w.Close()
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(gorilla.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
