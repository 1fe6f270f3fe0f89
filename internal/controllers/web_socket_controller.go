package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"freight_link/internal/identity"
	"freight_link/internal/middleware"
	"freight_link/internal/tracking"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for development (restrict in production!)
	},
}

// locationMessage is the GPS payload pushed by the driver app. Timestamp
// parsing tolerates devices that omit the timezone suffix.
type locationMessage struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`   // m/s
	Bearing   float64   `json:"bearing"` // degrees
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON handles the timestamp formats seen from mobile clients.
func (m *locationMessage) UnmarshalJSON(data []byte) error {
	type alias locationMessage
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*alias
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ts := aux.Timestamp
	if ts == "" {
		return fmt.Errorf("timestamp required")
	}
	// Assume UTC when the device sends a bare local timestamp.
	if len(ts) > 6 && !strings.HasSuffix(ts, "Z") && !strings.ContainsAny(ts[len(ts)-6:], "+-") {
		ts += "Z"
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", aux.Timestamp, err)
	}
	m.Timestamp = t
	return nil
}

type trackUpdate struct {
	orderID uint
	payload map[string]interface{}
}

// TrackHub fans accepted location samples out to every viewer watching an
// order. Registration is keyed by order id; distinct orders never contend.
type TrackHub struct {
	mu      sync.Mutex
	viewers map[uint]map[*websocket.Conn]bool
	updates chan trackUpdate
}

func NewTrackHub() *TrackHub {
	hub := &TrackHub{
		viewers: make(map[uint]map[*websocket.Conn]bool),
		updates: make(chan trackUpdate, 100),
	}
	go hub.run()
	return hub
}

func (h *TrackHub) run() {
	for upd := range h.updates {
		h.mu.Lock()
		conns := make([]*websocket.Conn, 0, len(h.viewers[upd.orderID]))
		for conn := range h.viewers[upd.orderID] {
			conns = append(conns, conn)
		}
		h.mu.Unlock()

		for _, conn := range conns {
			if err := conn.WriteJSON(upd.payload); err != nil {
				if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					h.Unregister(upd.orderID, conn)
				} else {
					logrus.WithError(err).WithField("order_id", upd.orderID).
						Warn("Failed to push location update to viewer.")
				}
			}
		}
	}
}

// Register adds a viewer connection for an order.
func (h *TrackHub) Register(orderID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.viewers[orderID]; !ok {
		h.viewers[orderID] = make(map[*websocket.Conn]bool)
	}
	h.viewers[orderID][conn] = true
	logrus.WithField("order_id", orderID).Debug("Viewer registered for live tracking.")
}

// Unregister drops a viewer connection.
func (h *TrackHub) Unregister(orderID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.viewers[orderID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.viewers, orderID)
		}
	}
}

// Publish queues an accepted sample for broadcast. Drops under backpressure
// rather than blocking the reporting path.
func (h *TrackHub) Publish(orderID uint, payload map[string]interface{}) {
	select {
	case h.updates <- trackUpdate{orderID: orderID, payload: payload}:
	default:
		logrus.WithField("order_id", orderID).Warn("Tracking broadcast channel full, dropping update.")
	}
}

// WSController serves the live-tracking WebSocket endpoint: the assigned
// driver pushes samples, everyone else watches.
type WSController struct {
	Tracker *tracking.Service
	Hub     *TrackHub
}

// HandleTrackingWebSocket authenticates via a token query parameter (the
// browser WebSocket API cannot set headers), then runs the driver or viewer
// loop for one order.
func (ctl *WSController) HandleTrackingWebSocket(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication token"})
		return
	}
	actor, err := middleware.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	orderID64, err := strconv.ParseUint(c.Query("order_id"), 10, 64)
	if err != nil || orderID64 == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id query parameter required"})
		return
	}
	orderID := uint(orderID64)

	// Current doubles as the access check: it fails with forbidden/not
	// found before any upgrade happens.
	if _, err := ctl.Tracker.Current(c.Request.Context(), actor, orderID); err != nil {
		renderError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade tracking WebSocket.")
		return
	}
	defer conn.Close()

	if actor.Role == identity.RoleDriver {
		ctl.driverLoop(conn, actor, orderID)
		return
	}
	ctl.viewerLoop(conn, actor, orderID)
}

// driverLoop reads location pushes until the connection drops.
func (ctl *WSController) driverLoop(conn *websocket.Conn, actor identity.Actor, orderID uint) {
	logrus.WithFields(logrus.Fields{
		"order_id":  orderID,
		"driver_id": actor.UserID,
	}).Info("Driver tracking WebSocket connected.")

	for {
		messageType, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("order_id", orderID).Error("Driver WebSocket read failed.")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var msg locationMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			conn.WriteJSON(gin.H{"error": "Invalid location data format: " + err.Error()})
			continue
		}
		res, err := ctl.Tracker.Report(context.Background(), actor, orderID, tracking.ReportInput{
			Latitude:   msg.Latitude,
			Longitude:  msg.Longitude,
			CapturedAt: msg.Timestamp,
			Speed:      msg.Speed,
			Bearing:    msg.Bearing,
		})
		if err != nil {
			conn.WriteJSON(gin.H{"error": err.Error()})
			continue
		}
		if !res.Accepted {
			conn.WriteJSON(gin.H{"status": "ignored"})
			continue
		}
		conn.WriteJSON(gin.H{
			"status":             "accepted",
			"order_status":       res.Status,
			"distance_from_last": res.DistanceFromLast,
			"next_stop_distance": res.NextStopDistance,
		})
		ctl.Hub.Publish(orderID, positionPayload(orderID, msg, res))
	}
}

// viewerLoop holds the subscription open; viewers are not expected to send
// anything.
func (ctl *WSController) viewerLoop(conn *websocket.Conn, actor identity.Actor, orderID uint) {
	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"user_id":  actor.UserID,
		"role":     actor.Role,
	}).Info("Viewer tracking WebSocket connected.")

	ctl.Hub.Register(orderID, conn)
	defer ctl.Hub.Unregister(orderID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
