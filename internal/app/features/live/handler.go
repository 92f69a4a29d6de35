// internal/app/features/live/handler.go

// Package live hosts the websocket endpoint behind the connection
// registry. A connected client is registered under its principal identity
// for direct notices, and may join pickup rooms it is entitled to watch
// for ETA and completion traffic.
package live

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dalemusser/pickuphub/internal/app/core/registry"
	linkstore "github.com/dalemusser/pickuphub/internal/app/store/links"
	pickupstore "github.com/dalemusser/pickuphub/internal/app/store/pickups"
	"github.com/dalemusser/pickuphub/internal/app/system/authz"
	"github.com/dalemusser/pickuphub/internal/app/system/timeouts"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler upgrades requests to websockets and runs their read loop.
type Handler struct {
	reg            *registry.Registry
	pickups        *pickupstore.Store
	links          *linkstore.Store
	allowedOrigins []string
	log            *zap.Logger
}

func NewHandler(reg *registry.Registry, pickups *pickupstore.Store, links *linkstore.Store, allowedOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		reg:            reg,
		pickups:        pickups,
		links:          links,
		allowedOrigins: allowedOrigins,
		log:            logger,
	}
}

// clientMessage is what connected clients send: room membership changes and
// ad-hoc room chatter during an active pickup.
type clientMessage struct {
	Action  string         `json:"action"` // join | leave | say
	Room    string         `json:"room"`
	Type    string         `json:"type,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Serve handles GET /live. Browsers cannot set an Authorization header on a
// websocket upgrade, so the token middleware also accepts ?token=.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	role, _, userID, ok := authz.PrincipalCtx(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	institutionID := authz.InstitutionID(r)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.allowedOrigins,
	})
	if err != nil {
		h.log.Debug("websocket accept failed", zap.Error(err))
		return
	}

	conn := newWSConn(ws)
	h.reg.Connect(userID.Hex(), conn)
	h.log.Info("live connection opened",
		zap.String("conn_id", conn.ID()),
		zap.String("user_id", userID.Hex()))

	defer func() {
		h.reg.Disconnect(conn.ID())
		_ = ws.CloseNow()
		h.log.Info("live connection closed", zap.String("conn_id", conn.ID()))
	}()

	ctx := r.Context()
	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			if !errors.Is(err, context.Canceled) {
				h.log.Debug("live read ended", zap.String("conn_id", conn.ID()), zap.Error(err))
			}
			return
		}
		h.handleMessage(ctx, conn, msg, role, userID, institutionID)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *wsConn, msg clientMessage, role string, userID, institutionID primitive.ObjectID) {
	switch msg.Action {
	case "join":
		if !h.mayWatchRoom(ctx, msg.Room, role, userID, institutionID) {
			h.send(ctx, conn, registry.Message{
				Type:    "error",
				Payload: map[string]any{"error": "not entitled to that room"},
			})
			return
		}
		h.reg.Join(conn.ID(), msg.Room)
		h.send(ctx, conn, registry.Message{Type: "joined", Room: msg.Room})
	case "leave":
		h.reg.Leave(conn.ID(), msg.Room)
	case "say":
		// Room chatter (e.g. "waiting at the gate") relayed verbatim to
		// everyone in the room, sender included.
		if !h.mayWatchRoom(ctx, msg.Room, role, userID, institutionID) {
			return
		}
		payload := msg.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		payload["sender_id"] = userID.Hex()
		h.reg.BroadcastToRoom(ctx, msg.Room, registry.Message{Type: msg.Type, Payload: payload})
	default:
		h.send(ctx, conn, registry.Message{
			Type:    "error",
			Payload: map[string]any{"error": "unknown action"},
		})
	}
}

// mayWatchRoom checks the caller's entitlement to a pickup room: staff of
// the pickup's institution, or any guardian bound to its student.
func (h *Handler) mayWatchRoom(ctx context.Context, room, role string, userID, institutionID primitive.ObjectID) bool {
	pickupID, err := primitive.ObjectIDFromHex(room)
	if err != nil {
		return false
	}

	ctx, cancel := timeouts.Within(ctx, timeouts.Short)
	defer cancel()

	ev, err := h.pickups.GetByID(ctx, pickupID)
	if err != nil {
		return false
	}
	if models.IsStaffRole(role) {
		return ev.InstitutionID == institutionID
	}
	bound, err := h.links.Exists(ctx, ev.StudentID, userID)
	if err != nil {
		return false
	}
	return bound
}

func (h *Handler) send(ctx context.Context, conn *wsConn, msg registry.Message) {
	if err := conn.Send(ctx, msg); err != nil {
		h.log.Debug("live send failed", zap.String("conn_id", conn.ID()), zap.Error(err))
	}
}
