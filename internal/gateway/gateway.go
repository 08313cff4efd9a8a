// Package gateway is the signaling side of the server: it owns the
// WebSocket control channel, translates client events into call ledger
// and registry operations, and routes the resulting events to the right
// peer's connection.
//
// Delivery is best effort: when the peer for an event has no live
// control session the event is simply skipped, never queued or retried.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatterbox-server/chatterbox/internal/call"
	"github.com/chatterbox-server/chatterbox/internal/database"
	"github.com/chatterbox-server/chatterbox/internal/database/models"
	"github.com/chatterbox-server/chatterbox/internal/files"
	"github.com/chatterbox-server/chatterbox/internal/registry"
)

// Gateway handles control connections. One instance serves every client.
type Gateway struct {
	registry     *registry.Registry
	ledger       *call.Ledger
	messages     database.MessageRepository
	files        *files.Store
	voicePort    int
	historyLimit int
	logger       *slog.Logger
	upgrader     websocket.Upgrader
}

// New creates a gateway over the given collaborators. voicePort is
// advertised to clients during call setup and UDP registration.
func New(
	reg *registry.Registry,
	ledger *call.Ledger,
	messages database.MessageRepository,
	fileStore *files.Store,
	voicePort int,
	historyLimit int,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		registry:     reg,
		ledger:       ledger,
		messages:     messages,
		files:        fileStore,
		voicePort:    voicePort,
		historyLimit: historyLimit,
		logger:       logger.With("subsystem", "gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cross-origin policy is enforced by the HTTP CORS middleware;
			// browser clients connect from configured origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// conn is the per-connection state: the push handle plus the identity
// announced via user_online (empty until then).
type conn struct {
	client   *wsClient
	identity string
}

// HandleWS upgrades the request and runs the connection's event loop
// until the client disconnects.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	c := &conn{client: newWSClient(wsConn)}
	g.logger.Info("client connected", "remote_addr", r.RemoteAddr)

	c.client.Push(evConnectionResponse, connectionResponse{
		Success: true,
		Message: "Connected to ChatterBox server",
	})

	defer func() {
		g.handleDisconnect(c)
		wsConn.Close()
	}()

	for {
		var env inboundEnvelope
		if err := wsConn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.logger.Warn("unexpected close", "identity", c.identity, "error", err)
			}
			return
		}
		g.dispatch(c, env)
	}
}

// dispatch routes one inbound event. Unknown event names are ignored.
func (g *Gateway) dispatch(c *conn, env inboundEnvelope) {
	switch env.Event {
	case evUserOnline:
		g.handleUserOnline(c, env.Data)
	case evGetOnlineUsers:
		c.client.Push(evOnlineUsers, onlineUsersEvent{Users: g.registry.OnlineUsers()})
	case evPrivateMessage:
		g.handlePrivateMessage(c, env.Data)
	case evFileTransfer:
		g.handleFileTransfer(c, env.Data)
	case evTyping:
		g.handleTyping(c, env.Data)
	case evInitiateCall:
		g.handleInitiateCall(c, env.Data)
	case evAcceptCall:
		g.handleAcceptCall(c, env.Data)
	case evRejectCall:
		g.handleRejectCall(c, env.Data)
	case evEndCall:
		g.handleEndCall(c, env.Data)
	case evRegisterUDP:
		c.client.Push(evUDPRegistrationReady, udpRegistrationReadyEvent{UDPPort: g.voicePort})
	case evGetChatHistory:
		g.handleChatHistory(c, env.Data)
	default:
		g.logger.Debug("ignoring unknown event", "event", env.Event, "identity", c.identity)
	}
}

// handleUserOnline binds the connection to an identity and announces the
// presence change. A repeat announcement for the same identity replaces
// the prior session; the replaced connection is no longer reachable for
// delivery.
func (g *Gateway) handleUserOnline(c *conn, data json.RawMessage) {
	var req userOnlineRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Username == "" {
		c.client.Push(evError, errorEvent{Message: "Invalid user data"})
		return
	}

	c.identity = req.Username
	g.registry.RegisterControl(req.Username, c.client)
	g.logger.Info("user online", "identity", req.Username)

	c.client.Push(evOnlineUsers, onlineUsersEvent{Users: g.registry.OnlineUsers()})
	g.broadcast(evUserStatusChanged, userStatusChangedEvent{
		Username:    req.Username,
		Status:      "online",
		OnlineUsers: g.registry.OnlineUsers(),
	})
}

// handleDisconnect unbinds the connection's identity, unless a newer
// connection has already replaced it.
func (g *Gateway) handleDisconnect(c *conn) {
	if c.identity == "" {
		g.logger.Info("client disconnected")
		return
	}

	if h, ok := g.registry.LookupControl(c.identity); !ok || h != registry.ControlHandle(c.client) {
		// A newer session owns this identity now; leave it alone.
		g.logger.Info("stale connection closed", "identity", c.identity)
		return
	}

	g.registry.UnregisterControl(c.identity)
	g.logger.Info("user disconnected", "identity", c.identity)

	g.broadcast(evUserStatusChanged, userStatusChangedEvent{
		Username:    c.identity,
		Status:      "offline",
		OnlineUsers: g.registry.OnlineUsers(),
	})
}

func (g *Gateway) handlePrivateMessage(c *conn, data json.RawMessage) {
	var req privateMessageRequest
	if err := json.Unmarshal(data, &req); err != nil ||
		req.Sender == "" || req.Receiver == "" || req.Message == "" {
		c.client.Push(evError, errorEvent{Message: "Invalid message data"})
		return
	}

	timestamp := req.Timestamp
	if timestamp == "" {
		timestamp = time.Now().Format(time.RFC3339)
	}

	msg := &models.Message{Sender: req.Sender, Receiver: req.Receiver, Message: req.Message}
	if err := g.messages.Save(context.Background(), msg); err != nil {
		g.logger.Error("failed to persist message",
			"sender", req.Sender,
			"receiver", req.Receiver,
			"error", err,
		)
		// Delivery still proceeds; the transcript is best effort here.
	}

	if peer, ok := g.registry.LookupControl(req.Receiver); ok {
		peer.Push(evPrivateMessage, privateMessageEvent{
			Sender:    req.Sender,
			Receiver:  req.Receiver,
			Message:   req.Message,
			Timestamp: timestamp,
			Type:      "text",
		})
	} else {
		g.logger.Debug("receiver offline, message stored only", "receiver", req.Receiver)
	}

	c.client.Push(evMessageSent, messageSentEvent{
		Success:   true,
		Timestamp: timestamp,
		Receiver:  req.Receiver,
	})
}

func (g *Gateway) handleFileTransfer(c *conn, data json.RawMessage) {
	var req fileTransferRequest
	if err := json.Unmarshal(data, &req); err != nil ||
		req.Sender == "" || req.Receiver == "" || req.FileName == "" || req.FileData == "" {
		c.client.Push(evError, errorEvent{Message: "Invalid file transfer data"})
		return
	}

	saved, err := g.files.Save(req.FileData, req.FileName, req.Receiver)
	if err != nil {
		g.logger.Error("file transfer failed",
			"sender", req.Sender,
			"receiver", req.Receiver,
			"file", req.FileName,
			"error", err,
		)
		c.client.Push(evError, errorEvent{Message: "File transfer failed: " + err.Error()})
		return
	}

	if peer, ok := g.registry.LookupControl(req.Receiver); ok {
		peer.Push(evFileReceived, fileReceivedEvent{
			Type:      "file",
			Sender:    req.Sender,
			Receiver:  req.Receiver,
			FileName:  req.FileName,
			FileSize:  req.FileSize,
			FileData:  req.FileData,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}

	c.client.Push(evFileSent, fileSentEvent{
		Success:  true,
		FileName: saved.Name,
		Receiver: req.Receiver,
	})
}

func (g *Gateway) handleTyping(c *conn, data json.RawMessage) {
	var req typingRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Receiver == "" {
		return
	}
	if peer, ok := g.registry.LookupControl(req.Receiver); ok {
		peer.Push(evUserTyping, userTypingEvent{Username: req.Sender, IsTyping: req.IsTyping})
	}
}

func (g *Gateway) handleInitiateCall(c *conn, data json.RawMessage) {
	var req initiateCallRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Caller == "" || req.Receiver == "" {
		c.client.Push(evError, errorEvent{Message: "Invalid call data"})
		return
	}

	rec := g.ledger.Initiate(req.Caller, req.Receiver)

	if peer, ok := g.registry.LookupControl(req.Receiver); ok {
		peer.Push(evIncomingCall, incomingCallEvent{
			CallID: rec.ID,
			Caller: rec.Caller,
			Status: rec.Status.String(),
		})
	}

	c.client.Push(evCallInitiated, callInitiatedEvent{
		Success:  true,
		CallID:   rec.ID,
		Caller:   rec.Caller,
		Receiver: rec.Receiver,
		Status:   rec.Status.String(),
	})
}

func (g *Gateway) handleAcceptCall(c *conn, data json.RawMessage) {
	var req callActionRequest
	if err := json.Unmarshal(data, &req); err != nil || req.CallID == "" {
		c.client.Push(evError, errorEvent{Message: "Invalid call data"})
		return
	}

	rec, err := g.ledger.Accept(req.CallID)
	if err != nil {
		g.logger.Debug("accept ignored", "call_id", req.CallID, "error", err)
		return
	}

	if caller, ok := g.registry.LookupControl(rec.Caller); ok {
		caller.Push(evCallAccepted, callAcceptedEvent{
			CallID:  rec.ID,
			Status:  rec.Status.String(),
			UDPPort: g.voicePort,
		})
	}

	c.client.Push(evCallStarted, callAcceptedEvent{
		CallID:  rec.ID,
		Status:  rec.Status.String(),
		UDPPort: g.voicePort,
	})
}

func (g *Gateway) handleRejectCall(c *conn, data json.RawMessage) {
	var req callActionRequest
	if err := json.Unmarshal(data, &req); err != nil || req.CallID == "" {
		c.client.Push(evError, errorEvent{Message: "Invalid call data"})
		return
	}

	rec, err := g.ledger.Reject(req.CallID)
	if err != nil {
		g.logger.Debug("reject ignored", "call_id", req.CallID, "error", err)
		return
	}

	if caller, ok := g.registry.LookupControl(rec.Caller); ok {
		caller.Push(evCallRejected, callRejectedEvent{
			CallID: rec.ID,
			Status: rec.Status.String(),
		})
	}
}

func (g *Gateway) handleEndCall(c *conn, data json.RawMessage) {
	var req callActionRequest
	if err := json.Unmarshal(data, &req); err != nil || req.CallID == "" {
		c.client.Push(evError, errorEvent{Message: "Invalid call data"})
		return
	}

	rec, err := g.ledger.End(req.CallID)
	if err != nil {
		if errors.Is(err, call.ErrNotFound) {
			g.logger.Debug("end ignored, unknown call", "call_id", req.CallID)
		}
		return
	}

	ended := callEndedEvent{CallID: rec.ID, Status: rec.Status.String()}

	// Notify the other party exactly once, then acknowledge the requester.
	other := rec.Receiver
	if req.Username == rec.Receiver {
		other = rec.Caller
	}
	if peer, ok := g.registry.LookupControl(other); ok {
		peer.Push(evCallEnded, ended)
	}
	c.client.Push(evCallEnded, ended)
}

func (g *Gateway) handleChatHistory(c *conn, data json.RawMessage) {
	var req chatHistoryRequest
	if err := json.Unmarshal(data, &req); err != nil || req.User1 == "" || req.User2 == "" {
		c.client.Push(evError, errorEvent{Message: "Invalid history request"})
		return
	}

	history, err := g.messages.History(context.Background(), req.User1, req.User2, g.historyLimit)
	if err != nil {
		g.logger.Error("failed to load chat history",
			"user1", req.User1,
			"user2", req.User2,
			"error", err,
		)
		c.client.Push(evError, errorEvent{Message: "Failed to load chat history"})
		return
	}
	if history == nil {
		history = []models.Message{}
	}
	c.client.Push(evChatHistory, chatHistoryEvent{Messages: history})
}

// broadcast pushes an event to every live control session. Push errors
// are left to each connection's own read loop to notice.
func (g *Gateway) broadcast(event string, data any) {
	for _, sess := range g.registry.Sessions() {
		sess.Handle.Push(event, data)
	}
}
