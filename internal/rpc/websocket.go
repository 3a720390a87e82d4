package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openmrkt/marketd/internal/core/market"
)

// Stream names clients can subscribe to.
const (
	StreamListings = "listings"
	StreamAuctions = "auctions"
	StreamAdmin    = "admin"
)

// streamForEvent maps an engine event to its stream.
func streamForEvent(ev market.Event) string {
	switch ev.(type) {
	case market.ListingCreatedEvent, market.ListingUpdatedEvent,
		market.ListingCancelledEvent, market.PurchasedEvent:
		return StreamListings
	case market.AuctionCreatedEvent, market.BidPlacedEvent, market.AuctionSettledEvent:
		return StreamAuctions
	case market.ProtocolFeeUpdatedEvent, market.FeeRecipientUpdatedEvent,
		market.RoyaltyUpdatedEvent, market.CollectionAllowedUpdatedEvent,
		market.OwnershipTransferredEvent:
		return StreamAdmin
	}
	return ""
}

// WebSocketServer pushes committed engine events to subscribed connections.
// It implements market.Publisher; attach it to the event fanout.
type WebSocketServer struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu          sync.RWMutex
	connections map[uint64]*wsConnection
	nextID      atomic.Uint64
}

type wsConnection struct {
	id      uint64
	conn    *websocket.Conn
	send    chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	streams map[string]bool
}

func NewWebSocketServer(logger *zap.Logger) *WebSocketServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:         logger,
		connections: make(map[uint64]*wsConnection),
	}
}

func (ws *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// The connection outlives this handler, so its context must not come
	// from r.Context(), which net/http cancels as soon as ServeHTTP returns.
	ctx, cancel := context.WithCancel(context.Background())
	wsConn := &wsConnection{
		id:      ws.nextID.Add(1),
		conn:    conn,
		send:    make(chan []byte, 256),
		ctx:     ctx,
		cancel:  cancel,
		streams: make(map[string]bool),
	}

	ws.mu.Lock()
	ws.connections[wsConn.id] = wsConn
	ws.mu.Unlock()

	go ws.readLoop(wsConn)
	go ws.writeLoop(wsConn)
}

func (ws *WebSocketServer) readLoop(c *wsConnection) {
	defer ws.close(c)

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Debug("websocket read failed", zap.Uint64("conn", c.id), zap.Error(err))
			}
			return
		}
		ws.handleMessage(c, message)
	}
}

func (ws *WebSocketServer) writeLoop(c *wsConnection) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ws.close(c)
				return
			}
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				ws.close(c)
				return
			}
		}
	}
}

type wsCommand struct {
	Command string      `json:"command"`
	ID      interface{} `json:"id,omitempty"`
	Streams []string    `json:"streams,omitempty"`
}

func (ws *WebSocketServer) handleMessage(c *wsConnection, message []byte) {
	var cmd wsCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		ws.sendError(c, nil, RpcErrorInvalidJSON("Invalid JSON: "+err.Error()))
		return
	}

	switch cmd.Command {
	case "subscribe":
		ws.setSubscriptions(c, cmd.Streams, true)
		ws.sendResponse(c, wsResponse{
			Type: "response", ID: cmd.ID, Status: "success",
			Result: map[string]interface{}{"subscribed": cmd.Streams},
		})
	case "unsubscribe":
		ws.setSubscriptions(c, cmd.Streams, false)
		ws.sendResponse(c, wsResponse{
			Type: "response", ID: cmd.ID, Status: "success",
			Result: map[string]interface{}{"unsubscribed": cmd.Streams},
		})
	case "ping":
		ws.sendResponse(c, wsResponse{Type: "response", ID: cmd.ID, Status: "success"})
	case "":
		ws.sendError(c, cmd.ID, RpcErrorMissingCommand())
	default:
		ws.sendError(c, cmd.ID, RpcErrorMethodNotFound(cmd.Command))
	}
}

func (ws *WebSocketServer) setSubscriptions(c *wsConnection, streams []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stream := range streams {
		switch stream {
		case StreamListings, StreamAuctions, StreamAdmin:
			if on {
				c.streams[stream] = true
			} else {
				delete(c.streams, stream)
			}
		}
	}
}

// Publish broadcasts a committed event to every connection subscribed to its
// stream. Slow connections are skipped, not waited on.
func (ws *WebSocketServer) Publish(ev market.Event) {
	stream := streamForEvent(ev)
	if stream == "" {
		return
	}

	data, err := json.Marshal(wsEvent{
		Type:   "event",
		Stream: stream,
		Event:  ev.EventType(),
		Data:   ev,
	})
	if err != nil {
		ws.log.Error("marshal event failed", zap.String("event", ev.EventType()), zap.Error(err))
		return
	}

	ws.mu.RLock()
	defer ws.mu.RUnlock()
	for _, c := range ws.connections {
		c.mu.RLock()
		subscribed := c.streams[stream]
		c.mu.RUnlock()
		if !subscribed {
			continue
		}
		select {
		case c.send <- data:
		default:
			ws.log.Debug("skipping slow websocket connection", zap.Uint64("conn", c.id))
		}
	}
}

func (ws *WebSocketServer) sendResponse(c *wsConnection, resp wsResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		ws.log.Error("marshal websocket response failed", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		ws.close(c)
	}
}

func (ws *WebSocketServer) sendError(c *wsConnection, id interface{}, rpcErr *RpcError) {
	response := map[string]interface{}{
		"type":          "response",
		"status":        "error",
		"error":         rpcErr.ErrorString,
		"error_code":    rpcErr.Code,
		"error_message": rpcErr.Message,
	}
	if id != nil {
		response["id"] = id
	}
	data, err := json.Marshal(response)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		ws.close(c)
	}
}

func (ws *WebSocketServer) close(c *wsConnection) {
	c.cancel()

	ws.mu.Lock()
	_, present := ws.connections[c.id]
	delete(ws.connections, c.id)
	ws.mu.Unlock()

	if present {
		c.conn.Close()
		ws.log.Debug("websocket connection closed", zap.Uint64("conn", c.id))
	}
}

// ConnectionCount returns the number of live connections, for server_info.
func (ws *WebSocketServer) ConnectionCount() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.connections)
}
