package rpc

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openmrkt/marketd/internal/core/market"
	"github.com/openmrkt/marketd/internal/storage/saledb"
)

// Server is the HTTP JSON-RPC front end of the marketplace engine.
type Server struct {
	registry *MethodRegistry
	mkt      *market.Marketplace
	sales    *saledb.Store
	cache    *QueryCache
	ws       *WebSocketServer
	log      *zap.Logger
	started  time.Time
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Market *market.Marketplace
	// Sales enables the history methods; nil disables them.
	Sales *saledb.Store
	// Cache serves read queries; nil disables caching.
	Cache *QueryCache
	// WebSocket enables the /ws endpoint; nil disables it.
	WebSocket *WebSocketServer
	Logger    *zap.Logger

	// DevRegistry and DevFunds enable the standalone dev_* methods when both
	// are set.
	DevRegistry *market.MemoryRegistry
	DevFunds    *market.MemoryFunds
}

func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry: NewMethodRegistry(),
		mkt:      opts.Market,
		sales:    opts.Sales,
		cache:    opts.Cache,
		ws:       opts.WebSocket,
		log:      logger,
		started:  time.Now(),
	}
	s.registerAllMethods()
	if opts.DevRegistry != nil && opts.DevFunds != nil {
		s.registerDevMethods(opts.DevRegistry, opts.DevFunds)
	}
	return s
}

func (s *Server) registerAllMethods() {
	s.registerMarketMethods()
	s.registerAdminMethods()
	s.registerQueryMethods()
	s.registerHistoryMethods()
}

// Handler returns the root HTTP handler, with /ws mounted when the websocket
// server is enabled.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	if s.ws != nil {
		mux.Handle("/ws", s.ws)
	}
	return mux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGet serves parameterless queries, defaulting to server_info.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("command")
	if method == "" {
		method = "server_info"
	}

	ctx := &RpcContext{Context: r.Context(), ClientIP: clientIP(r)}
	result, rpcErr := s.execute(method, nil, ctx)
	s.writeResponse(w, result, rpcErr)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeResponse(w, nil, RpcErrorInternal("Failed to read request body"))
		return
	}
	defer r.Body.Close()

	var request Request
	if err := json.Unmarshal(body, &request); err != nil {
		s.writeResponse(w, nil, RpcErrorInvalidJSON("Invalid JSON: "+err.Error()))
		return
	}
	if request.Method == "" {
		s.writeResponse(w, nil, RpcErrorMissingCommand())
		return
	}

	var params json.RawMessage
	if len(request.Params) > 0 {
		params = request.Params[0]
	}

	ctx := &RpcContext{Context: r.Context(), ClientIP: clientIP(r)}
	result, rpcErr := s.execute(request.Method, params, ctx)
	s.writeResponse(w, result, rpcErr)
}

func (s *Server) execute(method string, params json.RawMessage, ctx *RpcContext) (interface{}, *RpcError) {
	handler, ok := s.registry.Get(method)
	if !ok {
		return nil, RpcErrorMethodNotFound(method)
	}
	return handler.Handle(ctx, params)
}

func (s *Server) writeResponse(w http.ResponseWriter, result interface{}, rpcErr *RpcError) {
	response := make(map[string]interface{})

	if rpcErr != nil {
		response["result"] = map[string]interface{}{
			"status":        "error",
			"error":         rpcErr.ErrorString,
			"error_code":    rpcErr.Code,
			"error_message": rpcErr.Message,
		}
	} else {
		if resultMap, ok := result.(map[string]interface{}); ok {
			// Copy before adding status: query handlers can return a map that
			// the cache also holds and other requests read concurrently.
			out := make(map[string]interface{}, len(resultMap)+1)
			for k, v := range resultMap {
				out[k] = v
			}
			out["status"] = "success"
			response["result"] = out
		} else {
			response["result"] = map[string]interface{}{
				"status": "success",
				"data":   result,
			}
		}
	}

	data, err := json.Marshal(response)
	if err != nil {
		s.log.Error("marshal response failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
