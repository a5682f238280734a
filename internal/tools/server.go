package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"timelock/internal/seal"
)

const (
	ServerName    = "timelock-mcp"
	ServerVersion = "2.1.0"

	maxRequestBytes = 2 << 20
)

const serverInstructions = "Use timelock_encrypt to lock a message until a future time and keep the returned " +
	"identity and encrypted_data. Use check_decryption_status to poll and decrypt_timelock_message to read it " +
	"once the key authority has released the key."

// Options configures a Server.
type Options struct {
	RateLimit     float64
	RateBurst     int
	AllowedOrigin string
	Logger        *slog.Logger
}

// Server serves the MCP endpoint and the health routes.
type Server struct {
	toolbox       *Toolbox
	catalog       *Catalog
	limiter       *RateLimiter
	allowedOrigin string
	authority     string
	logger        *slog.Logger
}

// NewServer builds a server around engine.
func NewServer(engine *seal.Engine, opts Options) (*Server, error) {
	catalog, err := NewCatalog()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origin := opts.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	rps, burst := opts.RateLimit, opts.RateBurst
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}

	return &Server{
		toolbox:       NewToolbox(engine, catalog, logger),
		catalog:       catalog,
		limiter:       NewRateLimiter(rps, burst),
		allowedOrigin: origin,
		authority:     engine.Authority(),
		logger:        logger,
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(withRequestID, withCORS(s.allowedOrigin))

	r.HandleFunc("/", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handlePreflight).Methods(http.MethodOptions)
	r.Handle("/mcp", s.limiter.Middleware(http.HandlerFunc(s.handleMCP))).Methods(http.MethodPost)
	r.HandleFunc("/mcp", s.handlePreflight).Methods(http.MethodOptions)

	r.NotFoundHandler = withRequestID(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeProblem(w, req, http.StatusNotFound, "Not Found", "no route for "+req.URL.Path)
	}))
	r.MethodNotAllowedHandler = withRequestID(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeProblem(w, req, http.StatusMethodNotAllowed, "Method Not Allowed", req.Method+" is not supported on "+req.URL.Path)
	}))

	return r
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"server":       ServerName,
		"version":      ServerVersion,
		"authority":    s.authority,
		"mcp_endpoint": "/mcp",
		"tools":        s.catalog.List(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "healthy",
		"server":       ServerName,
		"version":      ServerVersion,
		"mcp_endpoint": "/mcp",
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

// handleMCP serves stateless JSON-RPC over HTTP POST with JSON responses.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeProblem(w, r, http.StatusRequestEntityTooLarge, "Payload Too Large", "request body exceeds 2 MiB")
			return
		}
		writeProblem(w, r, http.StatusBadRequest, "Bad Request", "cannot read request body")
		return
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		writeJSON(w, http.StatusOK, errorResponse(nil, codeInvalidRequest, "batch requests are not supported"))
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		writeJSON(w, http.StatusOK, errorResponse(nil, codeParseError, "parse error: "+err.Error()))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeJSON(w, http.StatusOK, errorResponse(req.ID, codeInvalidRequest, "invalid JSON-RPC 2.0 request"))
		return
	}

	resp, ok := s.dispatch(r, req)
	if !ok {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// dispatch runs one request. ok is false for notifications.
func (s *Server) dispatch(r *http.Request, req rpcRequest) (resp rpcResponse, ok bool) {
	ctx := r.Context()

	if req.isNotification() {
		s.logger.DebugContext(ctx, "mcp notification", "method", req.Method)
		return rpcResponse{}, false
	}

	switch req.Method {
	case "initialize":
		var params initializeParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return errorResponse(req.ID, codeInvalidParams, "invalid initialize params"), true
			}
		}
		version := params.ProtocolVersion
		if !supportedProtocolVersions[version] {
			version = LatestProtocolVersion
		}
		return resultResponse(req.ID, initializeResult{
			ProtocolVersion: version,
			Capabilities:    map[string]any{"tools": map[string]bool{"listChanged": false}},
			ServerInfo:      serverInfo{Name: ServerName, Version: ServerVersion},
			Instructions:    serverInstructions,
		}), true

	case "ping":
		return resultResponse(req.ID, map[string]any{}), true

	case "tools/list":
		return resultResponse(req.ID, listResult{Tools: s.catalog.List()}), true

	case "tools/call":
		var params callParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			return errorResponse(req.ID, codeInvalidParams, "tools/call requires a tool name"), true
		}

		result, err := s.toolbox.Call(ctx, params.Name, params.Arguments)
		if errors.Is(err, ErrUnknownTool) {
			return errorResponse(req.ID, codeInvalidParams, err.Error()), true
		}

		text, err := json.MarshalIndent(result.Payload, "", "  ")
		if err != nil {
			s.logger.ErrorContext(ctx, "cannot encode tool result", "tool", params.Name, "error", err)
			return errorResponse(req.ID, codeInternalError, "cannot encode tool result"), true
		}
		return resultResponse(req.ID, callResult{
			Content: []content{{Type: "text", Text: string(text)}},
			IsError: result.IsError,
		}), true

	default:
		return errorResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method), true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
