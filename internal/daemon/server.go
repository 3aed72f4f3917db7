package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// connDeadline bounds one request/response exchange.
const connDeadline = 30 * time.Second

// Server listens on a Unix socket and handles one RPC request per
// connection.
type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	started  time.Time
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for socketPath. A nil logger uses slog.Default.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) (*Server, error) {
	if socketPath == "" {
		return nil, serrors.ConfigError("socket path cannot be empty", nil)
	}
	if handler == nil {
		return nil, serrors.ConfigError("control server needs a handler", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger,
	}, nil
}

// SocketPath returns the listening path.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// ListenAndServe serves until ctx is cancelled. It removes a stale socket
// first and the socket file on exit.
func (s *Server) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("control_listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(connDeadline)); err != nil {
		s.logger.Warn("deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	resp := s.handleRequest(ctx, req)
	if err := encoder.Encode(resp); err != nil {
		s.logger.Debug("response_failed",
			slog.String("method", req.Method),
			slog.String("error", err.Error()))
	}
}

func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "unsupported jsonrpc version")
	}

	s.logger.Debug("control_request", slog.String("method", req.Method), slog.String("id", req.ID))

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true, Time: time.Now()})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.status())

	case MethodSearch:
		var params SearchParams
		if resp, ok := decodeParams(req, &params, params.Validate); !ok {
			return resp
		}
		res, err := s.handler.Search(ctx, params)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, res)

	case MethodAdd, MethodDelete:
		var params ResourceParams
		if resp, ok := decodeParams(req, &params, params.Validate); !ok {
			return resp
		}
		do := s.handler.Add
		if req.Method == MethodDelete {
			do = s.handler.Delete
		}
		if err := do(ctx, params); err != nil {
			return errorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, AckResult{OK: true})

	case MethodCrawl:
		var params CrawlParams
		if resp, ok := decodeParams(req, &params, params.Validate); !ok {
			return resp
		}
		res, err := s.handler.Crawl(ctx, params)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, res)

	case MethodClear:
		return ack(req.ID, s.handler.Clear(ctx))

	case MethodPause:
		return ack(req.ID, s.handler.Pause(ctx))

	case MethodResume:
		return ack(req.ID, s.handler.Resume(ctx))

	case MethodPurge:
		n, err := s.handler.Purge(ctx)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, PurgeResult{Purged: n})

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// decodeParams round-trips req.Params into dst and runs validate. It
// returns the error response and false on failure.
func decodeParams[T any](req Request, dst *T, validate func() error) (Response, bool) {
	if req.Params != nil {
		data, err := json.Marshal(req.Params)
		if err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params"), false
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params"), false
		}
	}
	if err := validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error()), false
	}
	return Response{}, true
}

func ack(id string, err error) Response {
	if err != nil {
		return errorResponse(id, err)
	}
	return NewSuccessResponse(id, AckResult{OK: true})
}

// errorResponse maps service errors onto RPC codes.
func errorResponse(id string, err error) Response {
	code := ErrCodeFailed
	switch {
	case errors.Is(err, serrors.ErrQueueFull):
		code = ErrCodeQueueFull
	case errors.Is(err, serrors.ErrServiceStopped):
		code = ErrCodeServiceStopped
	case errors.Is(err, serrors.ErrResourceNotFound):
		code = ErrCodeNotFound
	case errors.Is(err, serrors.ErrInvalidIdentifier),
		errors.Is(err, serrors.ErrEmptyQuery),
		errors.Is(err, serrors.ErrUnknownCategory),
		serrors.GetCode(err) == serrors.ErrCodeInvalidPriority:
		code = ErrCodeInvalidParams
	}
	return NewErrorResponse(id, code, err.Error())
}

func (s *Server) status() StatusResult {
	st := s.handler.Status()
	st.PID = os.Getpid()

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started.IsZero() {
		st.Uptime = time.Since(started).Round(time.Second).String()
	}
	return st
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
