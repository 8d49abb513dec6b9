package wsconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ConnHandler serves one line-oriented connection until it ends.
type ConnHandler func(ctx context.Context, conn io.ReadWriteCloser, remote string)

// Options configure the WebSocket front-end.
type Options struct {
	// AllowedOrigins lists accepted Origin values. Empty or "*" allows any origin.
	AllowedOrigins []string
	// ReadLimit caps the size of one inbound frame in bytes.
	ReadLimit int64
}

// Handler returns an http.Handler serving the WebSocket endpoint at /ws and
// a liveness probe at /healthz.
func Handler(serve ConnHandler, opts Options, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}

	origins, allowAll := normalizeOrigins(opts.AllowedOrigins, logger)
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			if ok := originAllowed(r.Header.Get("Origin"), origins); ok {
				return true
			}
			logger.Printf("wsconn: blocked connection from disallowed origin %q", r.Header.Get("Origin"))
			return false
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied with an HTTP error.
			logger.Printf("wsconn: upgrade from %s failed: %v", r.RemoteAddr, err)
			return
		}
		if opts.ReadLimit > 0 {
			ws.SetReadLimit(opts.ReadLimit)
		}

		conn := New(ws)
		defer conn.Close()
		serve(r.Context(), conn, r.RemoteAddr)
	})
	return mux
}

// ListenAndServe serves handler on addr until ctx is cancelled. Request
// contexts derive from ctx so hijacked connections see the shutdown too.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("wsconn: listen %q: %w", addr, err)
	}
	return Serve(ctx, listener, handler, logger)
}

// Serve is ListenAndServe on an existing listener.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          logger,
	}

	shutdown := make(chan struct{})
	defer close(shutdown)
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Printf("wsconn: shutdown: %v", err)
			}
		case <-shutdown:
		}
	}()

	logger.Printf("wsconn: listening on %s", listener.Addr())

	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return fmt.Errorf("wsconn: serve: %w", err)
}

func normalizeOrigins(origins []string, logger *log.Logger) (map[string]struct{}, bool) {
	if len(origins) == 0 {
		return nil, true
	}

	normalized := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			return nil, true
		}
		n, ok := normalizeOrigin(trimmed)
		if !ok {
			logger.Printf("wsconn: ignoring invalid origin in configuration: %q", origin)
			continue
		}
		normalized[n] = struct{}{}
	}
	return normalized, false
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// originAllowed accepts requests without an Origin header; only browsers send one.
func originAllowed(header string, allowed map[string]struct{}) bool {
	if header == "" {
		return true
	}
	n, ok := normalizeOrigin(header)
	if !ok {
		return false
	}
	_, exists := allowed[n]
	return exists
}
