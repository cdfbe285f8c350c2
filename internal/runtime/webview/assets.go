package webview

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/jmylchreest/hostbridge/internal/runtime"
)

// assetServer exposes a window's custom protocol on a loopback address, since
// the native library cannot register URL schemes.
type assetServer struct {
	protocol *runtime.CustomProtocol
	logger   *slog.Logger
	listener net.Listener
	server   *http.Server
}

func newAssetServer(protocol *runtime.CustomProtocol, logger *slog.Logger) (*assetServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &assetServer{
		protocol: protocol,
		logger:   logger,
		listener: ln,
	}
	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("asset server stopped", "error", err)
		}
	}()
	return s, nil
}

// url returns the loopback address of an app path.
func (s *assetServer) url(p string) string {
	return "http://" + s.listener.Addr().String() + "/" + strings.TrimPrefix(p, "/")
}

func (s *assetServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target := s.protocol.Scheme + "://localhost" + r.URL.Path
	data, err := s.protocol.Handler.HandleProtocol(target)
	switch {
	case errors.Is(err, runtime.ErrNotHandled):
		http.NotFound(w, r)
		return
	case err != nil:
		s.logger.Warn("asset request failed", "url", target, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	name := r.URL.Path
	if name == "/" || strings.HasSuffix(name, "/") {
		name = "index.html"
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	_, _ = w.Write(data)
}

func (s *assetServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}
