package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/connector"
)

// callbackListener receives a single provider redirect on a loopback
// address.
type callbackListener struct {
	server *http.Server
	urls   chan string
	logger flaresync.Logger
}

func listenCallback(addr string, logger flaresync.Logger) (*callbackListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	l := newCallbackListener(logger)
	l.server.Addr = ln.Addr().String()

	go func() {
		if err := l.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			l.logger.Error("callback listener stopped", "error", err)
		}
	}()
	return l, nil
}

func newCallbackListener(logger flaresync.Logger) *callbackListener {
	l := &callbackListener{
		urls:   make(chan string, 1),
		logger: flaresync.NormalizeLogger(logger),
	}
	l.server = &http.Server{
		Handler:           l,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return l
}

func (l *callbackListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("state") == "" && q.Get("error") == "" {
		http.NotFound(w, r)
		return
	}

	rawURL := "http://" + r.Host + r.URL.RequestURI()
	select {
	case l.urls <- rawURL:
	default:
		http.Error(w, "callback already received", http.StatusConflict)
		return
	}

	if scrubbed, err := connector.ScrubCallbackURL(rawURL); err == nil {
		l.logger.Debug("callback received", "url", scrubbed)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Authorization received. You can close this window.\n"))
}

// Wait blocks until a redirect arrives or ctx is done.
func (l *callbackListener) Wait(ctx context.Context) (string, error) {
	select {
	case rawURL := <-l.urls:
		return rawURL, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *callbackListener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return l.server.Shutdown(ctx)
}
