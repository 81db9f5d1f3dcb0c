package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

const shutdownTimeout = 5 * time.Second

// Listen returns the sockets passed by systemd socket activation or, when
// there are none, a TCP listener on addr plus a unix socket at socketPath
// for local event producers. An empty addr or socketPath skips that listener.
func Listen(addr, socketPath string) ([]net.Listener, error) {
	activated, err := activation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("failed to read activated sockets: %w", err)
	}
	var listeners []net.Listener
	for _, l := range activated {
		if l != nil {
			listeners = append(listeners, l)
		}
	}
	if len(listeners) > 0 {
		slog.Info("using socket activation", "count", len(listeners))
		return listeners, nil
	}

	if addr != "" {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		listeners = append(listeners, l)
	}
	if socketPath != "" {
		l, err := listenUnix(socketPath)
		if err != nil {
			closeAll(listeners)
			return nil, err
		}
		listeners = append(listeners, l)
	}
	if len(listeners) == 0 {
		return nil, errors.New("nothing to listen on")
	}
	return listeners, nil
}

func listenUnix(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	// A previous instance may have left its socket behind.
	if conn, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
		conn.Close()
		return nil, fmt.Errorf("another server is listening on %s", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return net.Listen("unix", path)
}

func closeAll(listeners []net.Listener) {
	for _, l := range listeners {
		l.Close()
	}
}

// Serve runs handler on every listener until ctx is cancelled or a
// listener fails, then shuts down gracefully. systemd is notified once
// serving starts.
func Serve(ctx context.Context, handler http.Handler, listeners []net.Listener) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, len(listeners))
	for _, l := range listeners {
		slog.Info("listening", "network", l.Addr().Network(), "addr", l.Addr().String())
		go func() {
			if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		slog.Warn("failed to notify systemd", "error", err)
	} else if ok {
		slog.Debug("notified systemd")
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}
