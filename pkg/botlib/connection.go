package botlib

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aeolun/ymsg/pkg/client"
)

var errConnectionClosed = errors.New("connection closed")

// receiveLoop feeds received packets to the session and follows the
// connection through disconnects and reconnects.
func (b *Bot) receiveLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case p, ok := <-b.conn.Incoming():
			if !ok {
				return errConnectionClosed
			}
			b.dispatch(p)
			if err := b.takeFatal(); err != nil {
				return err
			}

		case err, ok := <-b.conn.Errors():
			if !ok {
				return errConnectionClosed
			}
			b.logf("Connection error: %v", err)

		case st, ok := <-b.conn.StateChanges():
			if !ok {
				return errConnectionClosed
			}
			b.handleState(st)
		}
	}
}

func (b *Bot) handleState(st client.ConnectionStateUpdate) {
	switch st.State {
	case client.StateTypeConnected:
		b.logf("Reconnected, logging in again")
		if err := b.startSession(); err != nil {
			b.logf("Login failed: %v", err)
		}

	case client.StateTypeDisconnected:
		b.mu.Lock()
		b.session = nil
		b.mu.Unlock()
		b.roster.reset()

		text := ""
		if st.Err != nil {
			text = st.Err.Error()
		}
		b.emit(Event{Kind: EventDisconnected, Text: text})

	case client.StateTypeReconnecting:
		b.logf("Reconnecting (attempt %d)", st.Attempt)
	}
}

func (b *Bot) keepaliveLoop(ctx context.Context) error {
	ticker := time.NewTicker(b.config.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.Do(func(s *client.Session) error { return s.Keepalive() })
			if err != nil && !errors.Is(err, client.ErrNotLoggedIn) {
				b.logf("Keepalive failed: %v", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// serveMetrics exposes the session metrics until ctx is done.
func (b *Bot) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              b.config.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	b.logf("Metrics server listening on %s (/metrics)", b.config.MetricsAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
