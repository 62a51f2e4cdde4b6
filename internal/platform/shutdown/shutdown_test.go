package shutdown

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/SlpAus/meme-arena-backend/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_ShutdownOrder(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := &http.Server{Handler: http.NotFoundHandler()}
	served := make(chan error, 1)
	go func() { served <- server.Serve(ln) }()

	services := lifecycle.NewManager()
	var order []string
	stopped := make(chan struct{})
	require.NoError(t, services.Go("worker", func(h *lifecycle.Handle) {
		<-h.Done()
		close(stopped)
	}))

	c := NewCoordinator(server, services,
		func() error { <-stopped; order = append(order, "db"); return nil },
		func() error { order = append(order, "redis"); return errors.New("already closed") },
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.ListenForSignals(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("停机超时")
	}

	assert.ErrorIs(t, <-served, http.ErrServerClosed)
	assert.Equal(t, []string{"redis", "db"}, order)
}
