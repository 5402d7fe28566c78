package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codefionn/sqmean/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*server.Server, *Config) {
	t.Helper()
	s := server.New(server.Config{
		Addr:         "127.0.0.1:0",
		DumpInterval: time.Hour,
		DrainPoll:    10 * time.Millisecond,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()

	select {
	case <-s.Ready():
	case err := <-errCh:
		t.Fatalf("server failed to start: %v", err)
	}
	t.Cleanup(func() {
		s.StopAsync()
		<-s.Done()
	})

	cfg := DefaultConfig()
	cfg.Addr = s.Addr().String()
	cfg.RequestTimeout = 2 * time.Second
	return s, cfg
}

func TestSendAndDisconnect(t *testing.T) {
	s, cfg := startServer(t)
	ctx := context.Background()

	c, err := Dial(ctx, cfg)
	require.NoError(t, err)

	metric, err := c.Send(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 100.0, metric)

	metric, err = c.Send(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 50.0, metric)

	require.NoError(t, c.Disconnect(ctx))
	_, err = c.Send(ctx, 1)
	assert.ErrorIs(t, err, ErrClosed)

	require.Eventually(t, func() bool {
		st := s.Stats()
		return st.ConnectionsLive == 0 && st.ConnectionsFailed == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSendAfterServerStop(t *testing.T) {
	s, cfg := startServer(t)
	ctx := context.Background()

	c, err := Dial(ctx, cfg)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Send(ctx, 1)
	require.NoError(t, err)

	s.StopAsync()
	<-s.Done()

	_, err = c.Send(ctx, 2)
	assert.ErrorIs(t, err, ErrServerStopped)
}

func TestRunMatchesRunningMean(t *testing.T) {
	_, cfg := startServer(t)

	seen := map[int32]bool{}
	var sum float64
	summary, err := Run(context.Background(), cfg, RunOptions{
		Count:      50,
		Seed:       42,
		Disconnect: true,
		OnReply: func(v int32, metric float64) {
			assert.GreaterOrEqual(t, v, int32(0))
			assert.Less(t, v, int32(MaxValue))
			if !seen[v] {
				seen[v] = true
				sum += float64(v) * float64(v)
			}
			assert.InDelta(t, sum/float64(len(seen)), metric, 1e-9)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 50, summary.Sent)
	assert.False(t, summary.Stopped)
}

func TestRunIsReproducible(t *testing.T) {
	_, cfg := startServer(t)

	collect := func() []int32 {
		var values []int32
		_, err := Run(context.Background(), cfg, RunOptions{
			Count:   10,
			Seed:    7,
			OnReply: func(v int32, _ float64) { values = append(values, v) },
		})
		require.NoError(t, err)
		return values
	}
	assert.Equal(t, collect(), collect())
}

func TestRunStopsWhenServerStops(t *testing.T) {
	s, cfg := startServer(t)

	summary, err := Run(context.Background(), cfg, RunOptions{
		OnReply: func(int32, float64) {
			s.StopAsync()
			<-s.Done()
		},
	})
	require.NoError(t, err)
	assert.True(t, summary.Stopped)
	assert.Equal(t, 1, summary.Sent)
}

func TestRunCancelled(t *testing.T) {
	s, cfg := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	summary, err := Run(ctx, cfg, RunOptions{
		Disconnect: true,
		OnReply: func(int32, float64) {
			cancel()
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.False(t, summary.Stopped)

	require.Eventually(t, func() bool { return s.Stats().ConnectionsLive == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), s.Stats().ConnectionsFailed, "cancelled run did not disconnect politely")
}

func TestDialFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.ConnectTimeout = 500 * time.Millisecond

	_, err := Dial(context.Background(), cfg)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrServerStopped))
}
