package handlers_test

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/visitscribe/internal/api/handlers"
	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
	"github.com/zatekoja/visitscribe/internal/infrastructure/clients/reasoning"
	"github.com/zatekoja/visitscribe/pkg/config"
)

func newEducationServer(t *testing.T, gw *streamGateway, guard *services.BudgetGuard) *httptest.Server {
	t.Helper()
	policy := services.NewTierPolicy("")
	h := handlers.NewEducationStreamHandler(
		services.NewEducationService(gw, policy),
		services.NewStreamingRelay().WithLogger(zerolog.Nop()),
		guard,
		defaults,
	)
	server := httptest.NewServer(http.HandlerFunc(h.StreamEducation))
	t.Cleanup(server.Close)
	return server
}

func openStream(t *testing.T, ctx context.Context, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(handlers.UserIDHeader, "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// readEvents returns the SSE event names up to and including "end".
func readEvents(t *testing.T, resp *http.Response) []string {
	t.Helper()
	var names []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
			if name == "end" {
				break
			}
		}
	}
	return names
}

func TestEducationStream_RelaysEventsAndEnds(t *testing.T) {
	gw := newStreamGateway()
	guard := newGuard(500, 50)
	server := newEducationServer(t, gw, guard)

	go func() {
		<-gw.opened
		gw.events <- entities.StreamEvent{Type: entities.StreamEventStatus, Content: "started"}
		gw.events <- entities.StreamEvent{Type: entities.StreamEventThinking, Content: "outline"}
		gw.events <- entities.StreamEvent{Type: entities.StreamEventText, Content: "PVCs are extra beats."}
		close(gw.events)
	}()

	resp := openStream(t, context.Background(), server.URL, `{"topic":"PVCs","tier":"enhanced"}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "49", resp.Header.Get("X-Budget-Remaining"), "budget recorded once the stream opened")
	assert.Equal(t, []string{"status", "thinking", "text", "end"}, readEvents(t, resp))
}

func TestEducationStream_MidStreamFailure(t *testing.T) {
	gw := newStreamGateway()
	server := newEducationServer(t, gw, newGuard(500, 50))

	go func() {
		<-gw.opened
		gw.events <- entities.StreamEvent{Type: entities.StreamEventText, Content: "partial"}
		gw.events <- entities.StreamEvent{Type: entities.StreamEventError, Err: &providers.GatewayError{Kind: providers.FailureConnection}}
		close(gw.events)
	}()

	resp := openStream(t, context.Background(), server.URL, `{"topic":"Asthma"}`)
	defer resp.Body.Close()

	assert.Equal(t, []string{"text", "error", "end"}, readEvents(t, resp))
}

func TestEducationStream_ContinuesAfterClientDisconnect(t *testing.T) {
	gw := newStreamGateway()
	server := newEducationServer(t, gw, newGuard(500, 50))

	ctx, cancel := context.WithCancel(context.Background())
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-gw.opened
		gw.events <- entities.StreamEvent{Type: entities.StreamEventStatus, Content: "started"}
		cancel()
		// These sends only complete if the relay keeps reading after the client left.
		for i := 0; i < 3; i++ {
			gw.events <- entities.StreamEvent{Type: entities.StreamEventText, Content: "more"}
		}
		close(gw.events)
	}()

	resp, err := http.DefaultClient.Do(mustRequest(t, ctx, server.URL, `{"topic":"Holter"}`))
	if err == nil {
		_ = resp.Body.Close()
	}

	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("upstream stream was abandoned after client disconnect")
	}
}

func mustRequest(t *testing.T, ctx context.Context, url, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	return req
}

func TestEducationStream_RejectsBeforeStreaming(t *testing.T) {
	t.Run("missing topic", func(t *testing.T) {
		server := newEducationServer(t, newStreamGateway(), newGuard(500, 50))
		resp := openStream(t, context.Background(), server.URL, `{"topic":""}`)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("budget denied", func(t *testing.T) {
		gw := newStreamGateway()
		server := newEducationServer(t, gw, newGuard(500, 0))
		resp := openStream(t, context.Background(), server.URL, `{"topic":"PVCs"}`)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Empty(t, gw.opened, "denied requests never reach the gateway")
	})

	t.Run("stream fails to open", func(t *testing.T) {
		gw := newStreamGateway()
		gw.openErr = &providers.GatewayError{Kind: providers.FailureClientError, Status: 400}
		guard := newGuard(500, 50)
		server := newEducationServer(t, gw, guard)

		resp := openStream(t, context.Background(), server.URL, `{"topic":"PVCs"}`)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, int64(50), guard.Remaining(context.Background(), "user:alice").Identity, "failed opens are not counted")
	})
}

func TestEducationStream_UpstreamErrorBeforeFirstEventIsNotCharged(t *testing.T) {
	var calls int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	}))
	defer upstream.Close()

	gateway, err := reasoning.NewClient(
		&config.ReasoningConfig{APIKey: "test-key", BaseURL: upstream.URL, Timeout: 2 * time.Second, StreamTimeout: 2 * time.Second},
		reasoning.WithSleeper(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
		reasoning.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)

	guard := newGuard(500, 50)
	h := handlers.NewEducationStreamHandler(
		services.NewEducationService(gateway, services.NewTierPolicy("")),
		services.NewStreamingRelay().WithLogger(zerolog.Nop()),
		guard,
		defaults,
	)
	server := httptest.NewServer(http.HandlerFunc(h.StreamEducation))
	defer server.Close()

	resp := openStream(t, context.Background(), server.URL, `{"topic":"PVCs"}`)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, int64(50), guard.Remaining(context.Background(), "user:alice").Identity)
	assert.Equal(t, int64(500), guard.Remaining(context.Background(), "user:alice").Global)
}
