package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturabot/internal/logger"
)

type recordingPipeline struct {
	mu       sync.Mutex
	messages []string
	block    chan struct{}
}

func (p *recordingPipeline) HandleMessage(_ context.Context, chatID int64, text string) {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, text)
}

func (p *recordingPipeline) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

const updateJSON = `{
	"update_id": 10,
	"message": {
		"message_id": 1,
		"chat": {"id": 7, "type": "private"},
		"text": "Juan Perez | DNI 12345678 | Servicio | 5000"
	}
}`

func TestWebhookAcknowledgesBeforeProcessing(t *testing.T) {
	pipeline := &recordingPipeline{block: make(chan struct{})}
	handler := webhookHandler(pipeline, logger.WithComponent("test"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(updateJSON))

	handler(rec, req)

	// handler returned while the pipeline is still blocked
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, pipeline.count())

	close(pipeline.block)
	require.Eventually(t, func() bool { return pipeline.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebhookIgnoresNonMessageUpdates(t *testing.T) {
	pipeline := &recordingPipeline{}
	handler := webhookHandler(pipeline, logger.WithComponent("test"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id": 11}`))

	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, pipeline.count())
}

func TestWebhookAcceptsGarbageWithoutRetrySignal(t *testing.T) {
	pipeline := &recordingPipeline{}
	handler := webhookHandler(pipeline, logger.WithComponent("test"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("not json"))

	handler(rec, req)

	// 200 even for garbage: a non-2xx would make the transport retry forever
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, pipeline.count())
}

func TestNewRequiresPipeline(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestServerRunShutsDownOnContextCancel(t *testing.T) {
	srv, err := New(Options{Addr: "127.0.0.1:0", Pipeline: &recordingPipeline{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
