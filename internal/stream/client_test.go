package stream

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patternhq/pattern-engine/internal/api"
)

// collector records callbacks for assertions.
type collector struct {
	mu       sync.Mutex
	chunks   []string
	logID    string
	complete bool
	err      error
	done     chan struct{}
}

func newCollector() *collector {
	return &collector{done: make(chan struct{})}
}

func (c *collector) callbacks() Callbacks {
	return Callbacks{
		OnChunk: func(chunk string) {
			c.mu.Lock()
			c.chunks = append(c.chunks, chunk)
			c.mu.Unlock()
		},
		OnLogID: func(id string) {
			c.mu.Lock()
			c.logID = id
			c.mu.Unlock()
		},
		OnComplete: func() {
			c.mu.Lock()
			c.complete = true
			c.mu.Unlock()
			close(c.done)
		},
		OnError: func(err error) {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			close(c.done)
		},
	}
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not terminate")
	}
}

func (c *collector) content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var all string
	for _, chunk := range c.chunks {
		all += chunk
	}
	return all
}

func TestDo_DeliversChunksAndCompletes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, part := range []string{"# Title\n\n", "## Water\n\n", "Some long passage."} {
			fmt.Fprint(w, part)
			flusher.Flush()
			time.Sleep(10 * time.Millisecond)
		}
	}))
	defer server.Close()

	c := newCollector()
	NewClient().Do(Request{URL: server.URL, Method: http.MethodPost}, c.callbacks())
	c.wait(t)

	require.NoError(t, c.err)
	assert.True(t, c.complete)
	assert.Equal(t, "# Title\n\n## Water\n\nSome long passage.", c.content())
}

func TestDo_ExtractsLogID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[LOG_ID:abc-123]\nreport body")
	}))
	defer server.Close()

	c := newCollector()
	NewClient().Do(Request{URL: server.URL}, c.callbacks())
	c.wait(t)

	require.NoError(t, c.err)
	assert.Equal(t, "abc-123", c.logID)
	// The id line never appears in content.
	assert.Equal(t, "report body", c.content())
}

func TestDo_NoLogID_FlushesAfterThreshold(t *testing.T) {
	body := "no id line here, just a fairly long opening passage that easily " +
		"exceeds the hundred byte hold-back threshold for the id scan."

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	c := newCollector()
	NewClient().Do(Request{URL: server.URL}, c.callbacks())
	c.wait(t)

	require.NoError(t, c.err)
	assert.Empty(t, c.logID)
	assert.Equal(t, body, c.content())
}

func TestDo_ShortBodyWithoutID_FlushedAtEOF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "tiny")
	}))
	defer server.Close()

	c := newCollector()
	NewClient().Do(Request{URL: server.URL}, c.callbacks())
	c.wait(t)

	require.NoError(t, c.err)
	assert.Equal(t, "tiny", c.content())
}

func TestDo_ErrorStatusNeverStreamsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"model unavailable"}`)
	}))
	defer server.Close()

	c := newCollector()
	NewClient().Do(Request{URL: server.URL}, c.callbacks())
	c.wait(t)

	require.Error(t, c.err)
	var protoErr *api.ProtocolError
	require.True(t, errors.As(c.err, &protoErr))
	assert.Equal(t, http.StatusInternalServerError, protoErr.Status)
	assert.Equal(t, "model unavailable", protoErr.Message)
	// The error body must not have been delivered as content.
	assert.Empty(t, c.chunks)
}

func TestDo_TransportError(t *testing.T) {
	c := newCollector()
	NewClient().Do(Request{URL: "http://127.0.0.1:1/analyze"}, c.callbacks())
	c.wait(t)

	var transportErr *api.TransportError
	require.True(t, errors.As(c.err, &transportErr))
}

func TestDo_CancelIsIdempotentAndSuppressesCallbacks(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	c := newCollector()
	cancel := NewClient().Do(Request{URL: server.URL}, c.callbacks())

	time.Sleep(50 * time.Millisecond)
	cancel()
	cancel() // safe to call again

	// Give the reader goroutine time to observe the cancellation; neither
	// terminal callback may fire.
	time.Sleep(100 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.False(t, c.complete)
	assert.NoError(t, c.err)
}
