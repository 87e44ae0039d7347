// Package stream implements the chunked-transfer client for the analysis
// endpoint. The backend writes a growing text body terminated by connection
// close; chunks are read incrementally from the response body and handed to
// the caller as they arrive.
package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"

	"github.com/patternhq/pattern-engine/internal/api"
)

// readBufferSize is the size of the body read buffer. Analysis chunks are
// short markdown fragments, so a small buffer keeps latency low.
const readBufferSize = 4096

// logIDMaxBuffer is how much leading content we hold back while waiting for
// a complete server-id line. Past this point the stream is assumed to carry
// no id and the held content is flushed as ordinary chunks.
const logIDMaxBuffer = 100

// logIDPattern matches the optional server-assigned id line that may open
// the stream: [LOG_ID:<id>]\n
var logIDPattern = regexp.MustCompile(`^\[LOG_ID:([^\]]+)\]\n`)

// Callbacks receive stream events. All callbacks are invoked sequentially
// from a single goroutine; exactly one of OnComplete or OnError fires, after
// which no further callbacks arrive. Chunks delivered before a failure
// remain valid.
type Callbacks struct {
	// OnChunk receives only the newly-arrived text, never already-seen
	// content.
	OnChunk func(chunk string)
	// OnLogID fires at most once, with the server-assigned report id when
	// the stream opens with one.
	OnLogID func(id string)
	OnComplete func()
	OnError    func(err error)
}

// Client issues streaming requests.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a streaming client. The http.Client must not have a
// global timeout set: analysis responses are long-lived by design and the
// orchestrator owns the timeout policy.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{}}
}

// NewClientWith uses the provided http.Client, e.g. for tests.
func NewClientWith(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

// Request describes one streaming call.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    io.Reader
}

// Do starts the request and returns a cancel function. Cancel is idempotent
// and a no-op once the stream has completed; cancelling suppresses further
// callbacks, including OnError.
func (c *Client) Do(req Request, cb Callbacks) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go c.run(ctx, req, cb)

	var once sync.Once
	return func() {
		once.Do(cancel)
	}
}

func (c *Client) run(ctx context.Context, req Request, cb Callbacks) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, req.Body)
	if err != nil {
		c.fail(ctx, cb, fmt.Errorf("failed to create request: %w", err))
		return
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.fail(ctx, cb, &api.TransportError{Err: err})
		return
	}
	defer resp.Body.Close()

	// A non-2xx body is an error payload, not content. Never deliver it as
	// chunks.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.fail(ctx, cb, &api.ProtocolError{
			Status:  resp.StatusCode,
			Message: api.ReadErrorMessage(resp.Body),
		})
		return
	}

	var (
		pending    string
		idResolved bool
	)
	buf := make([]byte, readBufferSize)

	emit := func(chunk string) {
		if chunk != "" && cb.OnChunk != nil {
			cb.OnChunk(chunk)
		}
	}

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			if !idResolved {
				pending += chunk
				if m := logIDPattern.FindStringSubmatch(pending); m != nil {
					idResolved = true
					if cb.OnLogID != nil {
						cb.OnLogID(m[1])
					}
					emit(pending[len(m[0]):])
					pending = ""
				} else if len(pending) > logIDMaxBuffer {
					// Too much content without an id line; assume none.
					idResolved = true
					emit(pending)
					pending = ""
				}
			} else {
				emit(chunk)
			}
		}

		if err == io.EOF {
			if ctx.Err() != nil {
				return
			}
			emit(pending)
			if cb.OnComplete != nil {
				cb.OnComplete()
			}
			return
		}
		if err != nil {
			c.fail(ctx, cb, &api.TransportError{Err: err})
			return
		}
	}
}

// fail reports a terminal error unless the caller already cancelled.
func (c *Client) fail(ctx context.Context, cb Callbacks, err error) {
	if ctx.Err() != nil {
		return
	}
	if cb.OnError != nil {
		cb.OnError(err)
	}
}
