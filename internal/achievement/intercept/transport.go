// Package intercept decorates the application's shared HTTP transport so
// that award signals embedded in any backend response are detected without
// the issuing caller noticing. The decorated transport is installed and
// restored by the engine's lifecycle; no global state is mutated.
package intercept

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/wcarena/tracker/internal/achievement"
)

// maxInspectBytes caps how much of a response body is buffered for
// inspection. Larger bodies are passed through uninspected so the middleware
// never holds a full file download in memory.
const maxInspectBytes = 1 << 20

// Observer receives detected award signals. The engine is the production
// observer; tests substitute their own.
type Observer interface {
	AwardDetected(count int, updates *achievement.Patch)
}

// awardSignal mirrors the fragment the backend embeds in otherwise unrelated
// response bodies when a reward was granted server-side.
type awardSignal struct {
	AwardedCount int             `json:"awardedCount"`
	UserUpdates  json.RawMessage `json:"userUpdates"`
}

// Transport wraps a base http.RoundTripper. Every response is returned to
// the original caller byte-identical to what the base produced; a duplicate
// of JSON success bodies is inspected on a separate goroutine. Because
// inspection is decoupled from the call's resolution, award events for
// concurrently in-flight calls are emitted in settlement order, not in call
// order.
type Transport struct {
	base     http.RoundTripper
	observer Observer
	inflight sync.WaitGroup
}

// NewTransport wraps base with award-signal inspection. A nil base falls
// back to http.DefaultTransport.
func NewTransport(base http.RoundTripper, observer Observer) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, observer: observer}
}

// Base returns the wrapped transport so lifecycle teardown can restore it.
func (t *Transport) Base() http.RoundTripper {
	return t.base
}

// RoundTrip performs the real call and, when the response looks inspectable,
// duplicates the body for asynchronous award-signal detection. Inspection
// can never fail the caller's request or alter its response.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp == nil || !inspectable(resp) {
		return resp, err
	}

	original := resp.Body
	data, readErr := io.ReadAll(io.LimitReader(original, maxInspectBytes+1))
	if readErr != nil {
		// Replay what was read, then surface the same read error the
		// caller would have hit without the middleware.
		resp.Body = replayBody{
			Reader: io.MultiReader(bytes.NewReader(data), errReader{err: readErr}),
			closer: original,
		}
		return resp, nil
	}
	if len(data) > maxInspectBytes {
		// Too large to buffer; stream the remainder from the original
		// body and skip inspection.
		resp.Body = replayBody{
			Reader: io.MultiReader(bytes.NewReader(data), original),
			closer: original,
		}
		return resp, nil
	}

	_ = original.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))

	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		t.inspect(data)
	}()

	return resp, nil
}

// Flush blocks until all in-flight inspections have finished. Lifecycle
// teardown calls it so no inspection outlives the engine.
func (t *Transport) Flush() {
	t.inflight.Wait()
}

// inspect parses a duplicated body and reports an award signal when present.
// Any failure here is silent; the original caller already has its response.
func (t *Transport) inspect(data []byte) {
	defer func() {
		_ = recover()
	}()

	var signal awardSignal
	if err := json.Unmarshal(data, &signal); err != nil {
		return
	}
	if signal.AwardedCount <= 0 || t.observer == nil {
		return
	}

	var updates *achievement.Patch
	if patch, ok := achievement.ParseUpdates(signal.UserUpdates); ok {
		updates = &patch
	}
	t.observer.AwardDetected(signal.AwardedCount, updates)
}

// inspectable reports whether a response is worth duplicating: a success
// status with a structured JSON content type.
func inspectable(resp *http.Response) bool {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return false
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// replayBody hands buffered bytes back to the caller while keeping the
// original body as the closer.
type replayBody struct {
	io.Reader
	closer io.Closer
}

func (r replayBody) Close() error {
	return r.closer.Close()
}

// errReader replays a read error after buffered bytes are drained.
type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}
