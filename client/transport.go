package client

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// callHeader tags a request with the FetchJSON call that issued it. It is
// removed before the request leaves the process.
const callHeader = "X-Librosync-Call"

// callTransport cancels an in-flight request when the context of the call
// that issued it is done. colly builds its requests without a context, so
// the call is found through callHeader.
type callTransport struct {
	base http.RoundTripper

	mu    sync.Mutex
	calls map[string]context.Context
}

func newCallTransport(base http.RoundTripper) *callTransport {
	return &callTransport{base: base, calls: make(map[string]context.Context)}
}

// register ties ctx to a new call ID. release must be called once the call
// has returned.
func (t *callTransport) register(ctx context.Context) (id string, release func()) {
	id = uuid.NewString()
	t.mu.Lock()
	t.calls[id] = ctx
	t.mu.Unlock()
	return id, func() {
		t.mu.Lock()
		delete(t.calls, id)
		t.mu.Unlock()
	}
}

func (t *callTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := req.Header.Get(callHeader)
	if id == "" {
		return t.base.RoundTrip(req)
	}
	t.mu.Lock()
	callCtx, ok := t.calls[id]
	t.mu.Unlock()

	// req.Context carries the http.Client timeout; keep it as the parent.
	ctx, cancel := context.WithCancel(req.Context())
	stop := func() bool { return false }
	if ok {
		stop = context.AfterFunc(callCtx, cancel)
	}

	out := req.Clone(ctx)
	out.Header.Del(callHeader)

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		stop()
		cancel()
		return nil, err
	}
	resp.Body = &callBody{ReadCloser: resp.Body, done: func() {
		stop()
		cancel()
	}}
	return resp, nil
}

type callBody struct {
	io.ReadCloser
	once sync.Once
	done func()
}

func (b *callBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.done)
	return err
}
