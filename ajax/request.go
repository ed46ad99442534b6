// Package ajax provides an XHR-like request object and Do, which reports a
// request's outcome through a deferred.Deferred.
package ajax

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chrisuehlinger/vquery/loop"
	"github.com/chrisuehlinger/vquery/network"
)

var (
	// ErrAborted is the error of a request ended by Abort.
	ErrAborted = errors.New("ajax: request aborted")
	// ErrTimeout is the error of a request that exceeded its timeout.
	ErrTimeout = errors.New("ajax: request timed out")
)

// Outcome is how a request ended. Every sent request ends with exactly one.
type Outcome int

const (
	// OutcomeSuccess means a response was received, whatever its status.
	OutcomeSuccess Outcome = iota
	OutcomeError
	OutcomeTimeout
	OutcomeAbort
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeError:
		return "error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeAbort:
		return "abort"
	}
	return "unknown"
}

// ReadyState mirrors the XMLHttpRequest readyState values used here.
type ReadyState int

const (
	Unsent ReadyState = 0
	Opened ReadyState = 1
	Done   ReadyState = 4
)

// StatusError is the error of a response whose status is not 2xx or 304.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ajax: unexpected status %s", e.Status)
}

// Request is a single HTTP exchange. The outcome callback runs on the loop
// goroutine, except for Abort, which fires it on the caller's goroutine.
type Request struct {
	id     string
	client *network.Client
	loop   *loop.Loop
	logger *zap.Logger

	// limiter, when set, paces Send across every request sharing it.
	limiter *rate.Limiter

	mu         sync.Mutex
	method     string
	url        string
	header     http.Header
	timeout    time.Duration
	state      ReadyState
	sent       bool
	finished   bool
	status     int
	statusText string
	respHeader http.Header
	body       []byte
	err        error
	cancel     context.CancelFunc
	timer      *loop.Timer
	onDone     func(*Request, Outcome)
}

// NewRequest creates an unsent request that runs its I/O through client and
// reports back on lp.
func NewRequest(client *network.Client, lp *loop.Loop, logger *zap.Logger) *Request {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Request{
		id:     id,
		client: client,
		loop:   lp,
		logger: logger.Named("ajax").With(zap.String("request_id", id)),
		header: make(http.Header),
	}
}

// ID returns the request's unique identifier.
func (r *Request) ID() string { return r.id }

// Open sets the method and URL. It fails once the request has been sent.
func (r *Request) Open(method, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return fmt.Errorf("ajax: open: request already sent")
	}
	if url == "" {
		return fmt.Errorf("ajax: open: empty URL")
	}
	r.method = strings.ToUpper(method)
	if r.method == "" {
		r.method = http.MethodGet
	}
	r.url = url
	r.state = Opened
	return nil
}

// SetRequestHeader adds a request header. The request must be opened and not yet sent.
func (r *Request) SetRequestHeader(name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Opened || r.sent {
		return fmt.Errorf("ajax: set header %q: request not opened", name)
	}
	r.header.Add(name, value)
	return nil
}

// SetTimeout sets how long Send waits before the request times out. Zero
// disables the timeout.
func (r *Request) SetTimeout(d time.Duration) {
	r.mu.Lock()
	r.timeout = d
	r.mu.Unlock()
}

// Timeout returns the configured timeout.
func (r *Request) Timeout() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeout
}

// OnDone sets the callback that receives the request's single outcome.
func (r *Request) OnDone(fn func(*Request, Outcome)) {
	r.mu.Lock()
	r.onDone = fn
	r.mu.Unlock()
}

// Send starts the request. The response is read on a separate goroutine and
// its outcome is posted to the loop.
func (r *Request) Send(body io.Reader) error {
	r.mu.Lock()
	if r.state != Opened || r.sent {
		r.mu.Unlock()
		return fmt.Errorf("ajax: send: request not opened")
	}
	r.sent = true
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	if r.timeout > 0 {
		timer, err := r.loop.AfterFunc(r.timeout, r.expire)
		if err != nil {
			r.mu.Unlock()
			cancel()
			return fmt.Errorf("ajax: send: %w", err)
		}
		r.timer = timer
	}
	req := &network.Request{
		Method: r.method,
		URL:    r.url,
		Header: r.header.Clone(),
		Body:   body,
	}
	r.mu.Unlock()

	r.logger.Info("request sent", zap.String("method", req.Method), zap.String("url", req.URL))

	release := r.loop.Hold()
	go func() {
		defer release()
		var resp *network.Response
		err := r.wait(ctx)
		if err == nil {
			resp, err = r.client.Do(ctx, req)
		}
		if postErr := r.loop.Post(func() { r.complete(resp, err) }); postErr != nil {
			r.logger.Debug("response dropped", zap.Error(postErr))
		}
	}()
	return nil
}

// wait blocks until the limiter admits the request or ctx is done.
func (r *Request) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ajax: rate limit: %w", err)
	}
	return nil
}

// Abort cancels the request and fires the abort outcome if no other outcome
// has fired yet.
func (r *Request) Abort() {
	r.finish(OutcomeAbort, ErrAborted)
}

func (r *Request) expire() {
	r.finish(OutcomeTimeout, ErrTimeout)
}

func (r *Request) complete(resp *network.Response, err error) {
	if err != nil {
		r.finish(OutcomeError, err)
		return
	}
	r.mu.Lock()
	if !r.finished {
		r.status = resp.StatusCode
		r.statusText = resp.Status
		r.respHeader = resp.Header
		r.body = resp.Body
	}
	r.mu.Unlock()
	r.finish(OutcomeSuccess, nil)
}

// finish records the first outcome and drops any later one.
func (r *Request) finish(o Outcome, err error) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.state = Done
	r.err = err
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.cancel != nil {
		r.cancel()
	}
	cb := r.onDone
	r.mu.Unlock()

	r.logger.Info("request finished", zap.Stringer("outcome", o), zap.Int("status", r.Status()), zap.Error(err))
	if cb != nil {
		cb(r, o)
	}
}

// ReadyState returns the current ready state.
func (r *Request) ReadyState() ReadyState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Method returns the opened method.
func (r *Request) Method() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.method
}

// URL returns the opened URL.
func (r *Request) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url
}

// Status returns the HTTP status code, or 0 if no response was received.
func (r *Request) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// StatusText returns the HTTP status line, such as "404 Not Found".
func (r *Request) StatusText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusText
}

// ResponseHeader returns the first value of the named response header.
func (r *Request) ResponseHeader(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.respHeader.Get(name)
}

// ResponseText returns the response body.
func (r *Request) ResponseText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.body)
}

// Err returns the error of the outcome, or nil after a success.
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
