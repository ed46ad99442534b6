package ajax

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chrisuehlinger/vquery/deferred"
	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/loop"
	"github.com/chrisuehlinger/vquery/network"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Data types understood by Do.
const (
	DataTypeJSON = "json"
	DataTypeHTML = "html"
	DataTypeText = "text"
)

// Failure kinds passed as the second rejection argument.
const (
	KindError       = "error"
	KindTimeout     = "timeout"
	KindAbort       = "abort"
	KindParserError = "parsererror"
)

// Settings describes one request made with Do.
type Settings struct {
	URL    string
	Method string
	Header map[string]string
	// Body is sent as the request body; ContentType labels it.
	Body        string
	ContentType string
	// DataType selects how a successful body is decoded: "json" into
	// map/slice values, "html" into detached nodes, "text" as a string. When
	// empty it is inferred from the response Content-Type.
	DataType string
	// Timeout overrides the client default. A negative value disables it.
	Timeout time.Duration
	// BeforeSend runs after the request is opened and its headers are set.
	// Returning false aborts the request before it is sent.
	BeforeSend func(*Request) bool
	// Document resolves relative URLs and owns parsed HTML.
	Document *dom.Document
}

// Client issues requests and settles a Deferred per request.
type Client struct {
	http            *network.Client
	loop            *loop.Loop
	logger          *zap.Logger
	defaultTimeout  time.Duration
	defaultDataType string
	limiter         *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDefaultTimeout sets the timeout of requests whose Settings leave it zero.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

// WithDefaultDataType sets the data type of requests whose Settings leave it empty.
func WithDefaultDataType(dataType string) Option {
	return func(c *Client) { c.defaultDataType = dataType }
}

// WithRateLimit paces requests to at most rps per second with the given
// burst. A non-positive rps leaves requests unthrottled.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a Client that performs I/O with httpClient and settles
// deferreds on lp.
func NewClient(httpClient *network.Client, lp *loop.Loop, opts ...Option) *Client {
	c := &Client{
		http:   httpClient,
		loop:   lp,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRequest creates an unsent request bound to the client's transport and loop.
func (c *Client) NewRequest() *Request {
	req := NewRequest(c.http, c.loop, c.logger)
	req.limiter = c.limiter
	return req
}

// Do sends the request described by s. The returned Deferred uses the
// *Request as its context. It resolves with (body, "success", req) and
// rejects with (req, kind, err), where kind is one of "error", "timeout",
// "abort" or "parsererror".
func (c *Client) Do(s Settings) *deferred.Deferred {
	d := deferred.New(deferred.WithLogger(c.logger))
	req := c.NewRequest()

	target := s.URL
	if s.Document != nil {
		resolved, err := network.ResolveURL(s.Document.URL(), s.URL)
		if err != nil {
			return d.RejectWith(req, req, KindError, err)
		}
		target = resolved
	}
	if err := req.Open(s.Method, target); err != nil {
		return d.RejectWith(req, req, KindError, err)
	}
	for k, v := range s.Header {
		if err := req.SetRequestHeader(k, v); err != nil {
			return d.RejectWith(req, req, KindError, err)
		}
	}
	if s.Body != "" && s.ContentType != "" {
		if err := req.SetRequestHeader("Content-Type", s.ContentType); err != nil {
			return d.RejectWith(req, req, KindError, err)
		}
	}

	timeout := s.Timeout
	if timeout == 0 {
		timeout = c.defaultTimeout
	}
	if timeout > 0 {
		req.SetTimeout(timeout)
	}

	dataType := s.DataType
	if dataType == "" {
		dataType = c.defaultDataType
	}
	req.OnDone(func(req *Request, o Outcome) {
		c.settle(d, req, o, dataType, s.Document)
	})

	if s.BeforeSend != nil && !s.BeforeSend(req) {
		req.Abort()
		return d
	}
	var body io.Reader
	if s.Body != "" {
		body = strings.NewReader(s.Body)
	}
	if err := req.Send(body); err != nil {
		d.RejectWith(req, req, KindError, err)
	}
	return d
}

// settle maps the request outcome onto exactly one settlement of d.
func (c *Client) settle(d *deferred.Deferred, req *Request, o Outcome, dataType string, doc *dom.Document) {
	switch o {
	case OutcomeTimeout:
		d.RejectWith(req, req, KindTimeout, req.Err())
		return
	case OutcomeAbort:
		d.RejectWith(req, req, KindAbort, req.Err())
		return
	case OutcomeError:
		d.RejectWith(req, req, KindError, req.Err())
		return
	}

	status := req.Status()
	if !((status >= 200 && status < 300) || status == http.StatusNotModified) {
		d.RejectWith(req, req, KindError, &StatusError{Code: status, Status: req.StatusText()})
		return
	}

	body, err := decode(req, dataType, doc)
	if err != nil {
		d.RejectWith(req, req, KindParserError, err)
		return
	}
	d.ResolveWith(req, body, "success", req)
}

func decode(req *Request, dataType string, doc *dom.Document) (any, error) {
	if dataType == "" {
		switch ct := req.ResponseHeader("Content-Type"); {
		case network.IsJSONContentType(ct):
			dataType = DataTypeJSON
		case network.IsHTMLContentType(ct):
			dataType = DataTypeHTML
		default:
			dataType = DataTypeText
		}
	}

	text := req.ResponseText()
	switch dataType {
	case DataTypeJSON:
		if text == "" {
			return nil, nil
		}
		var v any
		if err := json.UnmarshalFromString(text, &v); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return v, nil
	case DataTypeHTML:
		if doc == nil {
			doc = dom.NewDocument()
		}
		nodes, err := dom.ParseFragment(doc, text)
		if err != nil {
			return nil, fmt.Errorf("decode html: %w", err)
		}
		return nodes, nil
	case DataTypeText:
		return text, nil
	}
	return nil, fmt.Errorf("unknown data type %q", dataType)
}

// Get issues a GET request.
func (c *Client) Get(url string) *deferred.Deferred {
	return c.Do(Settings{URL: url, Method: http.MethodGet})
}

// GetJSON issues a GET request and decodes the body as JSON.
func (c *Client) GetJSON(url string) *deferred.Deferred {
	return c.Do(Settings{URL: url, Method: http.MethodGet, DataType: DataTypeJSON})
}

// Post issues a POST request with the given body.
func (c *Client) Post(url, contentType, body string) *deferred.Deferred {
	return c.Do(Settings{URL: url, Method: http.MethodPost, ContentType: contentType, Body: body})
}
