// Package filescan is a client handle for the file reputation API: submit
// files, schedule rescans, fetch reports, search, read clustering data and
// download samples.
//
// A FileScan handle is reference counted. New returns a handle with one
// reference; Acquire adds one and Release drops one, destroying the handle
// on the last release. Operations on one handle must not run concurrently.
package filescan

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"
)

// FileScan is the client handle.
type FileScan struct {
	refs atomic.Int32

	transport Transport
	parser    Parser
	logger    *slog.Logger
	chunkSize int
	onRelease func()
	progress  ProgressFunc

	apiKey  string
	offset  string
	allInfo bool

	last *Response
}

type options struct {
	transport Transport
	baseURL   string
	client    *http.Client
	userAgent string
	parser    Parser
	parserSet bool
	logger    *slog.Logger
	chunkSize int
	onRelease func()
}

// Option configures a handle at construction.
type Option func(*options)

// WithTransport replaces the HTTP transport entirely.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithBaseURL sets the service root used by the default transport.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient sets the client used by the default transport. Timeouts
// are the client's responsibility.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithUserAgent sets the User-Agent of the default transport.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithParser sets the structured parsing capability. A nil parser makes
// Clusters fail with ErrUnavailable.
func WithParser(p Parser) Option {
	return func(o *options) {
		o.parser = p
		o.parserSet = true
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithChunkSize sets the read buffer size for downloads.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// WithReleaseHook registers fn to run once when the handle is destroyed.
func WithReleaseHook(fn func()) Option {
	return func(o *options) { o.onRelease = fn }
}

// New creates a handle holding one reference.
func New(opts ...Option) (*FileScan, error) {
	o := options{chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.chunkSize <= 0 {
		return nil, newError("new", KindConstruction, fmt.Errorf("chunk size must be positive, got %d", o.chunkSize))
	}

	transport := o.transport
	if transport == nil {
		ht, err := NewHTTPTransport(o.baseURL, o.client)
		if err != nil {
			return nil, newError("new", KindConstruction, err)
		}
		ht.SetUserAgent(o.userAgent)
		transport = ht
	}

	parser := o.parser
	if !o.parserSet {
		parser = JSONParser{}
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	f := &FileScan{
		transport: transport,
		parser:    parser,
		logger:    logger,
		chunkSize: o.chunkSize,
		onRelease: o.onRelease,
	}
	f.refs.Store(1)
	return f, nil
}

// Acquire adds a reference and returns f for chaining.
func (f *FileScan) Acquire() *FileScan {
	f.refs.Add(1)
	return f
}

// Release drops a reference and reports whether it destroyed the handle.
// The caller must not use f after its own release. Releasing a destroyed
// handle is a programming error and panics.
func (f *FileScan) Release() bool {
	n := f.refs.Add(-1)
	switch {
	case n > 0:
		return false
	case n == 0:
		f.destroy()
		return true
	default:
		panic("filescan: release of destroyed handle")
	}
}

// Put releases the handle in *slot and clears the slot.
func Put(slot **FileScan) {
	if slot == nil || *slot == nil {
		return
	}
	(*slot).Release()
	*slot = nil
}

// Refs returns the current reference count.
func (f *FileScan) Refs() int {
	return int(f.refs.Load())
}

func (f *FileScan) destroy() {
	f.last = nil
	f.apiKey = ""
	f.offset = ""
	f.progress = nil
	f.transport = nil
	f.parser = nil
	if f.onRelease != nil {
		f.onRelease()
		f.onRelease = nil
	}
}

// SetAPIKey sets the key sent with every request.
func (f *FileScan) SetAPIKey(key string) {
	f.apiKey = key
}

// APIKey returns the configured key.
func (f *FileScan) APIKey() string {
	return f.apiKey
}

// SetOffset sets the pagination token for the next Report or Search.
func (f *FileScan) SetOffset(offset string) {
	f.offset = offset
}

// Offset returns the current pagination token.
func (f *FileScan) Offset() string {
	return f.offset
}

// SetAllInfo asks Report for the extended report when the key allows it.
func (f *FileScan) SetAllInfo(enabled bool) {
	f.allInfo = enabled
}

// SetProgressCallback sets the download progress observer.
func (f *FileScan) SetProgressCallback(fn ProgressFunc) {
	f.progress = fn
}

// Response returns the reply of the last single-shot operation, or nil.
func (f *FileScan) Response() *Response {
	return f.last
}

// HasParser reports whether structured parsing is available.
func (f *FileScan) HasParser() bool {
	return f.parser != nil
}

// send issues req and classifies transport failures. The caller owns the
// response body.
func (f *FileScan) send(ctx context.Context, op string, req *Request) (*http.Response, error) {
	if req.Fields == nil {
		req.Fields = url.Values{}
	}
	req.Fields.Set("apikey", f.apiKey)

	start := time.Now()
	resp, err := f.transport.Do(ctx, req)
	if err != nil {
		f.logger.Debug("Request failed",
			slog.String("op", op),
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.Any("error", err))
		return nil, newError(op, classify(err), err)
	}
	f.logger.Debug("Request complete",
		slog.String("op", op),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))
	return resp, nil
}

// success reports whether status is a usable reply. The service answers
// 204 with an empty body when the key's quota is exhausted.
func success(status int) bool {
	return status >= 200 && status < 300 && status != http.StatusNoContent
}
