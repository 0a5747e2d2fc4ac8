package filescan

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method   string
	Path     string
	Fields   url.Values
	FileName string
	FileType string
	FileBody []byte
}

// spyTransport records every request and answers with respond.
type spyTransport struct {
	t       *testing.T
	calls   []recordedRequest
	respond func(n int, req *Request) (*http.Response, error)
}

func newSpy(t *testing.T, respond func(n int, req *Request) (*http.Response, error)) *spyTransport {
	t.Helper()
	return &spyTransport{t: t, respond: respond}
}

func (s *spyTransport) Do(ctx context.Context, req *Request) (*http.Response, error) {
	rec := recordedRequest{
		Method: req.Method,
		Path:   req.Path,
		Fields: url.Values{},
	}
	for k, v := range req.Fields {
		rec.Fields[k] = append([]string(nil), v...)
	}
	if req.File != nil {
		body, err := io.ReadAll(req.File.Body)
		require.NoError(s.t, err)
		rec.FileName = req.File.Name
		rec.FileType = req.File.ContentType
		rec.FileBody = body
	}
	s.calls = append(s.calls, rec)
	return s.respond(len(s.calls)-1, req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func always(resp func() *http.Response) func(int, *Request) (*http.Response, error) {
	return func(int, *Request) (*http.Response, error) {
		return resp(), nil
	}
}

// chunkedReader hands out at most size bytes per Read.
type chunkedReader struct {
	data []byte
	size int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.size
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data) {
		n = len(r.data)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func binaryResponse(data []byte, chunk int) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Type": []string{"application/octet-stream"}},
		Body:          io.NopCloser(&chunkedReader{data: data, size: chunk}),
		ContentLength: int64(len(data)),
	}
}

func newTestHandle(t *testing.T, spy *spyTransport, opts ...Option) *FileScan {
	t.Helper()
	opts = append([]Option{WithTransport(spy)}, opts...)
	fs, err := New(opts...)
	require.NoError(t, err)
	fs.SetAPIKey("test-key")
	t.Cleanup(func() {
		if fs.Refs() > 0 {
			Put(&fs)
		}
	})
	return fs
}
