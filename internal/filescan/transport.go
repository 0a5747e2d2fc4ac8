package filescan

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultBaseURL is the public file API endpoint.
const DefaultBaseURL = "https://www.virustotal.com/vtapi/v2/"

// Request describes one call to the service.
type Request struct {
	Method string

	// Path is relative to the transport's base URL. Absolute http(s) URLs
	// are used as-is.
	Path string

	// Fields become multipart form fields for POST and the query string
	// for GET.
	Fields url.Values

	// File is an optional multipart file part. Only valid with POST.
	File *FormFile
}

// FormFile is a file part streamed into a multipart body.
type FormFile struct {
	Field       string
	Name        string
	ContentType string
	Body        io.Reader
}

// Transport issues requests. The returned response body is owned by the
// caller and must be closed.
type Transport interface {
	Do(ctx context.Context, req *Request) (*http.Response, error)
}

// HTTPTransport is the net/http backed Transport.
type HTTPTransport struct {
	baseURL   *url.URL
	client    *http.Client
	userAgent string
}

// NewHTTPTransport creates a transport rooted at baseURL. A nil client
// gets a pooled client with no global state.
func NewHTTPTransport(baseURL string, client *http.Client) (*HTTPTransport, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &HTTPTransport{baseURL: u, client: client}, nil
}

// SetUserAgent sets the User-Agent header sent with every request.
func (t *HTTPTransport) SetUserAgent(ua string) {
	t.userAgent = ua
}

// BaseURL returns the resolved base URL.
func (t *HTTPTransport) BaseURL() string {
	return t.baseURL.String()
}

func (t *HTTPTransport) resolve(path string) (*url.URL, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return url.Parse(path)
	}
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, err
	}
	return t.baseURL.ResolveReference(ref), nil
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*http.Response, error) {
	u, err := t.resolve(req.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", req.Path, err)
	}

	var httpReq *http.Request
	switch req.Method {
	case http.MethodGet:
		if req.File != nil {
			return nil, fmt.Errorf("file part not allowed on %s", req.Method)
		}
		if len(req.Fields) > 0 {
			u.RawQuery = req.Fields.Encode()
		}
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
	case http.MethodPost:
		body, contentType := multipartBody(req.Fields, req.File)
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
		if err != nil {
			_ = body.Close()
			return nil, err
		}
		httpReq.Header.Set("Content-Type", contentType)
	default:
		return nil, fmt.Errorf("unsupported method %q", req.Method)
	}

	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	return t.client.Do(httpReq)
}

// multipartBody streams fields and the optional file part through a pipe,
// so uploads are never held in memory.
func multipartBody(fields url.Values, file *FormFile) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(mw, fields, file)
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

func writeMultipart(mw *multipart.Writer, fields url.Values, file *FormFile) error {
	for _, key := range sortedKeys(fields) {
		for _, v := range fields[key] {
			if err := mw.WriteField(key, v); err != nil {
				return err
			}
		}
	}
	if file == nil {
		return nil
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(file.Field), escapeQuotes(file.Name)))
	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file.Body)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
