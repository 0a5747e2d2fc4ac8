package filescan

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newCapturingTransport(t *testing.T, base string, inspect func(*http.Request)) *HTTPTransport {
	t.Helper()
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		inspect(req)
		if req.Body != nil {
			_, _ = io.Copy(io.Discard, req.Body)
			_ = req.Body.Close()
		}
		return jsonResponse(http.StatusOK, `{"response_code": 1}`), nil
	})}
	tr, err := NewHTTPTransport(base, client)
	require.NoError(t, err)
	return tr
}

func TestHTTPTransport_PostMultipart(t *testing.T) {
	var (
		gotURL    string
		gotUA     string
		gotFields url.Values
		gotFile   string
		gotName   string
		gotType   string
	)
	tr := newCapturingTransport(t, "https://api.example.com/vtapi/v2", func(req *http.Request) {
		gotURL = req.URL.String()
		gotUA = req.Header.Get("User-Agent")
		require.NoError(t, req.ParseMultipartForm(1<<20))
		gotFields = url.Values(req.MultipartForm.Value)
		fh := req.MultipartForm.File["file"]
		require.Len(t, fh, 1)
		gotName = fh[0].Filename
		gotType = fh[0].Header.Get("Content-Type")
		f, err := fh[0].Open()
		require.NoError(t, err)
		defer f.Close()
		b, err := io.ReadAll(f)
		require.NoError(t, err)
		gotFile = string(b)
	})
	tr.SetUserAgent("filescan-test/1.0")

	fields := url.Values{}
	fields.Set("apikey", "k")
	fields.Set("resource", "r")
	resp, err := tr.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "file/scan",
		Fields: fields,
		File: &FormFile{
			Field:       "file",
			Name:        `we"ird.exe`,
			ContentType: "application/x-dosexec",
			Body:        strings.NewReader("MZ payload"),
		},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://api.example.com/vtapi/v2/file/scan", gotURL)
	assert.Equal(t, "filescan-test/1.0", gotUA)
	assert.Equal(t, "k", gotFields.Get("apikey"))
	assert.Equal(t, "r", gotFields.Get("resource"))
	assert.Equal(t, "MZ payload", gotFile)
	assert.Equal(t, `we"ird.exe`, gotName)
	assert.Equal(t, "application/x-dosexec", gotType)
}

func TestHTTPTransport_GetQuery(t *testing.T) {
	var got *url.URL
	var gotBody bool
	tr := newCapturingTransport(t, "https://api.example.com/vtapi/v2/", func(req *http.Request) {
		got = req.URL
		gotBody = req.Body != nil && req.Body != http.NoBody
	})

	fields := url.Values{}
	fields.Set("apikey", "k")
	fields.Set("hash", "abc")
	resp, err := tr.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/file/download", Fields: fields})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "/vtapi/v2/file/download", got.Path)
	assert.Equal(t, "abc", got.Query().Get("hash"))
	assert.Equal(t, "k", got.Query().Get("apikey"))
	assert.False(t, gotBody)
}

func TestHTTPTransport_AbsolutePath(t *testing.T) {
	var got string
	tr := newCapturingTransport(t, "", func(req *http.Request) {
		got = req.URL.String()
	})

	resp, err := tr.Do(context.Background(), &Request{Method: http.MethodPost, Path: "https://upload.example.com/_ah/upload/xyz/"})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://upload.example.com/_ah/upload/xyz/", got)
}

func TestHTTPTransport_RejectsBadRequests(t *testing.T) {
	tr := newCapturingTransport(t, "", func(*http.Request) {
		t.Fatalf("no request expected")
	})

	_, err := tr.Do(context.Background(), &Request{Method: http.MethodDelete, Path: "file/scan"})
	assert.Error(t, err)

	_, err = tr.Do(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "file/scan",
		File:   &FormFile{Field: "file", Body: strings.NewReader("x")},
	})
	assert.Error(t, err)
}

func TestNewHTTPTransport_Defaults(t *testing.T) {
	tr, err := NewHTTPTransport("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, tr.BaseURL())
	assert.NotNil(t, tr.client)
}

func TestFileScan_EndToEndOverHTTP(t *testing.T) {
	var seen url.Values
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		require.NoError(t, req.ParseMultipartForm(1<<20))
		seen = url.Values(req.MultipartForm.Value)
		return jsonResponse(http.StatusOK, `{"response_code": 1, "positives": 2, "total": 70}`), nil
	})}
	fs, err := New(WithBaseURL("https://api.example.com/vtapi/v2/"), WithHTTPClient(client))
	require.NoError(t, err)
	defer Put(&fs)
	fs.SetAPIKey("live-key")

	_, err = fs.Report(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "live-key", seen.Get("apikey"))
	assert.Equal(t, "deadbeef", seen.Get("resource"))

	code, err := fs.Response().ResponseCode()
	require.NoError(t, err)
	assert.Equal(t, ResponseCodePresent, code)
}

func TestSend_LocalReadFailureIsIO(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		_, err := io.Copy(io.Discard, req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		return jsonResponse(http.StatusOK, `{"response_code": 1}`), nil
	})}
	fs, err := New(WithBaseURL("https://api.example.com/vtapi/v2/"), WithHTTPClient(client))
	require.NoError(t, err)
	defer Put(&fs)

	diskErr := errors.New("input/output error")
	_, err = fs.send(context.Background(), "scan", &Request{
		Method: http.MethodPost,
		Path:   "file/scan",
		File: &FormFile{
			Field: "file",
			Name:  "sample.bin",
			Body:  localReader{r: io.MultiReader(strings.NewReader("MZ"), iotest.ErrReader(diskErr))},
		},
	})
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))
	assert.True(t, errors.Is(err, diskErr))
}
