package filescan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// LargeFileThreshold is the biggest file posted to file/scan directly.
// Larger files go to a one-time upload URL.
const LargeFileThreshold = 32 * 1024 * 1024

var largeFileThreshold int64 = LargeFileThreshold

// rescanDateLayout is the service's YYYYMMDDhhmmss date format.
const rescanDateLayout = "20060102150405"

// sniffLen is how much of a file is read for content type detection.
const sniffLen = 3072

// RescanOptions are the optional parameters of RescanHash. Zero values are
// left out of the request so the service applies its defaults.
type RescanOptions struct {
	// Date schedules the rescan; zero means immediately.
	Date time.Time
	// Period in days between rescans; zero means no recurrence.
	Period int
	// Repeat is how many times to rescan every Period days.
	Repeat int
	// NotifyURL receives a POST with the results. Needs elevated permission.
	NotifyURL string
	// NotifyChangesOnly limits notifications to changed results.
	NotifyChangesOnly bool
}

func (o RescanOptions) fields(v url.Values) {
	if !o.Date.IsZero() {
		v.Set("date", o.Date.UTC().Format(rescanDateLayout))
	}
	if o.Period != 0 {
		v.Set("period", strconv.Itoa(o.Period))
	}
	if o.Repeat != 0 {
		v.Set("repeat", strconv.Itoa(o.Repeat))
	}
	if o.NotifyURL != "" {
		v.Set("notify_url", o.NotifyURL)
		if o.NotifyChangesOnly {
			v.Set("notify_changes_only", "1")
		}
	}
}

// Scan uploads the file at path for analysis. A path that cannot be opened
// fails with KindIO before any request is made, and so does a read failure
// while the file is streamed.
func (f *FileScan) Scan(ctx context.Context, path string) (int, error) {
	return f.ScanAs(ctx, path, filepath.Base(path))
}

// ScanAs is Scan with the file name reported to the service set to name.
func (f *FileScan) ScanAs(ctx context.Context, path, name string) (int, error) {
	const op = "scan"

	file, err := os.Open(path)
	if err != nil {
		return 0, newError(op, KindIO, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, newError(op, KindIO, err)
	}
	if info.IsDir() {
		return 0, newError(op, KindIO, fmt.Errorf("%s is a directory", path))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, newError(op, KindIO, err)
	}
	head = head[:n]

	target := "file/scan"
	if info.Size() > largeFileThreshold {
		target, err = f.uploadURL(ctx)
		if err != nil {
			return StatusCode(err), err
		}
	}

	req := &Request{
		Method: http.MethodPost,
		Path:   target,
		Fields: url.Values{},
		File: &FormFile{
			Field:       "file",
			Name:        name,
			ContentType: mimetype.Detect(head).String(),
			Body:        localReader{r: io.MultiReader(bytes.NewReader(head), file)},
		},
	}
	return f.roundTrip(ctx, op, req)
}

// uploadURL fetches a one-time URL for files above LargeFileThreshold.
// Only a failed lookup is kept as the call's Response.
func (f *FileScan) uploadURL(ctx context.Context) (string, error) {
	const op = "scan"

	resp, err := f.fetch(ctx, op, &Request{Method: http.MethodGet, Path: "file/scan/upload_url"})
	if err != nil {
		return "", err
	}
	if !success(resp.StatusCode) {
		f.last = resp
		return "", serviceError(op, resp.StatusCode, nil)
	}
	var env struct {
		UploadURL string `json:"upload_url"`
	}
	if err := resp.Decode(&env); err != nil {
		return "", err
	}
	if env.UploadURL == "" {
		return "", newError(op, KindMalformed, fmt.Errorf("upload_url missing"))
	}
	return env.UploadURL, nil
}

// RescanHash asks the service to rescan a known resource, now or on a
// schedule. Permission failures come back as a KindService error.
func (f *FileScan) RescanHash(ctx context.Context, hash string, opts RescanOptions) (int, error) {
	fields := url.Values{}
	fields.Set("resource", hash)
	opts.fields(fields)
	return f.roundTrip(ctx, "rescan", &Request{
		Method: http.MethodPost,
		Path:   "file/rescan",
		Fields: fields,
	})
}

// RescanDelete cancels a scheduled rescan of hash.
func (f *FileScan) RescanDelete(ctx context.Context, hash string) (int, error) {
	fields := url.Values{}
	fields.Set("resource", hash)
	return f.roundTrip(ctx, "rescan_delete", &Request{
		Method: http.MethodPost,
		Path:   "file/rescan/delete",
		Fields: fields,
	})
}

// Report fetches the report for a hash, scan id or other resource token.
// The current offset, when set, is sent for pagination; the continuation
// token of the reply is available from Response().Offset().
func (f *FileScan) Report(ctx context.Context, resource string) (int, error) {
	fields := url.Values{}
	fields.Set("resource", resource)
	if f.offset != "" {
		fields.Set("offset", f.offset)
	}
	if f.allInfo {
		fields.Set("allinfo", "1")
	}
	return f.roundTrip(ctx, "report", &Request{
		Method: http.MethodPost,
		Path:   "file/report",
		Fields: fields,
	})
}

// roundTrip issues a single-shot request and stores the reply. The body is
// read completely before the stored Response is replaced.
func (f *FileScan) roundTrip(ctx context.Context, op string, req *Request) (int, error) {
	resp, err := f.fetch(ctx, op, req)
	if err != nil {
		return 0, err
	}
	f.last = resp
	if !success(resp.StatusCode) {
		return resp.StatusCode, serviceError(op, resp.StatusCode, nil)
	}
	return resp.StatusCode, nil
}

func (f *FileScan) fetch(ctx context.Context, op string, req *Request) (*Response, error) {
	resp, err := f.send(ctx, op, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(op, classify(err), err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}
