package filescan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// maxErrorBody bounds the service payload kept on a streaming error.
const maxErrorBody = 64 * 1024

// Cluster is one record of the daily clustering report.
type Cluster struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	Size         int     `json:"size"`
	AvgPositives float64 `json:"avg_positives"`
}

// Search runs query and passes each matching resource to sink in the order
// the service returns them. The current offset is sent when set, and on
// success it is replaced by the continuation token of the reply ("" once
// the result set is exhausted).
func (f *FileScan) Search(ctx context.Context, query string, sink Sink[string]) (int, error) {
	const op = "search"

	fields := url.Values{}
	fields.Set("query", query)
	if f.offset != "" {
		fields.Set("offset", f.offset)
	}
	resp, err := f.send(ctx, op, &Request{Method: http.MethodPost, Path: "file/search", Fields: fields})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return resp.StatusCode, streamServiceError(op, resp)
	}

	body := &readTracker{r: resp.Body}
	next, err := decodeSearch(body, sink)
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			fe.Op = op
			return resp.StatusCode, fe
		}
		if body.err != nil {
			return resp.StatusCode, newError(op, classify(body.err), body.err)
		}
		return resp.StatusCode, newError(op, KindMalformed, err)
	}
	f.offset = next
	return resp.StatusCode, nil
}

// decodeSearch streams the hashes array of a search reply into sink
// without holding the whole body in memory.
func decodeSearch(body io.Reader, sink Sink[string]) (string, error) {
	iter := jsoniter.Parse(jsonAPI, body, 4096)

	if iter.WhatIsNext() != jsoniter.ObjectValue {
		if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
			return "", iter.Error
		}
		return "", fmt.Errorf("search reply is not an object")
	}

	var (
		next    string
		sinkErr error
	)
	iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		switch field {
		case "hashes":
			if it.WhatIsNext() == jsoniter.NilValue {
				it.Skip()
				return true
			}
			return it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
				if it.WhatIsNext() != jsoniter.StringValue {
					it.ReportError("search", "hash entry is not a string")
					return false
				}
				if err := sink.Consume(it.ReadString()); err != nil {
					sinkErr = err
					return false
				}
				return true
			})
		case "offset":
			next = readLooseString(it)
		default:
			it.Skip()
		}
		return true
	})

	if sinkErr != nil {
		return "", &Error{Kind: KindCancelled, Err: sinkErr}
	}
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return "", iter.Error
	}
	return next, nil
}

// Clusters fetches the clustering report for date (YYYY-MM-DD) and passes
// each cluster to sink. It needs the structured parsing capability and
// fails with ErrUnavailable, without a request, when it is absent.
func (f *FileScan) Clusters(ctx context.Context, date string, sink Sink[Cluster]) (int, error) {
	const op = "clusters"

	if f.parser == nil {
		return 0, newError(op, KindUnavailable, fmt.Errorf("no structured parser configured"))
	}

	fields := url.Values{}
	fields.Set("date", date)
	resp, err := f.send(ctx, op, &Request{Method: http.MethodGet, Path: "file/clusters", Fields: fields})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return resp.StatusCode, streamServiceError(op, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, newError(op, classify(err), err)
	}
	var env struct {
		ResponseCode int       `json:"response_code"`
		VerboseMsg   string    `json:"verbose_msg"`
		Clusters     []Cluster `json:"clusters"`
	}
	if err := f.parser.Unmarshal(body, &env); err != nil {
		return resp.StatusCode, newError(op, KindMalformed, err)
	}
	f.logger.Debug("Clusters decoded",
		"date", date,
		"response_code", env.ResponseCode,
		"clusters", len(env.Clusters))

	for _, c := range env.Clusters {
		if err := sink.Consume(c); err != nil {
			return resp.StatusCode, newError(op, KindCancelled, err)
		}
	}
	return resp.StatusCode, nil
}

// Download streams the sample identified by hash into sink chunk by chunk.
// The chunk slice is reused; sink must copy what it keeps. A sink error
// aborts the transfer with KindCancelled.
func (f *FileScan) Download(ctx context.Context, hash string, sink Sink[[]byte]) (int, error) {
	const op = "download"

	fields := url.Values{}
	fields.Set("hash", hash)
	resp, err := f.send(ctx, op, &Request{Method: http.MethodGet, Path: "file/download", Fields: fields})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return resp.StatusCode, streamServiceError(op, resp)
	}

	bufPtr, put := getChunk(f.chunkSize)
	defer put()
	buf := *bufPtr

	total := resp.ContentLength
	if total <= 0 {
		total = -1
	}
	var written int64
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if err := sink.Consume(buf[:n]); err != nil {
				return resp.StatusCode, newError(op, KindCancelled, err)
			}
			written += int64(n)
			if f.progress != nil {
				f.progress(written, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return resp.StatusCode, newError(op, classify(rerr), rerr)
		}
	}

	if total > 0 && written != total {
		return resp.StatusCode, newError(op, KindMalformed,
			fmt.Errorf("short body: got %d of %d bytes", written, total))
	}
	return resp.StatusCode, nil
}

// DownloadToFile downloads hash into outPath. Data is written to a
// temporary file next to outPath and renamed into place only when the
// transfer is complete, so a failed download never leaves a partial file
// at outPath.
func (f *FileScan) DownloadToFile(ctx context.Context, hash, outPath string) (int, error) {
	const op = "download_to_file"

	tmp, err := os.CreateTemp(filepath.Dir(outPath), "."+filepath.Base(outPath)+".part-*")
	if err != nil {
		return 0, newError(op, KindIO, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	var writeErr error
	status, err := f.Download(ctx, hash, SinkFunc[[]byte](func(chunk []byte) error {
		if _, werr := tmp.Write(chunk); werr != nil {
			writeErr = werr
			return werr
		}
		return nil
	}))
	if writeErr != nil {
		return status, newError(op, KindIO, writeErr)
	}
	if err != nil {
		return status, err
	}

	if err := tmp.Sync(); err != nil {
		return status, newError(op, KindIO, err)
	}
	if err := tmp.Close(); err != nil {
		return status, newError(op, KindIO, err)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		return status, newError(op, KindIO, err)
	}
	committed = true
	return status, nil
}

// readTracker remembers the last read error other than io.EOF, so a body
// cut off by the network is not mistaken for a malformed one.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

func streamServiceError(op string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return serviceError(op, resp.StatusCode, body)
}
