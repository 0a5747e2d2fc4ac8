package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
)

// ProgressCallback is called as object bytes move; total is -1 when unknown
type ProgressCallback func(written, total int64)

// Transfer stages objects between S3 and the local filesystem
type Transfer struct {
	client           *Client
	progressCallback ProgressCallback
}

// NewTransfer creates a new transfer helper
func NewTransfer(client *Client) *Transfer {
	return &Transfer{client: client}
}

// SetProgressCallback sets the progress callback function
func (t *Transfer) SetProgressCallback(callback ProgressCallback) {
	t.progressCallback = callback
}

// reportProgress calls the progress callback if set
func (t *Transfer) reportProgress(written, total int64) {
	if t.progressCallback != nil {
		t.progressCallback(written, total)
	}
}

// Fetch downloads the object at loc into a new temporary file under dir and
// returns its path. The caller owns the file. Nothing is left behind on error.
func (t *Transfer) Fetch(ctx context.Context, loc Location, dir string) (string, *ObjectInfo, error) {
	if loc.IsPrefix() {
		return "", nil, fmt.Errorf("fetch %s: location is a prefix, not an object", loc)
	}

	out, err := t.client.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return "", nil, wrapError("GetObject", loc.String(), err)
	}
	defer out.Body.Close()

	info := &ObjectInfo{
		Location:     loc,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: out.LastModified,
	}

	tmp, err := os.CreateTemp(dir, "filescan-*-"+path.Base(loc.Key))
	if err != nil {
		return "", nil, fmt.Errorf("create staging file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	total := info.Size
	if total <= 0 {
		total = -1
	}
	written, err := io.Copy(tmp, &progressReader{r: out.Body, total: total, report: t.reportProgress})
	if err != nil {
		return "", nil, wrapError("GetObject", loc.String(), err)
	}
	if total > 0 && written != total {
		return "", nil, fmt.Errorf("fetch %s: short body: got %d of %d bytes", loc, written, total)
	}
	if err := tmp.Close(); err != nil {
		return "", nil, fmt.Errorf("close staging file: %w", err)
	}

	info.Size = written
	committed = true
	return tmp.Name(), info, nil
}

// Store uploads the local file at localPath to loc. A prefix location
// receives the file under its base name.
func (t *Transfer) Store(ctx context.Context, localPath string, loc Location) (*ObjectInfo, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", localPath, err)
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(localPath); err == nil {
		contentType = mt.String()
	}

	dest := loc.Join(filepath.Base(localPath))
	out, err := t.client.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(dest.Bucket),
		Key:           aws.String(dest.Key),
		Body:          f,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, wrapError("PutObject", dest.String(), err)
	}
	t.reportProgress(stat.Size(), stat.Size())

	return &ObjectInfo{
		Location:    dest,
		Size:        stat.Size(),
		ContentType: contentType,
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

type progressReader struct {
	r      io.Reader
	n      int64
	total  int64
	report ProgressCallback
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.n += int64(n)
		p.report(p.n, p.total)
	}
	return n, err
}

// wrapError adds operator context to common S3 failures
func wrapError(operation, resource string, err error) error {
	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "AccessDenied") || strings.Contains(errMsg, "Access Denied"):
		return fmt.Errorf("%s failed for %s: access denied, check IAM permissions: %w", operation, resource, err)
	case strings.Contains(errMsg, "NoSuchBucket"):
		return fmt.Errorf("%s failed for %s: bucket does not exist or is in a different region: %w", operation, resource, err)
	case strings.Contains(errMsg, "NoSuchKey"):
		return fmt.Errorf("%s failed for %s: object does not exist: %w", operation, resource, err)
	case strings.Contains(errMsg, "SlowDown"):
		return fmt.Errorf("%s failed for %s: rate limit exceeded: %w", operation, resource, err)
	}

	return fmt.Errorf("%s failed for %s: %w", operation, resource, err)
}
