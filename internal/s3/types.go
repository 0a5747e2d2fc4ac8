package s3

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const uriScheme = "s3://"

// Location addresses a single object, or a key prefix when Key ends in "/"
type Location struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (l Location) String() string {
	return uriScheme + l.Bucket + "/" + l.Key
}

// IsPrefix reports whether the location names a folder rather than an object
func (l Location) IsPrefix() bool {
	return l.Key == "" || strings.HasSuffix(l.Key, "/")
}

// Join returns the object location for name under a prefix location. Object
// locations are returned unchanged.
func (l Location) Join(name string) Location {
	if !l.IsPrefix() {
		return l
	}
	return Location{Bucket: l.Bucket, Key: l.Key + path.Base(name)}
}

// IsURI reports whether s uses the s3:// scheme
func IsURI(s string) bool {
	return strings.HasPrefix(s, uriScheme)
}

// ParseURI parses s3://bucket/key. The key may be empty only when the URI
// ends with the bucket and a trailing slash.
func ParseURI(raw string) (Location, error) {
	if !IsURI(raw) {
		return Location{}, fmt.Errorf("not an s3 URI: %q", raw)
	}
	rest := strings.TrimPrefix(raw, uriScheme)
	bucket, key, found := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("missing bucket in %q", raw)
	}
	if !found {
		return Location{}, fmt.Errorf("missing key in %q (use s3://%s/ for the bucket root)", raw, bucket)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// ObjectInfo contains metadata about a transferred object
type ObjectInfo struct {
	Location     Location   `json:"location"`
	Size         int64      `json:"size"`
	ContentType  string     `json:"content_type,omitempty"`
	ETag         string     `json:"etag,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}
