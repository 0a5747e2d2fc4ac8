package filescan

import (
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

// Service response codes carried in the "response_code" field.
const (
	ResponseCodeNotFound = 0
	ResponseCodePresent  = 1
	ResponseCodeQueued   = -2
)

// Response is the most recent single-shot reply held by a handle. It is
// never modified after it is stored; the next call replaces it.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Bytes returns the raw body.
func (r *Response) Bytes() []byte {
	if r == nil {
		return nil
	}
	return r.Body
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return &Error{Op: "decode", Kind: KindMalformed, Err: fmt.Errorf("empty body")}
	}
	if err := jsonAPI.Unmarshal(r.Body, v); err != nil {
		return &Error{Op: "decode", Kind: KindMalformed, Err: err}
	}
	return nil
}

// ResponseCode returns the body's response_code field.
func (r *Response) ResponseCode() (int, error) {
	var env struct {
		ResponseCode *int `json:"response_code"`
	}
	if err := r.Decode(&env); err != nil {
		return 0, err
	}
	if env.ResponseCode == nil {
		return 0, &Error{Op: "decode", Kind: KindMalformed, Err: fmt.Errorf("response_code missing")}
	}
	return *env.ResponseCode, nil
}

// Offset returns the continuation token embedded in the body, or "" when
// there is none. Report pagination is caller driven: feed the value back
// with SetOffset.
func (r *Response) Offset() string {
	if r == nil || len(r.Body) == 0 {
		return ""
	}
	iter := jsonAPI.BorrowIterator(r.Body)
	defer jsonAPI.ReturnIterator(iter)
	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return ""
	}
	var offset string
	iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		if field == "offset" {
			offset = readLooseString(it)
			return true
		}
		it.Skip()
		return true
	})
	return offset
}

// readLooseString reads a string or number token as a string. The service
// has returned numeric offsets on some endpoints.
func readLooseString(it *jsoniter.Iterator) string {
	switch it.WhatIsNext() {
	case jsoniter.StringValue:
		return it.ReadString()
	case jsoniter.NumberValue:
		return it.ReadNumber().String()
	default:
		it.Skip()
		return ""
	}
}
