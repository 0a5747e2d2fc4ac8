package filescan

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	fs, err := New()
	require.NoError(t, err)
	defer Put(&fs)

	assert.Equal(t, 1, fs.Refs())
	assert.True(t, fs.HasParser())
	assert.Nil(t, fs.Response())
	assert.Empty(t, fs.APIKey())
	assert.Empty(t, fs.Offset())

	ht, ok := fs.transport.(*HTTPTransport)
	require.True(t, ok, "expected default HTTPTransport, got %T", fs.transport)
	assert.Equal(t, DefaultBaseURL, ht.BaseURL())
}

func TestNew_ConstructionFailure(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"bad scheme", []Option{WithBaseURL("ftp://example.com/")}},
		{"unparsable url", []Option{WithBaseURL("http://[::1")}},
		{"zero chunk size", []Option{WithChunkSize(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := New(tt.opts...)
			require.Error(t, err)
			assert.Nil(t, fs)
			assert.True(t, errors.Is(err, ErrConstruction))
			assert.Equal(t, KindConstruction, KindOf(err))
		})
	}
}

func TestNew_WithoutParser(t *testing.T) {
	fs, err := New(WithParser(nil))
	require.NoError(t, err)
	defer Put(&fs)
	assert.False(t, fs.HasParser())
}

func TestRefCount_DestroyOnLastRelease(t *testing.T) {
	destroyed := 0
	fs, err := New(WithTransport(newSpy(t, nil)), WithReleaseHook(func() { destroyed++ }))
	require.NoError(t, err)
	fs.SetAPIKey("secret")

	other := fs.Acquire()
	third := fs.Acquire()
	assert.Equal(t, 3, fs.Refs())

	assert.False(t, third.Release())
	assert.False(t, other.Release())
	assert.Equal(t, 0, destroyed)
	assert.Equal(t, "secret", fs.APIKey())

	Put(&fs)
	assert.Nil(t, fs)
	assert.Equal(t, 1, destroyed)
	assert.Empty(t, other.APIKey())
	assert.Nil(t, other.Response())

	assert.Panics(t, func() { other.Release() })
	assert.Equal(t, 1, destroyed)
}

func TestRefCount_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		destroyed := 0
		fs, err := New(WithTransport(newSpy(t, nil)), WithReleaseHook(func() { destroyed++ }))
		require.NoError(t, err)

		live := 1
		for step := 0; step < 50 && live > 0; step++ {
			if rng.Intn(2) == 0 {
				fs.Acquire()
				live++
			} else {
				gone := fs.Release()
				live--
				assert.Equal(t, live == 0, gone)
			}
			if live > 0 {
				assert.Equal(t, live, fs.Refs())
				assert.Equal(t, 0, destroyed)
			}
		}
		for live > 0 {
			fs.Release()
			live--
		}
		assert.Equal(t, 1, destroyed, "round %d", round)
	}
}

func TestPut_NilSlot(t *testing.T) {
	Put(nil)
	var fs *FileScan
	Put(&fs)
	assert.Nil(t, fs)
}

func TestSetAPIKey_LatestValueSent(t *testing.T) {
	spy := newSpy(t, always(func() *http.Response {
		return jsonResponse(http.StatusOK, `{"response_code": 1}`)
	}))
	fs := newTestHandle(t, spy)

	fs.SetAPIKey("first")
	fs.SetAPIKey("second")
	_, err := fs.Report(context.Background(), "abc")
	require.NoError(t, err)

	require.Len(t, spy.calls, 1)
	assert.Equal(t, []string{"second"}, spy.calls[0].Fields["apikey"])
}

func TestMissingAPIKey_PassedThrough(t *testing.T) {
	spy := newSpy(t, always(func() *http.Response {
		return jsonResponse(http.StatusForbidden, "")
	}))
	fs := newTestHandle(t, spy)
	fs.SetAPIKey("")

	status, err := fs.Report(context.Background(), "abc")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, status)
	assert.True(t, IsAuthorization(err))
	require.Len(t, spy.calls, 1)
	assert.Equal(t, []string{""}, spy.calls[0].Fields["apikey"])
}
