package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexander-D-Karpov/streamplayer/internal/storage"
)

func TestHTTPTransportFetch(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "streamplayer-test", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/res/roms/my rom.bin":
			_, _ = w.Write([]byte("rom"))
		case "/res/flaky.bin":
			if hits.Load() < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("finally"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPOptions{
		BaseURL:      srv.URL + "/res/",
		Timeout:      time.Second,
		Retries:      3,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
		UserAgent:    "streamplayer-test",
	})
	ctx := context.Background()

	u, err := tr.URL("roms/my rom.bin")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/res/roms/my%20rom.bin", u)

	data, err := tr.Fetch(ctx, "roms/my rom.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("rom"), data)

	_, err = tr.Fetch(ctx, "missing.bin")
	assert.ErrorIs(t, err, ErrNotFound)

	hits.Store(0)
	data, err = tr.Fetch(ctx, "flaky.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("finally"), data)
	assert.EqualValues(t, 3, hits.Load())

	data, err = tr.Fetch(ctx, srv.URL+"/res/roms/my%20rom.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("rom"), data)
}

func TestHTTPTransportWithoutBaseURL(t *testing.T) {
	t.Parallel()

	tr := NewHTTPTransport(HTTPOptions{Timeout: time.Second})
	_, err := tr.Fetch(context.Background(), "rom.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirTransport(t *testing.T) {
	t.Parallel()

	first, second := t.TempDir(), t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(second, "samples"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(second, "samples", "Kick.WAV"), []byte("kick"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(first, "rom.bin"), []byte("rom"), 0o644))

	tr := NewDirTransport([]string{first, second}, false)
	ctx := context.Background()

	data, err := tr.Fetch(ctx, "rom.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("rom"), data)

	data, err = tr.Fetch(ctx, "samples/kick.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("kick"), data)

	_, err = tr.Fetch(ctx, "samples/snare.wav")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tr.Fetch(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreTransportWritesBack(t *testing.T) {
	t.Parallel()

	db, err := storage.Open(filepath.Join(t.TempDir(), "res.db"), false, false)
	require.NoError(t, err)
	defer db.Close()

	var calls atomic.Int32
	next := TransportFunc(func(_ context.Context, key string) ([]byte, error) {
		calls.Add(1)
		if key == "bad.bin" {
			return nil, errors.New("boom")
		}
		return []byte("from-network"), nil
	})
	tr := NewStoreTransport(db, next, false)
	ctx := context.Background()

	data, err := tr.Fetch(ctx, "rom.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-network"), data)

	data, err = tr.Fetch(ctx, "rom.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-network"), data)
	assert.EqualValues(t, 1, calls.Load())

	_, err = tr.Fetch(ctx, "bad.bin")
	require.Error(t, err)
	_, err = db.LoadResource(ctx, "bad.bin")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestChainFallsThrough(t *testing.T) {
	t.Parallel()

	missing := TransportFunc(func(context.Context, string) ([]byte, error) { return nil, ErrNotFound })
	found := TransportFunc(func(context.Context, string) ([]byte, error) { return []byte("ok"), nil })

	data, err := Chain{missing, found}.Fetch(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)

	_, err = Chain{missing, missing}.Fetch(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Chain{}.Fetch(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirTransportAddDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.bin"), []byte("late"), 0o644))

	tr := NewDirTransport(nil, false)
	_, err := tr.Fetch(context.Background(), "late.bin")
	require.ErrorIs(t, err, ErrNotFound)

	tr.AddDir(dir)
	tr.AddDir(dir)
	assert.Equal(t, []string{dir}, tr.Dirs())

	data, err := tr.Fetch(context.Background(), "late.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("late"), data)
}

func TestDirTransportMissFallsThroughChain(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kick2.wav"), []byte("KICK2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Café.ogg"), []byte("CAFE"), 0o644))

	remote := TransportFunc(func(_ context.Context, key string) ([]byte, error) {
		return []byte("REMOTE:" + key), nil
	})
	chain := Chain{NewDirTransport([]string{dir}, false), remote}
	ctx := context.Background()

	data, err := chain.Fetch(ctx, "kick.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("REMOTE:kick.wav"), data)

	data, err = chain.Fetch(ctx, "kick2.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("KICK2"), data)

	data, err = chain.Fetch(ctx, "cafe.ogg")
	require.NoError(t, err)
	assert.Equal(t, []byte("CAFE"), data)
}
