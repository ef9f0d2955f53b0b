package object

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docunexus/pkg/config"
	dnerrors "docunexus/pkg/errors"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	ok, err := s.Exists(ctx, "uploads/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "uploads/a.txt", bytes.NewReader([]byte("hello")), 5, map[string]string{"owner": "alice"}))
	require.NoError(t, s.Put(ctx, "uploads/b.txt", bytes.NewReader([]byte("world!")), 6, nil))
	require.NoError(t, s.Put(ctx, "audio/c.wav", bytes.NewReader([]byte("RIFF")), 4, nil))

	ok, err = s.Exists(ctx, "uploads/a.txt")
	require.NoError(t, err)
	assert.True(t, ok, "Exists should be true after Put")

	rc, err := s.Get(ctx, "uploads/a.txt")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "hello", string(b))

	md, err := s.GetMetadata(ctx, "uploads/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "alice", md["owner"])

	list, err := s.List(ctx, "uploads/")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "uploads/a.txt", list[0].Path)
	assert.Equal(t, int64(6), list[1].Size)

	require.NoError(t, s.Delete(ctx, "uploads/a.txt"))
	_, err = s.Get(ctx, "uploads/a.txt")
	assert.True(t, errors.Is(err, dnerrors.ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, "uploads/a.txt"), dnerrors.ErrNotFound))
	assert.NotEmpty(t, s.URL("audio/c.wav"))
	require.NoError(t, s.Close())
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)

	// 路径不能逃出 root
	require.NoError(t, s.Put(context.Background(), "../../escape.txt", bytes.NewReader([]byte("x")), 1, nil))
	list, err := s.List(context.Background(), "")
	require.NoError(t, err)
	found := false
	for _, o := range list {
		if o.Path == "escape.txt" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(config.ObjectConfig{}, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewStore(config.ObjectConfig{Type: "azureblob", Endpoint: "https://x.blob.core.windows.net"}, "")
	assert.True(t, errors.Is(err, dnerrors.ErrMissingSecret))

	_, err = NewStore(config.ObjectConfig{Type: "s3"}, "")
	assert.Error(t, err)
}

func TestAzureBlobStore_PutHeadGet(t *testing.T) {
	blobs := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sig", r.URL.Query().Get("sig"))
		assert.Equal(t, azureBlobAPIVersion, r.Header.Get("x-ms-version"))
		switch r.Method {
		case http.MethodPut:
			assert.Equal(t, "BlockBlob", r.Header.Get("x-ms-blob-type"))
			assert.Equal(t, "tts", r.Header.Get("x-ms-meta-source"))
			b, _ := io.ReadAll(r.Body)
			blobs[r.URL.Path] = b
			w.WriteHeader(http.StatusCreated)
		case http.MethodHead:
			if _, ok := blobs[r.URL.Path]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("x-ms-meta-source", "tts")
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			if r.URL.Query().Get("comp") == "list" {
				assert.Equal(t, "/audio", r.URL.Path)
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?><EnumerationResults><Blobs>
					<Blob><Name>speech.wav</Name><Properties><Content-Length>4</Content-Length></Properties></Blob>
					</Blobs><NextMarker/></EnumerationResults>`))
				return
			}
			b, ok := blobs[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(b)
		}
	}))
	defer srv.Close()

	s, err := NewAzureBlobStore(srv.URL, "?sv=2021&sig=sig", "uploads")
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "audio/speech.wav")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "audio/speech.wav", bytes.NewReader([]byte("RIFF")), 4, map[string]string{"source": "tts"}))
	ok, err = s.Exists(ctx, "audio/speech.wav")
	require.NoError(t, err)
	assert.True(t, ok)

	md, err := s.GetMetadata(ctx, "audio/speech.wav")
	require.NoError(t, err)
	assert.Equal(t, "tts", md["source"])

	rc, err := s.Get(ctx, "audio/speech.wav")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "RIFF", string(b))

	list, err := s.List(ctx, "audio/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "audio/speech.wav", list[0].Path)

	assert.Equal(t, srv.URL+"/audio/speech.wav", s.URL("audio/speech.wav"))
	assert.Equal(t, srv.URL+"/uploads/report.pdf", s.URL("report.pdf"))
}
