package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"docunexus/internal/storage/object"
	"docunexus/pkg/config"
	dnerrors "docunexus/pkg/errors"
)

type recorded struct {
	method string
	path   string
	body   gjson.Result
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) add(req *http.Request) gjson.Result {
	b, _ := io.ReadAll(req.Body)
	j := gjson.ParseBytes(b)
	r.mu.Lock()
	r.calls = append(r.calls, recorded{method: req.Method, path: req.URL.Path, body: j})
	r.mu.Unlock()
	return j
}

func TestBatchClient_CreatePoolAndSubmitJob(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, BatchAPIVersion, r.URL.Query().Get("api-version"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		rec.add(r)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	b, err := NewBatchClient(srv.URL, "tok", nil, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, b.CreatePool(ctx, PoolSpec{ID: "media-pool"}))
	id, err := b.SubmitJob(ctx, "media-pool", "job-1", []string{"ffmpeg -i a.mp4 a.mp3", "ffmpeg -i b.mp4 b.mp3"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)

	require.Len(t, rec.calls, 4)
	pool := rec.calls[0]
	assert.Equal(t, "/pools", pool.path)
	assert.Equal(t, "STANDARD_D2_V2", pool.body.Get("vmSize").String())
	assert.Equal(t, int64(1), pool.body.Get("targetDedicatedNodes").Int())
	assert.Equal(t, "18.04-LTS", pool.body.Get("virtualMachineConfiguration.imageReference.sku").String())
	assert.Equal(t, "batch.node.ubuntu 18.04", pool.body.Get("virtualMachineConfiguration.nodeAgentSKUId").String())

	assert.Equal(t, "/jobs", rec.calls[1].path)
	assert.Equal(t, "media-pool", rec.calls[1].body.Get("poolInfo.poolId").String())
	assert.Equal(t, "/jobs/job-1/tasks", rec.calls[2].path)
	assert.Equal(t, "Task0", rec.calls[2].body.Get("id").String())
	assert.Equal(t, "Task1", rec.calls[3].body.Get("id").String())
	assert.Equal(t, "ffmpeg -i b.mp4 b.mp3", rec.calls[3].body.Get("commandLine").String())
}

func TestBatchClient_Errors(t *testing.T) {
	_, err := NewBatchClient("", "tok", nil, nil)
	assert.True(t, errors.Is(err, dnerrors.ErrNotConfigured))
	_, err = NewBatchClient("http://x", "", nil, nil)
	assert.True(t, errors.Is(err, dnerrors.ErrMissingSecret))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"PoolExists"}`))
	}))
	defer srv.Close()
	b, _ := NewBatchClient(srv.URL, "tok", nil, nil)
	err = b.CreatePool(context.Background(), PoolSpec{ID: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PoolExists")
	assert.True(t, errors.Is(b.CreatePool(context.Background(), PoolSpec{}), dnerrors.ErrInvalidArg))
}

func TestBatchClient_UploadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.mp4"), []byte("bb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	store := object.NewMemoryStore()
	b, _ := NewBatchClient("http://batch", "tok", store, nil)
	urls, err := b.UploadFiles(context.Background(), "media-container", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"memory://media-container/a.mp4", "memory://media-container/b.mp4"}, urls)
}

func TestRunner_BatchUploadsInputDir(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("mp4"), 0o644))
	store := object.NewMemoryStore()
	b, err := NewBatchClient(srv.URL, "tok", store, nil)
	require.NoError(t, err)
	r := &Runner{Batch: b, Store: store}

	payload := []byte(`{"pool":{"id":"p"},"job_id":"j","commands":["ffmpeg -i clip.mp4 clip.mp3"],"input_dir":"` + filepath.ToSlash(dir) + `"}`)
	out, err := r.Run(context.Background(), KindBatch, payload)
	require.NoError(t, err)
	assert.Contains(t, out, "1 input files uploaded")
	ok, _ := store.Exists(context.Background(), DefaultBatchContainer+"/clip.mp4")
	assert.True(t, ok)
	require.Len(t, rec.calls, 2)
	assert.Equal(t, "/jobs", rec.calls[0].path)
}

func newMediaServer(t *testing.T, states []string) (*httptest.Server, *recorder) {
	rec := &recorder{}
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultMediaAPIVersion, r.URL.Query().Get("api-version"))
		rec.add(r)
		if r.Method == http.MethodGet {
			mu.Lock()
			state := states[0]
			if len(states) > 1 {
				states = states[1:]
			}
			mu.Unlock()
			_, _ = w.Write([]byte(`{"properties":{"state":"` + state + `"}}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	return srv, rec
}

func testMediaConfig(endpoint string) config.MediaConfig {
	return config.MediaConfig{Endpoint: endpoint, Subscription: "sub", ResourceGroup: "rg", Account: "acct"}
}

func TestConverter_RequestShapes(t *testing.T) {
	srv, rec := newMediaServer(t, []string{"Processing", "Scheduled", JobStateFinished})
	defer srv.Close()

	c, err := NewConverter(testMediaConfig(srv.URL), "arm", nil, time.Millisecond, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.CreateAsset(ctx, "input"))
	require.NoError(t, c.CreateTransform(ctx, "mp4-transform", "MP4"))
	require.NoError(t, c.SubmitJob(ctx, "mp4-transform", "input", "output", "job-1"))
	state, err := c.WaitForJob(ctx, "mp4-transform", "job-1")
	require.NoError(t, err)
	assert.Equal(t, JobStateFinished, state)

	base := "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.Media/mediaServices/acct"
	assert.Equal(t, base+"/assets/input", rec.calls[0].path)
	assert.Equal(t, http.MethodPut, rec.calls[0].method)
	tr := rec.calls[1]
	assert.Equal(t, base+"/transforms/mp4-transform", tr.path)
	assert.Equal(t, "#Microsoft.Media.Mp4Format", tr.body.Get("properties.outputs.0.preset.formats.0").Map()["@odata.type"].String())
	assert.Equal(t, "StopProcessingJob", tr.body.Get("properties.outputs.0.onError").String())
	job := rec.calls[2]
	assert.Equal(t, base+"/transforms/mp4-transform/jobs/job-1", job.path)
	assert.Equal(t, "input", job.body.Get("properties.input.assetName").String())
	assert.Equal(t, "output", job.body.Get("properties.outputs.0.assetName").String())
	assert.Len(t, rec.calls, 6, "three polls until Finished")
}

func TestConverter_WaitForJobCancelled(t *testing.T) {
	srv, _ := newMediaServer(t, []string{"Processing"})
	defer srv.Close()
	c, err := NewConverter(testMediaConfig(srv.URL), "arm", nil, time.Hour, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	state, err := c.WaitForJob(ctx, "t", "j")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "Processing", state)
}

func TestConverter_Validation(t *testing.T) {
	_, err := NewConverter(config.MediaConfig{}, "arm", nil, 0, nil)
	assert.True(t, errors.Is(err, dnerrors.ErrNotConfigured))
	_, err = NewConverter(testMediaConfig(""), "", nil, 0, nil)
	assert.True(t, errors.Is(err, dnerrors.ErrMissingSecret))
	c, err := NewConverter(testMediaConfig(""), "arm", nil, 0, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.base, DefaultManagementEndpoint))
	assert.Equal(t, DefaultJobPollInterval, c.poll)
	assert.Equal(t, "asset-myvideo", AssetContainer("MyVideo"))
}

func TestEditMP3Tags_RoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "song.mp3")
	audio := bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x64}, 64)
	require.NoError(t, os.WriteFile(p, audio, 0o644))

	require.NoError(t, EditMP3Tags(p, Tags{Title: "New Title", Artist: "New Artist", Album: "New Album", Genre: "Pop", Comment: "This is a test edit.", Year: "2023"}))
	got, err := ReadMP3Tags(p)
	require.NoError(t, err)
	assert.Equal(t, Tags{Title: "New Title", Artist: "New Artist", Album: "New Album", Genre: "Pop", Comment: "This is a test edit.", Year: "2023"}, got)

	require.NoError(t, EditMP3Tags(p, Tags{Title: "Second"}))
	got, err = ReadMP3Tags(p)
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Title)
	assert.Equal(t, "New Artist", got.Artist, "empty fields leave existing tags alone")

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(data, audio), "audio frames are preserved")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(KindBatch, []byte(`{"pool":{"id":"p"},"job_id":"j"}`)))
	err := Validate("render", []byte(`{}`))
	assert.True(t, errors.Is(err, dnerrors.ErrUnsupported))
	assert.Contains(t, err.Error(), "supported: batch")
	assert.True(t, errors.Is(Validate(KindTags, []byte(`not json`)), dnerrors.ErrInvalidArg))
}

func TestRunner_Transcode(t *testing.T) {
	srv, rec := newMediaServer(t, []string{JobStateFinished})
	defer srv.Close()
	store := object.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "uploads/clip.mov", bytes.NewReader([]byte("mov")), 3, nil))
	c, err := NewConverter(testMediaConfig(srv.URL), "arm", store, time.Millisecond, nil)
	require.NoError(t, err)

	r := &Runner{Converter: c, Store: store}
	payload, _ := json.Marshal(TranscodeJob{Source: "uploads/clip.mov", Transform: "t", Format: "mp4", InputAsset: "In", OutputAsset: "out", JobName: "j"})
	out, err := r.Run(context.Background(), KindTranscode, payload)
	require.NoError(t, err)
	assert.Contains(t, out, JobStateFinished)
	ok, _ := store.Exists(context.Background(), "asset-in/clip.mov")
	assert.True(t, ok)
	assert.Len(t, rec.calls, 5)
}

func TestRunner_TranscodeFailedState(t *testing.T) {
	srv, _ := newMediaServer(t, []string{JobStateError})
	defer srv.Close()
	c, _ := NewConverter(testMediaConfig(srv.URL), "arm", nil, time.Millisecond, nil)
	r := &Runner{Converter: c}
	payload, _ := json.Marshal(TranscodeJob{Transform: "t", InputAsset: "in", OutputAsset: "out", JobName: "j"})
	_, err := r.Run(context.Background(), KindTranscode, payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobStateError)
}

func TestRunner_Tags(t *testing.T) {
	ctx := context.Background()
	store := object.NewMemoryStore()
	audio := bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x64}, 16)
	require.NoError(t, store.Put(ctx, "media/song.mp3", bytes.NewReader(audio), int64(len(audio)), nil))

	r := &Runner{Store: store}
	payload, _ := json.Marshal(TagsJob{Path: "media/song.mp3", Tags: Tags{Title: "Tagged"}})
	out, err := r.Run(ctx, KindTags, payload)
	require.NoError(t, err)
	assert.Contains(t, out, `title "Tagged"`)

	rc, err := store.Get(ctx, "media/song.mp3")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.True(t, bytes.HasPrefix(data, []byte("ID3")))
	assert.True(t, bytes.HasSuffix(data, audio))
}

func TestRunner_NotConfigured(t *testing.T) {
	r := &Runner{}
	_, err := r.Run(context.Background(), KindBatch, []byte(`{"pool":{"id":"p"},"job_id":"j"}`))
	assert.True(t, errors.Is(err, dnerrors.ErrNotConfigured))
	_, err = r.Run(context.Background(), KindTranscode, []byte(`{}`))
	assert.True(t, errors.Is(err, dnerrors.ErrNotConfigured))
}
