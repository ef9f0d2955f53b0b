package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docunexus/pkg/log"
)

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 120))
	for x := 0; x < 320; x++ {
		for y := 0; y < 120; y++ {
			img.Set(x, y, color.Black)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestAzureClient_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vision/v3.2/analyze", r.URL.Path)
		assert.Equal(t, "Description,Tags", r.URL.Query().Get("visualFeatures"))
		assert.Equal(t, "cv-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte("frame"), b)
		_, _ = w.Write([]byte(`{"description":{"captions":[{"text":"a person at a desk","confidence":0.9}]},
			"tags":[{"name":"person","confidence":0.99},{"name":"indoor","confidence":0.9}]}`))
	}))
	defer srv.Close()

	c, err := NewAzureClient(srv.URL, "cv-key")
	require.NoError(t, err)
	a, err := c.Analyze(context.Background(), []byte("frame"))
	require.NoError(t, err)
	assert.Equal(t, "a person at a desk", a.Description)
	assert.Equal(t, "person, indoor", a.TagsText())
}

func TestParseAnalysis_Defaults(t *testing.T) {
	a := parseAnalysis([]byte(`{"description":{"captions":[]},"tags":[]}`))
	assert.Equal(t, NoDescription, a.Description)
	assert.Equal(t, NoTags, a.TagsText())
}

func TestAnnotate(t *testing.T) {
	src := testJPEG(t)
	out, err := Annotate(src, Analysis{Description: "a desk", Tags: []string{"desk"}})
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 120), img.Bounds())
	assert.NotEqual(t, src, out)

	_, err = Annotate([]byte("not an image"), Analysis{})
	assert.Error(t, err)
}

type fakeClient struct {
	a   Analysis
	err error
}

func (f fakeClient) Analyze(ctx context.Context, image []byte) (Analysis, error) { return f.a, f.err }
func (f fakeClient) Name() string                                                { return "fake" }

func TestProcessFrame(t *testing.T) {
	frame := testJPEG(t)
	var logs bytes.Buffer
	logger := log.NewLoggerWithWriter(nil, &logs)

	res := ProcessFrame(context.Background(), fakeClient{a: Analysis{Description: "x"}}, frame, logger)
	assert.True(t, res.Annotated)
	assert.Equal(t, "x", res.Analysis.Description)

	res = ProcessFrame(context.Background(), fakeClient{err: errors.New("quota")}, frame, logger)
	assert.False(t, res.Annotated)
	assert.Equal(t, frame, res.Image)
	assert.Contains(t, logs.String(), "error during frame analysis")

	// 解码失败同样返回原始帧
	res = ProcessFrame(context.Background(), fakeClient{}, []byte("raw"), logger)
	assert.False(t, res.Annotated)
	assert.Equal(t, []byte("raw"), res.Image)

	res = ProcessFrame(context.Background(), nil, frame, nil)
	assert.Equal(t, frame, res.Image)
}
