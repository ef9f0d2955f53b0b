package http

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docunexus/internal/response"
)

type failingWarehouse struct{ err error }

func (f failingWarehouse) Query(context.Context, string) (*response.Table, error) {
	return nil, f.err
}

func (f failingWarehouse) Close() error { return nil }

func TestWarehouseQuery_ErrorMarkdown(t *testing.T) {
	env := newTestEnv(t, "x")
	env.handler.svc.Warehouse = failingWarehouse{err: errors.New("warehouse offline")}

	w := env.do(t, "POST", "/api/warehouse/query", []byte(`{"sql":"select 1"}`), jsonHeader())
	assert.Equal(t, 502, w.Result().StatusCode())
	body := decode(t, w)
	assert.Equal(t, "Error occurred: warehouse offline", body["error"])
	assert.Contains(t, body["error_html"], "<strong>Error:</strong>")
	assert.Contains(t, body["error_html"], "Please check the trace data in the sidebar")
}

func TestSummarizeMediaJob(t *testing.T) {
	env := newTestEnv(t, "The clip was transcoded to H.264.")
	ctx := context.Background()
	id, err := env.svc.Jobs.Enqueue(ctx, "transcode", []byte(`{"job_name":"demo"}`))
	require.NoError(t, err)

	w := env.do(t, "POST", "/api/media/jobs/"+id+"/summary", []byte(`{}`), jsonHeader())
	assert.Equal(t, 400, w.Result().StatusCode())

	claimed, err := env.svc.Jobs.ClaimOne(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.NoError(t, env.svc.Jobs.MarkCompleted(ctx, id, "media job demo Finished"))

	w = env.do(t, "POST", "/api/media/jobs/"+id+"/summary", []byte(`{"prompt":"What happened?"}`), jsonHeader())
	require.Equal(t, 200, w.Result().StatusCode(), string(w.Result().Body()))
	assert.Equal(t, "The clip was transcoded to H.264.", decode(t, w)["answer"])
	require.NotEmpty(t, env.llm.prompts)
	last := env.llm.prompts[len(env.llm.prompts)-1]
	assert.Contains(t, last, "Media Summarization Task")
	assert.Contains(t, last, "media job demo Finished")
	assert.Contains(t, last, "What happened?")

	w = env.do(t, "GET", "/api/history", nil)
	assert.Contains(t, string(w.Result().Body()), `"mode":"media"`)
}
