// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"docunexus/internal/storage/object"
	"docunexus/pkg/errors"
)

// 任务类型
const (
	KindBatch     = "batch"
	KindTranscode = "transcode"
	KindTags      = "tags"
)

// BatchJob 批处理任务负载
type BatchJob struct {
	Pool     PoolSpec `json:"pool"`
	NewPool  bool     `json:"create_pool"`
	JobID    string   `json:"job_id"`
	Commands []string `json:"commands"`
	// InputDir 非空时先把该目录下的文件上传到 Container
	InputDir  string `json:"input_dir"`
	Container string `json:"container"`
}

// DefaultBatchContainer 批处理输入文件的默认容器
const DefaultBatchContainer = "batch-input"

// TranscodeJob 转码任务负载；Source 为对象存储中的源文件
type TranscodeJob struct {
	Source      string `json:"source"`
	Transform   string `json:"transform"`
	Format      string `json:"format"`
	InputAsset  string `json:"input_asset"`
	OutputAsset string `json:"output_asset"`
	JobName     string `json:"job_name"`
}

// TagsJob MP3 标签任务负载；Path 为对象存储中的 MP3
type TagsJob struct {
	Path string `json:"path"`
	Tags Tags   `json:"tags"`
}

// Runner 按类型执行任务，供 worker 调用
type Runner struct {
	Batch     *BatchClient
	Converter *Converter
	Store     object.Store
}

// Kinds Runner 支持的任务类型
func Kinds() []string {
	return []string{KindBatch, KindTranscode, KindTags}
}

// Validate 检查负载能否解析为 kind 对应的结构
func Validate(kind string, payload []byte) error {
	var v interface{}
	switch kind {
	case KindBatch:
		v = &BatchJob{}
	case KindTranscode:
		v = &TranscodeJob{}
	case KindTags:
		v = &TagsJob{}
	default:
		return errors.Wrapf(errors.ErrUnsupported, "job kind %q (supported: %s)", kind, strings.Join(Kinds(), ", "))
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Wrapf(errors.ErrInvalidArg, "invalid %s payload: %v", kind, err)
	}
	return nil
}

// Run 执行任务，返回结果摘要
func (r *Runner) Run(ctx context.Context, kind string, payload []byte) (string, error) {
	if err := Validate(kind, payload); err != nil {
		return "", err
	}
	switch kind {
	case KindBatch:
		var job BatchJob
		_ = json.Unmarshal(payload, &job)
		return r.runBatch(ctx, job)
	case KindTranscode:
		var job TranscodeJob
		_ = json.Unmarshal(payload, &job)
		return r.runTranscode(ctx, job)
	default:
		var job TagsJob
		_ = json.Unmarshal(payload, &job)
		return r.runTags(ctx, job)
	}
}

func (r *Runner) runBatch(ctx context.Context, job BatchJob) (string, error) {
	if r.Batch == nil {
		return "", errors.Wrap(errors.ErrNotConfigured, "batch client")
	}
	var uploaded []string
	if job.InputDir != "" {
		container := job.Container
		if container == "" {
			container = DefaultBatchContainer
		}
		urls, err := r.Batch.UploadFiles(ctx, container, job.InputDir)
		if err != nil {
			return "", err
		}
		uploaded = urls
	}
	if job.NewPool {
		if err := r.Batch.CreatePool(ctx, job.Pool); err != nil {
			return "", err
		}
	}
	id, err := r.Batch.SubmitJob(ctx, job.Pool.ID, job.JobID, job.Commands)
	if err != nil {
		return "", err
	}
	if len(uploaded) > 0 {
		return fmt.Sprintf("batch job %s submitted with %d tasks, %d input files uploaded", id, len(job.Commands), len(uploaded)), nil
	}
	return fmt.Sprintf("batch job %s submitted with %d tasks", id, len(job.Commands)), nil
}

func (r *Runner) runTranscode(ctx context.Context, job TranscodeJob) (string, error) {
	c := r.Converter
	if c == nil {
		return "", errors.Wrap(errors.ErrNotConfigured, "media converter")
	}
	if job.Transform == "" || job.InputAsset == "" || job.OutputAsset == "" || job.JobName == "" {
		return "", errors.Wrap(errors.ErrInvalidArg, "transform, input_asset, output_asset and job_name are required")
	}
	if err := c.CreateAsset(ctx, job.InputAsset); err != nil {
		return "", err
	}
	if job.Source != "" {
		data, err := r.read(ctx, job.Source)
		if err != nil {
			return "", err
		}
		if _, err := c.UploadToAsset(ctx, job.InputAsset, path.Base(job.Source), data); err != nil {
			return "", err
		}
	}
	if err := c.CreateAsset(ctx, job.OutputAsset); err != nil {
		return "", err
	}
	if err := c.CreateTransform(ctx, job.Transform, job.Format); err != nil {
		return "", err
	}
	if err := c.SubmitJob(ctx, job.Transform, job.InputAsset, job.OutputAsset, job.JobName); err != nil {
		return "", err
	}
	state, err := c.WaitForJob(ctx, job.Transform, job.JobName)
	if err != nil {
		return "", err
	}
	if state != JobStateFinished {
		return "", fmt.Errorf("media job %s ended in state %s", job.JobName, state)
	}
	return fmt.Sprintf("media job %s %s", job.JobName, state), nil
}

// runTags 下载到临时文件、写标签、再覆盖上传
func (r *Runner) runTags(ctx context.Context, job TagsJob) (string, error) {
	if job.Path == "" {
		return "", errors.Wrap(errors.ErrInvalidArg, "path is required")
	}
	data, err := r.read(ctx, job.Path)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "docunexus-*.mp3")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := EditMP3Tags(tmp, job.Tags); err != nil {
		return "", err
	}
	written, err := ReadMP3Tags(tmp)
	if err != nil {
		return "", err
	}
	updated, err := os.Open(tmp)
	if err != nil {
		return "", err
	}
	defer updated.Close()
	info, err := updated.Stat()
	if err != nil {
		return "", err
	}
	if err := r.Store.Put(ctx, job.Path, updated, info.Size(), map[string]string{"source": "id3"}); err != nil {
		return "", err
	}
	return fmt.Sprintf("tags updated for %s (title %q, artist %q)", job.Path, written.Title, written.Artist), nil
}

func (r *Runner) read(ctx context.Context, p string) ([]byte, error) {
	if r.Store == nil {
		return nil, errors.Wrap(errors.ErrNotConfigured, "object store")
	}
	rc, err := r.Store.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
