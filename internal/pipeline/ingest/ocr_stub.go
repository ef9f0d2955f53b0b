//go:build !ocr

package ingest

import (
	"context"

	dnerrors "docunexus/pkg/errors"
)

type noOCR struct{}

// NewOCR 未启用 ocr 构建标签时的占位实现
func NewOCR() OCR {
	return noOCR{}
}

func (noOCR) Recognize(ctx context.Context, image []byte, languages ...string) (string, error) {
	return "", dnerrors.Wrap(dnerrors.ErrUnsupported, "binary built without the ocr tag")
}
