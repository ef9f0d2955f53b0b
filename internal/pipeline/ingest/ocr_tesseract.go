//go:build ocr

package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

type tesseractOCR struct{}

// NewOCR 基于 tesseract（gosseract）的本地 OCR；需 cgo 与 libtesseract
func NewOCR() OCR {
	return tesseractOCR{}
}

func (tesseractOCR) Recognize(ctx context.Context, image []byte, languages ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := gosseract.NewClient()
	defer c.Close()

	if len(languages) > 0 {
		if err := c.SetLanguage(languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(text), nil
}
