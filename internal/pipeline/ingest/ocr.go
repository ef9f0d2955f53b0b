package ingest

import "context"

// OCR 本地图片文字识别
type OCR interface {
	Recognize(ctx context.Context, image []byte, languages ...string) (string, error)
}
