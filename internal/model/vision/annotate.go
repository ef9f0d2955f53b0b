package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var annotationColor = color.RGBA{G: 255, A: 255}

// Annotate 在 (10,30) 写描述、(10,60) 写标签，输出 JPEG
func Annotate(img []byte, a Analysis) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("解码图像failed: %w", err)
	}
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)

	description := a.Description
	if description == "" {
		description = NoDescription
	}
	origin := dst.Bounds().Min
	drawText(dst, origin.X+10, origin.Y+30, "Description: "+description)
	drawText(dst, origin.X+10, origin.Y+60, "Tags: "+a.TagsText())

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("编码 JPEG failed: %w", err)
	}
	return buf.Bytes(), nil
}

func drawText(dst draw.Image, x, y int, text string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(annotationColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
