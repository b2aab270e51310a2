package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decodeImage 解码任意已注册格式的图片，并统一重新编码为 PNG。
func decodeImage(data []byte) (Content, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Content{}, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Content{}, fmt.Errorf("encode %s as png: %w", format, err)
	}
	return Content{Kind: KindImage, PNG: buf.Bytes(), Preview: img}, nil
}
