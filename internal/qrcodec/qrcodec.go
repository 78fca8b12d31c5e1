// Package qrcodec renders payloads to PNG QR images and decodes QR images locally.
package qrcodec

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/makiuchi-d/gozxing"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the side of generated images in pixels.
const DefaultSize = 1000

// ErrEmptyPayload is returned when asked to encode an empty string.
var ErrEmptyPayload = errors.New("qrcodec: empty payload")

// Codec encodes with the highest error correction level and decodes with zxing.
type Codec struct {
	Size int
}

// New returns a codec producing size x size images; size <= 0 selects DefaultSize.
func New(size int) *Codec {
	if size <= 0 {
		size = DefaultSize
	}
	return &Codec{Size: size}
}

// Encode renders text as a square PNG.
func (c *Codec) Encode(text string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyPayload
	}
	q, err := qrcode.New(text, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("qrcodec: encode: %w", err)
	}
	png, err := q.PNG(c.Size)
	if err != nil {
		return nil, fmt.Errorf("qrcodec: render png: %w", err)
	}
	return png, nil
}

// Decode reads an image and returns the text of every symbol found, in
// detection order. An image without a readable symbol yields an empty result
// and no error.
func (c *Codec) Decode(r io.Reader) ([]string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("qrcodec: read image: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("qrcodec: binarize: %w", err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}

	results, err := multiqr.NewQRCodeMultiReader().DecodeMultiple(bmp, hints)
	if err != nil && !notFound(err) {
		return nil, fmt.Errorf("qrcodec: decode: %w", err)
	}
	if len(results) == 0 {
		// The multi detector misses some lone symbols the single reader finds.
		res, err := zxqrcode.NewQRCodeReader().Decode(bmp, hints)
		if err != nil {
			if notFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("qrcodec: decode: %w", err)
		}
		results = []*gozxing.Result{res}
	}

	texts := make([]string, 0, len(results))
	for _, res := range results {
		if text := strings.TrimSpace(res.GetText()); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}
	return texts, nil
}

func notFound(err error) bool {
	var re gozxing.ReaderException
	return errors.As(err, &re)
}

// DecodeFile decodes the image stored at path.
func (c *Codec) DecodeFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("qrcodec: open image: %w", err)
	}
	defer f.Close()
	return c.Decode(f)
}
