package imgsrc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"

	// Extra decoders for gallery files.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads an encoded image (jpeg, png, gif, bmp, tiff or webp) and
// applies its EXIF orientation.
func Decode(r io.Reader) (*Bitmap, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return NewBitmap(img), nil
}

// FromBytes decodes a camera capture or any other encoded buffer.
func FromBytes(data []byte) (*Bitmap, error) {
	return Decode(bytes.NewReader(data))
}

// OpenFile decodes the image file at path.
func OpenFile(path string) (*Bitmap, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	return NewBitmap(img), nil
}
