package imgsrc

import (
	"path/filepath"
	"strings"
)

// OpenPath opens a file as the most suitable source: BMP files and seekable
// zstd BMP files (".bmp.zst") are streamed, everything else is decoded.
func OpenPath(path string) (ImageSrc, error) {
	lower := strings.ToLower(path)
	var (
		src ImageSrc
		err error
	)
	switch {
	case strings.HasSuffix(lower, ".bmp.zst"):
		var b *BMP
		if b, err = OpenZstdBMP(path); err == nil {
			src = b
		}
	case filepath.Ext(lower) == ".bmp":
		var b *BMP
		if b, err = OpenBMP(path); err == nil {
			src = b
		}
	default:
		var b *Bitmap
		if b, err = OpenFile(path); err == nil {
			src = b
		}
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}
