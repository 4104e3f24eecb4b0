package imgsrc

import (
	"fmt"
	"io"
	"os"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go"
	"github.com/klauspost/compress/zstd"
)

// NewZstdBMP streams a BMP stored in the seekable zstd format. Seeks inside
// the decompressed stream only decode the frames they touch, so cropping a
// subset stays cheap even for very large files.
func NewZstdBMP(open func() (io.ReadSeekCloser, error)) (*BMP, error) {
	return NewBMP(func() (io.ReadCloser, error) {
		f, err := open()
		if err != nil {
			return nil, err
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		r, err := seekable.NewReader(f, dec)
		if err != nil {
			dec.Close()
			f.Close()
			return nil, fmt.Errorf("open seekable zstd: %w", err)
		}
		return &zstdStream{Reader: r, file: f, dec: dec}, nil
	})
}

// OpenZstdBMP streams the seekable zstd compressed BMP file at path.
func OpenZstdBMP(path string) (*BMP, error) {
	return NewZstdBMP(func() (io.ReadSeekCloser, error) {
		return os.Open(path)
	})
}

type zstdStream struct {
	seekable.Reader
	file io.Closer
	dec  *zstd.Decoder
}

func (z *zstdStream) Close() error {
	err := z.Reader.Close()
	z.dec.Close()
	if cerr := z.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// CompressSeekable writes src to dst in the seekable zstd format readable by
// NewZstdBMP.
func CompressSeekable(dst io.Writer, src io.Reader, level zstd.EncoderLevel) error {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()

	w, err := seekable.NewWriter(dst, enc)
	if err != nil {
		return fmt.Errorf("create seekable writer: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return fmt.Errorf("compress: %w", err)
	}
	return w.Close()
}
