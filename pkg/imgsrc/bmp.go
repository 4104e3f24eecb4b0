package imgsrc

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"golang.org/x/image/bmp"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// Opener returns a fresh stream positioned at the start of the data. When the
// stream also implements io.Seeker, skipped pixels are seeked over instead of
// read.
type Opener func() (io.ReadCloser, error)

// BMP is a streamed BMP file. Uncompressed bottom-up images without alpha are
// cropped while reading, so only the rows of the requested subset are ever
// decoded. Other variants fall back to a full decode.
type BMP struct {
	open Opener
	hdr  bmpHeader
}

// NewBMP reads the header of the stream returned by open.
func NewBMP(open Opener) (*BMP, error) {
	rc, err := open()
	if err != nil {
		return nil, fmt.Errorf("open bmp: %w", err)
	}
	defer rc.Close()

	hdr, err := decodeBMPHeader(rc)
	if err != nil {
		return nil, fmt.Errorf("read bmp header: %w", err)
	}
	return &BMP{open: open, hdr: hdr}, nil
}

// OpenBMP streams the BMP file at path.
func OpenBMP(path string) (*BMP, error) {
	return NewBMP(func() (io.ReadCloser, error) {
		return os.Open(path)
	})
}

// Size returns the dimensions found in the header.
func (b *BMP) Size() geom.IntSize {
	return geom.IntSize{Width: b.hdr.width, Height: b.hdr.height}
}

// Streamable reports whether subsets are cropped while reading.
func (b *BMP) Streamable() bool {
	return b.hdr.streamable()
}

// Open decodes the requested subset.
func (b *BMP) Open(ctx context.Context, params DecodeParams) (*DecodeResult, error) {
	subset := params.Subset.Intersect(b.Size().Rect())
	if subset.IsEmpty() {
		return nil, fmt.Errorf("subset %v outside %v: %w", params.Subset, b.Size(), ErrNothingVisible)
	}
	rc, err := b.open()
	if err != nil {
		return nil, fmt.Errorf("open bmp: %w", err)
	}
	defer rc.Close()

	if !b.hdr.streamable() {
		img, err := bmp.Decode(rc)
		if err != nil {
			return nil, fmt.Errorf("decode bmp: %w", err)
		}
		return NewBitmap(img).Open(ctx, params)
	}

	// skip the header, it was read by NewBMP
	if err := skip(rc, int64(len(b.hdr.raw))); err != nil {
		return nil, fmt.Errorf("skip bmp header: %w", err)
	}
	var buf bytes.Buffer
	if err := cropBMP(ctx, rc, &buf, b.hdr, subset.Image()); err != nil {
		return nil, fmt.Errorf("crop bmp: %w", err)
	}
	img, err := bmp.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode bmp subset: %w", err)
	}

	sample := params.SampleSize
	if sample < 1 {
		sample = 1
	}
	return &DecodeResult{
		Params: DecodeParams{SampleSize: sample, Subset: subset},
		Image:  downsample(img, sample),
	}, nil
}

type bmpHeader struct {
	width, height int
	bitsPerPixel  int
	topDown       bool
	alpha         bool
	compressed    bool
	// raw holds the file header, info header and palette. It is rewritten
	// for cropped output.
	raw []byte
}

func (h bmpHeader) streamable() bool {
	return !h.topDown && !h.alpha && !h.compressed
}

// rowBytes returns the 4-byte aligned length of a row of pixels.
func rowBytes(pixels, bitsPerPixel int) int {
	return ((pixels*bitsPerPixel + 31) / 32) * 4
}

const (
	bmpFileHeaderLen   = 14
	bmpInfoHeaderLen   = 40
	bmpV4InfoHeaderLen = 108
	bmpV5InfoHeaderLen = 124
)

var errUnsupportedBMP = errors.New("bmp: unsupported variant")

// decodeBMPHeader reads the file and info headers. Only 8, 24 and 32 bits per
// pixel with a single plane are understood; everything else is rejected.
func decodeBMPHeader(r io.Reader) (bmpHeader, error) {
	var h bmpHeader
	b := make([]byte, bmpFileHeaderLen+bmpV5InfoHeaderLen+256*4)
	if _, err := io.ReadFull(r, b[:bmpFileHeaderLen+4]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return h, err
	}
	if string(b[:2]) != "BM" {
		return h, errors.New("bmp: invalid format")
	}
	offset := binary.LittleEndian.Uint32(b[10:14])
	infoLen := binary.LittleEndian.Uint32(b[14:18])
	if infoLen != bmpInfoHeaderLen && infoLen != bmpV4InfoHeaderLen && infoLen != bmpV5InfoHeaderLen {
		return h, errUnsupportedBMP
	}
	if _, err := io.ReadFull(r, b[bmpFileHeaderLen+4:bmpFileHeaderLen+infoLen]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return h, err
	}

	h.width = int(int32(binary.LittleEndian.Uint32(b[18:22])))
	h.height = int(int32(binary.LittleEndian.Uint32(b[22:26])))
	if h.height < 0 {
		h.height, h.topDown = -h.height, true
	}
	if h.width < 0 {
		return h, errUnsupportedBMP
	}

	planes := binary.LittleEndian.Uint16(b[26:28])
	bpp := binary.LittleEndian.Uint16(b[28:30])
	compression := binary.LittleEndian.Uint32(b[30:34])
	// BI_BITFIELDS with the default masks is the same as no compression
	if compression == 3 && infoLen > bmpInfoHeaderLen &&
		binary.LittleEndian.Uint32(b[54:58]) == 0xff0000 && binary.LittleEndian.Uint32(b[58:62]) == 0xff00 &&
		binary.LittleEndian.Uint32(b[62:66]) == 0xff && binary.LittleEndian.Uint32(b[66:70]) == 0xff000000 {
		compression = 0
	}
	if planes != 1 {
		return h, errUnsupportedBMP
	}
	h.compressed = compression != 0
	h.bitsPerPixel = int(bpp)

	headerEnd := bmpFileHeaderLen + infoLen
	switch bpp {
	case 8:
		if offset != headerEnd+256*4 {
			return h, errUnsupportedBMP
		}
		if _, err := io.ReadFull(r, b[headerEnd:offset]); err != nil {
			return h, err
		}
	case 24:
		if offset != headerEnd {
			return h, errUnsupportedBMP
		}
	case 32:
		if offset != headerEnd {
			return h, errUnsupportedBMP
		}
		// alpha is only honoured with the larger info headers
		h.alpha = infoLen > bmpInfoHeaderLen
	default:
		return h, errUnsupportedBMP
	}

	h.raw = append([]byte(nil), b[:offset]...)
	return h, nil
}

// skip advances src by n bytes, seeking when possible.
func skip(src io.Reader, n int64) error {
	if n == 0 {
		return nil
	}
	if s, ok := src.(io.Seeker); ok {
		_, err := s.Seek(n, io.SeekCurrent)
		return err
	}
	_, err := io.CopyN(io.Discard, src, n)
	return err
}

// cropBMP copies region of the bottom-up pixel data in src, positioned right
// after the header, to dst as a complete BMP file.
func cropBMP(ctx context.Context, src io.Reader, dst io.Writer, hdr bmpHeader, region image.Rectangle) error {
	region = image.Rect(0, 0, hdr.width, hdr.height).Intersect(region)
	if region.Empty() {
		return ErrNothingVisible
	}

	bytesPerPixel := hdr.bitsPerPixel / 8
	srcRow := rowBytes(hdr.width, hdr.bitsPerPixel)
	dstRow := rowBytes(region.Dx(), hdr.bitsPerPixel)

	out := append([]byte(nil), hdr.raw...)
	binary.LittleEndian.PutUint32(out[2:6], uint32(len(out)+dstRow*region.Dy()))
	binary.LittleEndian.PutUint32(out[18:22], uint32(region.Dx()))
	binary.LittleEndian.PutUint32(out[22:26], uint32(region.Dy()))
	binary.LittleEndian.PutUint32(out[34:38], uint32(dstRow*region.Dy()))
	if _, err := dst.Write(out); err != nil {
		return err
	}

	// rows are stored bottom-up: skip the ones below the region
	if err := skip(src, int64(srcRow*(hdr.height-region.Max.Y))); err != nil {
		return err
	}

	left := bytesPerPixel * region.Min.X
	mid := bytesPerPixel * region.Dx()
	right := srcRow - left - mid
	padding := make([]byte, dstRow-mid)

	for y := 0; y < region.Dy(); y++ {
		if y%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := skip(src, int64(left)); err != nil {
			return err
		}
		if _, err := io.CopyN(dst, src, int64(mid)); err != nil {
			return err
		}
		if _, err := dst.Write(padding); err != nil {
			return err
		}
		// the last row needs no trailing skip
		if y < region.Dy()-1 {
			if err := skip(src, int64(right)); err != nil {
				return err
			}
		}
	}
	return nil
}
