package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// imageExts are the inputs a crop can open, besides seekable zstd BMPs.
var imageExts = []string{"jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp"}

// compressedBMPExt is the double extension of seekable zstd BMP files.
const compressedBMPExt = ".bmp.zst"

// EnsureDir creates dir and its parents if they are missing
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func ext(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// IsImageFile reports whether filename has an extension a crop can open
func IsImageFile(filename string) bool {
	return IsCompressedBMP(filename) || slices.Contains(imageExts, ext(filename))
}

// IsCompressedBMP reports whether filename names a seekable zstd BMP
func IsCompressedBMP(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), compressedBMPExt)
}

// stem returns the base name of path without its image extension.
func stem(path string) string {
	base := filepath.Base(path)
	if IsCompressedBMP(base) {
		return base[:len(base)-len(compressedBMPExt)]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// GenerateOutputFilename names the crop result of inputFile. Without a
// format the input extension is kept, except for BMP sources which are
// written as jpg.
func GenerateOutputFilename(inputFile, outputDir, prefix, suffix, format string) string {
	if format == "" {
		switch format = ext(inputFile); format {
		case "", "bmp", "zst":
			format = "jpg"
		}
	}
	return filepath.Join(outputDir, prefix+stem(inputFile)+suffix+"."+format)
}

// FileExists reports whether filename is an existing regular file
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// SanitizeFilename replaces path separators and other characters that
// filesystems reject in names
func SanitizeFilename(filename string) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) || r < 0x20 {
			return '_'
		}
		return r
	}, filename)
	return strings.Trim(clean, " .")
}

// FormatFileSize formats a byte count with binary units, for CLI output
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
