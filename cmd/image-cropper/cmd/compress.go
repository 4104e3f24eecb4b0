package cmd

import (
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/menta2k/image-cropper/pkg/imgsrc"
)

var compressCmd = &cobra.Command{
	Use:   "compress <image.bmp> [output.bmp.zst]",
	Short: "Compress a BMP into a seekable zstd file",
	Long: `Compress an uncompressed BMP into the seekable zstd format. Crops of the
result still decode only the rows they need, without inflating the whole file.

Examples:
  image-cropper compress scan.bmp
  image-cropper compress scan.bmp archive/scan.bmp.zst --level best`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCompress,
}

func init() {
	rootCmd.AddCommand(compressCmd)

	compressCmd.Flags().String("level", "default", "compression level: fastest, default, better, best")
}

func runCompress(cmd *cobra.Command, args []string) error {
	in := args[0]
	out := in + ".zst"
	if len(args) > 1 {
		out = args[1]
	}

	levelName, _ := cmd.Flags().GetString("level")
	ok, level := zstd.EncoderLevelFromString(levelName)
	if !ok {
		return fmt.Errorf("unknown compression level: %s", levelName)
	}

	// Only streamable BMPs can be cropped row by row.
	bmp, err := imgsrc.OpenBMP(in)
	if err != nil {
		return err
	}
	if !bmp.Streamable() {
		return fmt.Errorf("%s: only uncompressed bottom-up BMPs can be streamed", in)
	}

	if err := compressFile(in, out, level); err != nil {
		return err
	}

	check, err := imgsrc.OpenZstdBMP(out)
	if err != nil {
		return fmt.Errorf("verify %s: %w", out, err)
	}
	if check.Size() != bmp.Size() {
		return fmt.Errorf("verify %s: size %v, want %v", out, check.Size(), bmp.Size())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) -> %s (%s)\n", in, fileSize(in), out, fileSize(out))
	return nil
}

func compressFile(in, out string, level zstd.EncoderLevel) error {
	src, err := os.Open(in)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := imgsrc.CompressSeekable(dst, src, level); err != nil {
		dst.Close()
		os.Remove(out)
		return err
	}
	return dst.Close()
}
