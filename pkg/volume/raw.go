package volume

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// compressedExt marks raw volumes stored zstd-compressed.
const compressedExt = ".zst"

// ReadRaw reads a headerless little-endian float32 volume of the given
// shape, the layout written by most segmentation toolkits. Paths ending
// in .zst are decompressed on the fly.
func ReadRaw(path string, shape Shape) (*Volume, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume: %w", err)
	}
	defer file.Close()

	if strings.HasSuffix(path, compressedExt) {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed volume: %w", err)
		}
		defer dec.Close()
		return DecodeRaw(dec, shape)
	}
	return DecodeRaw(bufio.NewReader(file), shape)
}

// DecodeRaw decodes shape.Len() little-endian float32 values from r.
func DecodeRaw(r io.Reader, shape Shape) (*Volume, error) {
	buf := make([]float32, shape.Len())
	if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
		return nil, fmt.Errorf("failed to read %s volume: %w", shape, err)
	}

	data := make([]float64, len(buf))
	for i, f := range buf {
		data[i] = float64(f)
	}
	return FromData(shape, data)
}

// WriteRaw writes v as headerless little-endian float32 values,
// zstd-compressed when path ends in .zst.
func WriteRaw(path string, v *Volume) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create volume file: %w", err)
	}
	return writeAndClose(file, v, strings.HasSuffix(path, compressedExt))
}

// writeAndClose encodes v into wc and closes it, reporting a failed close.
func writeAndClose(wc io.WriteCloser, v *Volume, compress bool) error {
	if err := encodeTo(wc, v, compress); err != nil {
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close volume file: %w", err)
	}
	return nil
}

func encodeTo(w io.Writer, v *Volume, compress bool) error {
	if compress {
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create compressor: %w", err)
		}
		if err := EncodeRaw(enc, v); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	}

	bw := bufio.NewWriter(w)
	if err := EncodeRaw(bw, v); err != nil {
		return err
	}
	return bw.Flush()
}

// EncodeRaw encodes v as little-endian float32 values.
func EncodeRaw(w io.Writer, v *Volume) error {
	buf := make([]byte, 4*len(v.Data))
	for i, f := range v.Data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(f)))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write volume: %w", err)
	}
	return nil
}
