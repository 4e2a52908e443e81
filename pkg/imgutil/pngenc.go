package imgutil

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// EncodeRGBA は画像を 8bit RGBA (カラータイプ6) の PNG として書き出します。
// image/png は全ピクセルが不透明だとアルファを落とした RGB で書き出すため、
// 編集APIが要求するアルファ付きPNGを保証するためにここで直接エンコードします。
func EncodeRGBA(img image.Image) ([]byte, error) {
	src := imaging.Clone(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	buf := new(bytes.Buffer)
	buf.Write(pngSignature)

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(h))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // color type: truecolor with alpha
	if err := writeChunk(buf, "IHDR", ihdr); err != nil {
		return nil, err
	}

	var idat bytes.Buffer
	zw, err := zlib.NewWriterLevel(&idat, zlib.BestSpeed)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriter(zw)
	row := w * 4
	for y := 0; y < h; y++ {
		// 各行の先頭はフィルタ種別 (0 = None)
		if err := bw.WriteByte(0); err != nil {
			return nil, err
		}
		if _, err := bw.Write(src.Pix[y*src.Stride : y*src.Stride+row]); err != nil {
			return nil, err
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if err := writeChunk(buf, "IDAT", idat.Bytes()); err != nil {
		return nil, err
	}
	if err := writeChunk(buf, "IEND", nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeChunk(w io.Writer, name string, data []byte) error {
	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	copy(header[4:], name)

	crc := crc32.NewIEEE()
	crc.Write(header[4:])
	crc.Write(data)

	footer := make([]byte, 4)
	binary.BigEndian.PutUint32(footer, crc.Sum32())

	for _, b := range [][]byte{header, data, footer} {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}
