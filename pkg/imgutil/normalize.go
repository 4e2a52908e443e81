package imgutil

import (
	"bytes"
	"errors"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
)

// Normalize は任意の画像バッファをアルファチャンネル付きPNGに変換します。
// すでにアルファ付きPNGであれば入力をそのまま返すため、何度適用しても結果は変わりません。
func Normalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &domain.DecodeError{Err: errors.New("empty image buffer")}
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.DecodeError{Err: err}
	}
	if format == "png" && isRGBAPNG(data) {
		return data, nil
	}

	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return EncodeRGBA(img)
}

// Decode は EXIF の向きを補正しつつ画像をデコードします。
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &domain.DecodeError{Err: err}
	}
	return img, nil
}

// Dimensions は画像のメタデータから幅と高さを読み取ります。
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, &domain.InvalidDimensionsError{Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, &domain.InvalidDimensionsError{Err: errors.New("width or height is zero")}
	}
	return cfg.Width, cfg.Height, nil
}

// pngColorTypeRGBA は IHDR のカラータイプ 6 (トゥルーカラー + アルファ) です。
const pngColorTypeRGBA = 6

// isRGBAPNG は IHDR のカラータイプで RGBA の PNG かを判定します。
// デコーダのカラーモデルはグレー + アルファ (カラータイプ4) でも NRGBA になるため使いません。
func isRGBAPNG(data []byte) bool {
	// シグネチャ(8) + 長さ(4) + "IHDR"(4) + 幅(4) + 高さ(4) + ビット深度(1) の次がカラータイプ
	const colorTypeOffset = 25
	return len(data) > colorTypeOffset &&
		bytes.Equal(data[12:16], []byte("IHDR")) &&
		data[colorTypeOffset] == pngColorTypeRGBA
}
