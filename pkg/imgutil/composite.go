package imgutil

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Layer は合成する1枚の編集結果です。
// Mask があればその被覆率で Image のアルファを絞り、領域外に影響しないようにします。
type Layer struct {
	Image []byte
	Mask  []byte
}

// Composite はテンプレートをキャンバスとして、layers を順番に "over" 合成します。
// layers が空ならテンプレートを再エンコードして返します。
func Composite(template []byte, layers []Layer) ([]byte, error) {
	if _, _, err := Dimensions(template); err != nil {
		return nil, err
	}
	base, err := Decode(template)
	if err != nil {
		return nil, err
	}

	canvas := imaging.Clone(base)
	w, h := canvas.Rect.Dx(), canvas.Rect.Dy()

	for i, l := range layers {
		img, err := Decode(l.Image)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layer := fitToCanvas(img, w, h)

		if len(l.Mask) > 0 {
			maskImg, err := Decode(l.Mask)
			if err != nil {
				return nil, fmt.Errorf("layer %d mask: %w", i, err)
			}
			applyStencil(layer, fitToCanvas(maskImg, w, h))
		}

		canvas = imaging.Overlay(canvas, layer, image.Pt(0, 0), 1.0)
	}

	return EncodeRGBA(canvas)
}

// fitToCanvas は編集サービスがバケットサイズで返した画像をキャンバスの寸法に合わせます。
func fitToCanvas(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// applyStencil は mask の被覆率を layer のアルファに掛け合わせます。
// mask に透過ピクセルがあればアルファを、完全に不透明なら輝度 (白 = 編集可) を被覆率とします。
func applyStencil(layer, mask *image.NRGBA) {
	useAlpha := !isOpaque(mask)
	for y := 0; y < layer.Rect.Dy(); y++ {
		for x := 0; x < layer.Rect.Dx(); x++ {
			m := mask.NRGBAAt(x, y)
			var coverage uint32
			if useAlpha {
				coverage = uint32(m.A)
			} else {
				coverage = luminance(m)
			}
			i := layer.PixOffset(x, y)
			layer.Pix[i+3] = uint8(uint32(layer.Pix[i+3]) * coverage / 255)
		}
	}
}

func isOpaque(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			return false
		}
	}
	return true
}

func luminance(c color.NRGBA) uint32 {
	return (299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B)) / 1000
}
