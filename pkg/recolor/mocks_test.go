package recolor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
)

// mockEditor は generator.ImageEditor のテスト用モックです。
type mockEditor struct {
	requests     []domain.EditRequest
	retries      []int
	editOnceFunc func(call int, req domain.EditRequest) ([]byte, error)
}

func (m *mockEditor) EditOnce(ctx context.Context, req domain.EditRequest, maxRetries int) ([]byte, error) {
	m.requests = append(m.requests, req)
	m.retries = append(m.retries, maxRetries)
	if m.editOnceFunc != nil {
		return m.editOnceFunc(len(m.requests), req)
	}
	return nil, errors.New("editOnceFunc is not set")
}

func (m *mockEditor) EditVariants(ctx context.Context, req domain.EditRequest, maxRetries int) (*domain.EditResult, error) {
	return nil, errors.New("EditVariants is not used by Recolorer")
}

// --- Helpers ---

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// rightHalfMask は右半分だけが白いマスクを返します。
func rightHalfMask(t *testing.T, w, h int) []byte {
	t.Helper()
	img := solid(w, h, color.Black)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return encodePNG(t, img)
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("result is not a png: %v", err)
	}
	return img
}

func rgb(img image.Image, x, y int) [3]int {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return [3]int{int(c.R), int(c.G), int(c.B)}
}
