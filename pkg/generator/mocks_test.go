package generator

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
)

// --- Mocks ---

// mockTransport は EditTransport のテスト用モックです。呼び出し回数と受け取った要求を記録します。
type mockTransport struct {
	mu       sync.Mutex
	calls    int
	requests []domain.EditRequest
	editFunc func(call int, req domain.EditRequest) ([]domain.VariantPayload, error)
}

func (m *mockTransport) Edit(ctx context.Context, req domain.EditRequest) ([]domain.VariantPayload, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.editFunc != nil {
		return m.editFunc(call, req)
	}
	return nil, nil
}

type mockHTTPClient struct {
	data    map[string][]byte
	err     error
	fetched []string
}

func (m *mockHTTPClient) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	m.fetched = append(m.fetched, url)
	if m.err != nil {
		return nil, m.err
	}
	return m.data[url], nil
}

// recordingSleeper は実際には待機せず、要求された待機時間を記録します。
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func (s *recordingSleeper) total() time.Duration {
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

// --- Helpers ---

func testPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func inlineVariants(t *testing.T, n int) []domain.VariantPayload {
	t.Helper()
	out := make([]domain.VariantPayload, n)
	for i := range out {
		out[i] = domain.InlineImage{Data: testPNG(t, 4, 4, color.NRGBA{uint8(i * 40), 0, 0, 255}), MimeType: "image/png"}
	}
	return out
}

func allowAllURLs(string) (bool, error) { return true, nil }
