package generator

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
)

const unit = time.Millisecond

func newTestClient(t *testing.T, tr EditTransport, httpClient HTTPClient, sleeper *recordingSleeper) *VariantEditClient {
	t.Helper()
	if httpClient == nil {
		httpClient = &mockHTTPClient{}
	}
	c, err := NewVariantEditClient(tr, httpClient,
		WithBackoffUnit(unit),
		WithSleeper(sleeper.sleep),
		WithURLValidator(allowAllURLs),
	)
	require.NoError(t, err)
	return c
}

func baseRequest(t *testing.T, n int) domain.EditRequest {
	return domain.EditRequest{
		Base:   testPNG(t, 8, 8, color.NRGBA{255, 255, 255, 255}),
		Prompt: "recolor the shirt",
		Size:   domain.Size1024,
		N:      n,
	}
}

func TestNewVariantEditClient(t *testing.T) {
	_, err := NewVariantEditClient(nil, &mockHTTPClient{})
	assert.Error(t, err, "transport is required")

	_, err = NewVariantEditClient(&mockTransport{}, nil)
	assert.Error(t, err, "httpClient is required")
}

func TestVariantEditClient_EditVariants(t *testing.T) {
	ctx := context.Background()

	t.Run("要求した枚数ちょうどのバリアントを返す", func(t *testing.T) {
		for _, n := range []int{1, 2, 4} {
			tr := &mockTransport{editFunc: func(_ int, req domain.EditRequest) ([]domain.VariantPayload, error) {
				return inlineVariants(t, req.N), nil
			}}
			sleeper := &recordingSleeper{}
			res, err := newTestClient(t, tr, nil, sleeper).EditVariants(ctx, baseRequest(t, n), 3)

			require.NoError(t, err)
			assert.Equal(t, n, res.Len())
			assert.Equal(t, 1, tr.calls)
			assert.Empty(t, sleeper.delays)
		}
	})

	t.Run("503が2回続いた後に成功する場合は1,2単位待機して3枚返す", func(t *testing.T) {
		tr := &mockTransport{editFunc: func(call int, req domain.EditRequest) ([]domain.VariantPayload, error) {
			if call <= 2 {
				return nil, &domain.ServiceError{StatusCode: http.StatusServiceUnavailable, Message: "overloaded"}
			}
			return inlineVariants(t, req.N), nil
		}}
		sleeper := &recordingSleeper{}

		res, err := newTestClient(t, tr, nil, sleeper).EditVariants(ctx, baseRequest(t, 3), 3)

		require.NoError(t, err)
		assert.Equal(t, 3, res.Len())
		assert.Equal(t, 3, tr.calls)
		assert.Equal(t, []time.Duration{1 * unit, 2 * unit}, sleeper.delays)
	})

	t.Run("レート制限が続く場合はR回試行してEditExhaustedErrorになる", func(t *testing.T) {
		for _, r := range []int{1, 2, 4, 5} {
			rateLimited := &domain.ServiceError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}
			tr := &mockTransport{editFunc: func(int, domain.EditRequest) ([]domain.VariantPayload, error) {
				return nil, rateLimited
			}}
			sleeper := &recordingSleeper{}

			_, err := newTestClient(t, tr, nil, sleeper).EditVariants(ctx, baseRequest(t, 1), r)

			var exhausted *domain.EditExhaustedError
			require.ErrorAs(t, err, &exhausted)
			assert.Equal(t, r, exhausted.Attempts)
			assert.ErrorIs(t, err, rateLimited)
			assert.Equal(t, r, tr.calls)

			// 2^0 + ... + 2^(R-2) 単位
			want := time.Duration((1<<(r-1))-1) * unit
			assert.Equal(t, want, sleeper.total(), "maxRetries=%d", r)
		}
	})

	t.Run("400は1回だけ試行し待機せずInvalidRequestErrorになる", func(t *testing.T) {
		tr := &mockTransport{editFunc: func(int, domain.EditRequest) ([]domain.VariantPayload, error) {
			return nil, &domain.ServiceError{StatusCode: http.StatusBadRequest, Message: "invalid prompt"}
		}}
		sleeper := &recordingSleeper{}

		_, err := newTestClient(t, tr, nil, sleeper).EditVariants(ctx, baseRequest(t, 1), 5)

		var invalid *domain.InvalidRequestError
		require.ErrorAs(t, err, &invalid)
		assert.Contains(t, err.Error(), "invalid prompt")
		assert.Equal(t, 1, tr.calls)
		assert.Empty(t, sleeper.delays)
	})

	t.Run("一部のバリアントがデコードできない場合は要求全体を再送する", func(t *testing.T) {
		tr := &mockTransport{editFunc: func(call int, req domain.EditRequest) ([]domain.VariantPayload, error) {
			payloads := inlineVariants(t, req.N)
			if call == 1 {
				payloads[1] = domain.InlineImage{Data: []byte("corrupted")}
			}
			return payloads, nil
		}}
		sleeper := &recordingSleeper{}

		res, err := newTestClient(t, tr, nil, sleeper).EditVariants(ctx, baseRequest(t, 2), 3)

		require.NoError(t, err)
		assert.Equal(t, 2, res.Len())
		assert.Equal(t, 2, tr.calls)
		assert.Equal(t, []time.Duration{unit}, sleeper.delays)
		assert.Equal(t, tr.requests[0], tr.requests[1], "retries must resend identical parameters")
	})

	t.Run("バリアント数が不足していれば失敗として扱う", func(t *testing.T) {
		tr := &mockTransport{editFunc: func(int, domain.EditRequest) ([]domain.VariantPayload, error) {
			return inlineVariants(t, 1), nil
		}}
		sleeper := &recordingSleeper{}

		_, err := newTestClient(t, tr, nil, sleeper).EditVariants(ctx, baseRequest(t, 3), 2)

		var exhausted *domain.EditExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.ErrorIs(t, err, ErrMalformedResponse)
		assert.Equal(t, 2, tr.calls)
	})

	t.Run("URLで返されたバリアントはダウンロードする", func(t *testing.T) {
		img := testPNG(t, 4, 4, color.NRGBA{0, 255, 0, 255})
		httpMock := &mockHTTPClient{data: map[string][]byte{"https://cdn.example.com/a.png": img}}
		tr := &mockTransport{editFunc: func(int, domain.EditRequest) ([]domain.VariantPayload, error) {
			return []domain.VariantPayload{domain.RemoteImage{URL: "https://cdn.example.com/a.png"}}, nil
		}}

		res, err := newTestClient(t, tr, httpMock, &recordingSleeper{}).EditVariants(ctx, baseRequest(t, 1), 1)

		require.NoError(t, err)
		assert.Equal(t, img, res.Images[0])
		assert.Equal(t, []string{"https://cdn.example.com/a.png"}, httpMock.fetched)
	})

	t.Run("ダウンロード失敗は再試行対象", func(t *testing.T) {
		httpMock := &mockHTTPClient{err: errors.New("connection reset")}
		tr := &mockTransport{editFunc: func(int, domain.EditRequest) ([]domain.VariantPayload, error) {
			return []domain.VariantPayload{domain.RemoteImage{URL: "https://cdn.example.com/x.png"}}, nil
		}}
		sleeper := &recordingSleeper{}

		_, err := newTestClient(t, tr, httpMock, sleeper).EditVariants(ctx, baseRequest(t, 1), 2)

		var exhausted *domain.EditExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 2, tr.calls)
		assert.Len(t, sleeper.delays, 1)
	})

	t.Run("安全でないURLはダウンロードせず即座に失敗する", func(t *testing.T) {
		httpMock := &mockHTTPClient{}
		tr := &mockTransport{editFunc: func(int, domain.EditRequest) ([]domain.VariantPayload, error) {
			return []domain.VariantPayload{domain.RemoteImage{URL: "http://127.0.0.1/evil.png"}}, nil
		}}
		c, err := NewVariantEditClient(tr, httpMock, WithSleeper((&recordingSleeper{}).sleep))
		require.NoError(t, err)

		_, err = c.EditVariants(ctx, baseRequest(t, 1), 3)

		require.Error(t, err)
		assert.Empty(t, httpMock.fetched)
		assert.Equal(t, 1, tr.calls)
	})

	t.Run("httpkit クライアントはリダイレクト先の内部ホストから取得しない", func(t *testing.T) {
		var internalHits atomic.Int32
		internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			internalHits.Add(1)
			_, _ = w.Write(testPNG(t, 4, 4, color.NRGBA{0, 0, 255, 255}))
		}))
		defer internal.Close()
		redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, internal.URL+"/private.png", http.StatusFound)
		}))
		defer redirector.Close()

		tr := &mockTransport{editFunc: func(int, domain.EditRequest) ([]domain.VariantPayload, error) {
			return []domain.VariantPayload{domain.RemoteImage{URL: redirector.URL + "/variant.png"}}, nil
		}}
		fetcher := httpkit.New(2*time.Second, httpkit.WithMaxRetries(0))

		// URL の事前検証を通過させても、取得は httpkit 側で拒否される
		_, err := newTestClient(t, tr, fetcher, &recordingSleeper{}).EditOnce(ctx, baseRequest(t, 1), 1)

		var exhausted *domain.EditExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Zero(t, internalHits.Load())
	})

	t.Run("ベース画像とマスクは送信前にアルファ付きPNGへ正規化される", func(t *testing.T) {
		tr := &mockTransport{editFunc: func(_ int, req domain.EditRequest) ([]domain.VariantPayload, error) {
			return inlineVariants(t, req.N), nil
		}}
		req := baseRequest(t, 1)
		req.Mask = testPNG(t, 8, 8, color.NRGBA{255, 255, 255, 255})

		_, err := newTestClient(t, tr, nil, &recordingSleeper{}).EditVariants(ctx, req, 1)
		require.NoError(t, err)

		sent := tr.requests[0]
		assert.NotEqual(t, req.Base, sent.Base, "opaque RGB png gains an alpha channel")
		assert.True(t, sent.HasMask())
	})

	t.Run("デコードできないベース画像は送信せずDecodeErrorになる", func(t *testing.T) {
		tr := &mockTransport{}
		req := baseRequest(t, 1)
		req.Base = []byte("not an image")

		_, err := newTestClient(t, tr, nil, &recordingSleeper{}).EditVariants(ctx, req, 3)

		var decodeErr *domain.DecodeError
		assert.ErrorAs(t, err, &decodeErr)
		assert.Zero(t, tr.calls)
	})

	t.Run("試行中にキャンセルされたら待機せずコンテキストのエラーを返す", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		tr := &mockTransport{editFunc: func(int, domain.EditRequest) ([]domain.VariantPayload, error) {
			cancel()
			return nil, &domain.ServiceError{StatusCode: http.StatusBadGateway, Message: "bad gateway"}
		}}

		_, err := newTestClient(t, tr, nil, &recordingSleeper{}).EditVariants(cctx, baseRequest(t, 1), 3)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, tr.calls)
	})
}

func TestVariantEditClient_LogsVariantCount(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	tr := &mockTransport{editFunc: func(_ int, req domain.EditRequest) ([]domain.VariantPayload, error) {
		return inlineVariants(t, req.N), nil
	}}
	_, err := newTestClient(t, tr, nil, &recordingSleeper{}).EditVariants(context.Background(), baseRequest(t, 3), 1)

	require.NoError(t, err)
	var received string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "バリアントを取得しました") {
			received = line
		}
	}
	assert.Contains(t, received, "variants=3")
}

func TestVariantEditClient_EditOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("N=1で要求して唯一の結果を返す", func(t *testing.T) {
		tr := &mockTransport{editFunc: func(_ int, req domain.EditRequest) ([]domain.VariantPayload, error) {
			return inlineVariants(t, req.N), nil
		}}
		req := baseRequest(t, 4)

		img, err := newTestClient(t, tr, nil, &recordingSleeper{}).EditOnce(ctx, req, 3)

		require.NoError(t, err)
		assert.NotEmpty(t, img)
		assert.Equal(t, 1, tr.requests[0].N)
	})

	t.Run("バリデーションエラーは1回も送信しない", func(t *testing.T) {
		tr := &mockTransport{}
		req := baseRequest(t, 1)
		req.Prompt = ""

		_, err := newTestClient(t, tr, nil, &recordingSleeper{}).EditOnce(ctx, req, 3)

		var invalid *domain.InvalidRequestError
		assert.ErrorAs(t, err, &invalid)
		assert.Zero(t, tr.calls)
	})
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Microsecond))
}
