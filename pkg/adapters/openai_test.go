package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
)

func TestNewOpenAIEditAdapter(t *testing.T) {
	_, err := NewOpenAIEditAdapter(nil, "", "key", "")
	assert.Error(t, err)

	_, err = NewOpenAIEditAdapter(http.DefaultClient, "", "", "")
	assert.Error(t, err)

	a, err := NewOpenAIEditAdapter(http.DefaultClient, "https://example.com/v1/", "key", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v1", a.baseURL)
	assert.Equal(t, DefaultOpenAIModel, a.model)
}

func TestOpenAIEditAdapter_Edit(t *testing.T) {
	ctx := context.Background()
	req := domain.EditRequest{
		Base:   []byte("base-png"),
		Mask:   []byte("mask-png"),
		Prompt: "recolor to red",
		Size:   domain.Size1536,
		N:      2,
	}

	t.Run("multipart で送信し b64_json と url を解析する", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/images/edits", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "recolor to red", r.FormValue("prompt"))
			assert.Equal(t, "2", r.FormValue("n"))
			assert.Equal(t, "1536x1536", r.FormValue("size"))
			assert.Equal(t, "test-model", r.FormValue("model"))

			for field, want := range map[string]string{"image": "base-png", "mask": "mask-png"} {
				f, _, err := r.FormFile(field)
				require.NoError(t, err)
				got, _ := io.ReadAll(f)
				assert.Equal(t, want, string(got))
			}

			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]string{
					{"b64_json": base64.StdEncoding.EncodeToString([]byte("img-1"))},
					{"url": "https://cdn.example.com/2.png"},
				},
			})
		}))
		defer srv.Close()

		adapter, _ := NewOpenAIEditAdapter(srv.Client(), srv.URL, "secret", "test-model")
		payloads, err := adapter.Edit(ctx, req)

		require.NoError(t, err)
		require.Len(t, payloads, 2)
		assert.Equal(t, domain.InlineImage{Data: []byte("img-1"), MimeType: "image/png"}, payloads[0])
		assert.Equal(t, domain.RemoteImage{URL: "https://cdn.example.com/2.png"}, payloads[1])
	})

	t.Run("マスクがない場合は mask フィールドを送らない", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, _, err := r.FormFile("mask")
			assert.ErrorIs(t, err, http.ErrMissingFile)
			_, _ = w.Write([]byte(`{"data":[{"b64_json":"aW1n"}]}`))
		}))
		defer srv.Close()

		adapter, _ := NewOpenAIEditAdapter(srv.Client(), srv.URL, "secret", "")
		_, err := adapter.Edit(ctx, domain.EditRequest{Base: []byte("b"), Prompt: "p", Size: domain.Size1024, N: 1})
		require.NoError(t, err)
	})

	t.Run("エラーステータスは ServiceError に変換される", func(t *testing.T) {
		cases := []struct {
			status int
			kind   domain.ErrorKind
		}{
			{http.StatusTooManyRequests, domain.KindRateLimited},
			{http.StatusServiceUnavailable, domain.KindServiceUnavailable},
			{http.StatusBadRequest, domain.KindInvalidRequest},
		}
		for _, tc := range cases {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"something went wrong","type":"x"}}`))
			}))

			adapter, _ := NewOpenAIEditAdapter(srv.Client(), srv.URL, "secret", "")
			_, err := adapter.Edit(ctx, req)
			srv.Close()

			var se *domain.ServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.status, se.StatusCode)
			assert.Equal(t, tc.kind, se.Kind())
			assert.Equal(t, "something went wrong", se.Message)
		}
	})

	t.Run("接続できない場合は通信エラーになる", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		adapter, _ := NewOpenAIEditAdapter(http.DefaultClient, url, "secret", "")
		_, err := adapter.Edit(ctx, req)

		var se *domain.ServiceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, domain.KindTransport, se.Kind())
	})

	t.Run("壊れた b64_json は再試行可能なエラーになる", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"b64_json":"!!!not-base64"}]}`))
		}))
		defer srv.Close()

		adapter, _ := NewOpenAIEditAdapter(srv.Client(), srv.URL, "secret", "")
		_, err := adapter.Edit(ctx, req)

		assert.True(t, domain.IsRetryable(err))
	})
}
