package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"google.golang.org/genai"

	"github.com/shouni/gemini-recolor-kit/internal/config"
	"github.com/shouni/gemini-recolor-kit/internal/source"
	"github.com/shouni/gemini-recolor-kit/pkg/adapters"
	"github.com/shouni/gemini-recolor-kit/pkg/generator"
)

// newTransport は設定されたバックエンドの EditTransport を作成します。
func newTransport(ctx context.Context, cfg config.Config, apiKey string) (generator.EditTransport, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout.Duration}

	switch cfg.Backend {
	case config.BackendOpenAI:
		return adapters.NewOpenAIEditAdapter(httpClient, cfg.OpenAIBaseURL, apiKey, cfg.ResolvedModel())
	case config.BackendGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("Geminiクライアントの初期化に失敗しました: %w", err)
		}
		return adapters.NewGeminiEditAdapter(client.Models, cfg.ResolvedModel())
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// newFetcher は URL の取得に使う httpkit クライアントを作成します。
// 接続のたびに宛先を検証するため、リダイレクト先の内部ネットワークにも到達しません。
// 再試行は VariantEditClient が要求全体の単位で行うので、httpkit 側では再試行しません。
func newFetcher(cfg config.Config) *httpkit.Client {
	return httpkit.New(cfg.Timeout.Duration, httpkit.WithMaxRetries(0))
}

// newLoader は入力の場所に含まれるスキームに必要なクライアントだけを作成します。
// 戻り値の io.Closer は呼び出し側で閉じてください。
func newLoader(ctx context.Context, fetcher generator.HTTPClient, locations []string) (*source.Loader, io.Closer, error) {
	reader, err := source.NewRemoteReader(ctx, source.Schemes(locations...))
	if err != nil {
		return nil, nil, err
	}

	loader, err := source.NewLoader(fetcher, source.WithInputReader(reader, reader.Schemes()...))
	if err != nil {
		_ = reader.Close()
		return nil, nil, err
	}
	return loader, reader, nil
}
