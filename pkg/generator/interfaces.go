package generator

import (
	"context"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
)

// EditTransport は外部の画像編集サービスへの1往復を担当します。
// 失敗時は HTTP ステータスを保持した *domain.ServiceError を返すことが期待されます。
type EditTransport interface {
	Edit(ctx context.Context, req domain.EditRequest) ([]domain.VariantPayload, error)
}

// ImageEditor はリトライ付きの編集呼び出しを提供する、上位層向けの窓口です。
type ImageEditor interface {
	// EditVariants は req.N 枚のバリアントを要求し、すべてデコード可能な場合のみ返します。
	EditVariants(ctx context.Context, req domain.EditRequest, maxRetries int) (*domain.EditResult, error)
	// EditOnce はバリアントを1枚だけ要求して返します。
	EditOnce(ctx context.Context, req domain.EditRequest, maxRetries int) ([]byte, error)
}

// HTTPClient は、HTTPリクエストを実行し、URLからデータを取得するためのインターフェースです。
type HTTPClient interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}
