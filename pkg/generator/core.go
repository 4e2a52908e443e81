package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
)

// VariantEditClient は EditTransport をリトライとバリアントの取得・検証で包むクライアントです。
// 呼び出しごとの状態を持たないため、複数の goroutine から共有できます。
type VariantEditClient struct {
	transport   EditTransport
	httpClient  HTTPClient
	unit        time.Duration
	sleep       Sleeper
	validateURL URLValidator
}

// NewVariantEditClient は依存関係を注入して VariantEditClient を初期化します。
func NewVariantEditClient(transport EditTransport, httpClient HTTPClient, opts ...Option) (*VariantEditClient, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}

	c := &VariantEditClient{
		transport:   transport,
		httpClient:  httpClient,
		unit:        DefaultBackoffUnit,
		sleep:       sleepContext,
		validateURL: IsSafeURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EditVariants は req.N 枚のバリアントを要求します。
// レート制限・5xx・通信エラーは 2^attempt 単位の待機を挟んで最大 maxRetries 回まで試行し、
// それ以外の要求エラーは待機せずに即座に返します。
func (c *VariantEditClient) EditVariants(ctx context.Context, req domain.EditRequest, maxRetries int) (*domain.EditResult, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prepared, err := prepareRequest(req)
	if err != nil {
		return nil, err
	}

	bo := c.newBackOff()
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := c.attempt(ctx, prepared, attempt)
		if err == nil {
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !domain.IsRetryable(err) {
			return nil, asNonRetryable(err)
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := bo.NextBackOff()
		slog.WarnContext(ctx, "画像編集に一時的な失敗、待機して再試行します",
			"attempt", attempt+1, "max_retries", maxRetries, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &domain.EditExhaustedError{Attempts: maxRetries, LastErr: lastErr}
}

// EditOnce はバリアントを1枚だけ要求して返します。
func (c *VariantEditClient) EditOnce(ctx context.Context, req domain.EditRequest, maxRetries int) ([]byte, error) {
	req.N = 1
	res, err := c.EditVariants(ctx, req, maxRetries)
	if err != nil {
		return nil, err
	}
	return res.Images[0], nil
}

// newBackOff は揺らぎなしで unit, 2*unit, 4*unit... を返すバックオフを作ります。
func (c *VariantEditClient) newBackOff() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.unit),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(time.Duration(math.MaxInt64)),
		backoff.WithMaxElapsedTime(0),
	)
}
