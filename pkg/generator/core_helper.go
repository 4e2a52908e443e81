package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
	"github.com/shouni/gemini-recolor-kit/pkg/imgutil"
)

// prepareRequest はベース画像とマスクを編集APIが要求するアルファ付きPNGに揃えます。
// 元の要求は変更せず、正規化済みのコピーを返します。
func prepareRequest(req domain.EditRequest) (domain.EditRequest, error) {
	base, err := imgutil.Normalize(req.Base)
	if err != nil {
		return domain.EditRequest{}, fmt.Errorf("base image: %w", err)
	}
	req.Base = base

	if req.HasMask() {
		mask, err := imgutil.Normalize(req.Mask)
		if err != nil {
			return domain.EditRequest{}, fmt.Errorf("mask image: %w", err)
		}
		req.Mask = mask
	}
	return req, nil
}

func (c *VariantEditClient) attempt(ctx context.Context, req domain.EditRequest, attempt int) (*domain.EditResult, error) {
	slog.InfoContext(ctx, "画像編集リクエストを送信します",
		"attempt", attempt+1, "variants", req.N, "size", req.Size.String(), "masked", req.HasMask())

	payloads, err := c.transport.Edit(ctx, req)
	if err != nil {
		return nil, err
	}

	images, err := c.collect(ctx, payloads, req.N)
	if err != nil {
		return nil, err
	}
	res := &domain.EditResult{Images: images}
	slog.DebugContext(ctx, "バリアントを取得しました", "attempt", attempt+1, "variants", res.Len())
	return res, nil
}

// collect はすべてのバリアントを取得・検証します。1枚でも失敗すれば全体を失敗として扱います。
func (c *VariantEditClient) collect(ctx context.Context, payloads []domain.VariantPayload, n int) ([][]byte, error) {
	if len(payloads) != n {
		return nil, malformed(fmt.Sprintf("expected %d variants, got %d", n, len(payloads)), nil)
	}

	images := make([][]byte, 0, n)
	for i, p := range payloads {
		data, err := c.resolve(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("variant %d: %w", i, err)
		}
		if _, err := imgutil.Decode(data); err != nil {
			return nil, malformed(fmt.Sprintf("variant %d is not a decodable image", i), err)
		}
		images = append(images, data)
	}
	return images, nil
}

// resolve は InlineImage / RemoteImage のどちらであってもバイト列に揃えます。
func (c *VariantEditClient) resolve(ctx context.Context, p domain.VariantPayload) ([]byte, error) {
	switch v := p.(type) {
	case domain.InlineImage:
		if len(v.Data) == 0 {
			return nil, malformed("inline variant is empty", nil)
		}
		return v.Data, nil
	case domain.RemoteImage:
		if safe, err := c.validateURL(v.URL); err != nil || !safe {
			if err == nil {
				err = errors.New("rejected by validator")
			}
			return nil, fmt.Errorf("refusing to download variant from unsafe URL %q: %w", v.URL, err)
		}
		data, err := c.httpClient.FetchBytes(ctx, v.URL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// URL の期限切れ等は要求全体を再送すれば新しいURLが得られるため再試行対象とする
			return nil, &domain.ServiceError{Message: "variant download failed", Err: err}
		}
		return data, nil
	default:
		return nil, malformed(fmt.Sprintf("unknown variant payload %T", p), nil)
	}
}

func malformed(msg string, cause error) error {
	if cause != nil {
		return &domain.ServiceError{Message: msg, Err: fmt.Errorf("%w: %w", ErrMalformedResponse, cause)}
	}
	return &domain.ServiceError{Message: msg, Err: ErrMalformedResponse}
}

// asNonRetryable は再試行しないエラーを呼び出し元に返す形に整えます。
// サービスが要求を拒否した場合は InvalidRequestError で包みます。
func asNonRetryable(err error) error {
	var se *domain.ServiceError
	if errors.As(err, &se) && se.Kind() == domain.KindInvalidRequest {
		return &domain.InvalidRequestError{Err: err}
	}
	var invalid *domain.InvalidRequestError
	if errors.As(err, &invalid) {
		return err
	}
	return fmt.Errorf("image edit failed: %w", err)
}
