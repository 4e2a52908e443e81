package generator

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxRetries  = 3
	DefaultBackoffUnit = time.Second
)

// ErrMalformedResponse はサービスの応答が要求と一致しなかったことを表します。
// バリアント数の不一致やデコードできない画像が含まれる場合に返ります。
var ErrMalformedResponse = errors.New("malformed edit response")

// Sleeper はバックオフ待機を行う関数です。ctx がキャンセルされたら待機を中断します。
type Sleeper func(ctx context.Context, d time.Duration) error

// URLValidator はダウンロード前にバリアントのURLを検証します。
type URLValidator func(rawURL string) (bool, error)

// Option は VariantEditClient の設定を変更します。
type Option func(*VariantEditClient)

// WithBackoffUnit はバックオフの基本単位 (2^attempt に掛ける時間) を設定します。
func WithBackoffUnit(d time.Duration) Option {
	return func(c *VariantEditClient) {
		if d > 0 {
			c.unit = d
		}
	}
}

// WithSleeper は待機処理を差し替えます。主にテストで利用します。
func WithSleeper(s Sleeper) Option {
	return func(c *VariantEditClient) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithURLValidator はバリアントURLの検証処理を差し替えます。
func WithURLValidator(v URLValidator) Option {
	return func(c *VariantEditClient) {
		if v != nil {
			c.validateURL = v
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
