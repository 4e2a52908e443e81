package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind は外部サービスの失敗をリトライ可否の観点で分類したものです。
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindRateLimited
	KindServiceUnavailable
	KindInvalidRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "transport"
	}
}

// ServiceError は外部の画像編集サービスが返した失敗です。
// StatusCode が 0 の場合はステータスを受け取る前の通信エラーを表します。
type ServiceError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("image edit service: %s", e.Message)
	}
	return fmt.Sprintf("image edit service: status %d: %s", e.StatusCode, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Kind はステータスコードからエラー種別を判定します。
func (e *ServiceError) Kind() ErrorKind {
	switch {
	case e.StatusCode == 0:
		return KindTransport
	case e.StatusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case e.StatusCode >= 500:
		return KindServiceUnavailable
	default:
		return KindInvalidRequest
	}
}

// Retryable はバックオフ後に再試行すべきエラーかどうかを返します。
func (e *ServiceError) Retryable() bool {
	return e.Kind() != KindInvalidRequest
}

// InvalidRequestError はリトライしても結果が変わらない要求エラーです。
type InvalidRequestError struct {
	Err error
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid edit request: %v", e.Err)
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }

// EditExhaustedError はリトライ上限まで再試行しても成功しなかったことを表します。
type EditExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *EditExhaustedError) Error() string {
	return fmt.Sprintf("image edit failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *EditExhaustedError) Unwrap() error { return e.LastErr }

// DecodeError は画像バッファを画像としてデコードできなかったことを表します。
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InvalidDimensionsError はテンプレートの幅・高さが取得できなかったことを表します。
type InvalidDimensionsError struct {
	Err error
}

func (e *InvalidDimensionsError) Error() string {
	return fmt.Sprintf("cannot read template dimensions: %v", e.Err)
}

func (e *InvalidDimensionsError) Unwrap() error { return e.Err }

// IsRetryable はエラーチェーン中にリトライ可能な ServiceError があるかを返します。
func IsRetryable(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}
