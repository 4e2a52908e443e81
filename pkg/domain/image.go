package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ImageSize は編集APIに要求する正方形の出力サイズです。
type ImageSize int

const (
	Size1024 ImageSize = 1024
	Size1536 ImageSize = 1536
	Size2048 ImageSize = 2048
)

// ImageSizes は昇順に並んだ選択可能なサイズの一覧です。
var ImageSizes = []ImageSize{Size1024, Size1536, Size2048}

// Dim は一辺のピクセル数を返します。
func (s ImageSize) Dim() int { return int(s) }

// String は "1024x1024" 形式の表記を返します。
func (s ImageSize) String() string {
	return fmt.Sprintf("%dx%d", int(s), int(s))
}

// Valid は s が列挙済みのサイズかどうかを返します。
func (s ImageSize) Valid() bool {
	for _, v := range ImageSizes {
		if v == s {
			return true
		}
	}
	return false
}

// SizeFor はテンプレートの長辺からリクエストサイズのバケットを選びます。
// 長辺がしきい値以上なら一段上のバケットに振り分けます (例: 2000px → 1536)。
func SizeFor(width, height int) ImageSize {
	longest := max(width, height)
	selected := ImageSizes[0]
	for _, s := range ImageSizes[1:] {
		if longest >= s.Dim() {
			selected = s
		}
	}
	return selected
}

// EditRequest は外部の画像編集サービスへ送る1回分の要求です。
// リトライ時も同じ値をそのまま再送します。
type EditRequest struct {
	Base   []byte
	Mask   []byte // nil ならマスクなし編集
	Prompt string
	Size   ImageSize
	N      int
	Seed   *int64 // nil でランダム
}

// Validate は送信前に要求の形式を検証します。
func (r EditRequest) Validate() error {
	var errs []error
	if len(r.Base) == 0 {
		errs = append(errs, errors.New("base image is required"))
	}
	if strings.TrimSpace(r.Prompt) == "" {
		errs = append(errs, errors.New("prompt must not be empty"))
	}
	if !r.Size.Valid() {
		errs = append(errs, fmt.Errorf("unsupported size: %s", r.Size))
	}
	if r.N < 1 {
		errs = append(errs, fmt.Errorf("variant count must be >= 1, got %d", r.N))
	}
	if len(errs) > 0 {
		return &InvalidRequestError{Err: errors.Join(errs...)}
	}
	return nil
}

// HasMask はマスク付き編集かどうかを返します。
func (r EditRequest) HasMask() bool { return len(r.Mask) > 0 }

// VariantPayload はサービスが返す1枚分のバリアントです。
// InlineImage か RemoteImage のどちらかを取ります。
type VariantPayload interface {
	isVariantPayload()
}

// InlineImage はレスポンスに直接埋め込まれた画像バイト列です (b64_json 等はデコード済み)。
type InlineImage struct {
	Data     []byte
	MimeType string
}

// RemoteImage は後から取得する必要がある画像のURLです。
type RemoteImage struct {
	URL string
}

func (InlineImage) isVariantPayload() {}
func (RemoteImage) isVariantPayload() {}

// EditResult は1回の編集要求で得られたバリアントを要求順に保持します。
type EditResult struct {
	Images [][]byte
}

// Len はバリアント数を返します。
func (r *EditResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Images)
}
