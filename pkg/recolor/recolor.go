package recolor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
	"github.com/shouni/gemini-recolor-kit/pkg/generator"
	"github.com/shouni/gemini-recolor-kit/pkg/imgutil"
)

// Recolorer はテンプレート画像をパレットの色に塗り替えるパイプラインです。
// 呼び出しごとの状態を持たないため、複数の goroutine から共有できます。
type Recolorer struct {
	editor     generator.ImageEditor
	maxRetries int
	seed       *int64
}

// Option は Recolorer の設定を変更します。
type Option func(*Recolorer)

// WithMaxRetries は編集呼び出し1回あたりの最大試行回数を設定します。
func WithMaxRetries(n int) Option {
	return func(r *Recolorer) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// WithSeed はすべての編集呼び出しに同じシード値を付けます。
func WithSeed(seed int64) Option {
	return func(r *Recolorer) {
		r.seed = &seed
	}
}

// NewRecolorer は依存関係を注入して Recolorer を初期化します。
func NewRecolorer(editor generator.ImageEditor, opts ...Option) (*Recolorer, error) {
	if editor == nil {
		return nil, fmt.Errorf("editor is required")
	}
	r := &Recolorer{editor: editor, maxRetries: generator.DefaultMaxRetries}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Recolor はテンプレートを塗り替えた PNG を1枚返します。
// masks に既知の領域のマスクが1つでもあれば領域ごとに編集して合成し、
// なければパレット全体を1回の編集で指示します。
func (r *Recolorer) Recolor(ctx context.Context, template []byte, palette domain.ColorPalette, masks domain.MaskSet) ([]byte, error) {
	if err := palette.Validate(); err != nil {
		return nil, &domain.InvalidRequestError{Err: err}
	}

	base, err := imgutil.Normalize(template)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	w, h, err := imgutil.Dimensions(base)
	if err != nil {
		return nil, err
	}
	size := domain.SizeFor(w, h)

	s := selectStrategy(masks)
	plan := s.plan(palette)

	logger := slog.Default().With("request_id", uuid.NewString())
	logger.InfoContext(ctx, "塗り替えを開始します",
		"branch", plan.Branch, "edits", len(plan.Edits), "size", size.String(), "width", w, "height", h)
	if len(plan.Skipped) > 0 {
		logger.WarnContext(ctx, "マスクと色が揃わない領域は編集しません", "regions", plan.Skipped)
	}

	switch s := s.(type) {
	case maskDriven:
		return r.runMaskDriven(ctx, logger, base, size, s.masks, plan)
	case maskless:
		return r.runMaskless(ctx, logger, base, size, plan)
	default:
		return nil, fmt.Errorf("unknown strategy %T", s)
	}
}

// runMaskDriven は領域を固定順に1つずつ編集し、同じ順でテンプレートに重ねます。
func (r *Recolorer) runMaskDriven(ctx context.Context, logger *slog.Logger, base []byte, size domain.ImageSize, masks domain.MaskSet, plan Plan) ([]byte, error) {
	layers := make([]imgutil.Layer, 0, len(plan.Edits))
	for _, edit := range plan.Edits {
		mask := masks[edit.Region]
		out, err := r.editor.EditOnce(ctx, r.request(base, mask, edit.Prompt, size), r.maxRetries)
		if err != nil {
			logger.ErrorContext(ctx, "領域の編集に失敗しました", "region", edit.Region, "error", err)
			return nil, err
		}
		logger.InfoContext(ctx, "領域の編集が完了しました", "region", edit.Region, "bytes", len(out))
		layers = append(layers, imgutil.Layer{Image: out, Mask: mask})
	}

	if len(layers) == 0 {
		logger.InfoContext(ctx, "色と対になるマスクがないため、テンプレートをそのまま返します")
	}
	return imgutil.Composite(base, layers)
}

func (r *Recolorer) runMaskless(ctx context.Context, logger *slog.Logger, base []byte, size domain.ImageSize, plan Plan) ([]byte, error) {
	out, err := r.editor.EditOnce(ctx, r.request(base, nil, plan.Edits[0].Prompt, size), r.maxRetries)
	if err != nil {
		logger.ErrorContext(ctx, "マスクなし編集に失敗しました", "error", err)
		return nil, err
	}
	logger.InfoContext(ctx, "マスクなし編集が完了しました", "bytes", len(out))
	return imgutil.Normalize(out)
}

func (r *Recolorer) request(base, mask []byte, prompt string, size domain.ImageSize) domain.EditRequest {
	return domain.EditRequest{
		Base:   base,
		Mask:   mask,
		Prompt: prompt,
		Size:   size,
		N:      1,
		Seed:   r.seed,
	}
}
