package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
	"github.com/shouni/gemini-recolor-kit/pkg/utils"
)

// DefaultGeminiModel は画像編集に使用する既定のモデル名です。
const DefaultGeminiModel = "gemini-2.5-flash-image"

// maskInstruction はマスク付き要求でプロンプトの後ろに付け加える説明です。
const maskInstruction = "The second image is an edit mask aligned with the first image. " +
	"Only pixels where the mask is opaque and light may change; every other pixel must stay identical. " +
	"Return the full edited image at the original framing."

// ContentGenerator は genai.Models のうち画像編集で使うメソッドだけを切り出したインターフェースです。
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiEditAdapter は Gemini の画像生成モデルを generator.EditTransport として扱うアダプターです。
type GeminiEditAdapter struct {
	client ContentGenerator
	model  string
}

// NewGeminiEditAdapter は依存関係を注入して GeminiEditAdapter を初期化します。
func NewGeminiEditAdapter(client ContentGenerator, model string) (*GeminiEditAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiEditAdapter{client: client, model: model}, nil
}

// Edit は1回分の編集要求を送信し、候補ごとの画像をバリアントとして返します。
func (a *GeminiEditAdapter) Edit(ctx context.Context, req domain.EditRequest) ([]domain.VariantPayload, error) {
	contents := []*genai.Content{genai.NewContentFromParts(a.buildParts(req), genai.RoleUser)}

	resp, err := a.client.GenerateContent(ctx, a.model, contents, a.buildConfig(req))
	if err != nil {
		return nil, toServiceError(err)
	}
	return parseCandidates(ctx, resp)
}

func (a *GeminiEditAdapter) buildParts(req domain.EditRequest) []*genai.Part {
	prompt := req.Prompt
	if req.HasMask() {
		prompt = prompt + "\n\n" + maskInstruction
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(req.Base, "image/png"),
	}
	if req.HasMask() {
		parts = append(parts, genai.NewPartFromBytes(req.Mask, "image/png"))
	}
	return parts
}

func (a *GeminiEditAdapter) buildConfig(req domain.EditRequest) *genai.GenerateContentConfig {
	imageConfig := &genai.ImageConfig{AspectRatio: "1:1"}
	if req.Size != domain.Size1024 && supportsImageSize(a.model) {
		imageConfig.ImageSize = "2K"
	}
	return &genai.GenerateContentConfig{
		CandidateCount:     int32(req.N),
		ResponseModalities: []string{"IMAGE"},
		ImageConfig:        imageConfig,
		Seed:               utils.SeedToPtrInt32(req.Seed),
	}
}

// parseCandidates は各候補から最初の画像パーツを取り出します。
// 画像を含まない候補は数えないため、件数の検証は呼び出し側に任せます。
func parseCandidates(ctx context.Context, resp *genai.GenerateContentResponse) ([]domain.VariantPayload, error) {
	if resp == nil {
		return nil, &domain.ServiceError{Message: "Geminiからの有効な応答がありませんでした"}
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return nil, &domain.ServiceError{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("プロンプトがブロックされました (BlockReason: %s)", fb.BlockReason),
		}
	}

	var payloads []domain.VariantPayload
	for i, candidate := range resp.Candidates {
		if img := firstImage(candidate); img != nil {
			payloads = append(payloads, *img)
			continue
		}
		if isBlocked(candidate.FinishReason) {
			return nil, &domain.ServiceError{
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("画像生成が安全フィルターにより停止しました (FinishReason: %s)", candidate.FinishReason),
			}
		}
		slog.WarnContext(ctx, "画像を含まない候補を無視します", "candidate", i, "finish_reason", candidate.FinishReason)
	}
	return payloads, nil
}

func firstImage(candidate *genai.Candidate) *domain.InlineImage {
	if candidate == nil || candidate.Content == nil {
		return nil
	}
	for _, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		if !strings.HasPrefix(part.InlineData.MIMEType, "image/") {
			continue
		}
		return &domain.InlineImage{Data: part.InlineData.Data, MimeType: part.InlineData.MIMEType}
	}
	return nil
}

// supportsImageSize は ImageConfig.ImageSize を受け付けるモデルかどうかを返します。
// gemini-2.5-flash-image は 1K 固定のため指定しません。
func supportsImageSize(model string) bool {
	return strings.HasPrefix(model, "gemini-3")
}

func isBlocked(reason genai.FinishReason) bool {
	switch reason {
	case genai.FinishReasonSafety,
		genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII,
		genai.FinishReasonImageSafety,
		genai.FinishReasonImageProhibitedContent:
		return true
	}
	return false
}

// toServiceError は SDK のエラーを HTTP ステータス付きの ServiceError に変換します。
func toServiceError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.ServiceError{StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	return &domain.ServiceError{Message: "Gemini API 呼び出しに失敗しました", Err: err}
}
