package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
)

const (
	// DefaultOpenAIBaseURL は OpenAI 互換 API の既定のベースURLです。
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultOpenAIModel は OpenAI 互換 API で使用する既定のモデル名です。
	DefaultOpenAIModel = "gpt-image-1"

	maxErrorBodyBytes = 64 << 10
)

// OpenAIEditAdapter は OpenAI 互換の /images/edits エンドポイントを generator.EditTransport として扱います。
type OpenAIEditAdapter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIEditAdapter は OpenAIEditAdapter を初期化します。
func NewOpenAIEditAdapter(httpClient *http.Client, baseURL, apiKey, model string) (*OpenAIEditAdapter, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIEditAdapter{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}, nil
}

// Edit は multipart/form-data で編集要求を送信し、data 配列をバリアントとして返します。
func (a *OpenAIEditAdapter) Edit(ctx context.Context, req domain.EditRequest) ([]domain.VariantPayload, error) {
	body, contentType, err := a.buildForm(req)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/images/edits", body)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.ServiceError{Message: "images/edits への送信に失敗しました", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var decoded openAIImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &domain.ServiceError{Message: "応答のJSON解析に失敗しました", Err: err}
	}
	return toPayloads(decoded)
}

func (a *OpenAIEditAdapter) buildForm(req domain.EditRequest) (io.Reader, string, error) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	if err := writeFile(w, "image", "image.png", req.Base); err != nil {
		return nil, "", err
	}
	if req.HasMask() {
		if err := writeFile(w, "mask", "mask.png", req.Mask); err != nil {
			return nil, "", err
		}
	}

	fields := []struct{ key, value string }{
		{"model", a.model},
		{"prompt", req.Prompt},
		{"n", strconv.Itoa(req.N)},
		{"size", req.Size.String()},
	}
	for _, f := range fields {
		if err := w.WriteField(f.key, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field, name string, data []byte) error {
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

func toPayloads(resp openAIImageResponse) ([]domain.VariantPayload, error) {
	payloads := make([]domain.VariantPayload, 0, len(resp.Data))
	for i, d := range resp.Data {
		switch {
		case d.B64JSON != "":
			data, err := base64.StdEncoding.DecodeString(d.B64JSON)
			if err != nil {
				return nil, &domain.ServiceError{Message: fmt.Sprintf("variant %d: b64_json の復号に失敗しました", i), Err: err}
			}
			payloads = append(payloads, domain.InlineImage{Data: data, MimeType: "image/png"})
		case d.URL != "":
			payloads = append(payloads, domain.RemoteImage{URL: d.URL})
		default:
			return nil, &domain.ServiceError{Message: fmt.Sprintf("variant %d に画像が含まれていません", i)}
		}
	}
	return payloads, nil
}

// statusError は 2xx 以外の応答を ServiceError に変換します。本文に error.message があればそれを使います。
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	msg := strings.TrimSpace(string(raw))
	var decoded openAIErrorResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Error.Message != "" {
		msg = decoded.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &domain.ServiceError{StatusCode: resp.StatusCode, Message: msg, Err: errors.New(resp.Status)}
}
