// Package config は CLI の設定を、既定値 → TOML ファイル → .env → 環境変数の順に重ねて読み込みます。
// コマンドラインフラグはこの上に cli パッケージが重ねます。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/shouni/gemini-recolor-kit/pkg/adapters"
	"github.com/shouni/gemini-recolor-kit/pkg/domain"
	"github.com/shouni/gemini-recolor-kit/pkg/generator"
)

const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"

	DefaultTimeout = 120 * time.Second
)

// 環境変数名
const (
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvBackend       = "RECOLOR_BACKEND"
	EnvModel         = "RECOLOR_MODEL"
	EnvMaxRetries    = "RECOLOR_MAX_RETRIES"
	EnvBackoffUnit   = "RECOLOR_BACKOFF_UNIT"
)

// Duration は TOML で "1s" や "500ms" のように書ける時間です。
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config は CLI 全体の設定です。
type Config struct {
	Backend       string              `toml:"backend"`
	Model         string              `toml:"model"`
	GeminiAPIKey  string              `toml:"gemini_api_key"`
	OpenAIAPIKey  string              `toml:"openai_api_key"`
	OpenAIBaseURL string              `toml:"openai_base_url"`
	MaxRetries    int                 `toml:"max_retries"`
	BackoffUnit   Duration            `toml:"backoff_unit"`
	Timeout       Duration            `toml:"timeout"`
	Seed          *int64              `toml:"seed"`
	Palette       domain.ColorPalette `toml:"palette"`
	// Masks は領域名から入力の場所へのマッピングです。
	Masks map[string]string `toml:"masks"`
}

// Default は既定値の設定を返します。
func Default() Config {
	return Config{
		Backend:       BackendGemini,
		OpenAIBaseURL: adapters.DefaultOpenAIBaseURL,
		MaxRetries:    generator.DefaultMaxRetries,
		BackoffUnit:   Duration{generator.DefaultBackoffUnit},
		Timeout:       Duration{DefaultTimeout},
	}
}

// Load は設定を読み込みます。
// path が空でなければ TOML ファイルを必須として読み込み、envFile が存在すれば .env として読み込みます。
// .env は既に設定されている環境変数を上書きしません。
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("設定ファイル %s の読み込みに失敗しました: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%s の読み込みに失敗しました: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NormalizeBackend はバックエンド名を小文字に揃えます。
func NormalizeBackend(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MergeMasks は masks を c.Masks に重ねます。領域名は大文字小文字を区別せず、同じ領域の指定は上書きします。
func (c *Config) MergeMasks(masks map[string]string) error {
	canon, err := canonicalMasks(masks)
	if err != nil {
		return err
	}
	if c.Masks == nil {
		c.Masks = make(map[string]string, len(canon))
	}
	for region, loc := range canon {
		c.Masks[region] = loc
	}
	return nil
}

func (c *Config) normalize() error {
	c.Backend = NormalizeBackend(c.Backend)
	if len(c.Masks) == 0 {
		return nil
	}
	canon, err := canonicalMasks(c.Masks)
	if err != nil {
		return err
	}
	c.Masks = canon
	return nil
}

// canonicalMasks は領域名を小文字に揃えます。揃えた結果が重複する場合はどちらを採るか決められないのでエラーです。
func canonicalMasks(masks map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(masks))
	for name, loc := range masks {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("masks: region %q is specified more than once", key)
		}
		out[key] = loc
	}
	return out, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvGeminiAPIKey); ok {
		c.GeminiAPIKey = v
	}
	if v, ok := get(EnvOpenAIAPIKey); ok {
		c.OpenAIAPIKey = v
	}
	if v, ok := get(EnvOpenAIBaseURL); ok {
		c.OpenAIBaseURL = v
	}
	if v, ok := get(EnvBackend); ok {
		c.Backend = v
	}
	if v, ok := get(EnvModel); ok {
		c.Model = v
	}
	if v, ok := get(EnvMaxRetries); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s が不正です (%q): %w", EnvMaxRetries, v, err)
		}
		c.MaxRetries = n
	}
	if v, ok := get(EnvBackoffUnit); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s が不正です (%q): %w", EnvBackoffUnit, v, err)
		}
		c.BackoffUnit = Duration{d}
	}
	return nil
}

// ResolvedModel は明示されたモデル名、なければバックエンドの既定モデルを返します。
func (c Config) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	if c.Backend == BackendOpenAI {
		return adapters.DefaultOpenAIModel
	}
	return adapters.DefaultGeminiModel
}

// MaskLocations は Masks を領域ごとの場所に変換します。
func (c Config) MaskLocations() (map[domain.Region]string, error) {
	if len(c.Masks) == 0 {
		return nil, nil
	}
	out := make(map[domain.Region]string, len(c.Masks))
	for name, loc := range c.Masks {
		if strings.TrimSpace(loc) == "" {
			continue
		}
		r, err := domain.ParseRegion(name)
		if err != nil {
			return nil, fmt.Errorf("masks: %w", err)
		}
		if _, dup := out[r]; dup {
			return nil, fmt.Errorf("masks: region %q is specified more than once", r)
		}
		out[r] = loc
	}
	return out, nil
}

// Validate は通信を伴わない設定値の整合性を確認します。
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendGemini, BackendOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendGemini, BackendOpenAI))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max_retries must be >= 1, got %d", c.MaxRetries))
	}
	if c.BackoffUnit.Duration <= 0 {
		errs = append(errs, fmt.Errorf("backoff_unit must be positive, got %s", c.BackoffUnit))
	}
	if c.Timeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if _, err := c.MaskLocations(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// APIKey は選択中のバックエンドの API キーを返します。未設定ならエラーです。
func (c Config) APIKey() (string, error) {
	key, env := c.GeminiAPIKey, EnvGeminiAPIKey
	if c.Backend == BackendOpenAI {
		key, env = c.OpenAIAPIKey, EnvOpenAIAPIKey
	}
	if key == "" {
		return "", fmt.Errorf("%s バックエンドの API キーが設定されていません (%s)", c.Backend, env)
	}
	return key, nil
}
