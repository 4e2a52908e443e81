package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shouni/gemini-recolor-kit/internal/config"
)

const (
	flagConfig     = "config"
	flagEnvFile    = "env-file"
	flagTemplate   = "template"
	flagMask       = "mask"
	flagPrimary    = "primary"
	flagSecondary  = "secondary"
	flagTertiary   = "tertiary"
	flagBackend    = "backend"
	flagModel      = "model"
	flagMaxRetries = "max-retries"
	flagSeed       = "seed"
	flagTimeout    = "timeout"
)

// addInputFlags は run と prompt に共通する入力フラグを登録します。
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(flagTemplate, "t", "", "template image (path, gs://, s3:// or http(s)://)")
	cmd.Flags().StringToString(flagMask, nil, "region mask as region=location (body, sleeves, trims); repeatable")
	cmd.Flags().String(flagPrimary, "", "main body color (required)")
	cmd.Flags().String(flagSecondary, "", "sleeves/accents color")
	cmd.Flags().String(flagTertiary, "", "trims/borders color")
}

// loadConfig は設定ファイル・.env・環境変数を読み込み、明示されたフラグで上書きします。
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString(flagConfig)
	envFile, _ := cmd.Flags().GetString(flagEnvFile)

	cfg, err := config.Load(path, envFile)
	if err != nil {
		return config.Config{}, err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	setString := func(name string, dst *string) {
		if f.Lookup(name) != nil && f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}

	setString(flagPrimary, &cfg.Palette.Primary)
	setString(flagSecondary, &cfg.Palette.Secondary)
	setString(flagTertiary, &cfg.Palette.Tertiary)
	setString(flagBackend, &cfg.Backend)
	setString(flagModel, &cfg.Model)
	cfg.Backend = config.NormalizeBackend(cfg.Backend)

	if f.Lookup(flagMask) != nil && f.Changed(flagMask) {
		masks, err := f.GetStringToString(flagMask)
		if err != nil {
			return err
		}
		if err := cfg.MergeMasks(masks); err != nil {
			return err
		}
	}
	if f.Lookup(flagMaxRetries) != nil && f.Changed(flagMaxRetries) {
		cfg.MaxRetries, _ = f.GetInt(flagMaxRetries)
	}
	if f.Lookup(flagSeed) != nil && f.Changed(flagSeed) {
		seed, _ := f.GetInt64(flagSeed)
		cfg.Seed = &seed
	}
	if f.Lookup(flagTimeout) != nil && f.Changed(flagTimeout) {
		cfg.Timeout.Duration, _ = f.GetDuration(flagTimeout)
	}
	return nil
}
