package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/gemini-recolor-kit/internal/config"
	"github.com/shouni/gemini-recolor-kit/pkg/generator"
	"github.com/shouni/gemini-recolor-kit/pkg/imgutil"
	"github.com/shouni/gemini-recolor-kit/pkg/recolor"
)

const (
	flagOut         = "out"
	flagJPEGQuality = "jpeg-quality"

	defaultJPEGQuality = 90
)

type runOptions struct {
	out         string
	jpegQuality int
}

func (c *CLI) runCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Recolor a garment template and write the result",
		Long: `Recolor a garment template to the given palette.

With at least one region mask, each region that has both a mask and a color is edited
separately and composited over the template in body, sleeves, trims order. Without masks,
a single instruction covering every palette color is sent.`,
		Example: `  recolor run -t shirt.png --primary "#C0392B" -o out.png
  recolor run -t gs://assets/shirt.png --mask body=body.png --mask sleeves=s3://masks/sleeves.png \
    --primary navy --secondary white -o out.jpg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			template, _ := cmd.Flags().GetString(flagTemplate)
			return c.runRecolor(cmd.Context(), cfg, template, opts)
		},
	}

	addInputFlags(cmd)
	cmd.Flags().StringVarP(&opts.out, flagOut, "o", "recolored.png", "output path (.png, .jpg or .jpeg)")
	cmd.Flags().IntVar(&opts.jpegQuality, flagJPEGQuality, defaultJPEGQuality, "JPEG quality when writing .jpg output")
	cmd.Flags().String(flagBackend, "", "edit service backend (gemini or openai)")
	cmd.Flags().String(flagModel, "", "model name (defaults per backend)")
	cmd.Flags().Int(flagMaxRetries, 0, "maximum attempts per edit call")
	cmd.Flags().Int64(flagSeed, 0, "seed for reproducible edits")
	cmd.Flags().Duration(flagTimeout, 0, "per-request timeout")
	_ = cmd.MarkFlagRequired(flagTemplate)

	return cmd
}

func (c *CLI) runRecolor(ctx context.Context, cfg config.Config, template string, opts runOptions) error {
	apiKey, err := cfg.APIKey()
	if err != nil {
		return err
	}
	maskLocs, err := cfg.MaskLocations()
	if err != nil {
		return err
	}

	prog := newProgress(c.Logger)

	fetcher := newFetcher(cfg)
	locations := []string{template}
	for _, loc := range maskLocs {
		locations = append(locations, loc)
	}
	loader, closer, err := newLoader(ctx, fetcher, locations)
	if err != nil {
		return err
	}
	defer closer.Close()

	templateData, masks, err := loader.LoadInputs(ctx, template, maskLocs)
	if err != nil {
		return err
	}
	c.Logger.Debug("Loaded inputs", "template", template, "masks", len(masks))

	transport, err := newTransport(ctx, cfg, apiKey)
	if err != nil {
		return err
	}
	editor, err := generator.NewVariantEditClient(transport, fetcher, generator.WithBackoffUnit(cfg.BackoffUnit.Duration))
	if err != nil {
		return err
	}

	recolorOpts := []recolor.Option{recolor.WithMaxRetries(cfg.MaxRetries)}
	if cfg.Seed != nil {
		recolorOpts = append(recolorOpts, recolor.WithSeed(*cfg.Seed))
	}
	rec, err := recolor.NewRecolorer(editor, recolorOpts...)
	if err != nil {
		return err
	}

	c.Logger.Info("Recoloring", "backend", cfg.Backend, "model", cfg.ResolvedModel(), "template", template)
	result, err := rec.Recolor(ctx, templateData, cfg.Palette, masks)
	if err != nil {
		return fmt.Errorf("recolor failed: %w", err)
	}

	if err := writeOutput(opts.out, result, opts.jpegQuality); err != nil {
		return err
	}
	prog.done("Wrote recolored image", "path", opts.out)
	return nil
}

// writeOutput は拡張子が .jpg / .jpeg なら JPEG に変換し、それ以外は PNG のまま書き込みます。
func writeOutput(path string, png []byte, jpegQuality int) error {
	data := png
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		jpg, err := imgutil.CompressToJPEG(png, jpegQuality)
		if err != nil {
			return fmt.Errorf("failed to encode JPEG: %w", err)
		}
		data = jpg
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
