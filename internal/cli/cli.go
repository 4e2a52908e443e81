// Package cli は recolor コマンドラインインターフェースを実装します。
//
// # コマンド
//
//   - run: テンプレート画像をパレットの色に塗り替えて保存します
//   - prompt: 通信を行わずに、選択される経路と送信されるプロンプトを表示します
//
// すべてのコマンドは --verbose (-v) でデバッグログを出力します。
// ライブラリ側の log/slog 出力は charmbracelet/log のハンドラーに流れます。
package cli

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const appName = "recolor"

// ログレベル
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

const flagVerbose = "verbose"

// CLI はすべてのコマンドで共有するロガーと出力先を持ちます。
type CLI struct {
	Logger *log.Logger
	out    io.Writer
}

// New は w にログを出力する CLI を作成し、slog の既定ハンドラーとして登録します。
// コマンドの結果 (prompt の出力など) は out に書き込みます。
func New(w, out io.Writer, level log.Level) *CLI {
	logger := newLogger(w, level)
	slog.SetDefault(slog.New(logger))
	return &CLI{Logger: logger, out: out}
}

// SetLogLevel はログレベルを変更します。
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand はサブコマンドを登録したルートコマンドを作成します。
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Recolor garment templates with a generative image-edit service",
		Long:          `recolor repaints a garment template image to a target color palette, either region by region using masks or with a single maskless instruction, while preserving fabric texture, shadows, seams, logos and text.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose, _ := cmd.Flags().GetBool(flagVerbose); verbose {
				c.SetLogLevel(LogDebug)
			}
			return nil
		},
	}

	root.PersistentFlags().BoolP(flagVerbose, "v", false, "enable debug logging")
	root.PersistentFlags().String(flagConfig, "", "path to a TOML config file")
	root.PersistentFlags().String(flagEnvFile, ".env", "path to a .env file (ignored when missing)")

	root.AddCommand(c.runCommand())
	root.AddCommand(c.promptCommand())

	return root
}
