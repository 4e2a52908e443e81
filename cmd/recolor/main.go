// recolor は衣服テンプレート画像をパレットの色に塗り替えるコマンドです。
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/shouni/gemini-recolor-kit/internal/cli"
)

// exitInterrupted は SIGINT で中断されたときの終了コードです。
const exitInterrupted = 130

func main() {
	os.Exit(execute())
}

// execute はコマンドを実行して終了コードを返します。
// os.Exit より前にシグナル監視を解除するため main から分けています。
func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cli.New(os.Stderr, os.Stdout, cli.LogInfo)
	err := c.RootCommand().ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		c.Logger.Warn("中断されました")
		return exitInterrupted
	default:
		c.Logger.Error("コマンドの実行に失敗しました", "error", err)
		return 1
	}
}
