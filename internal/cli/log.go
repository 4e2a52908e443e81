package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger は "時:分:秒.百分の一秒" のタイムスタンプ付きでログを出すロガーを作成します。
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress は処理の開始時刻を記録し、完了時に経過時間をログに出します。
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done は開始からの経過時間を添えて msg を出力します。
func (p *progress) done(msg string, keyvals ...any) {
	p.logger.Info(msg, append(keyvals, "elapsed", time.Since(p.start).Round(time.Millisecond))...)
}
