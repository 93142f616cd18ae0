package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns the command logger. Records carry a short wall clock
// ("14:32:01.45") and the ssrpreload prefix.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Prefix:          appName,
		Level:           level,
	})
}

// progress times one CLI stage, such as rendering the chunk graph or
// warming the lazy registry.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with keyvals and the elapsed time as a structured field:
//
//	INFO ssrpreload: Rendered chunk graph chunks=12 elapsed=4ms
func (p *progress) done(msg string, keyvals ...any) {
	elapsed := time.Since(p.start).Round(time.Millisecond)
	p.logger.Info(msg, append(keyvals, "elapsed", elapsed)...)
}
