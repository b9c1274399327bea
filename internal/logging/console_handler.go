package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// consoleHandler renders human-readable log lines. Colors are enabled only
// when the underlying writer is a terminal.
type consoleHandler struct {
	mu     *sync.Mutex
	writer io.Writer
	level  slog.Leveler
	color  bool
	attrs  []slog.Attr
	groups []string
}

func newConsoleHandler(writer io.Writer, level slog.Leveler) *consoleHandler {
	color := false
	if f, ok := writer.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &consoleHandler{
		mu:     &sync.Mutex{},
		writer: writer,
		level:  level,
		color:  color,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.level != nil {
		minLevel = h.level.Level()
	}
	return level >= minLevel
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder
	b.WriteString(h.dim(record.Time.Format("15:04:05")))
	b.WriteByte(' ')
	b.WriteString(h.levelLabel(record.Level))
	b.WriteByte(' ')
	b.WriteString(record.Message)

	for _, attr := range h.attrs {
		h.appendAttr(&b, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		h.appendAttr(&b, attr)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (h *consoleHandler) appendAttr(b *strings.Builder, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	b.WriteByte(' ')
	b.WriteString(h.dim(key + "="))
	b.WriteString(fmt.Sprint(attr.Value.Resolve().Any()))
}

func (h *consoleHandler) levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.paint(ansiRed, "ERR")
	case level >= slog.LevelWarn:
		return h.paint(ansiYellow, "WRN")
	case level >= slog.LevelInfo:
		return h.paint(ansiBlue, "INF")
	default:
		return h.paint(ansiDim, "DBG")
	}
}

func (h *consoleHandler) dim(s string) string {
	return h.paint(ansiDim, s)
}

func (h *consoleHandler) paint(color, s string) string {
	if !h.color || color == "" {
		return s
	}
	return color + s + ansiReset
}
