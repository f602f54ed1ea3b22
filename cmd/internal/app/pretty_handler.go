package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler backs the "pretty" log format: one line per record,
// colorized on a tty, with dedicated rendering for the keys the pairing
// and push layers emit constantly. Production runs the JSON handler;
// nothing here is machine-readable.
type consoleHandler struct {
	w      io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
	color  bool
	mu     *sync.Mutex
}

func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &consoleHandler{w: w, color: color, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.WriteString(h.dim(ts.Format("15:04:05.000")))
	b.WriteByte(' ')
	b.WriteString(h.levelLabel(r.Level))
	b.WriteByte(' ')
	b.WriteString(h.bold(r.Message))

	for _, a := range h.attrs {
		h.writeAttr(&b, a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, a, "")
		return true
	})

	// Source goes last so the key=value run stays aligned across lines.
	if h.opts.AddSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		if frame.File != "" {
			b.WriteByte(' ')
			b.WriteString(h.dim(filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)))
		}
	}

	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if strings.TrimSpace(name) == "" {
		return h
	}
	cp := *h
	cp.groups = append(append([]string{}, h.groups...), name)
	return &cp
}

func (h *consoleHandler) writeAttr(b *strings.Builder, a slog.Attr, parent string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := strings.TrimSpace(a.Key)
	if key == "" {
		return
	}

	full := key
	if parent != "" {
		full = parent + "." + key
	} else if len(h.groups) > 0 {
		full = strings.Join(h.groups, ".") + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.writeAttr(b, ga, full)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(displayKey(full))
	b.WriteByte('=')
	b.WriteString(h.renderValue(full, a.Value))
}

func (h *consoleHandler) renderValue(key string, v slog.Value) string {
	switch key {
	case "session_id", "request_id", "conn_id", "msg_id":
		// ULIDs and connection tokens are context, not content.
		return h.dim(v.String())
	case "err", "error":
		out := maybeQuote(formatScalar(v))
		if h.color {
			return ansiRed + out + ansiReset
		}
		return out
	case "status":
		// HTTP logs carry numeric statuses, request lifecycle logs
		// carry the terminal-state words.
		if n, ok := scalarInt(v); ok {
			return colorizeStatusCode(int(n), h.color)
		}
		return h.requestStatus(strings.TrimSpace(v.String()))
	case "method":
		return colorizeHTTPMethod(strings.ToUpper(strings.TrimSpace(v.String())), h.color)
	case "path":
		if h.color {
			return ansiCyan + v.String() + ansiReset
		}
		return v.String()
	case "status_class":
		return colorizeStatusClass(strings.TrimSpace(v.String()), h.color)
	case "duration_ms":
		if n, ok := scalarInt(v); ok {
			return colorizeDurationMS(n, h.color)
		}
	case "result":
		return colorizeResult(strings.ToLower(strings.TrimSpace(v.String())), h.color)
	}
	return maybeQuote(formatScalar(v))
}

func (h *consoleHandler) requestStatus(s string) string {
	if !h.color {
		return s
	}
	switch s {
	case "completed":
		return ansiGreen + s + ansiReset
	case "failed":
		return ansiRed + s + ansiReset
	case "expired":
		return ansiYellow + s + ansiReset
	default:
		return ansiDim + s + ansiReset
	}
}

func (h *consoleHandler) levelLabel(level slog.Level) string {
	var tag, esc string
	switch {
	case level >= slog.LevelError:
		tag, esc = "ERROR", ansiRed
	case level >= slog.LevelWarn:
		tag, esc = "WARN ", ansiYellow
	case level < slog.LevelInfo:
		tag, esc = "DEBUG", ansiMagenta
	default:
		tag, esc = "INFO ", ansiBlue
	}
	if !h.color {
		return tag
	}
	return esc + tag + ansiReset
}

func (h *consoleHandler) dim(s string) string {
	if !h.color {
		return s
	}
	return ansiDim + s + ansiReset
}

func (h *consoleHandler) bold(s string) string {
	if !h.color {
		return s
	}
	return ansiBright + s + ansiReset
}

// displayKey shortens the verbose JSON field names for console reading.
func displayKey(k string) string {
	switch k {
	case "status_class":
		return "class"
	case "duration_ms":
		return "duration"
	default:
		return k
	}
}

func formatScalar(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return fmt.Sprint(v.Any())
	}
}

func scalarInt(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	default:
		return 0, false
	}
}

func maybeQuote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
