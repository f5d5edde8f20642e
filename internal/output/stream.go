package output

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/rig/internal/ui"
)

// Mux writes complete lines from several sources to one writer, so lines
// from different hosts never splice into each other.
type Mux struct {
	mu          sync.Mutex
	w           io.Writer
	formatter   Formatter
	prefixStyle lipgloss.Style
}

// NewMux creates a Mux writing to w. Lines pass through a GenericFormatter.
func NewMux(w io.Writer) *Mux {
	return &Mux{
		w:           w,
		formatter:   NewGenericFormatter(),
		prefixStyle: lipgloss.NewStyle().Foreground(ui.ColorMuted),
	}
}

// SetFormatter replaces the line formatter.
func (m *Mux) SetFormatter(f Formatter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.formatter = f
}

// Writer returns a line-buffered writer whose lines are printed as
//
//	[host] line
func (m *Mux) Writer(host string) *LineWriter {
	return &LineWriter{
		mux:    m,
		prefix: m.prefixStyle.Render(fmt.Sprintf("[%s]", host)),
	}
}

func (m *Mux) writeLine(prefix string, line []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	text := string(line)
	if m.formatter != nil {
		text = m.formatter.ProcessLine(text)
	}
	_, err := fmt.Fprintf(m.w, "%s %s\n", prefix, text)
	return err
}

// LineWriter buffers writes until a newline arrives, then hands the line to
// its Mux. A trailing carriage return (pty output) is dropped. A LineWriter
// is used by one goroutine at a time.
type LineWriter struct {
	mux    *Mux
	prefix string
	buf    []byte
}

// Write implements io.Writer with line buffering.
// Incomplete lines are buffered until a newline arrives.
func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)

	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(lw.buf[:idx], []byte("\r"))
		if err := lw.mux.writeLine(lw.prefix, line); err != nil {
			return len(p), err
		}
		lw.buf = lw.buf[idx+1:]
	}

	return len(p), nil
}

// Flush writes any remaining buffered content as a final line.
func (lw *LineWriter) Flush() error {
	if len(lw.buf) == 0 {
		return nil
	}
	line := bytes.TrimSuffix(lw.buf, []byte("\r"))
	lw.buf = nil
	return lw.mux.writeLine(lw.prefix, line)
}
