package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
)

var colors = []color.Attribute{color.FgYellow, color.FgGreen, color.FgRed, color.FgWhite, color.FgMagenta}
var index = -1

var l sync.Mutex

const MaxNameLength = 20

// ColorLogger provides an io.Writer that prefixes job output in color.
type ColorLogger struct {
	name   string
	writer io.Writer
	c      color.Attribute
}

func NewColorLogger(name string, writer io.Writer, newColor bool) io.Writer {
	l.Lock()
	defer l.Unlock()
	if newColor {
		index = (index + 1) % len(colors)
	}
	if index < 0 {
		index = 0
	}

	if len(name) > MaxNameLength {
		name = name[:MaxNameLength-3] + "..."
	}

	return &ColorLogger{
		name:   name,
		writer: writer,
		c:      colors[index],
	}
}

func (c *ColorLogger) Write(p []byte) (int, error) {
	out := color.New(c.c)
	out.Print(c.name, " | ")
	return out.Fprintf(c.writer, "%s", p)
}

// NewRunLogger builds the logging handle for one run: console output plus a
// per-run file under logDir. The returned closer flushes the file and must be
// called when the run exits.
func NewRunLogger(logDir, level string) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("could not create log directory %s: %w", logDir, err)
	}

	name := fmt.Sprintf("ship_%s.log", time.Now().Format("20060102_150405"))
	file, err := os.Create(filepath.Join(logDir, name))
	if err != nil {
		return nil, nil, fmt.Errorf("could not create log file: %w", err)
	}

	logger := log.NewWithOptions(io.MultiWriter(os.Stderr, file), log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Prefix:          "ship",
	})

	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger, file, nil
}
