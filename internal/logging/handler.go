package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single engine log line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of recent engine lines kept for the exit report.
	MaxBufferedLines = 100
)

// EngineLogHandler handles stderr output from the simulation engine process.
// It buffers recent lines for the exit report and logs them at a level
// derived from the engine's own severity prefix.
type EngineLogHandler struct {
	port    int
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewEngineLogHandler creates a new engine stderr handler for the engine on
// the given control port.
func NewEngineLogHandler(port int, logger *slog.Logger, verbose bool) *EngineLogHandler {
	return &EngineLogHandler{
		port:    port,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleReader reads from an io.Reader and processes each line.
// This should be run in a goroutine for the lifetime of the engine process.
func (h *EngineLogHandler) HandleReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, MaxLineLength)
	scanner.Buffer(buf, MaxLineLength)

	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}
}

// HandleLine processes a single line of engine output.
func (h *EngineLogHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	level := classifyLine(line)
	if !h.verbose && level == slog.LevelDebug {
		return
	}

	h.logger.Log(context.Background(), level, "engine_output",
		"port", h.port,
		"line", line,
	)
}

// classifyLine maps the engine's own severity prefixes to slog levels.
// SUMO prefixes problem lines with "Error:" and "Warning:"; everything else
// (loading chatter, step logs) is noise unless verbose.
func classifyLine(line string) slog.Level {
	trimmed := strings.TrimSpace(line)

	if strings.HasPrefix(trimmed, "Error:") ||
		strings.Contains(trimmed, "Quitting (on error)") ||
		strings.Contains(trimmed, "could not bind") {
		return slog.LevelError
	}

	if strings.HasPrefix(trimmed, "Warning:") ||
		strings.Contains(trimmed, "teleporting") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent engine lines, oldest first.
func (h *EngineLogHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < MaxBufferedLines; i++ {
		idx := (h.bufIdx + i) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
