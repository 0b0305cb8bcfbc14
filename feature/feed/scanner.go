package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// ErrStopProcessing is returned by a Handler to end the scan early without error.
var ErrStopProcessing = errors.New("feed processing stopped")

// Handler receives every complete watched element in file order.
type Handler interface {
	HandleElement(ctx context.Context, kind Kind, text string) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, kind Kind, text string) error

// HandleElement calls f.
func (f HandlerFunc) HandleElement(ctx context.Context, kind Kind, text string) error {
	return f(ctx, kind, text)
}

// Supported input charsets.
const (
	CharsetUTF8        = "utf-8"
	CharsetISO88591    = "iso-8859-1"
	CharsetWindows1252 = "windows-1252"
)

// ScanStats summarizes one scan.
type ScanStats struct {
	Lines        int          `json:"lines"`
	Elements     map[Kind]int `json:"elements"`
	BufferPeak   int          `json:"buffer_peak"`
	DroppedBytes int          `json:"dropped_bytes"`
	Stopped      bool         `json:"stopped"`
}

// Scanner drives a Buffer over a reader and dispatches extracted elements.
type Scanner struct {
	kinds   []Kind
	opening *regexp.Regexp
	charset string
	logger  *zap.Logger
}

// NewScanner creates a scanner for the watched kinds and the given input charset.
// An empty charset means UTF-8.
func NewScanner(charset string, logger *zap.Logger) (*Scanner, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	switch charset {
	case "", CharsetUTF8, "utf8":
		charset = CharsetUTF8
	case CharsetISO88591, "latin1", CharsetWindows1252:
	default:
		return nil, fmt.Errorf("unsupported feed charset %q", charset)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{kinds: WatchedKinds, opening: openingPattern(WatchedKinds), charset: charset, logger: logger}, nil
}

func openingPattern(kinds []Kind) *regexp.Regexp {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = regexp.QuoteMeta(string(k))
	}
	return regexp.MustCompile(`(?i)<(?:` + strings.Join(names, "|") + `)\b`)
}

// Scan reads r to the end, handing each complete element to h.
// It returns early without error when h returns ErrStopProcessing, and with
// ctx.Err() when the context is cancelled between lines.
// Any other handler error aborts the scan.
func (s *Scanner) Scan(ctx context.Context, r io.Reader, h Handler) (ScanStats, error) {
	stats := ScanStats{Elements: make(map[Kind]int)}
	buf := NewBuffer()
	reader := bufio.NewReader(s.decode(r))

	for {
		if err := ctx.Err(); err != nil {
			stats.BufferPeak = buf.Peak()
			return stats, err
		}

		line, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			stats.BufferPeak = buf.Peak()
			return stats, fmt.Errorf("failed to read feed: %w", readErr)
		}

		if line != "" {
			if stats.Lines == 0 {
				line = strings.TrimPrefix(line, "\ufeff")
			}
			stats.Lines++
			buf.Append(line)

			stop, err := s.drain(ctx, buf, h, &stats)
			if err != nil {
				stats.BufferPeak = buf.Peak()
				return stats, err
			}
			if stop {
				stats.Stopped = true
				stats.BufferPeak = buf.Peak()
				return stats, nil
			}
		}

		if readErr == io.EOF {
			break
		}
	}

	stats.BufferPeak = buf.Peak()
	// Envelope text such as <?xml?> or <enterprise> is not an element.
	rest := buf.String()
	if loc := s.opening.FindStringIndex(rest); loc != nil {
		stats.DroppedBytes = len(strings.TrimSpace(rest[loc[0]:]))
		s.logger.Debug("Dropping incomplete trailing element", zap.Int("bytes", stats.DroppedBytes))
	}
	return stats, nil
}

// drain extracts every complete element the latest line made available.
// After each extraction the probe restarts from the first kind because the
// discard may have exposed another complete element.
func (s *Scanner) drain(ctx context.Context, buf *Buffer, h Handler, stats *ScanStats) (bool, error) {
	for {
		extracted := false
		for _, kind := range s.kinds {
			text, ok := buf.TryExtract(string(kind))
			if !ok {
				continue
			}

			err := h.HandleElement(ctx, kind, text)
			buf.Discard(string(kind))
			stats.Elements[kind]++

			if errors.Is(err, ErrStopProcessing) {
				return true, nil
			}
			if err != nil {
				return false, err
			}
			extracted = true
			break
		}
		if !extracted {
			return false, nil
		}
	}
}

func (s *Scanner) decode(r io.Reader) io.Reader {
	switch s.charset {
	case CharsetISO88591, "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(r)
	case CharsetWindows1252:
		return charmap.Windows1252.NewDecoder().Reader(r)
	default:
		return r
	}
}
