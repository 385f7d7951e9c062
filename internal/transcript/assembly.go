package transcript

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultChunkSize is the number of characters per reorganization window.
const DefaultChunkSize = 10000

// FormatTimestamp renders an offset in seconds as HH:MM:SS.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// ParseTimestamp converts "H:MM:SS", "MM:SS" or plain seconds into seconds.
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	var total float64
	for i, p := range parts {
		p = strings.TrimSpace(p)
		var v float64
		var err error
		if i == len(parts)-1 {
			v, err = strconv.ParseFloat(p, 64)
		} else {
			var n int
			n, err = strconv.Atoi(p)
			v = float64(n)
		}
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		if v < 0 {
			return 0, fmt.Errorf("negative timestamp %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

// Text joins the transcript into "HH:MM:SS: text" entries separated by a space.
func Text(t Transcript) string {
	var sb strings.Builder
	for i, s := range t {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(FormatTimestamp(s.Start))
		sb.WriteString(": ")
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Chunk splits text into consecutive windows of size characters. Word and
// sentence boundaries are ignored; concatenating the windows yields text.
func Chunk(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}

	// Slice on rune boundaries of the original string so bytes are never re-encoded.
	var chunks []string
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}
