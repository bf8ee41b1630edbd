package sse

import (
	"bufio"
	"io"
	"strings"
)

// Decoder reads "data:" frames from an SSE response body. Each call to
// Next returns one frame's payload; comment lines and non-data fields are
// skipped. Upstream services here emit one JSON document per frame.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder wraps r with a line scanner sized for large payload frames.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Decoder{scanner: scanner}
}

// Next returns the payload of the next data frame, or io.EOF when the
// stream ends cleanly.
func (d *Decoder) Next() (string, error) {
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimPrefix(line, "data:")
		payload = strings.TrimPrefix(payload, " ")
		return payload, nil
	}
	if err := d.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
