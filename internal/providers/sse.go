package providers

import (
	"bufio"
	"bytes"
	"io"
)

// sseEvent is a single server-sent event read from a provider stream.
type sseEvent struct {
	Data []byte
	Done bool
}

// sseReader scans "data: ..." frames off a provider response body. Lines
// without a data prefix (comments, event names, blank keep-alives) are
// skipped; the OpenAI-style "[DONE]" sentinel terminates the stream.
type sseReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

func newSSEReader(r io.ReadCloser) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseReader{
		scanner: scanner,
		closer:  r,
	}
}

// Read returns the next event from the stream.
func (s *sseReader) Read() (*sseEvent, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()

		if len(line) == 0 {
			continue
		}

		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}

		data := bytes.TrimPrefix(line, []byte("data: "))

		if bytes.Equal(data, []byte("[DONE]")) {
			return &sseEvent{Done: true}, nil
		}

		// The scanner reuses its buffer between calls.
		out := make([]byte, len(data))
		copy(out, data)
		return &sseEvent{Data: out}, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return &sseEvent{Done: true}, io.EOF
}

// Close closes the underlying response body.
func (s *sseReader) Close() error {
	return s.closer.Close()
}
