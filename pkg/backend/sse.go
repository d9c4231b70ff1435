package backend

import (
	"bufio"
	"bytes"
	"io"
)

// maxEventLine bounds a single SSE line. Replace events carry the whole
// response text, so this is well above bufio's default.
const maxEventLine = 4 << 20

// eventReader reads "event:"/"data:" blocks from a Server-Sent Events body.
type eventReader struct {
	scanner *bufio.Scanner
}

func newEventReader(r io.Reader) *eventReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	return &eventReader{scanner: scanner}
}

// next returns the name and data of the next complete event. Events without
// an explicit name are reported as "text" only when they carry data, which
// matches how the backend frames plain deltas.
func (r *eventReader) next() (string, []byte, error) {
	var (
		name    string
		data    bytes.Buffer
		hasData bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Bytes()

		if len(line) == 0 {
			if hasData || name != "" {
				if name == "" {
					name = string(EventText)
				}
				return name, data.Bytes(), nil
			}
			continue
		}

		// Comment lines keep the connection alive.
		if line[0] == ':' {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			name = string(value)
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.Write(value)
			hasData = true
		}
	}

	if err := r.scanner.Err(); err != nil {
		return "", nil, err
	}
	if hasData || name != "" {
		if name == "" {
			name = string(EventText)
		}
		return name, data.Bytes(), nil
	}
	return "", nil, io.EOF
}

func splitField(line []byte) (string, []byte) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return string(line), nil
	}
	value := line[i+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return string(line[:i]), value
}
