package stream

import (
	"bytes"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// DefaultMaxFragmentSize bounds a single JSON fragment.
const DefaultMaxFragmentSize = 1 << 20

// fragment is one complete object, or a malformed span, cut from the byte stream.
type fragment struct {
	raw []byte
	err error
}

// Parser cuts a chunked byte stream into top-level JSON objects. Objects may
// be newline delimited or directly concatenated, and may be split across any
// number of Feed calls. It tracks string and escape state so braces inside
// string values do not confuse object boundaries.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	maxSize int

	buf      []byte
	depth    int
	inObject bool
	inString bool
	escape   bool

	// garbage holds bytes outside any object until a newline or '{' ends them.
	garbage []byte
	// resync discards input until the next newline after an oversized fragment.
	resync bool
}

// NewParser returns a Parser rejecting fragments larger than maxSize bytes.
// maxSize <= 0 selects DefaultMaxFragmentSize.
func NewParser(maxSize int) *Parser {
	if maxSize <= 0 {
		maxSize = DefaultMaxFragmentSize
	}
	return &Parser{maxSize: maxSize}
}

// Feed consumes data and returns every fragment completed by it. Bytes of an
// incomplete trailing object are kept for the next call.
func (p *Parser) Feed(data []byte) []fragment {
	var out []fragment

	for _, c := range data {
		if p.resync {
			if c == '\n' {
				p.resync = false
			}
			continue
		}

		if !p.inObject {
			switch {
			case c == '{':
				out = p.flushGarbage(out)
				p.inObject = true
				p.depth = 1
				p.buf = append(p.buf[:0], c)
			case c == '\n':
				out = p.flushGarbage(out)
			case isSpace(c) && len(p.garbage) == 0:
			default:
				p.garbage = append(p.garbage, c)
				if len(p.garbage) > p.maxSize {
					out = append(out, fragment{err: fmt.Errorf("unterminated data exceeds %d bytes", p.maxSize)})
					p.garbage = p.garbage[:0]
					p.resync = true
				}
			}
			continue
		}

		p.buf = append(p.buf, c)
		if len(p.buf) > p.maxSize {
			out = append(out, fragment{err: fmt.Errorf("fragment exceeds %d bytes", p.maxSize)})
			p.reset()
			p.resync = true
			continue
		}

		if p.inString {
			switch {
			case p.escape:
				p.escape = false
			case c == '\\':
				p.escape = true
			case c == '"':
				p.inString = false
			}
			continue
		}

		switch c {
		case '"':
			p.inString = true
		case '{', '[':
			p.depth++
		case '}', ']':
			p.depth--
			if p.depth == 0 {
				raw := make([]byte, len(p.buf))
				copy(raw, p.buf)
				out = append(out, fragment{raw: raw})
				p.reset()
			}
		}
	}
	return out
}

// Pending reports how many bytes are buffered for an incomplete object.
func (p *Parser) Pending() int {
	return len(p.buf) + len(p.garbage)
}

func (p *Parser) reset() {
	p.buf = p.buf[:0]
	p.depth = 0
	p.inObject = false
	p.inString = false
	p.escape = false
}

func (p *Parser) flushGarbage(out []fragment) []fragment {
	g := bytes.TrimSpace(p.garbage)
	p.garbage = p.garbage[:0]
	if len(g) == 0 {
		return out
	}
	return append(out, fragment{err: fmt.Errorf("unexpected data outside JSON object: %q", truncate(g, 64))})
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// classified is a fragment turned into an event.
type classified struct {
	event Event
	// goAway is set when the server asks the client to reconnect.
	goAway bool
}

// classify decodes a complete fragment. Heartbeat and error markers are
// matched case-insensitively on top-level keys; everything else is data.
func classify(raw []byte) (classified, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return classified{}, err
	}

	var hasHeartbeat, hasError bool
	var dataKey string
	for k := range fields {
		switch strings.ToLower(k) {
		case "heartbeat":
			hasHeartbeat = true
		case "error":
			hasError = true
		case "data":
			dataKey = k
		}
	}

	switch {
	case hasHeartbeat:
		return classified{event: Event{Kind: KindHeartbeat, Payload: raw}}, nil
	case hasError:
		return classified{event: Event{
			Kind:    KindError,
			Payload: raw,
			Err:     &StreamError{Kind: Remote, Message: remoteMessage(fields)},
		}}, nil
	}

	if status, ok := fields["StreamStatus"]; ok {
		var s string
		if json.Unmarshal(status, &s) == nil && s == "GoAway" {
			return classified{event: Event{Kind: KindData, Payload: raw}, goAway: true}, nil
		}
	}

	payload := raw
	if dataKey != "" && len(fields) == 1 {
		payload = []byte(fields[dataKey])
	}
	return classified{event: Event{Kind: KindData, Payload: payload}}, nil
}

func remoteMessage(fields map[string]json.RawMessage) string {
	parts := make([]string, 0, 2)
	for _, key := range []string{"Error", "error", "Message", "message"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ": ")
}
