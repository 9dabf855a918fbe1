// Package streamjson extracts string fields from incomplete JSON buffers.
//
// The completion service streams tokens that only form a valid JSON object
// once the stream ends. While the stream is still running, the text field
// inside that object can already be shown to the user. Field scans the
// growing buffer and returns whatever portion of the requested string field
// has arrived so far.
package streamjson

import "strings"

// Field returns the current (possibly partial) value of the named string
// field inside buf, which may be an incomplete JSON document.
//
// The second return value is false while the field key or its opening
// quote has not arrived yet. Malformed or truncated input is never an
// error: the caller simply gets "not yet available".
func Field(buf, name string) (string, bool) {
	value, found, _ := scan(buf, name)
	return value, found
}

// FieldComplete reports whether the named field has been fully received,
// i.e. its closing quote is present in buf.
func FieldComplete(buf, name string) bool {
	_, _, complete := scan(buf, name)
	return complete
}

// scan locates the field and consumes its value up to the closing quote or
// buffer exhaustion, unescaping as it goes.
func scan(buf, name string) (value string, found, complete bool) {
	key := `"` + name + `"`
	idx := strings.Index(buf, key)
	if idx < 0 {
		return "", false, false
	}

	rest := buf[idx+len(key):]
	rest = strings.TrimLeft(rest, " \t\r\n")
	if rest == "" || rest[0] != ':' {
		return "", false, false
	}
	rest = strings.TrimLeft(rest[1:], " \t\r\n")
	if rest == "" || rest[0] != '"' {
		return "", false, false
	}
	rest = rest[1:]

	var b strings.Builder
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		switch c {
		case '"':
			return b.String(), true, true
		case '\\':
			if i+1 >= len(rest) {
				// Dangling escape at the buffer edge: wait for the
				// next token before emitting anything for it.
				return b.String(), true, false
			}
			i++
			if mapped, ok := unescape(rest[i]); ok {
				b.WriteByte(mapped)
			} else {
				// Unhandled escape (\uXXXX and friends): pass it through
				// verbatim, backslash included.
				b.WriteByte('\\')
				b.WriteByte(rest[i])
			}
		default:
			b.WriteByte(c)
		}
	}

	// Buffer exhausted before the closing quote: partial value.
	return b.String(), true, false
}

// unescape inverts the JSON string escapes the model commonly emits.
// The second return value is false for escapes outside this set.
func unescape(c byte) (byte, bool) {
	switch c {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '"':
		return '"', true
	case '\\':
		return '\\', true
	default:
		return 0, false
	}
}
