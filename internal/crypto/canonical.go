package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// ErrInvalidJSON is returned when input to CanonicalJSON is not a single JSON value.
var ErrInvalidJSON = errors.New("crypto: invalid JSON")

// CanonicalJSON re-serialises a JSON document in RFC 8785 (JCS) form.
//
// Object members are ordered by their UTF-16 code units, insignificant
// whitespace is removed and numbers are written in their shortest
// round-trip form. Devices sign exactly these bytes.
//
// Parameters:
//   - input: a single JSON value, optionally surrounded by whitespace
//
// Returns:
//   - []byte: canonical encoding
//   - error: wraps ErrInvalidJSON if input is malformed or has trailing data
func CanonicalJSON(input []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	if err := ensureEOF(dec); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalValue canonicalises an in-memory value. Maps and slices of the
// generic JSON shapes are written directly; anything else goes through
// encoding/json first.
func CanonicalValue(v any) ([]byte, error) {
	switch value := v.(type) {
	case json.RawMessage:
		return CanonicalJSON(value)
	case []byte:
		return CanonicalJSON(value)
	case nil, bool, string, json.Number, float64, float32, int, int64, map[string]any, []any:
		var buf bytes.Buffer
		if err := writeCanonical(&buf, value); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		return CanonicalJSON(b)
	}
}

func ensureEOF(dec *json.Decoder) error {
	var extra any
	if err := dec.Decode(&extra); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return fmt.Errorf("%w: trailing data", ErrInvalidJSON)
}

func writeCanonical(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case string:
		writeString(buf, v)
	case json.Number:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return fmt.Errorf("%w: number %q: %w", ErrInvalidJSON, v, err)
		}
		return writeNumber(buf, f)
	case float64:
		return writeNumber(buf, v)
	case float32:
		return writeNumber(buf, float64(v))
	case int:
		return writeNumber(buf, float64(v))
	case int64:
		return writeNumber(buf, float64(v))
	case map[string]any:
		return writeObject(buf, v)
	case []any:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidJSON, value)
	}
	return nil
}

func writeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, k)
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// compareUTF16 orders strings by UTF-16 code units, which differs from
// byte order only for characters outside the Basic Multilingual Plane.
func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

var hexLower = []byte("0123456789abcdef")

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexLower[r>>4])
				buf.WriteByte(hexLower[r&0x0f])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// writeNumber formats f the way ECMAScript Number.prototype.toString does.
func writeNumber(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite number", ErrInvalidJSON)
	}
	if f == 0 {
		buf.WriteByte('0')
		return nil
	}
	if f < 0 {
		buf.WriteByte('-')
		f = -f
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, expPart, _ := strings.Cut(sci, "e")
	exp, err := strconv.Atoi(expPart)
	if err != nil {
		return fmt.Errorf("%w: exponent %q: %w", ErrInvalidJSON, sci, err)
	}
	digits := strings.ReplaceAll(mantissa, ".", "")

	switch point := exp + 1; {
	case exp <= -7 || exp >= 21:
		buf.WriteString(digits[:1])
		if len(digits) > 1 {
			buf.WriteByte('.')
			buf.WriteString(digits[1:])
		}
		buf.WriteByte('e')
		if exp > 0 {
			buf.WriteByte('+')
		}
		buf.WriteString(strconv.Itoa(exp))
	case point >= len(digits):
		buf.WriteString(digits)
		buf.WriteString(strings.Repeat("0", point-len(digits)))
	case point <= 0:
		buf.WriteString("0.")
		buf.WriteString(strings.Repeat("0", -point))
		buf.WriteString(digits)
	default:
		buf.WriteString(digits[:point])
		buf.WriteByte('.')
		buf.WriteString(digits[point:])
	}
	return nil
}
