package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// ID returns the normalized identifier of doc.
// Strings are used as is and numbers are formatted in their shortest decimal
// form, so 2, 2.0 and json.Number("2") all name the same document. Go
// integers beyond 2^53 are rejected since replay would read them back as a
// different number.
func ID(doc Document) (string, error) {
	v, ok := doc[IDField]
	if !ok || v == nil {
		return "", ErrMissingID
	}
	return NormalizeID(v)
}

// NormalizeID converts an identifier value to its index key.
func NormalizeID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		return id, nil
	case json.Number:
		f, err := id.Float64()
		if err != nil {
			return id.String(), nil
		}
		return formatFloat(f), nil
	case float64:
		return formatFloat(id), nil
	case float32:
		return formatFloat(float64(id)), nil
	case int:
		return exactInt(int64(id))
	case int8:
		return strconv.FormatInt(int64(id), 10), nil
	case int16:
		return strconv.FormatInt(int64(id), 10), nil
	case int32:
		return strconv.FormatInt(int64(id), 10), nil
	case int64:
		return exactInt(id)
	case uint:
		return exactUint(uint64(id))
	case uint8:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint64:
		return exactUint(id)
	}
	return "", fmt.Errorf("%w: got %T", ErrInvalidID, v)
}

// maxExactInt is the largest magnitude up to which every integer survives
// the float64 round trip of the JSON encoding.
const maxExactInt = 1 << 53

func exactInt(i int64) (string, error) {
	if i > maxExactInt || i < -maxExactInt {
		return "", fmt.Errorf("%w: integer %d is not exactly representable", ErrInvalidID, i)
	}
	return strconv.FormatInt(i, 10), nil
}

func exactUint(u uint64) (string, error) {
	if u > maxExactInt {
		return "", fmt.Errorf("%w: integer %d is not exactly representable", ErrInvalidID, u)
	}
	return strconv.FormatUint(u, 10), nil
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Encode serializes doc as a single newline-terminated JSON line.
func Encode(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	// Encoder.Encode already terminates the value with a newline.
	return buf.Bytes(), nil
}

// Decode parses one line into a Document. Surrounding whitespace, including
// the trailing newline, is ignored.
func Decode(line []byte) (Document, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return nil, ErrMalformed
	}
	var doc Document
	if err := json.Unmarshal(line, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc, nil
}

// Canonicalize round-trips doc through its JSON encoding and returns the
// decoded copy together with the encoded line. The copy holds exactly the
// types a later Decode of the same line produces.
func Canonicalize(doc Document) (Document, []byte, error) {
	line, err := Encode(doc)
	if err != nil {
		return nil, nil, err
	}
	out, err := Decode(line)
	if err != nil {
		return nil, nil, err
	}
	return out, line, nil
}

// IsRemoved reports whether doc is a tombstone.
func IsRemoved(doc Document) bool {
	removed, _ := doc[RemovedField].(bool)
	return removed
}

// Merge returns a shallow copy of doc with every field of partial set over it.
func Merge(doc Document, partial Partial) Document {
	out := make(Document, len(doc)+len(partial))
	for k, v := range doc {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// CheckPartial rejects an update partial that touches an engine-owned field.
func CheckPartial(partial Partial) error {
	for _, k := range Reserved {
		if _, ok := partial[k]; ok {
			return fmt.Errorf("%w: %s", ErrReservedField, k)
		}
	}
	return nil
}

// Clone returns a deep copy of doc. Nested objects and arrays produced by
// Decode are copied; any other value is shared.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	case Document:
		return Clone(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

// Match reports whether doc satisfies every constraint in cond.
// cond is expected to be canonical (see CanonicalCondition).
func Match(doc Document, cond Condition) bool {
	for k, want := range cond {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// CanonicalCondition converts the values of cond to the types stored
// documents hold, so an int constraint matches a stored float64.
func CanonicalCondition(cond Condition) (Condition, error) {
	doc, _, err := Canonicalize(Document(cond))
	if err != nil {
		return nil, err
	}
	return Condition(doc), nil
}

// Millis returns t as Unix milliseconds, the unit of the timestamp fields.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// TimeField reads a Unix-millisecond timestamp field from doc.
func TimeField(doc Document, field string) (time.Time, bool) {
	switch v := doc[field].(type) {
	case float64:
		return time.UnixMilli(int64(v)), true
	case int64:
		return time.UnixMilli(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(n), true
	}
	return time.Time{}, false
}
