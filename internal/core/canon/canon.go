// Package canon provides deterministic canonicalization for identifiers and
// payloads that feed idempotency-key hashing
// Pipeline order for identifiers
// 1 Eastern digit folding Persian and Arabic-Indic to ASCII
// 2 UTF-8 repair drop invalid bytes
// 3 Unicode NFKC normalization
// 4 Case folding
// 5 Remove zero-width bidi and other format characters
// 6 Width fold fullwidth to ASCII
// 7 Trim surrounding whitespace
package canon

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		// order matters and mirrors the documented pipeline
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),                       // unicode case folding
			runes.Remove(runes.In(unicode.Cf)), // strip format chars ZWJ ZWNJ FEFF RLM LRM etc
			width.Fold,                         // map fullwidth forms to ASCII
		)
	},
}

// CleanID returns the canonical form of an identifier following the pipeline above
func CleanID(s string) string {
	if s == "" {
		return ""
	}

	// 1 fold eastern digits before any other step
	s = FoldDigits(s)

	// 2 repair UTF-8 drop invalid bytes
	s = strings.ToValidUTF8(s, "")

	// 3-6 transform via pooled chain then reset and return it
	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	// 7 trim edges
	return strings.TrimSpace(ns)
}

// FoldDigits maps Persian (U+06F0..U+06F9) and Arabic-Indic (U+0660..U+0669)
// digits to their ASCII counterparts, leaving everything else alone
func FoldDigits(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '۰' && r <= '۹': // Persian
			b.WriteRune('0' + (r - '۰'))
		case r >= '٠' && r <= '٩': // Arabic-Indic
			b.WriteRune('0' + (r - '٠'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DigitsOnly reports whether s is non-empty and entirely ASCII digits
func DigitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// JSON renders v as canonical JSON: object keys sorted at every level
// (encoding/json sorts map keys), compact separators, no HTML escaping,
// no trailing newline. Equal maps always render byte-identical
func JSON(v map[string]any) (string, error) {
	if v == nil {
		v = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ParseObject parses s as a single JSON object into a key-value map
// anything else is rejected: non-object values, null, and any input
// past the first value
func ParseObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("canon: payload is not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("canon: trailing data after JSON object")
	}
	return m, nil
}
