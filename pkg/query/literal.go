package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Identifier renders a label or property key. Plain identifiers are left as
// is, anything else is backtick-quoted.
func Identifier(name string) (string, error) {
	if name == "" {
		return "", errors.New("empty identifier")
	}
	if identPattern.MatchString(name) {
		return name, nil
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`", nil
}

// Quote renders s as a single-quoted cypher string literal.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// Literal renders a scalar value. Strings are quoted, numbers and booleans
// are inlined bare and nil becomes null.
func Literal(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "null", nil
	case string:
		return Quote(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float32:
		return formatFloat(float64(t))
	case float64:
		return formatFloat(t)
	case json.Number:
		if _, err := strconv.ParseFloat(t.String(), 64); err != nil {
			return "", fmt.Errorf("invalid number %q", t.String())
		}
		return t.String(), nil
	default:
		return "", fmt.Errorf("unsupported literal type %T", v)
	}
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number %v", f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// MapLiteral renders a flat map as {k: v, ...} with keys in sorted order.
func MapLiteral(m map[string]any) (string, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		ident, err := Identifier(k)
		if err != nil {
			return "", err
		}
		lit, err := Literal(m[k])
		if err != nil {
			return "", fmt.Errorf("property %s: %w", k, err)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident)
		b.WriteString(": ")
		b.WriteString(lit)
	}
	b.WriteByte('}')
	return b.String(), nil
}
