// Package document maps the flat records used by the console onto the nested
// documents kept in the document store, and back.
package document

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/humanplus/posture-console/internal/docstore"
)

const (
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// encode turns a typed document into store fields.
func encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return fields, nil
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// asOptionalString maps missing, non-string and empty values to nil.
func asOptionalString(v any) *string {
	s := asString(v)
	if s == "" {
		return nil
	}
	return &s
}

// asInt accepts only JSON numbers; anything else is 0.
func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// asTime maps a missing or pending timestamp to now so freshly written
// documents still render.
func asTime(v any, now func() time.Time) time.Time {
	if t, ok := docstore.ParseTimestamp(v); ok {
		return t
	}
	return now()
}

// parseLeadingInt reads an optionally signed run of leading digits after any
// leading whitespace ("170.5" → 170, "42kg" → 42). Unparsable and negative
// input yields 0.
func parseLeadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\r\n")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	digits := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		if n > (1<<31-1)/10 {
			break
		}
		n = n*10 + int(r-'0')
		digits++
	}
	if digits == 0 || neg {
		return 0
	}
	return n
}
