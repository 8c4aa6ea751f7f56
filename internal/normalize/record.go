package normalize

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// FoldKey reduces a field name to the form used for loose matching: lower case, without
// underscores, dashes or spaces. "Unit_ID", "unitId" and "UNIT ID" all fold to "unitid".
func FoldKey(k string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ':
			return -1
		}
		return r
	}, strings.ToLower(k))
}

// Keys returns the field names of the record, sorted.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Lookup returns the value of the first name present in the record.
// Each name is tried as is, then loosely matched with FoldKey.
func (r Record) Lookup(names ...string) (any, bool) {
	for _, n := range names {
		if v, ok := r[n]; ok {
			return v, true
		}
	}
	for _, n := range names {
		want := FoldKey(n)
		for _, k := range r.Keys() {
			if FoldKey(k) == want {
				return r[k], true
			}
		}
	}
	return nil, false
}

// Text returns the value of the first name present in the record as a string.
// Missing fields, JSON null and the gateway NULL sentinel give an empty string.
func (r Record) Text(names ...string) string {
	v, ok := r.Lookup(names...)
	if !ok || v == nil {
		return ""
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}

	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") {
		return ""
	}
	return s
}
