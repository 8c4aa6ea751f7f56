package gateway

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ubuntu/societyhub/internal/constants"
)

// DateLayout is how dates are sent to the gateway.
const DateLayout = "2006-01-02"

// Values is the positional parameter string of a stored procedure call:
// comma separated @name=value pairs, in the order the procedure expects them.
// Absent parameters are sent as NULL, never omitted.
//
// The zero Values is empty and ready to use.
type Values struct {
	params []param
}

type param struct {
	name  string
	value string
}

// Set sets a parameter. An empty or blank value is sent as NULL.
// Setting an existing parameter replaces its value and keeps its position.
func (v *Values) Set(name, value string) *Values {
	value = strings.TrimSpace(value)
	if value == "" {
		value = constants.NullValue
	}
	if strings.ContainsAny(value, ",=") {
		// The gateway has no escaping: such a value shifts the following parameters.
		slog.Warn("Gateway parameter value contains a separator, sending it verbatim", "param", name)
	}

	name = paramName(name)
	for i := range v.params {
		if v.params[i].name == name {
			v.params[i].value = value
			return v
		}
	}
	v.params = append(v.params, param{name: name, value: value})
	return v
}

// Null sets a parameter to NULL.
func (v *Values) Null(name string) *Values {
	return v.Set(name, "")
}

// SetInt sets a numeric parameter.
func (v *Values) SetInt(name string, n int64) *Values {
	return v.Set(name, strconv.FormatInt(n, 10))
}

// SetBool sets a flag parameter, sent as 1 or 0.
func (v *Values) SetBool(name string, b bool) *Values {
	if b {
		return v.Set(name, "1")
	}
	return v.Set(name, "0")
}

// SetDate sets a date parameter. The zero time is sent as NULL.
func (v *Values) SetDate(name string, t time.Time) *Values {
	if t.IsZero() {
		return v.Null(name)
	}
	return v.Set(name, t.Format(DateLayout))
}

// Len returns the number of parameters.
func (v *Values) Len() int {
	if v == nil {
		return 0
	}
	return len(v.params)
}

// Get returns the wire value of a parameter.
func (v *Values) Get(name string) (string, bool) {
	if v == nil {
		return "", false
	}
	name = paramName(name)
	for _, p := range v.params {
		if p.name == name {
			return p.value, true
		}
	}
	return "", false
}

// String renders the parameters in their wire format.
func (v *Values) String() string {
	if v == nil {
		return ""
	}
	parts := make([]string, 0, len(v.params))
	for _, p := range v.params {
		parts = append(parts, fmt.Sprintf("%s=%s", p.name, p.value))
	}
	return strings.Join(parts, ",")
}

// ParseValues reads name=value pairs, as given on a command line, into Values in order.
// Names may omit the leading @.
func ParseValues(pairs []string) (*Values, error) {
	v := &Values{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || name == "@" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", pair)
		}
		v.Set(name, value)
	}
	return v, nil
}

func paramName(name string) string {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, "@") {
		name = "@" + name
	}
	return name
}
