// Package models maps normalized gateway records to typed view models.
//
// The gateway spells the same column differently across stored procedures (UnitID, Unit_Id,
// unitId), so field names are matched case and separator insensitively, and fields may list
// alternative column names in an alias tag.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/ubuntu/societyhub/internal/normalize"
	"github.com/ubuntu/societyhub/internal/temporal"
)

// ErrDecode is returned when some records could not be mapped to the requested model.
var ErrDecode = errors.New("could not map record")

// aliasTag lists the alternative column names of a field, comma separated.
const aliasTag = "alias"

var instantType = reflect.TypeFor[temporal.Instant]()

type options struct {
	coercer temporal.Coercer
}

// Option overrides a Decode default.
type Option func(*options)

// WithCoercer sets the coercer used for date fields. Defaults to the local time zone.
func WithCoercer(c temporal.Coercer) Option {
	return func(o *options) {
		o.coercer = c
	}
}

// Decode maps every object record to a T. Records that are not objects are skipped.
//
// A record which fails to map is left out and its error is joined to the returned error,
// valid rows are still returned.
func Decode[T any](records normalize.Records, args ...Option) ([]T, error) {
	opts := options{coercer: temporal.New()}
	for _, opt := range args {
		opt(&opts)
	}

	aliases := aliasesOf(reflect.TypeFor[T]())

	objects := records.Objects()
	if len(objects) != len(records) {
		slog.Debug("Skipping non object records", "skipped", len(records)-len(objects))
	}

	items := make([]T, 0, len(objects))
	var errs []error
	for i, r := range objects {
		var item T
		if err := decodeRecord(withAliases(r, aliases), &item, opts.coercer); err != nil {
			errs = append(errs, fmt.Errorf("record %d: %v", i, err))
			continue
		}
		if f, ok := any(&item).(finisher); ok {
			f.finish(r, opts.coercer)
		}
		items = append(items, item)
	}

	if len(errs) > 0 {
		return items, fmt.Errorf("%w: %w", ErrDecode, errors.Join(errs...))
	}
	return items, nil
}

// finisher is implemented by models deriving some fields from several columns.
type finisher interface {
	finish(r normalize.Record, c temporal.Coercer)
}

func decodeRecord(r normalize.Record, out any, c temporal.Coercer) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			nullHook,
			instantHook(c),
		),
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return normalize.FoldKey(mapKey) == normalize.FoldKey(fieldName)
		},
		Result: out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(r))
}

// nullHook turns the gateway NULL literal into the zero value of basic fields.
func nullHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to == instantType {
		return data, nil
	}
	if s := reflect.ValueOf(data).String(); strings.EqualFold(strings.TrimSpace(s), "null") {
		return reflect.Zero(to).Interface(), nil
	}
	return data, nil
}

// instantHook coerces strings into temporal.Instant. Unreadable dates are absent, not errors.
func instantHook(c temporal.Coercer) mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != instantType {
			return data, nil
		}
		switch v := data.(type) {
		case temporal.Instant:
			return v, nil
		case string:
			in, _ := c.Parse(v)
			return in, nil
		case json.Number:
			in, _ := c.Parse(v.String())
			return in, nil
		default:
			return temporal.Instant{}, nil
		}
	}
}

// aliasesOf returns, per field name as matched by mapstructure, the folded alternative column names.
func aliasesOf(t reflect.Type) map[string][]string {
	if t.Kind() != reflect.Struct {
		return nil
	}
	aliases := make(map[string][]string)
	for i := range t.NumField() {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup(aliasTag)
		if !ok {
			continue
		}
		name := f.Name
		if ms, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ","); ms != "" {
			name = ms
		}
		for _, a := range strings.Split(tag, ",") {
			aliases[name] = append(aliases[name], normalize.FoldKey(a))
		}
	}
	return aliases
}

// withAliases returns r with the value of the first present alias copied under the field name
// of each field which has no column of its own.
func withAliases(r normalize.Record, aliases map[string][]string) normalize.Record {
	if len(aliases) == 0 {
		return r
	}

	// Keys are walked in sorted order so that duplicated columns resolve the same way every time.
	folded := make(map[string]string, len(r))
	for _, k := range r.Keys() {
		fk := normalize.FoldKey(k)
		if _, exists := folded[fk]; !exists {
			folded[fk] = k
		}
	}

	var out normalize.Record
	for field, alts := range aliases {
		if _, ok := folded[normalize.FoldKey(field)]; ok {
			continue
		}
		for _, a := range alts {
			k, ok := folded[a]
			if !ok {
				continue
			}
			if out == nil {
				out = maps.Clone(r)
			}
			out[field] = r[k]
			break
		}
	}
	if out == nil {
		return r
	}
	return out
}
