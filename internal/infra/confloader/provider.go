package confloader

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// ErrReadBytesNotSupported is returned by mapProvider.ReadBytes.
var ErrReadBytesNotSupported = errors.New("confloader: map provider has no byte form")

// mapProvider feeds an in-memory nested map to koanf through Read.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// structToMap converts a struct with koanf tags into a nested map. Durations
// become their String() form so they round-trip through YAML readably.
// Fields without a koanf tag are skipped.
func structToMap(v any) (map[string]any, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, errors.New("confloader: nil struct")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("confloader: %s is not a struct", rv.Type())
	}
	return structValueToMap(rv), nil
}

func structValueToMap(rv reflect.Value) map[string]any {
	out := make(map[string]any)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if tag == "" || tag == "-" {
			continue
		}

		fv := rv.Field(i)
		switch {
		case f.Type == durationType:
			out[tag] = time.Duration(fv.Int()).String()
		case fv.Kind() == reflect.Struct:
			out[tag] = structValueToMap(fv)
		case fv.Kind() == reflect.Slice:
			items := make([]any, fv.Len())
			for j := range items {
				items[j] = fv.Index(j).Interface()
			}
			out[tag] = items
		default:
			out[tag] = fv.Interface()
		}
	}
	return out
}
