package docstore

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeError marks a document that exists but does not map onto the
// expected shape. List-producing callers skip the item and keep the rest
// of the batch; single-entity callers surface it as a failure.
type DecodeError struct {
	ID  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("docstore: decode document %q: %v", e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode maps a raw document onto out, a pointer to a tagged struct.
func Decode(doc Document, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return &DecodeError{ID: doc.ID, Err: err}
	}
	if err := dec.Decode(doc.Data); err != nil {
		return &DecodeError{ID: doc.ID, Err: err}
	}
	return nil
}

// Encode maps a tagged struct onto the field tree written to the backend.
// The result is plain maps and slices all the way down, so either backend
// can store it without knowing the Go types.
func Encode(v any) (map[string]any, error) {
	data, err := EncodeValue(v)
	if err != nil {
		return nil, err
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("docstore: encode: %T is not a document shape", v)
	}
	return m, nil
}

// EncodeValue converts a single field value (struct, slice, scalar) into
// its backend representation. Used for targeted Update writes and
// array-union elements.
func EncodeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return EncodeValue(rv.Elem().Interface())
	case reflect.Struct:
		var m map[string]any
		if err := mapstructure.Decode(v, &m); err != nil {
			return nil, fmt.Errorf("docstore: encode %T: %w", v, err)
		}
		out := make(map[string]any, len(m))
		for k, fv := range m {
			ev, err := EncodeValue(fv)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ev, err := EncodeValue(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(iter.Key().Interface())] = ev
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := EncodeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	default:
		return v, nil
	}
}
