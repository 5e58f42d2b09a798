package dispatchz

import (
	"reflect"
	"strconv"
)

// normalizeKeys turns a user supplied hook identifier into the ordered list
// of keys to operate on. Scalars become a one element list. Slices and
// arrays keep their order, with every element validated as a scalar. Byte
// slices are rejected.
func normalizeKeys(raw any) ([]Key, error) {
	if raw == nil {
		return nil, &KeyError{Key: raw}
	}

	if k, ok := scalarKey(raw); ok {
		return []Key{k}, nil
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		// Byte slices are data, not key lists.
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, &KeyError{Key: raw}
		}
		keys := make([]Key, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i).Interface()
			k, ok := scalarKey(elem)
			if !ok {
				return nil, &KeyError{Key: elem}
			}
			keys = append(keys, k)
		}
		return keys, nil
	}

	return nil, &KeyError{Key: raw}
}

// scalarKey converts strings and integers (including named types built on
// them) to their canonical string form.
func scalarKey(v any) (Key, bool) {
	switch k := v.(type) {
	case string:
		return k, true
	case int:
		return strconv.Itoa(k), true
	case nil:
		return "", false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	}
	return "", false
}
