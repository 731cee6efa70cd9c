package endpoint

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// defaultFieldLimit caps a single decoded value unless the field carries a
// maxLength tag.
var defaultFieldLimit = 16 * 1024

// Unmarshal populates dst (a non-nil pointer to a struct, or to a pointer to
// a struct) from the request form, which holds urlencoded body values and
// the query.
//
// Fields are bound with `form:"name"`. `-` as the name skips the field. An
// empty name defaults to the lowercased field name. `maxLength:"n"` bounds
// the value in bytes; `maxLength:""` removes the bound. Values that do not
// parse into the field type yield a 400 EndpointError. Missing values leave
// the field unchanged.
//
// Field types: string, signed integers, and pointers to those.
func Unmarshal(r *http.Request, dst any) error {
	if r == nil {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: nil request"))
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must be a non-nil pointer"))
	}
	root := v.Elem()
	if root.Kind() == reflect.Pointer {
		if root.IsNil() {
			root.Set(reflect.New(root.Type().Elem()))
		}
		root = root.Elem()
	}
	if root.Kind() != reflect.Struct {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must point to a struct (or pointer to struct)"))
	}

	form, err := parseForm(r)
	if err != nil {
		return err
	}
	return unmarshalStruct(root, form)
}

func parseForm(r *http.Request) (url.Values, error) {
	if ct := strings.TrimSpace(r.Header.Get("Content-Type")); ct != "" {
		if _, _, err := mime.ParseMediaType(ct); err != nil {
			return url.Values{}, Error(http.StatusBadRequest, "", fmt.Errorf("parse content-type: %w", err))
		}
	}
	if err := r.ParseForm(); err != nil {
		return url.Values{}, Error(http.StatusBadRequest, "", fmt.Errorf("parse form: %w", err))
	}
	return r.Form, nil
}

func unmarshalStruct(structVal reflect.Value, form url.Values) error {
	t := structVal.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		name, ok := sf.Tag.Lookup("form")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(sf.Name)
		}
		limit, err := fieldLengthLimit(sf)
		if err != nil {
			return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: field %s: %w", sf.Name, err))
		}
		values := form[name]
		if len(values) == 0 {
			continue
		}
		val := values[0]
		if limit > 0 && len(val) > limit {
			return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: form %q -> %s: value exceeds max length %d", name, sf.Name, limit))
		}
		if err := setField(structVal.Field(i), val); err != nil {
			return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: form %q -> %s: %w", name, sf.Name, err))
		}
	}
	return nil
}

func fieldLengthLimit(sf reflect.StructField) (int, error) {
	val, has := sf.Tag.Lookup("maxLength")
	if !has {
		return defaultFieldLimit, nil
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("maxLength: invalid integer %q", val)
	}
	if n < 0 {
		return 0, errors.New("maxLength: must be >= 0")
	}
	return n, nil
}

func setField(v reflect.Value, s string) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
		return nil
	}
	return fmt.Errorf("unsupported kind %s", v.Kind())
}
