package bencode

import (
	"bufio"
	"fmt"
	"reflect"
	"sort"
)

// Encoder writes bencoded values to an output stream.
type Encoder struct {
	w *bufio.Writer
}

// Encode writes the bencode encoding of v. A nil interface writes nothing.
func (e *Encoder) Encode(v interface{}) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return e.w.Flush()
	}
	if err := e.reflectValue(rv); err != nil {
		return err
	}
	return e.w.Flush()
}

func (e *Encoder) reflectString(s string) error {
	_, err := fmt.Fprintf(e.w, "%d:", len(s))
	if err != nil {
		return err
	}
	_, err = e.w.WriteString(s)
	return err
}

func (e *Encoder) reflectByteSlice(s []byte) error {
	_, err := fmt.Fprintf(e.w, "%d:", len(s))
	if err != nil {
		return err
	}
	_, err = e.w.Write(s)
	return err
}

func (e *Encoder) reflectMarshaler(v reflect.Value) (bool, error) {
	m, ok := v.Interface().(Marshaler)
	if !ok {
		if v.Kind() != reflect.Ptr && v.CanAddr() {
			return e.reflectMarshaler(v.Addr())
		}
		return false, nil
	}
	data, err := m.MarshalBencode()
	if err != nil {
		return true, &MarshalerError{v.Type(), err}
	}
	_, err = e.w.Write(data)
	return true, err
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return false
}

type encodeField struct {
	index int
	name  string
	tag   string
	opts  tagOptions
}

var encodeFieldsCache = map[reflect.Type][]encodeField{}

func encodeFields(t reflect.Type) []encodeField {
	if fs, ok := encodeFieldsCache[t]; ok {
		return fs
	}

	fs := make([]encodeField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		tagStr := f.Tag.Get("bencode")
		if tagStr == "-" {
			continue
		}
		name, opts := parseTag(tagStr)
		if name == "" {
			name = f.Name
		}
		fs = append(fs, encodeField{index: i, name: f.Name, tag: name, opts: opts})
	}
	sort.Slice(fs, func(i, j int) bool { return fs[i].tag < fs[j].tag })
	encodeFieldsCache[t] = fs
	return fs
}

func (e *Encoder) reflectValue(v reflect.Value) (err error) {
	if !v.IsValid() {
		return e.reflectString("")
	}

	if ok, err := e.reflectMarshaler(v); ok {
		return err
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return e.reflectString("")
		}
		return e.reflectValue(v.Elem())

	case reflect.Interface:
		if v.IsNil() {
			return e.reflectString("")
		}
		return e.reflectValue(v.Elem())

	case reflect.String:
		return e.reflectString(v.String())

	case reflect.Bool:
		if v.Bool() {
			_, err = e.w.WriteString("i1e")
		} else {
			_, err = e.w.WriteString("i0e")
		}
		return err

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		_, err = fmt.Fprintf(e.w, "i%de", v.Int())
		return err

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		_, err = fmt.Fprintf(e.w, "i%de", v.Uint())
		return err

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b := v.Bytes()
			return e.reflectByteSlice(b)
		}
		if v.IsNil() {
			return e.reflectString("")
		}
		if err = e.w.WriteByte('l'); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err = e.reflectValue(v.Index(i)); err != nil {
				return err
			}
		}
		return e.w.WriteByte('e')

	case reflect.Array:
		// Unlike slices, fixed-size byte arrays encode as a list of
		// integers: only []byte gets the bytestring shorthand.
		if err = e.w.WriteByte('l'); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err = e.reflectValue(v.Index(i)); err != nil {
				return err
			}
		}
		return e.w.WriteByte('e')

	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return &MarshalTypeError{v.Type()}
		}
		if err = e.w.WriteByte('d'); err != nil {
			return err
		}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			if err = e.reflectString(k.String()); err != nil {
				return err
			}
			if err = e.reflectValue(v.MapIndex(k)); err != nil {
				return err
			}
		}
		return e.w.WriteByte('e')

	case reflect.Struct:
		if err = e.w.WriteByte('d'); err != nil {
			return err
		}
		for _, f := range encodeFields(v.Type()) {
			fv := v.Field(f.index)
			if f.opts.contains("omitempty") && isEmptyValue(fv) {
				continue
			}
			if err = e.reflectString(f.tag); err != nil {
				return err
			}
			if err = e.reflectValue(fv); err != nil {
				return err
			}
		}
		return e.w.WriteByte('e')

	default:
		return &MarshalTypeError{v.Type()}
	}
}
