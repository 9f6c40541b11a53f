package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/zest"
)

const typeKey = "elementType"

var elementIface = reflect.TypeOf((*zest.Element)(nil)).Elem()

type field struct {
	index  []int
	name   string
	invert bool
}

var fieldCache sync.Map

// fieldsOf lists the tagged fields of t with embedded structs flattened.
func fieldsOf(t reflect.Type) []field {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]field)
	}
	var out []field
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() {
			continue
		}
		tag, ok := sf.Tag.Lookup("zest")
		if !ok || tag == "" || tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		out = append(out, field{index: sf.Index, name: name, invert: opts == "invert"})
	}
	fieldCache.Store(t, out)
	return out
}

// elementTypeOf returns the discriminator for struct type t, if it is an element.
func elementTypeOf(t reflect.Type) (string, bool) {
	if t.Kind() != reflect.Struct || !reflect.PointerTo(t).Implements(elementIface) {
		return "", false
	}
	return reflect.New(t).Interface().(zest.Element).ElementType(), true
}

type encoder struct {
	path map[uintptr]bool
}

func toTree(el zest.Element) (any, error) {
	if el == nil {
		return nil, errdef.New(errdef.CodeLoad, "cannot encode nil element")
	}
	enc := &encoder{path: make(map[uintptr]bool)}
	return enc.value(reflect.ValueOf(el))
}

func (e *encoder) value(v reflect.Value) (any, error) {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		ptr := v.Pointer()
		if e.path[ptr] {
			return nil, errdef.New(errdef.CodeLoad, "cycle detected at %s", v.Type())
		}
		e.path[ptr] = true
		defer delete(e.path, ptr)
		return e.value(v.Elem())
	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return e.value(v.Elem())
	case reflect.Struct:
		return e.object(v)
	case reflect.Slice:
		if v.Len() == 0 {
			return nil, nil
		}
		items := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, err := e.value(v.Index(i))
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	case reflect.Map:
		if v.Len() == 0 {
			return nil, nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().String()
		}
		return out, nil
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	default:
		return nil, errdef.New(errdef.CodeLoad, "unsupported kind %s", v.Kind())
	}
}

func (e *encoder) object(v reflect.Value) (map[string]any, error) {
	out := make(map[string]any)
	if name, ok := elementTypeOf(v.Type()); ok {
		out[typeKey] = name
	}
	for _, f := range fieldsOf(v.Type()) {
		fv := v.FieldByIndex(f.index)
		val, err := e.value(fv)
		if err != nil {
			return nil, err
		}
		if val == nil {
			continue
		}
		if f.invert {
			val = !fv.Bool()
		}
		out[f.name] = val
	}
	return out, nil
}

func fromTree(node any) (zest.Element, error) {
	return decodeElement(node, "$")
}

func decodeElement(node any, at string) (zest.Element, error) {
	obj, ok := node.(map[string]any)
	if !ok {
		return nil, errdef.New(errdef.CodeLoad, "%s: expected object, got %T", at, node)
	}
	name, _ := obj[typeKey].(string)
	if name == "" {
		return nil, errdef.New(errdef.CodeLoad, "%s: missing %s", at, typeKey)
	}
	el, ok := zest.New(name)
	if !ok {
		return nil, errdef.New(errdef.CodeLoad, "%s: unknown %s %q", at, typeKey, name)
	}
	if err := fill(reflect.ValueOf(el).Elem(), obj, at); err != nil {
		return nil, err
	}
	return el, nil
}

func fill(v reflect.Value, obj map[string]any, at string) error {
	for _, f := range fieldsOf(v.Type()) {
		raw, ok := obj[f.name]
		if !ok || raw == nil {
			continue
		}
		fv := v.FieldByIndex(f.index)
		where := at + "." + f.name
		if err := set(fv, raw, where); err != nil {
			return err
		}
		if f.invert {
			fv.SetBool(!fv.Bool())
		}
	}
	return nil
}

func set(fv reflect.Value, raw any, at string) error {
	switch fv.Kind() {
	case reflect.String:
		s, err := asString(raw, at)
		if err != nil {
			return err
		}
		fv.SetString(s)
	case reflect.Bool:
		b, err := asBool(raw, at)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := asInt(raw, at)
		if err != nil {
			return err
		}
		if fv.OverflowInt(n) {
			return errdef.New(errdef.CodeLoad, "%s: %d out of range", at, n)
		}
		fv.SetInt(n)
	case reflect.Map:
		obj, ok := raw.(map[string]any)
		if !ok {
			return errdef.New(errdef.CodeLoad, "%s: expected object, got %T", at, raw)
		}
		if len(obj) == 0 {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		m := reflect.MakeMapWithSize(fv.Type(), len(obj))
		for k, item := range obj {
			s, err := asString(item, at+"."+k)
			if err != nil {
				return err
			}
			m.SetMapIndex(reflect.ValueOf(k), reflect.ValueOf(s).Convert(fv.Type().Elem()))
		}
		fv.Set(m)
	case reflect.Slice:
		items, ok := raw.([]any)
		if !ok {
			return errdef.New(errdef.CodeLoad, "%s: expected list, got %T", at, raw)
		}
		if len(items) == 0 {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		out := reflect.MakeSlice(fv.Type(), len(items), len(items))
		for i, item := range items {
			if err := set(out.Index(i), item, fmt.Sprintf("%s[%d]", at, i)); err != nil {
				return err
			}
		}
		fv.Set(out)
	case reflect.Interface:
		el, err := decodeElement(raw, at)
		if err != nil {
			return err
		}
		ev := reflect.ValueOf(el)
		if !ev.Type().AssignableTo(fv.Type()) {
			return errdef.New(errdef.CodeLoad, "%s: %s is not a %s", at, el.ElementType(), fv.Type().Name())
		}
		fv.Set(ev)
	case reflect.Pointer:
		target := reflect.New(fv.Type().Elem())
		if err := decodeStruct(target.Elem(), raw, at); err != nil {
			return err
		}
		fv.Set(target)
	case reflect.Struct:
		return decodeStruct(fv, raw, at)
	default:
		return errdef.New(errdef.CodeLoad, "%s: unsupported kind %s", at, fv.Kind())
	}
	return nil
}

// decodeStruct fills a concretely typed struct, starting from the registered
// defaults when the struct is an element.
func decodeStruct(v reflect.Value, raw any, at string) error {
	obj, ok := raw.(map[string]any)
	if !ok {
		return errdef.New(errdef.CodeLoad, "%s: expected object, got %T", at, raw)
	}
	if want, isElem := elementTypeOf(v.Type()); isElem {
		if got, _ := obj[typeKey].(string); got != "" && got != want {
			return errdef.New(errdef.CodeLoad, "%s: expected %s, got %s", at, want, got)
		}
		if def, ok := zest.New(want); ok {
			v.Set(reflect.ValueOf(def).Elem())
		}
	}
	return fill(v, obj, at)
}

func asString(raw any, at string) (string, error) {
	switch x := raw.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	}
	return "", errdef.New(errdef.CodeLoad, "%s: expected string, got %T", at, raw)
}

func asBool(raw any, at string) (bool, error) {
	switch x := raw.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err == nil {
			return b, nil
		}
	}
	return false, errdef.New(errdef.CodeLoad, "%s: expected boolean, got %v", at, raw)
}

func asInt(raw any, at string) (int64, error) {
	switch x := raw.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		if f, err := x.Float64(); err == nil && f == math.Trunc(f) {
			return int64(f), nil
		}
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), nil
		}
	case float64:
		if x == math.Trunc(x) {
			return int64(x), nil
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errdef.New(errdef.CodeLoad, "%s: expected integer, got %v", at, raw)
}
