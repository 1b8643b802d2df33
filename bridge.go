package goscript

import (
	"reflect"
	"strconv"

	"github.com/dop251/goja"
	"github.com/go-errors/errors"
)

var storedFunctionType = reflect.TypeOf(StoredFunction{})

// encodeValue converts a host argument into an engine value. Stored-function
// handles are swapped back for the retained function value; handles minted by
// another runtime are rejected rather than silently miscast.
func (r *innerRuntime) encodeValue(vm *goja.Runtime, value interface{}) (goja.Value, error) {
	switch v := value.(type) {
	case nil:
		return goja.Undefined(), nil
	case *StoredFunction:
		return r.storedValue(v)
	case StoredFunction:
		return r.storedValue(&v)
	case goja.Value:
		return v, nil
	default:
		return vm.ToValue(value), nil
	}
}

func (r *innerRuntime) encodeValues(vm *goja.Runtime, values []interface{}) ([]goja.Value, error) {
	encoded := make([]goja.Value, 0, len(values))
	for _, value := range values {
		ev, err := r.encodeValue(vm, value)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, ev)
	}
	return encoded, nil
}

// decodeValue exports an engine value into the target pointer. Targets that
// mention StoredFunction anywhere in their type are walked field by field so
// that function values become handles instead of failing the export; all
// other targets go through the engine's native exporter.
func (r *innerRuntime) decodeValue(vm *goja.Runtime, value goja.Value, target interface{}) error {
	if target == nil {
		return nil
	}

	switch t := target.(type) {
	case *goja.Value:
		*t = value
		return nil
	case *StoredFunction:
		handle, err := r.captureFunction(value)
		if err != nil {
			return err
		}
		*t = *handle
		return nil
	case **StoredFunction:
		handle, err := r.captureFunction(value)
		if err != nil {
			return err
		}
		*t = handle
		return nil
	}

	pointer := reflect.ValueOf(target)
	if pointer.Kind() != reflect.Ptr || pointer.IsNil() {
		return errors.Errorf("decode target must be a non-nil pointer, got %T", target)
	}

	if containsStoredFunction(pointer.Type().Elem(), nil) {
		return r.decodeInto(vm, value, pointer.Elem())
	}

	if err := vm.ExportTo(value, target); err != nil {
		return errors.New(err)
	}
	return nil
}

// captureFunction retains a callable engine value and returns its handle.
func (r *innerRuntime) captureFunction(value goja.Value) (*StoredFunction, error) {
	if _, ok := goja.AssertFunction(value); !ok {
		return nil, &ValueNotCallableError{Name: value.String()}
	}
	return r.storeFunction(value), nil
}

func containsStoredFunction(t reflect.Type, visited map[reflect.Type]bool) bool {
	if t == storedFunctionType {
		return true
	}
	if visited == nil {
		visited = make(map[reflect.Type]bool)
	}
	if visited[t] {
		return false
	}
	visited[t] = true

	switch t.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Array, reflect.Map:
		return containsStoredFunction(t.Elem(), visited)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if containsStoredFunction(t.Field(i).Type, visited) {
				return true
			}
		}
	}
	return false
}

// decodeInto recursively exports an engine value into a reflect target,
// converting function values to stored-function handles along the way.
func (r *innerRuntime) decodeInto(vm *goja.Runtime, value goja.Value, target reflect.Value) error {
	if target.Type() == storedFunctionType {
		handle, err := r.captureFunction(value)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(*handle))
		return nil
	}

	switch target.Kind() {
	case reflect.Ptr:
		if !isDefined(value) {
			target.Set(reflect.Zero(target.Type()))
			return nil
		}
		if target.IsNil() {
			target.Set(reflect.New(target.Type().Elem()))
		}
		return r.decodeInto(vm, value, target.Elem())

	case reflect.Struct:
		object := value.ToObject(vm)
		for i := 0; i < target.NumField(); i++ {
			field := target.Type().Field(i)
			if field.PkgPath != "" {
				continue
			}
			member := object.Get(fieldName(field))
			if !isDefined(member) {
				continue
			}
			if err := r.decodeInto(vm, member, target.Field(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice:
		object := value.ToObject(vm)
		length := int(object.Get("length").ToInteger())
		slice := reflect.MakeSlice(target.Type(), length, length)
		for i := 0; i < length; i++ {
			if err := r.decodeInto(vm, object.Get(strconv.Itoa(i)), slice.Index(i)); err != nil {
				return err
			}
		}
		target.Set(slice)
		return nil

	case reflect.Map:
		object := value.ToObject(vm)
		result := reflect.MakeMap(target.Type())
		for _, key := range object.Keys() {
			element := reflect.New(target.Type().Elem()).Elem()
			if err := r.decodeInto(vm, object.Get(key), element); err != nil {
				return err
			}
			result.SetMapIndex(reflect.ValueOf(key), element)
		}
		target.Set(result)
		return nil

	default:
		if err := vm.ExportTo(value, target.Addr().Interface()); err != nil {
			return errors.New(err)
		}
		return nil
	}
}

// fieldName mirrors the runtime's tag-based field mapper: the json tag when
// present, else the field name with its first letter lowercased.
func fieldName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok && tag != "" && tag != "-" {
		for i := 0; i < len(tag); i++ {
			if tag[i] == ',' {
				return tag[:i]
			}
		}
		return tag
	}
	name := field.Name
	return string(name[0]|0x20) + name[1:]
}
