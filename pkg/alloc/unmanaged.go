package alloc

import (
	"reflect"
	"sync"

	"github.com/c360/framering/errors"
)

var unmanagedCache sync.Map // reflect.Type -> bool

// IsUnmanaged reports whether values of t contain no pointers the garbage
// collector must trace. Only booleans, numbers, and arrays and structs
// built from them qualify.
func IsUnmanaged(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if v, ok := unmanagedCache.Load(t); ok {
		return v.(bool)
	}
	ok := isUnmanaged(t)
	unmanagedCache.Store(t, ok)
	return ok
}

func isUnmanaged(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || isUnmanaged(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !isUnmanaged(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CheckUnmanaged panics with ErrManagedType if T is not unmanaged.
func CheckUnmanaged[T any]() {
	t := reflect.TypeFor[T]()
	if !IsUnmanaged(t) {
		errors.Contract(errors.ErrManagedType, "alloc", "CheckUnmanaged", "check element type "+typeName(t))
	}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
