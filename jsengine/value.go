package jsengine

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/dop251/goja"
)

const (
	classArray   = "Array"
	classString  = "String"
	classNumber  = "Number"
	classBoolean = "Boolean"
)

// Value is a persistent native-side reference to a runtime value. A
// Value does not extend its engine's lifetime: once the engine is
// closed every operation reports KindEngineDisposed, and Release
// degrades to a no-op.
//
// Values may be used from any goroutine; each operation is serialized
// onto the engine's loop and performed inside an entered execution
// context, like the scope-per-operation discipline of the embedded
// runtime itself.
type Value struct {
	eng *Engine
	ref handleRef
}

// deref resolves the handle. Loop goroutine only.
func (v *Value) deref() (goja.Value, error) {
	return v.eng.handles.get(v.ref)
}

// derefFor resolves the handle for use inside an operation on owner's
// engine, rejecting handles that belong to a different engine.
func (v *Value) derefFor(owner *Engine) (goja.Value, error) {
	if v.eng != owner {
		return nil, typeError("handle belongs to a different engine")
	}
	return v.deref()
}

// Clone creates an independent persistent reference to the same
// underlying runtime value. Mutations through one handle are visible
// through the other; releasing one does not invalidate the other.
func (v *Value) Clone() (*Value, error) {
	var out *Value
	err := v.eng.scoped(func(vm *goja.Runtime) error {
		gv, err := v.deref()
		if err != nil {
			return err
		}
		out = v.eng.wrap(gv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Release drops the persistent reference. The handle must not be used
// afterwards. If the engine has already been closed the reference is
// abandoned instead: better a bounded leak than touching a dead
// runtime. Safe to call more than once.
func (v *Value) Release() {
	v.eng.handles.release(v.ref)
}

// query runs a type predicate. Predicates never fail: a released handle
// or closed engine simply answers false.
func (v *Value) query(pred func(gv goja.Value) bool) bool {
	result := false
	_ = v.eng.scoped(func(vm *goja.Runtime) error {
		gv, err := v.deref()
		if err != nil {
			return err
		}
		result = pred(gv)
		return nil
	})
	return result
}

// IsUndefined reports whether the value is undefined.
func (v *Value) IsUndefined() bool {
	return v.query(goja.IsUndefined)
}

// IsNull reports whether the value is null.
func (v *Value) IsNull() bool {
	return v.query(goja.IsNull)
}

// IsString reports whether the value is a string primitive or String
// object.
func (v *Value) IsString() bool {
	return v.query(func(gv goja.Value) bool {
		return isKindOrClass(gv, reflect.String, classString)
	})
}

// IsNumber reports whether the value is a number primitive or Number
// object.
func (v *Value) IsNumber() bool {
	return v.query(func(gv goja.Value) bool {
		if t := gv.ExportType(); t != nil && !isObject(gv) {
			switch t.Kind() {
			case reflect.Int64, reflect.Float64:
				return true
			}
		}
		return objectClass(gv) == classNumber
	})
}

// IsBool reports whether the value is a boolean primitive or Boolean
// object.
func (v *Value) IsBool() bool {
	return v.query(func(gv goja.Value) bool {
		return isKindOrClass(gv, reflect.Bool, classBoolean)
	})
}

// IsObject reports whether the value is an object (arrays and functions
// included).
func (v *Value) IsObject() bool {
	return v.query(isObject)
}

// IsArray reports whether the value is an array.
func (v *Value) IsArray() bool {
	return v.query(func(gv goja.Value) bool {
		return objectClass(gv) == classArray
	})
}

// IsFunction reports whether the value is callable.
func (v *Value) IsFunction() bool {
	return v.query(func(gv goja.Value) bool {
		_, ok := goja.AssertFunction(gv)
		return ok
	})
}

// AsString converts the value to a string using the runtime's coercion
// rules.
func (v *Value) AsString() (string, error) {
	var out string
	err := v.eng.scoped(func(vm *goja.Runtime) error {
		gv, err := v.deref()
		if err != nil {
			return err
		}
		return catchConversion("string", func() {
			out = gv.String()
		})
	})
	return out, err
}

// AsInt converts the value to an integer using the runtime's coercion
// rules. A coercion that raises inside the runtime reports
// KindConversionError.
func (v *Value) AsInt() (int64, error) {
	var out int64
	err := v.eng.scoped(func(vm *goja.Runtime) error {
		gv, err := v.deref()
		if err != nil {
			return err
		}
		return catchConversion("integer", func() {
			out = gv.ToInteger()
		})
	})
	return out, err
}

// AsFloat converts the value to a float using the runtime's coercion
// rules.
func (v *Value) AsFloat() (float64, error) {
	var out float64
	err := v.eng.scoped(func(vm *goja.Runtime) error {
		gv, err := v.deref()
		if err != nil {
			return err
		}
		return catchConversion("number", func() {
			out = gv.ToFloat()
		})
	})
	return out, err
}

// AsBool converts the value to a boolean. Boolean coercion never raises.
func (v *Value) AsBool() (bool, error) {
	var out bool
	err := v.eng.scoped(func(vm *goja.Runtime) error {
		gv, err := v.deref()
		if err != nil {
			return err
		}
		out = gv.ToBoolean()
		return nil
	})
	return out, err
}

// AsList returns handles to the elements of an array value. Fails with
// KindTypeError for non-arrays.
func (v *Value) AsList() ([]*Value, error) {
	var out []*Value
	err := v.eng.scoped(func(vm *goja.Runtime) error {
		gv, err := v.deref()
		if err != nil {
			return err
		}
		if objectClass(gv) != classArray {
			return typeError("cannot convert a non-array to a list")
		}
		obj := gv.(*goja.Object)
		return catchConversion("list", func() {
			length := obj.Get("length").ToInteger()
			out = make([]*Value, 0, length)
			for i := int64(0); i < length; i++ {
				item := obj.Get(strconv.FormatInt(i, 10))
				if item == nil {
					item = goja.Undefined()
				}
				out = append(out, v.eng.wrap(item))
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetOwnPropertyNames returns the receiver's own enumerable property
// names. Fails with KindTypeError for non-objects.
func (v *Value) GetOwnPropertyNames() ([]string, error) {
	var out []string
	err := v.eng.scoped(func(vm *goja.Runtime) error {
		gv, err := v.deref()
		if err != nil {
			return err
		}
		obj, ok := gv.(*goja.Object)
		if !ok {
			return typeError("cannot list properties of a non-object")
		}
		out = obj.Keys()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetProperty returns a handle to the named property. A missing key
// yields an undefined handle, matching runtime semantics; a non-object
// receiver fails with KindTypeError.
func (v *Value) GetProperty(name string) (*Value, error) {
	var out *Value
	err := v.eng.scoped(func(vm *goja.Runtime) error {
		gv, err := v.deref()
		if err != nil {
			return err
		}
		obj, ok := gv.(*goja.Object)
		if !ok {
			return typeError("cannot get property %q of a non-object", name)
		}
		return catchScript(func() {
			pv := obj.Get(name)
			if pv == nil {
				pv = goja.Undefined()
			}
			out = v.eng.wrap(pv)
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetProperty sets the named property. value may be a native string,
// []byte (stored as a string), integer, float, bool, nil, another
// Value, or anything else the runtime can adopt. A non-object receiver
// fails with KindTypeError. A failing set leaves the receiver
// unchanged.
func (v *Value) SetProperty(name string, value any) error {
	return v.eng.scoped(func(vm *goja.Runtime) error {
		gv, err := v.deref()
		if err != nil {
			return err
		}
		obj, ok := gv.(*goja.Object)
		if !ok {
			return typeError("cannot set property %q on a non-object", name)
		}
		converted, err := v.eng.toRuntime(vm, value)
		if err != nil {
			return err
		}
		if err := obj.Set(name, converted); err != nil {
			return asScriptError(err)
		}
		return nil
	})
}

// Call invokes the value as a function with the global object as
// receiver. Fails with KindTypeError if the value is not callable;
// exceptions raised by the invoked function surface as KindScriptError
// carrying the runtime's message and stack text.
func (v *Value) Call(args ...*Value) (*Value, error) {
	return v.call(nil, args)
}

// CallOn invokes the value as a function with an explicit receiver,
// which must be an object.
func (v *Value) CallOn(receiver *Value, args ...*Value) (*Value, error) {
	if receiver == nil {
		return nil, typeError("call receiver must be an object")
	}
	return v.call(receiver, args)
}

func (v *Value) call(receiver *Value, args []*Value) (*Value, error) {
	var out *Value
	err := v.eng.scoped(func(vm *goja.Runtime) error {
		gv, err := v.deref()
		if err != nil {
			return err
		}
		fn, ok := goja.AssertFunction(gv)
		if !ok {
			return typeError("cannot call a non-function")
		}

		this := goja.Value(vm.GlobalObject())
		if receiver != nil {
			rv, err := receiver.derefFor(v.eng)
			if err != nil {
				return err
			}
			if !isObject(rv) {
				return typeError("call receiver must be an object")
			}
			this = rv
		}

		gargs := make([]goja.Value, len(args))
		for i, arg := range args {
			if arg == nil {
				gargs[i] = goja.Undefined()
				continue
			}
			av, err := arg.derefFor(v.eng)
			if err != nil {
				return err
			}
			gargs[i] = av
		}

		result, err := fn(this, gargs...)
		if err != nil {
			return asScriptError(err)
		}
		out = v.eng.wrap(result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// toRuntime converts a native value for storage in the runtime.
func (e *Engine) toRuntime(vm *goja.Runtime, value any) (goja.Value, error) {
	switch val := value.(type) {
	case nil:
		return goja.Null(), nil
	case *Value:
		return val.derefFor(e)
	case []byte:
		return vm.ToValue(string(val)), nil
	default:
		return vm.ToValue(val), nil
	}
}

func isObject(gv goja.Value) bool {
	_, ok := gv.(*goja.Object)
	return ok
}

// objectClass returns the receiver's class name, or "" for non-objects.
func objectClass(gv goja.Value) string {
	if obj, ok := gv.(*goja.Object); ok {
		return obj.ClassName()
	}
	return ""
}

func isKindOrClass(gv goja.Value, kind reflect.Kind, class string) bool {
	if !isObject(gv) {
		if t := gv.ExportType(); t != nil && t.Kind() == kind {
			return true
		}
		return false
	}
	return objectClass(gv) == class
}

// catchConversion runs fn, mapping a runtime exception raised during
// coercion to KindConversionError.
func catchConversion(what string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ex, ok := r.(*goja.Exception); ok {
				err = conversionError(fmt.Sprintf("cannot convert value to %s: %s", what, exceptionMessage(ex)), ex)
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}

// catchScript runs fn, mapping a runtime exception (a throwing getter
// or proxy trap) to KindScriptError.
func catchScript(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ex, ok := r.(*goja.Exception); ok {
				err = scriptError(exceptionMessage(ex), ex.String(), ex)
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}
