package linker

import (
	"context"
	"reflect"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/ir"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// RegisterFunc registers a typed Go function, deriving the signature by
// reflection. The function may start with a context.Context and then a
// *Caller[T]; the remaining parameters and the results must be int32,
// uint32, int64, uint64, float32 or float64 (or types defined on them). A
// trailing error result traps the guest when non-nil.
//
//	reg.RegisterFunc("env", "add", func(a, b int32) int32 { return a + b })
func (r *Registry[T]) RegisterFunc(namespace, name string, fn any) error {
	hf, sig, err := typedFunc[T](fn)
	if err != nil {
		return errors.Registration(namespace, name, err)
	}
	return r.Register(namespace, name, sig, hf)
}

func typedFunc[T any](fn any) (HostFunc[T], ir.FuncType, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, ir.FuncType{}, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Detail("handler must be a function, got %T", fn).
			Build()
	}
	rt := rv.Type()
	if rt.IsVariadic() {
		return nil, ir.FuncType{}, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Detail("variadic handler %s", rt).
			Build()
	}

	callerType := reflect.TypeOf((*Caller[T])(nil))
	first := 0
	withCtx := first < rt.NumIn() && rt.In(first) == contextType
	if withCtx {
		first++
	}
	withCaller := first < rt.NumIn() && rt.In(first) == callerType
	if withCaller {
		first++
	}

	var sig ir.FuncType
	params := make([]reflect.Type, 0, rt.NumIn()-first)
	for i := first; i < rt.NumIn(); i++ {
		vt, ok := valueType(rt.In(i))
		if !ok {
			return nil, ir.FuncType{}, unsupportedType("parameter", i, rt.In(i))
		}
		params = append(params, rt.In(i))
		sig.Params = append(sig.Params, vt)
	}

	numOut := rt.NumOut()
	withErr := numOut > 0 && rt.Out(numOut-1) == errorType
	if withErr {
		numOut--
	}
	for i := 0; i < numOut; i++ {
		vt, ok := valueType(rt.Out(i))
		if !ok {
			return nil, ir.FuncType{}, unsupportedType("result", i, rt.Out(i))
		}
		sig.Results = append(sig.Results, vt)
	}

	hf := func(ctx context.Context, c *Caller[T], stack []uint64) error {
		args := make([]reflect.Value, 0, rt.NumIn())
		if withCtx {
			if ctx == nil {
				ctx = context.Background()
			}
			args = append(args, reflect.ValueOf(ctx))
		}
		if withCaller {
			args = append(args, reflect.ValueOf(c))
		}
		for i, t := range params {
			args = append(args, decode(t, stack[i]))
		}

		outs := rv.Call(args)
		if withErr {
			if e := outs[numOut]; !e.IsNil() {
				return e.Interface().(error)
			}
		}
		for i := 0; i < numOut; i++ {
			stack[i] = encode(outs[i])
		}
		return nil
	}
	return hf, sig, nil
}

func unsupportedType(what string, i int, t reflect.Type) error {
	return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
		Detail("%s %d has unsupported type %s", what, i, t).
		Build()
}

func valueType(t reflect.Type) (api.ValueType, bool) {
	switch t.Kind() {
	case reflect.Int32, reflect.Uint32:
		return api.ValueTypeI32, true
	case reflect.Int64, reflect.Uint64:
		return api.ValueTypeI64, true
	case reflect.Float32:
		return api.ValueTypeF32, true
	case reflect.Float64:
		return api.ValueTypeF64, true
	}
	return 0, false
}

func decode(t reflect.Type, v uint64) reflect.Value {
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int32:
		out.SetInt(int64(api.DecodeI32(v)))
	case reflect.Uint32:
		out.SetUint(uint64(api.DecodeU32(v)))
	case reflect.Int64:
		out.SetInt(int64(v))
	case reflect.Uint64:
		out.SetUint(v)
	case reflect.Float32:
		out.SetFloat(float64(api.DecodeF32(v)))
	case reflect.Float64:
		out.SetFloat(api.DecodeF64(v))
	}
	return out
}

func encode(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Int32:
		return api.EncodeI32(int32(v.Int()))
	case reflect.Uint32:
		return api.EncodeU32(uint32(v.Uint()))
	case reflect.Int64:
		return api.EncodeI64(v.Int())
	case reflect.Uint64:
		return v.Uint()
	case reflect.Float32:
		return api.EncodeF32(float32(v.Float()))
	case reflect.Float64:
		return api.EncodeF64(v.Float())
	}
	return 0
}
