package jobflow

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jobflow-io/jobflow/pkg/api"
)

var ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
var errType = reflect.TypeOf((*error)(nil)).Elem()
var responsePtrType = reflect.TypeOf((*api.Response)(nil))

// Maker is the decorator equivalent spec.md §4.3 describes: it takes an
// ordinary Go function, registers it under name, and returns a factory
// that builds a *Job without ever invoking fn. fn is inspected once,
// via reflection, at Maker call time; the factory itself only ever
// builds data.
//
// fn's first parameter may optionally be a context.Context; every
// other parameter is filled positionally from the factory's args,
// which may themselves be OutputReference values the Manager resolves
// before fn is ever called. fn may return (T, error), just (T), or
// (*Response, error) to drive directives directly.
func Maker(name string, fn any, opts ...JobOption) func(args ...any) *Job {
	registerHandler(name, fn)
	return func(args ...any) *Job {
		return api.NewJob(name, args, nil, opts...)
	}
}

func registerHandler(name string, fn any) {
	fnVal := reflect.ValueOf(fn)
	if fnVal.Kind() != reflect.Func {
		panic(fmt.Sprintf("jobflow: Maker(%q, ...): fn must be a function, got %T", name, fn))
	}
	fnType := fnVal.Type()
	takesCtx := fnType.NumIn() > 0 && fnType.In(0) == ctxType

	handler := func(ctx context.Context, args []any, _ map[string]any) (*Response, error) {
		in, err := bindArgs(fnType, takesCtx, ctx, args)
		if err != nil {
			return nil, fmt.Errorf("jobflow: calling %q: %w", name, err)
		}
		out := fnVal.Call(in)
		return unpackResult(out)
	}
	api.DefaultRegistry.Register(name, handler)
}

func bindArgs(fnType reflect.Type, takesCtx bool, ctx context.Context, args []any) ([]reflect.Value, error) {
	want := fnType.NumIn()
	offset := 0
	in := make([]reflect.Value, want)
	if takesCtx {
		in[0] = reflect.ValueOf(ctx)
		offset = 1
	}
	if want-offset != len(args) {
		return nil, fmt.Errorf("expected %d argument(s), got %d", want-offset, len(args))
	}
	for i := offset; i < want; i++ {
		paramType := fnType.In(i)
		argVal := args[i-offset]

		if argVal == nil {
			in[i] = reflect.Zero(paramType)
			continue
		}
		v := reflect.ValueOf(argVal)
		switch {
		case v.Type().AssignableTo(paramType):
			in[i] = v
		case v.Type().ConvertibleTo(paramType):
			in[i] = v.Convert(paramType)
		default:
			return nil, fmt.Errorf("argument %d: cannot use %T as %s", i-offset, argVal, paramType)
		}
	}
	return in, nil
}

// unpackResult interprets fn's return values as either (*Response,
// error), (value, error), or a single value/error, wrapping a plain
// value the same way NewResponse does.
func unpackResult(out []reflect.Value) (*Response, error) {
	var errVal reflect.Value
	var valVal reflect.Value
	haveVal := false

	for _, rv := range out {
		if rv.Type() == errType || rv.Type().Implements(errType) {
			errVal = rv
			continue
		}
		valVal = rv
		haveVal = true
	}

	if errVal.IsValid() && !errVal.IsNil() {
		return nil, errVal.Interface().(error)
	}
	if !haveVal {
		return &Response{}, nil
	}
	if valVal.Type() == responsePtrType {
		resp, _ := valVal.Interface().(*Response)
		if resp == nil {
			resp = &Response{}
		}
		return resp, nil
	}
	return api.NewResponse(valVal.Interface()), nil
}
