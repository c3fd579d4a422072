// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/remora-foundation/remora/wire"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// CallMethod invokes the named method on the instance bound to id,
// with args applied positionally. The method runs to completion
// before the result is returned (asynchronous work inside the method
// is the method's own concern; a blocking call is already awaited in
// Go). Failure kinds:
//
//   - object-not-found: id is unbound.
//   - method-not-found: no exported method with that name, or the
//     method's signature cannot be invoked over the boundary.
//   - method-invocation-failed: argument mismatch, a panic inside the
//     method, or an error returned by it.
func (r *Registry) CallMethod(ctx context.Context, id uint64, methodName string, args []any) (result any, err error) {
	entry, exists := r.lookup(id)
	if !exists {
		return nil, wire.NewError(wire.KindObjectNotFound, "no object with id %d", id)
	}

	method := reflect.ValueOf(entry.instance).MethodByName(methodName)
	if !method.IsValid() {
		return nil, wire.NewError(wire.KindMethodNotFound, "object %d has no method %q", id, methodName)
	}
	methodType := method.Type()
	if !invocableShape(methodType) {
		return nil, wire.NewError(wire.KindMethodNotFound, "method %q of object %d is not invocable over the boundary", methodName, id)
	}

	in, err := buildArgs(ctx, methodType, args)
	if err != nil {
		return nil, wire.WrapError(wire.KindMethodInvocationFailed, err, "calling %q on object %d", methodName, id)
	}

	// A panicking method is reported to the caller like a returned
	// error; the host process stays up.
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger().Error("method panicked",
				"id", id,
				"method", methodName,
				"panic", recovered,
			)
			result = nil
			err = wire.NewError(wire.KindMethodInvocationFailed, "calling %q on object %d: panic: %v", methodName, id, recovered)
		}
	}()

	out := method.Call(in)
	return decodeReturns(out, id, methodName)
}

// invocableShape reports whether a method signature can carry a
// boundary call: at most one non-error result, plus an optional
// trailing error.
func invocableShape(methodType reflect.Type) bool {
	switch methodType.NumOut() {
	case 0, 1:
		return true
	case 2:
		return methodType.Out(1) == errorType
	default:
		return false
	}
}

// buildArgs converts JSON-shaped wire arguments to the method's
// parameter types. A leading context.Context parameter receives ctx
// and consumes no wire argument. Variadic trailing parameters accept
// the remaining arguments.
func buildArgs(ctx context.Context, methodType reflect.Type, args []any) ([]reflect.Value, error) {
	paramCount := methodType.NumIn()
	paramIndex := 0

	var in []reflect.Value
	if paramCount > 0 && methodType.In(0) == contextType {
		in = append(in, reflect.ValueOf(ctx))
		paramIndex = 1
	}

	fixedCount := paramCount - paramIndex
	if methodType.IsVariadic() {
		fixedCount--
		if len(args) < fixedCount {
			return nil, fmt.Errorf("got %d args, want at least %d", len(args), fixedCount)
		}
	} else if len(args) != fixedCount {
		return nil, fmt.Errorf("got %d args, want %d", len(args), fixedCount)
	}

	for i := 0; i < fixedCount; i++ {
		value, err := convertArg(args[i], methodType.In(paramIndex+i))
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		in = append(in, value)
	}

	if methodType.IsVariadic() {
		elemType := methodType.In(paramCount - 1).Elem()
		for i := fixedCount; i < len(args); i++ {
			value, err := convertArg(args[i], elemType)
			if err != nil {
				return nil, fmt.Errorf("arg %d: %w", i, err)
			}
			in = append(in, value)
		}
	}
	return in, nil
}

// convertArg adapts one wire argument to a parameter type. JSON
// numbers arrive as float64 (or as sized integers from the CBOR
// framing), so numeric kinds convert freely.
func convertArg(arg any, paramType reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch paramType.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
			return reflect.Zero(paramType), nil
		default:
			return reflect.Value{}, fmt.Errorf("cannot use nil as %s", paramType)
		}
	}

	argValue := reflect.ValueOf(arg)
	if argValue.Type().AssignableTo(paramType) {
		return argValue, nil
	}
	if isNumericKind(argValue.Kind()) && isNumericKind(paramType.Kind()) {
		// Wire numbers arrive as float64; converting a fractional
		// value into an integer parameter would truncate silently.
		if isFloatKind(argValue.Kind()) && !isFloatKind(paramType.Kind()) {
			if f := argValue.Float(); f != math.Trunc(f) {
				return reflect.Value{}, fmt.Errorf("cannot use %v as %s: fractional part would be lost", arg, paramType)
			}
		}
		return argValue.Convert(paramType), nil
	}
	if argValue.Type().ConvertibleTo(paramType) && argValue.Kind() == paramType.Kind() {
		return argValue.Convert(paramType), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, paramType)
}

func isFloatKind(kind reflect.Kind) bool {
	return kind == reflect.Float32 || kind == reflect.Float64
}

func isNumericKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// decodeReturns maps the method's return values onto the wire reply:
// () and (error) reply nil, (T) and (T, error) reply the value.
func decodeReturns(out []reflect.Value, id uint64, methodName string) (any, error) {
	var result any
	for _, value := range out {
		if value.Type() == errorType {
			if !value.IsNil() {
				err := value.Interface().(error)
				return nil, wire.WrapError(wire.KindMethodInvocationFailed, err, "calling %q on object %d", methodName, id)
			}
			continue
		}
		result = value.Interface()
	}
	return result, nil
}
