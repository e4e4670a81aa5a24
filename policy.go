package replica

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

var durationType = reflect.TypeFor[time.Duration]()

// IsExcluded reports whether m carries the CloneIgnore annotation.
func IsExcluded(m Member) bool {
	return m.HasAnnotation(KindCloneIgnore)
}

// CustomStrategyName returns the method declared by a UseCloningMethod annotation on m.
// The second result is false when m has no custom strategy.
func CustomStrategyName(m Member) (string, bool) {
	name, err := AnnotationProperty[string](m, KindUseCloningMethod, PropMethodName)
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// AnnotationProperty returns a property of the first annotation of the given kind on m,
// narrowed to T.
//
// The zero value of T is returned without error when the annotation is absent,
// when it lacks the property, or when the property is nil or an empty string.
// Tag properties are strings and are parsed into T; side-table properties are
// converted when no information is lost. Anything else fails with ErrTypeMismatch.
func AnnotationProperty[T any](m Member, kind, property string) (T, error) {
	var zero T

	a, ok := m.Annotation(kind)
	if !ok {
		return zero, nil
	}

	raw, ok := a.Property(property)
	if !ok || raw == nil {
		return zero, nil
	}
	if s, isString := raw.(string); isString && s == "" {
		return zero, nil
	}

	if v, ok := raw.(T); ok {
		return v, nil
	}

	target := reflect.TypeFor[T]()
	out, err := narrow(raw, target)
	if err != nil {
		return zero, newPropertyError(m, kind, property, target, raw, err)
	}
	return out.Interface().(T), nil
}

// narrow converts raw to target without losing information.
func narrow(raw any, target reflect.Type) (reflect.Value, error) {
	src := reflect.ValueOf(raw)
	out := reflect.New(target).Elem()

	if src.Type().AssignableTo(target) {
		out.Set(src)
		return out, nil
	}

	if s, ok := raw.(string); ok {
		if err := parseInto(out, s); err != nil {
			return reflect.Value{}, err
		}
		return out, nil
	}

	if src.Kind() == target.Kind() && src.Type().ConvertibleTo(target) {
		out.Set(src.Convert(target))
		return out, nil
	}

	if err := convertNumeric(out, src); err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

// parseInto parses s into the settable value out.
func parseInto(out reflect.Value, s string) error {
	t := out.Type()

	if t == durationType {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		out.SetInt(int64(d))
		return nil
	}

	if u, ok := out.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return u.UnmarshalText([]byte(s))
	}

	switch {
	case t.Kind() == reflect.String:
		out.SetString(s)
	case t.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		out.SetBool(b)
	case isInt(t.Kind()):
		n, err := strconv.ParseInt(s, 0, t.Bits())
		if err != nil {
			return err
		}
		out.SetInt(n)
	case isUint(t.Kind()):
		n, err := strconv.ParseUint(s, 0, t.Bits())
		if err != nil {
			return err
		}
		out.SetUint(n)
	case isFloat(t.Kind()):
		f, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return err
		}
		out.SetFloat(f)
	default:
		return fmt.Errorf("cannot parse string into %s", t)
	}
	return nil
}

// convertNumeric stores the numeric src into out. Values that do not survive the
// conversion exactly, through overflow, truncation or rounding, are rejected.
func convertNumeric(out, src reflect.Value) error {
	sk, tk := src.Kind(), out.Kind()
	overflow := fmt.Errorf("cannot narrow %v to %s", src.Interface(), out.Type())

	switch {
	case isInt(sk):
		n := src.Int()
		switch {
		case isInt(tk):
			if out.OverflowInt(n) {
				return overflow
			}
			out.SetInt(n)
			return nil
		case isUint(tk):
			if n < 0 || out.OverflowUint(uint64(n)) {
				return overflow
			}
			out.SetUint(uint64(n))
			return nil
		case isFloat(tk):
			out.SetFloat(float64(n))
			if f := out.Float(); f < -(1<<63) || f >= 1<<63 || int64(f) != n {
				return overflow
			}
			return nil
		}
	case isUint(sk):
		n := src.Uint()
		switch {
		case isInt(tk):
			if n > math.MaxInt64 || out.OverflowInt(int64(n)) {
				return overflow
			}
			out.SetInt(int64(n))
			return nil
		case isUint(tk):
			if out.OverflowUint(n) {
				return overflow
			}
			out.SetUint(n)
			return nil
		case isFloat(tk):
			out.SetFloat(float64(n))
			if f := out.Float(); f >= 1<<64 || uint64(f) != n {
				return overflow
			}
			return nil
		}
	case isFloat(sk):
		f := src.Float()
		switch {
		case isFloat(tk):
			out.SetFloat(f)
			if got := out.Float(); got != f && !(math.IsNaN(got) && math.IsNaN(f)) {
				return overflow
			}
			return nil
		case isInt(tk):
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || out.OverflowInt(int64(f)) {
				return overflow
			}
			out.SetInt(int64(f))
			return nil
		case isUint(tk):
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || out.OverflowUint(uint64(f)) {
				return overflow
			}
			out.SetUint(uint64(f))
			return nil
		}
	}

	return fmt.Errorf("cannot convert %s to %s", src.Type(), out.Type())
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
