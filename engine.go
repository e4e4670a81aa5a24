package replica

import (
	"context"
	"reflect"
	"sync"
	"time"
	"unsafe"
)

// Option configures an Engine.
type Option func(*Engine)

// WithVisibility selects which fields the engine copies. The default is AllFields.
func WithVisibility(v Visibility) Option {
	return func(e *Engine) {
		e.visibility = v
	}
}

// WithShallow copies values of the given types by plain assignment, without descending into them.
func WithShallow(types ...reflect.Type) Option {
	return func(e *Engine) {
		for _, t := range types {
			e.shallow[t] = true
		}
	}
}

// WithoutCloners disables Cloner[T] detection; every value is copied structurally.
func WithoutCloners() Option {
	return func(e *Engine) {
		e.cloners = false
	}
}

// Engine deep-clones values using field discovery and clone annotations.
//
// Engines are safe for concurrent use. Struct plans are built on first use
// and cached per type.
type Engine struct {
	visibility Visibility
	shallow    map[reflect.Type]bool
	cloners    bool

	mu    sync.RWMutex
	plans map[reflect.Type]*structPlan
	gen   uint64
}

// New creates an Engine. time.Time is copied shallowly by default.
func New(opts ...Option) *Engine {
	e := &Engine{
		visibility: AllFields,
		shallow:    map[reflect.Type]bool{reflect.TypeFor[time.Time](): true},
		cloners:    true,
		plans:      make(map[reflect.Type]*structPlan),
		gen:        annotationGen.Load(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// Clone returns a deep copy of v using the default engine.
func Clone[T any](ctx context.Context, v T) (T, error) {
	return CloneWith(ctx, defaultEngine, v)
}

// MustClone is like Clone but panics on error.
func MustClone[T any](ctx context.Context, v T) T {
	out, err := Clone(ctx, v)
	if err != nil {
		panic(err)
	}
	return out
}

// CloneWith returns a deep copy of v using e.
func CloneWith[T any](ctx context.Context, e *Engine, v T) (T, error) {
	var zero T
	out, err := e.cloneRoot(ctx, reflect.ValueOf(&v).Elem())
	if err != nil {
		return zero, err
	}
	res, _ := out.Interface().(T)
	return res, nil
}

// Clone returns a deep copy of v with the same dynamic type.
func (e *Engine) Clone(ctx context.Context, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	out, err := e.cloneRoot(ctx, reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func (e *Engine) cloneRoot(ctx context.Context, root reflect.Value) (reflect.Value, error) {
	typeName := root.Type().String()
	start := time.Now()
	emitCloneStart(ctx, typeName)

	s := &cloneState{
		ctx:     ctx,
		engine:  e,
		visited: make(map[visitKey]reflect.Value),
	}
	out, err := s.clone(addressable(root), false)

	emitCloneComplete(ctx, typeName, time.Since(start), err)
	return out, err
}

// visitKey identifies shared storage already copied during one clone.
type visitKey struct {
	ptr uintptr
	typ reflect.Type
	len int
	cap int
}

// cloneState carries the visited table for one clone operation.
type cloneState struct {
	ctx     context.Context
	engine  *Engine
	visited map[visitKey]reflect.Value
}

// clone copies src. nested is false for the root value and for the value a
// root pointer or interface holds.
func (s *cloneState) clone(src reflect.Value, nested bool) (reflect.Value, error) {
	src = readable(src)
	t := src.Type()

	if s.engine.shallow[t] {
		return src, nil
	}

	if nested && s.engine.cloners {
		if out, ok := viaCloner(src); ok {
			return out, nil
		}
	}

	switch t.Kind() {
	case reflect.Pointer:
		return s.clonePointer(src, nested)
	case reflect.Interface:
		return s.cloneInterface(src, nested)
	case reflect.Slice:
		return s.cloneSlice(src)
	case reflect.Array:
		return s.cloneArray(src)
	case reflect.Map:
		return s.cloneMap(src)
	case reflect.Struct:
		return s.cloneStruct(src)
	default:
		// Scalars and strings copy by value; chan, func and unsafe.Pointer by reference
		return src, nil
	}
}

func (s *cloneState) clonePointer(src reflect.Value, nested bool) (reflect.Value, error) {
	t := src.Type()
	if src.IsNil() {
		return reflect.Zero(t), nil
	}

	key := visitKey{ptr: src.Pointer(), typ: t}
	if v, ok := s.visited[key]; ok {
		return v, nil
	}

	dst := reflect.New(t.Elem())
	s.visited[key] = dst

	elem, err := s.clone(src.Elem(), nested)
	if err != nil {
		return reflect.Value{}, err
	}
	dst.Elem().Set(elem)
	return dst, nil
}

func (s *cloneState) cloneInterface(src reflect.Value, nested bool) (reflect.Value, error) {
	t := src.Type()
	if src.IsNil() {
		return reflect.Zero(t), nil
	}

	elem, err := s.clone(addressable(src.Elem()), nested)
	if err != nil {
		return reflect.Value{}, err
	}

	dst := reflect.New(t).Elem()
	dst.Set(elem)
	return dst, nil
}

func (s *cloneState) cloneSlice(src reflect.Value) (reflect.Value, error) {
	t := src.Type()
	if src.IsNil() {
		return reflect.Zero(t), nil
	}

	key := visitKey{ptr: src.Pointer(), typ: t, len: src.Len(), cap: src.Cap()}
	if src.Cap() > 0 {
		if v, ok := s.visited[key]; ok {
			return v, nil
		}
	}

	dst := reflect.MakeSlice(t, src.Len(), src.Cap())
	if src.Cap() > 0 {
		s.visited[key] = dst
	}

	if s.plain(t.Elem()) {
		reflect.Copy(dst, src)
		return dst, nil
	}

	for i := 0; i < src.Len(); i++ {
		elem, err := s.clone(src.Index(i), true)
		if err != nil {
			return reflect.Value{}, err
		}
		dst.Index(i).Set(elem)
	}
	return dst, nil
}

func (s *cloneState) cloneArray(src reflect.Value) (reflect.Value, error) {
	t := src.Type()
	dst := reflect.New(t).Elem()

	if s.plain(t.Elem()) {
		dst.Set(src)
		return dst, nil
	}

	for i := 0; i < src.Len(); i++ {
		elem, err := s.clone(src.Index(i), true)
		if err != nil {
			return reflect.Value{}, err
		}
		dst.Index(i).Set(elem)
	}
	return dst, nil
}

// cloneMap copies entries recursively. Keys are copied by value.
func (s *cloneState) cloneMap(src reflect.Value) (reflect.Value, error) {
	t := src.Type()
	if src.IsNil() {
		return reflect.Zero(t), nil
	}

	key := visitKey{ptr: src.Pointer(), typ: t}
	if v, ok := s.visited[key]; ok {
		return v, nil
	}

	dst := reflect.MakeMapWithSize(t, src.Len())
	s.visited[key] = dst

	iter := src.MapRange()
	for iter.Next() {
		val, err := s.clone(addressable(iter.Value()), true)
		if err != nil {
			return reflect.Value{}, err
		}
		dst.SetMapIndex(iter.Key(), val)
	}
	return dst, nil
}

func (s *cloneState) cloneStruct(src reflect.Value) (reflect.Value, error) {
	t := src.Type()
	src = addressable(src)

	p, err := s.engine.plan(s.ctx, t)
	if err != nil {
		return reflect.Value{}, err
	}

	dst := reflect.New(t).Elem()
	for _, fp := range p.fields {
		var val reflect.Value
		if fp.method != "" {
			val, err = s.invoke(src, p, fp)
		} else {
			val, err = s.clone(src.FieldByIndex(fp.index), true)
		}
		if err != nil {
			return reflect.Value{}, err
		}
		writable(dst.FieldByIndex(fp.index)).Set(val)
	}
	return dst, nil
}

// invoke calls the field's cloning method on the owning source value.
func (s *cloneState) invoke(src reflect.Value, p *structPlan, fp fieldPlan) (reflect.Value, error) {
	out := src.Addr().MethodByName(fp.method).Call(nil)

	if fp.returnsError && !out[1].IsNil() {
		cause, _ := out[1].Interface().(error)
		err := newStrategyError(ErrStrategy, p.typeName, fp.name, fp.method, cause)
		emitStrategyFailed(s.ctx, p.typeName, fp.name, fp.method, err)
		return reflect.Value{}, err
	}
	return out[0], nil
}

// plain reports whether values of t can be copied with a single assignment.
func (s *cloneState) plain(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		if !s.engine.cloners {
			return true
		}
		_, ok := clonerMethod(t)
		return !ok
	}
	return s.engine.shallow[t]
}

// clonerMethod finds a Clone() T method on t or *t.
func clonerMethod(t reflect.Type) (reflect.Method, bool) {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return reflect.Method{}, false
	}
	m, ok := reflect.PointerTo(t).MethodByName("Clone")
	if !ok {
		return reflect.Method{}, false
	}
	if m.Type.NumIn() != 1 || m.Type.NumOut() != 1 || m.Type.Out(0) != t {
		return reflect.Method{}, false
	}
	return m, true
}

// viaCloner copies src with its own Clone method when it implements Cloner[T].
func viaCloner(src reflect.Value) (reflect.Value, bool) {
	if _, ok := clonerMethod(src.Type()); !ok {
		return reflect.Value{}, false
	}
	return addressable(src).Addr().MethodByName("Clone").Call(nil)[0], true
}

// readable strips the read-only flag from values reached through unexported fields.
func readable(v reflect.Value) reflect.Value {
	if v.CanInterface() || !v.CanAddr() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}

// writable returns a settable view of an addressable value.
func writable(v reflect.Value) reflect.Value {
	if v.CanSet() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}

// addressable returns v, or an addressable copy of it.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	tmp := reflect.New(v.Type()).Elem()
	tmp.Set(v)
	return tmp
}
