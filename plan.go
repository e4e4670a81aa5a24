package replica

import (
	"context"
	"fmt"
	"reflect"
)

var errorType = reflect.TypeFor[error]()

// structPlan describes how to copy one struct type.
type structPlan struct {
	typeName   string
	fields     []fieldPlan
	strategies int
}

// fieldPlan describes how to copy a single member.
type fieldPlan struct {
	index        []int  // reflect.Value.FieldByIndex access path
	name         string // member name for error messages
	method       string // cloning method, empty for structural copy
	returnsError bool   // method signature is func() (F, error)
}

// plan returns the cached plan for t, building it on first use.
func (e *Engine) plan(ctx context.Context, t reflect.Type) (*structPlan, error) {
	gen := annotationGen.Load()

	// Fast path: read-lock cache check
	e.mu.RLock()
	if e.gen == gen {
		if p, ok := e.plans[t]; ok {
			e.mu.RUnlock()
			return p, nil
		}
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Annotations changed since the plans were built
	if e.gen != gen {
		e.plans = make(map[reflect.Type]*structPlan)
		e.gen = gen
	}

	if p, ok := e.plans[t]; ok {
		return p, nil
	}

	p, err := buildPlan(t, e.visibility)
	if err != nil {
		return nil, err
	}

	e.plans[t] = p
	emitPlanCreated(ctx, p.typeName, len(p.fields), p.strategies)
	return p, nil
}

// buildPlan resolves the members of t and validates their cloning methods.
func buildPlan(t reflect.Type, vis Visibility) (*structPlan, error) {
	members, err := Members(t, vis)
	if err != nil {
		return nil, err
	}

	p := &structPlan{
		typeName: t.String(),
		fields:   make([]fieldPlan, 0, len(members)),
	}

	for _, m := range members {
		fp := fieldPlan{
			index: m.Index,
			name:  m.String(),
		}

		if method, ok := CustomStrategyName(m); ok {
			returnsError, err := checkMethod(t, m, method)
			if err != nil {
				return nil, err
			}
			fp.method = method
			fp.returnsError = returnsError
			p.strategies++
		}

		p.fields = append(p.fields, fp)
	}

	return p, nil
}

// checkMethod verifies that *t has a method func() F or func() (F, error)
// whose result can be assigned to m.
func checkMethod(t reflect.Type, m Member, name string) (bool, error) {
	method, ok := reflect.PointerTo(t).MethodByName(name)
	if !ok {
		return false, newStrategyError(ErrMethodNotFound, t.String(), m.String(), name, nil)
	}

	// Method types from a reflect.Type include the receiver
	mt := method.Type
	bad := newStrategyError(ErrMethodSignature, t.String(), m.String(), name,
		fmt.Errorf("want func() %s or func() (%s, error), got %s", m.Type, m.Type, mt))
	if mt.NumIn() != 1 {
		return false, bad
	}

	switch mt.NumOut() {
	case 1:
	case 2:
		if mt.Out(1) != errorType {
			return false, bad
		}
	default:
		return false, bad
	}

	if !mt.Out(0).AssignableTo(m.Type) {
		return false, bad
	}

	return mt.NumOut() == 2, nil
}
