package replica

import (
	"fmt"
	"maps"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
)

// TagName is the struct tag key read for clone annotations.
const TagName = "clone"

// Built-in annotation kinds.
const (
	// KindCloneIgnore excludes a member from cloning. The copy keeps the zero value.
	KindCloneIgnore = "CloneIgnore"

	// KindUseCloningMethod routes a member through a named method on the source value.
	KindUseCloningMethod = "UseCloningMethod"

	// KindReadOnly marks a member that is never assigned on the copy.
	KindReadOnly = "ReadOnly"

	// PropMethodName is the UseCloningMethod property holding the method name.
	PropMethodName = "MethodName"
)

// Annotation is a declarative clone policy attached to a struct field.
//
// Annotations come from the clone struct tag:
//
//	type Derived struct {
//	    Base
//	    Cache  map[string]int `clone:"-"`
//	    Items  []Item         `clone:"method:CloneItems"`
//	    Limits Limits         `clone:"Bounded:Count=3,Mode=strict"`
//	}
//
// or from Annotate for types that cannot carry tags.
type Annotation struct {
	Kind       string
	Properties map[string]any
}

// Property returns a property value and whether it was set.
func (a Annotation) Property(name string) (any, bool) {
	v, ok := a.Properties[name]
	return v, ok
}

// NewAnnotation creates an annotation of any kind with the given properties.
func NewAnnotation(kind string, props map[string]any) Annotation {
	return Annotation{Kind: kind, Properties: maps.Clone(props)}
}

// CloneIgnore returns the exclusion annotation.
func CloneIgnore() Annotation {
	return Annotation{Kind: KindCloneIgnore}
}

// UseCloningMethod returns a custom strategy annotation naming the method
// the engine calls on the source value to produce the field's copy.
func UseCloningMethod(methodName string) Annotation {
	return Annotation{
		Kind:       KindUseCloningMethod,
		Properties: map[string]any{PropMethodName: methodName},
	}
}

// ReadOnly returns the read-only annotation.
func ReadOnly() Annotation {
	return Annotation{Kind: KindReadOnly}
}

// AnnotationKind describes the tag shorthand for an annotation kind.
type AnnotationKind struct {
	Name            string // Canonical kind, e.g. "UseCloningMethod"
	Alias           string // Tag shorthand, e.g. "method"
	DefaultProperty string // Property receiving a bare value, e.g. `method:CloneC`
}

var (
	kinds   = make(map[string]AnnotationKind)
	kindsMu sync.RWMutex

	sideTable   = make(map[fieldKey][]Annotation)
	sideTableMu sync.RWMutex

	// annotationGen changes whenever the side table does, invalidating cached
	// discovery results and engine plans.
	annotationGen atomic.Uint64
)

type fieldKey struct {
	typ   reflect.Type
	field string
}

func init() {
	RegisterAnnotationKind(AnnotationKind{Name: KindCloneIgnore, Alias: "ignore"})
	RegisterAnnotationKind(AnnotationKind{Name: KindCloneIgnore, Alias: "-"})
	RegisterAnnotationKind(AnnotationKind{Name: KindUseCloningMethod, Alias: "method", DefaultProperty: PropMethodName})
	RegisterAnnotationKind(AnnotationKind{Name: KindReadOnly, Alias: "readonly"})
}

// RegisterAnnotationKind makes an alias and default property known to the tag parser.
// Kinds that are never registered still parse in their long form.
func RegisterAnnotationKind(k AnnotationKind) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	if k.Alias != "" {
		kinds[k.Alias] = k
	}
	if existing, ok := kinds[k.Name]; !ok || existing.DefaultProperty == "" {
		kinds[k.Name] = AnnotationKind{Name: k.Name, DefaultProperty: k.DefaultProperty}
	}
}

func resolveKind(token string) AnnotationKind {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	if k, ok := kinds[token]; ok {
		return k
	}
	return AnnotationKind{Name: token}
}

// parseTag parses a clone tag value into annotations.
// The returned string is a reason suitable for a TagError.
func parseTag(tag string) ([]Annotation, string) {
	var anns []Annotation
	seen := make(map[string]bool)

	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		token, args, hasArgs := strings.Cut(part, ":")
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, "missing annotation kind"
		}

		kind := resolveKind(token)
		if seen[kind.Name] {
			return nil, fmt.Sprintf("duplicate annotation %s", kind.Name)
		}
		seen[kind.Name] = true

		ann := Annotation{Kind: kind.Name}
		if hasArgs {
			ann.Properties = make(map[string]any)
			for _, kv := range strings.Split(args, ",") {
				kv = strings.TrimSpace(kv)
				if kv == "" {
					continue
				}
				name, val, ok := strings.Cut(kv, "=")
				if !ok {
					if kind.DefaultProperty == "" {
						return nil, fmt.Sprintf("%s has no default property for %q", kind.Name, kv)
					}
					name, val = kind.DefaultProperty, kv
				}
				name = strings.TrimSpace(name)
				if name == "" {
					return nil, fmt.Sprintf("empty property name in %s", kind.Name)
				}
				ann.Properties[name] = strings.TrimSpace(val)
			}
		}

		if reason := validateAnnotation(ann); reason != "" {
			return nil, reason
		}
		anns = append(anns, ann)
	}

	return anns, ""
}

// validateAnnotation checks the payload of built-in kinds.
func validateAnnotation(a Annotation) string {
	if a.Kind == "" {
		return "missing annotation kind"
	}
	if a.Kind == KindUseCloningMethod {
		v, ok := a.Properties[PropMethodName]
		if !ok {
			return "UseCloningMethod requires MethodName"
		}
		name, ok := v.(string)
		if !ok || name == "" {
			return "UseCloningMethod MethodName must be a non-empty string"
		}
	}
	return ""
}

// Annotate attaches annotations to a field declared directly on t.
// Use it for types whose source cannot carry clone tags.
// Tag annotations take precedence over annotations registered here.
//
// Annotate is meant for program initialization. Discovery results and engine
// plans cached before the call are recomputed on next use.
func Annotate(t reflect.Type, field string, anns ...Annotation) error {
	if t == nil || t.Kind() != reflect.Struct {
		return newTypeError(t)
	}

	if _, ok := declaredField(t, field); !ok {
		return newTagError(ErrInvalidAnnotation, t.String(), field, "", "no such field")
	}

	copied := make([]Annotation, 0, len(anns))
	for _, a := range anns {
		if reason := validateAnnotation(a); reason != "" {
			return newTagError(ErrInvalidAnnotation, t.String(), field, "", reason)
		}
		copied = append(copied, NewAnnotation(a.Kind, a.Properties))
	}

	sideTableMu.Lock()
	key := fieldKey{typ: t, field: field}
	sideTable[key] = append(sideTable[key], copied...)
	sideTableMu.Unlock()

	annotationGen.Add(1)
	return nil
}

// ClearAnnotations removes every side-table annotation.
// This is primarily useful for test isolation.
func ClearAnnotations() {
	sideTableMu.Lock()
	sideTable = make(map[fieldKey][]Annotation)
	sideTableMu.Unlock()

	annotationGen.Add(1)
}

// fieldAnnotations returns the annotations of the named field of t: those parsed
// from its clone tag value first, then its side-table annotations.
func fieldAnnotations(t reflect.Type, field, tag string) ([]Annotation, error) {
	anns, reason := parseTag(tag)
	if reason != "" {
		return nil, newTagError(ErrInvalidTag, t.String(), field, tag, reason)
	}

	sideTableMu.RLock()
	extra := sideTable[fieldKey{typ: t, field: field}]
	sideTableMu.RUnlock()

	return append(anns, extra...), nil
}

// declaredField finds a field declared on t itself, ignoring promoted fields.
func declaredField(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		if sf := t.Field(i); sf.Name == name {
			return sf, true
		}
	}
	return reflect.StructField{}, false
}
