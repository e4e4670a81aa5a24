package replica

import (
	"go/token"
	"reflect"
	"slices"

	"github.com/zoobzio/sentinel"
)

func init() {
	// Register the clone tag with sentinel
	sentinel.Tag(TagName)
}

// Visibility selects fields by export status.
type Visibility uint8

const (
	// Exported selects exported fields.
	Exported Visibility = 1 << iota

	// Unexported selects unexported fields.
	Unexported

	// AllFields selects every field.
	AllFields = Exported | Unexported
)

func (v Visibility) String() string {
	switch v {
	case Exported:
		return "exported"
	case Unexported:
		return "unexported"
	case AllFields:
		return "all"
	default:
		return "none"
	}
}

func (v Visibility) matches(exported bool) bool {
	if exported {
		return v&Exported != 0
	}
	return v&Unexported != 0
}

// MemberKey identifies a member across an embedding chain.
type MemberKey struct {
	DeclaringType reflect.Type
	Name          string
}

// Member describes one field holding instance state.
type Member struct {
	DeclaringType reflect.Type // Struct that declares the field
	Name          string       // Field name
	Type          reflect.Type // Field type
	Index         []int        // FieldByIndex path from the discovered type
	ReadOnly      bool         // Never assigned on a copy
	Exported      bool

	annotations []Annotation
}

// Key returns the identity used to de-duplicate members.
func (m Member) Key() MemberKey {
	return MemberKey{DeclaringType: m.DeclaringType, Name: m.Name}
}

func (m Member) String() string {
	if m.DeclaringType == nil {
		return m.Name
	}
	return m.DeclaringType.Name() + "." + m.Name
}

// Annotations returns the member's annotations, tag annotations first.
func (m Member) Annotations() []Annotation {
	return slices.Clone(m.annotations)
}

// Annotation returns the first annotation of the given kind.
func (m Member) Annotation(kind string) (Annotation, bool) {
	for _, a := range m.annotations {
		if a.Kind == kind {
			return a, true
		}
	}
	return Annotation{}, false
}

// HasAnnotation reports whether the member carries an annotation of the given kind.
func (m Member) HasAnnotation(kind string) bool {
	_, ok := m.Annotation(kind)
	return ok
}

// newMember builds the descriptor for a field of t reached through prefix.
func newMember(t reflect.Type, fm sentinel.FieldMetadata, prefix []int) (Member, error) {
	anns, err := fieldAnnotations(t, fm.Name, fm.Tags[TagName])
	if err != nil {
		return Member{}, err
	}

	index := make([]int, 0, len(prefix)+len(fm.Index))
	index = append(append(index, prefix...), fm.Index...)

	m := Member{
		DeclaringType: t,
		Name:          fm.Name,
		Type:          fm.ReflectType,
		Index:         index,
		Exported:      token.IsExported(fm.Name),
		annotations:   anns,
	}
	m.ReadOnly = fm.Name == "_" || m.HasAnnotation(KindReadOnly)
	return m, nil
}

// LookupMember returns the descriptor of a field declared directly on t.
// Unlike discovery it returns excluded and read-only fields, so their policy can be inspected.
func LookupMember(t reflect.Type, name string) (Member, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return Member{}, newTypeError(t)
	}
	for _, fm := range levelFields(t, typeMetadata(t)) {
		if fm.Name == name {
			return newMember(t, fm, nil)
		}
	}
	return Member{}, newTagError(ErrInvalidAnnotation, t.String(), name, "", "no such field")
}

// typeMetadata returns sentinel's metadata for t, or builds metadata of the same
// shape when sentinel has not scanned t.
func typeMetadata(t reflect.Type) sentinel.Metadata {
	if t.Name() != "" {
		if meta, ok := sentinel.Lookup(t.Name()); ok && describes(meta, t) {
			return meta
		}
	}

	meta := sentinel.Metadata{
		TypeName:    t.Name(),
		PackageName: t.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, t.NumField()),
	}
	for i := 0; i < t.NumField(); i++ {
		if sf := t.Field(i); sf.IsExported() {
			meta.Fields = append(meta.Fields, fieldMetadata(sf))
		}
	}
	return meta
}

// describes reports whether meta was scanned from t.
// Sentinel keys metadata by bare type name, so types of the same name in other
// packages share an entry, and types scanned before the clone tag was
// registered lack it.
func describes(meta sentinel.Metadata, t reflect.Type) bool {
	if meta.PackageName != t.PkgPath() {
		return false
	}

	n := 0
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if n == len(meta.Fields) {
			return false
		}
		fm := meta.Fields[n]
		n++
		if fm.Name != sf.Name || fm.ReflectType != sf.Type || !slices.Equal(fm.Index, sf.Index) {
			return false
		}
		if fm.Tags[TagName] != sf.Tag.Get(TagName) {
			return false
		}
	}
	return n == len(meta.Fields)
}

// fieldMetadata describes sf the way sentinel does, keeping only the clone tag.
func fieldMetadata(sf reflect.StructField) sentinel.FieldMetadata {
	fm := sentinel.FieldMetadata{
		Name:        sf.Name,
		Type:        sf.Type.String(),
		ReflectType: sf.Type,
		Index:       sf.Index,
	}

	if tag := sf.Tag.Get(TagName); tag != "" {
		fm.Tags = map[string]string{TagName: tag}
	}

	switch sf.Type.Kind() {
	case reflect.Struct:
		fm.Kind = sentinel.KindStruct
	case reflect.Ptr:
		fm.Kind = sentinel.KindPointer
	case reflect.Slice, reflect.Array:
		fm.Kind = sentinel.KindSlice
	case reflect.Map:
		fm.Kind = sentinel.KindMap
	case reflect.Interface:
		fm.Kind = sentinel.KindInterface
	default:
		fm.Kind = sentinel.KindScalar
	}

	return fm
}

// levelFields lists every field declared on t in declaration order.
// Exported fields come from meta; sentinel does not record unexported fields,
// so those are described from reflect.
func levelFields(t reflect.Type, meta sentinel.Metadata) []sentinel.FieldMetadata {
	fields := make([]sentinel.FieldMetadata, 0, t.NumField())
	next := 0
	for i := 0; i < t.NumField(); i++ {
		if next < len(meta.Fields) && meta.Fields[next].Index[0] == i {
			fields = append(fields, meta.Fields[next])
			next++
			continue
		}
		fields = append(fields, fieldMetadata(t.Field(i)))
	}
	return fields
}

// level is one struct in an embedding chain.
type level struct {
	typ    reflect.Type
	meta   sentinel.Metadata
	prefix []int
}

// levelMembers collects the eligible members declared on lv.typ and locates its base.
// The base is the first struct embedded by value; it is not itself a member.
func levelMembers(lv level, vis Visibility) ([]Member, *level, error) {
	var (
		members []Member
		base    *level
	)

	for _, fm := range levelFields(lv.typ, lv.meta) {
		m, err := newMember(lv.typ, fm, lv.prefix)
		if err != nil {
			return nil, nil, err
		}

		if IsExcluded(m) || m.ReadOnly {
			continue
		}

		// Sentinel metadata does not record embedding
		embedded := lv.typ.Field(fm.Index[0]).Anonymous
		if base == nil && embedded && fm.Kind == sentinel.KindStruct {
			// An embed with its own cloning method is copied as a whole value.
			if _, custom := CustomStrategyName(m); !custom {
				base = &level{typ: fm.ReflectType, meta: typeMetadata(fm.ReflectType), prefix: m.Index}
				continue
			}
		}

		if !vis.matches(m.Exported) {
			continue
		}
		members = append(members, m)
	}

	return members, base, nil
}

// DiscoverMembers returns every field of t eligible for cloning, including
// fields of the structs it embeds by value, most-derived first.
//
// Fields excluded with CloneIgnore, read-only fields and fields outside vis
// are omitted. No two returned members share a (DeclaringType, Name) key.
func DiscoverMembers(t reflect.Type, vis Visibility) ([]Member, error) {
	members, _, err := discover(t, vis, nil)
	return members, err
}

// discover implements DiscoverMembers and reports the chain depth.
// root is used for t when it was scanned from t.
func discover(t reflect.Type, vis Visibility, root *sentinel.Metadata) ([]Member, int, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, 0, newTypeError(t)
	}

	first := level{typ: t}
	if root != nil && describes(*root, t) {
		first.meta = *root
	} else {
		first.meta = typeMetadata(t)
	}

	members, base, err := levelMembers(first, vis)
	if err != nil {
		return nil, 0, err
	}

	// Fast path: nothing embedded
	if base == nil {
		return members, 1, nil
	}

	seen := make(map[MemberKey]bool, len(members))
	for _, m := range members {
		seen[m.Key()] = true
	}

	depth := 1
	for base != nil {
		depth++

		var inherited []Member
		inherited, base, err = levelMembers(*base, vis)
		if err != nil {
			return nil, 0, err
		}

		// Merge only members not listed yet
		for _, m := range inherited {
			if seen[m.Key()] {
				continue
			}
			seen[m.Key()] = true
			members = append(members, m)
		}
	}

	return members, depth, nil
}

// MembersOf returns the cached members of T across all visibilities.
// T and the types it references are scanned into sentinel first, so discovery
// reads their exported fields and clone tags from sentinel's metadata.
func MembersOf[T any]() ([]Member, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, newTypeError(t)
	}
	spec := sentinel.Scan[T]()
	return members(t, AllFields, &spec)
}
