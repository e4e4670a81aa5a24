package replica

import (
	"errors"
	"reflect"
	"slices"
	"testing"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag  string
		want []Annotation
	}{
		{"-", []Annotation{{Kind: KindCloneIgnore}}},
		{"ignore", []Annotation{{Kind: KindCloneIgnore}}},
		{"readonly", []Annotation{{Kind: KindReadOnly}}},
		{"", nil},
		{" ; ", nil},
		{"method:CloneC", []Annotation{UseCloningMethod("CloneC")}},
		{"UseCloningMethod:MethodName=CloneC", []Annotation{UseCloningMethod("CloneC")}},
		{"method: CloneC ", []Annotation{UseCloningMethod("CloneC")}},
		{
			"Bounded:Count=3, Mode=strict",
			[]Annotation{{Kind: "Bounded", Properties: map[string]any{"Count": "3", "Mode": "strict"}}},
		},
		{
			"-;method:CloneC",
			[]Annotation{{Kind: KindCloneIgnore}, UseCloningMethod("CloneC")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, reason := parseTag(tt.tag)
			if reason != "" {
				t.Fatalf("parseTag(%q) failed: %s", tt.tag, reason)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseTag(%q) = %#v, want %#v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestParseTag_Invalid(t *testing.T) {
	tests := []string{
		":x",
		"-;ignore",
		"method",
		"method:",
		"Bounded:3",
		"Bounded:=3",
		"UseCloningMethod:Other=x",
	}

	for _, tag := range tests {
		t.Run(tag, func(t *testing.T) {
			if _, reason := parseTag(tag); reason == "" {
				t.Errorf("parseTag(%q) should fail", tag)
			}
		})
	}
}

func TestRegisterAnnotationKind(t *testing.T) {
	RegisterAnnotationKind(AnnotationKind{Name: "TestLimit", Alias: "testlimit", DefaultProperty: "Count"})

	got, reason := parseTag("testlimit:5")
	if reason != "" {
		t.Fatalf("parseTag() failed: %s", reason)
	}
	want := []Annotation{{Kind: "TestLimit", Properties: map[string]any{"Count": "5"}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseTag() = %#v, want %#v", got, want)
	}

	// The long form picks up the default property too
	got, reason = parseTag("TestLimit:7")
	if reason != "" {
		t.Fatalf("parseTag() failed: %s", reason)
	}
	if v, _ := got[0].Property("Count"); v != "7" {
		t.Errorf("Count = %v, want 7", v)
	}
}

func TestAnnotationConstructors(t *testing.T) {
	if a := CloneIgnore(); a.Kind != KindCloneIgnore {
		t.Errorf("CloneIgnore().Kind = %q", a.Kind)
	}
	if a := ReadOnly(); a.Kind != KindReadOnly {
		t.Errorf("ReadOnly().Kind = %q", a.Kind)
	}
	a := UseCloningMethod("Copy")
	if v, ok := a.Property(PropMethodName); !ok || v != "Copy" {
		t.Errorf("UseCloningMethod().MethodName = %v, %v", v, ok)
	}

	props := map[string]any{"Count": 1}
	n := NewAnnotation("Limit", props)
	props["Count"] = 2
	if v, _ := n.Property("Count"); v != 1 {
		t.Errorf("NewAnnotation() should copy properties, got %v", v)
	}
}

type vendorSession struct {
	Addr  string
	conn  *int
	Token string `clone:"method:FromTag"`
}

func TestAnnotate(t *testing.T) {
	t.Cleanup(ClearAnnotations)
	typ := reflect.TypeFor[vendorSession]()

	before, err := Members(typ, AllFields)
	if err != nil {
		t.Fatalf("Members() error: %v", err)
	}
	if len(before) != 3 {
		t.Fatalf("Members() = %v, want 3 members", memberNames(before))
	}

	if err := Annotate(typ, "conn", CloneIgnore()); err != nil {
		t.Fatalf("Annotate() error: %v", err)
	}
	if err := Annotate(typ, "Token", UseCloningMethod("FromTable")); err != nil {
		t.Fatalf("Annotate() error: %v", err)
	}

	after, err := Members(typ, AllFields)
	if err != nil {
		t.Fatalf("Members() error: %v", err)
	}
	if got := memberNames(after); len(got) != 2 || got[0] != "vendorSession.Addr" || got[1] != "vendorSession.Token" {
		t.Errorf("Members() after Annotate = %v", got)
	}

	conn := mustLookup(t, typ, "conn")
	if !IsExcluded(conn) {
		t.Error("conn should be excluded after Annotate")
	}

	// Tag annotations win over the side table
	token := mustLookup(t, typ, "Token")
	if name, _ := CustomStrategyName(token); name != "FromTag" {
		t.Errorf("CustomStrategyName(Token) = %q, want FromTag", name)
	}
	if got := len(token.Annotations()); got != 2 {
		t.Errorf("Token has %d annotations, want 2", got)
	}
}

func TestAnnotate_Invalid(t *testing.T) {
	t.Cleanup(ClearAnnotations)
	typ := reflect.TypeFor[vendorSession]()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil type", Annotate(nil, "Addr", CloneIgnore()), ErrInvalidType},
		{"non-struct", Annotate(reflect.TypeFor[string](), "Addr", CloneIgnore()), ErrInvalidType},
		{"missing field", Annotate(typ, "Nope", CloneIgnore()), ErrInvalidAnnotation},
		{"empty method", Annotate(typ, "Addr", UseCloningMethod("")), ErrInvalidAnnotation},
		{"non-string method", Annotate(typ, "Addr", NewAnnotation(KindUseCloningMethod, map[string]any{PropMethodName: 3})), ErrInvalidAnnotation},
		{"empty kind", Annotate(typ, "Addr", Annotation{}), ErrInvalidAnnotation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("Annotate() error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if m := mustLookup(t, typ, "Addr"); len(m.Annotations()) != 0 {
		t.Errorf("failed Annotate calls should not register anything, got %v", m.Annotations())
	}
}

type staleTarget struct {
	Addr string
	Conn *int
}

func TestMembers_DiscardsOlderGeneration(t *testing.T) {
	t.Cleanup(ClearAnnotations)
	typ := reflect.TypeFor[staleTarget]()

	// A discovery that read the side table before Annotate and stored its result after it
	gen := annotationGen.Load()
	old, _, err := discover(typ, AllFields, nil)
	if err != nil {
		t.Fatalf("discover() error: %v", err)
	}
	if err := Annotate(typ, "Conn", CloneIgnore()); err != nil {
		t.Fatalf("Annotate() error: %v", err)
	}
	registryMu.Lock()
	registry[registryKey{typ: typ, visibility: AllFields}] = registryEntry{members: old, gen: gen}
	registryMu.Unlock()

	got, err := Members(typ, AllFields)
	if err != nil {
		t.Fatalf("Members() error: %v", err)
	}
	if names := memberNames(got); !slices.Equal(names, []string{"staleTarget.Addr"}) {
		t.Errorf("Members() = %v, want the stale entry recomputed", names)
	}
}
