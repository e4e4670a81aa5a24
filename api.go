// Package replica provides deep cloning driven by field discovery and declarative clone policy.
//
// The package is built from two pure pieces and an engine that consumes them:
//
//   - Field discovery: DiscoverMembers walks a struct and the chain of structs it
//     embeds by value, returning every field eligible for cloning exactly once.
//   - Policy resolution: IsExcluded, CustomStrategyName and AnnotationProperty
//     answer what a member's annotations say.
//   - Engine: Clone copies a value recursively, applying the policy per field.
//
// # Embedding Chains
//
// The first struct a type embeds by value is its base. Discovery lists the
// type's own fields first, then each base in turn, and stops at a struct that
// embeds nothing. Every further embedded struct is an ordinary field and is
// copied as a whole value.
//
//	type Base struct {
//	    A int
//	    B int `clone:"-"`
//	}
//
//	type Derived struct {
//	    Base
//	    C []int `clone:"method:CloneC"`
//	}
//
//	func (d *Derived) CloneC() []int { return slices.Clone(d.C) }
//
//	members, _ := replica.DiscoverMembers(reflect.TypeFor[Derived](), replica.AllFields)
//	// Derived.C, Base.A
//
// # Tag Syntax
//
// Clone policy is declared in the clone struct tag as a list of annotations
// separated by semicolons:
//
//	clone:"-"                                   - CloneIgnore, the copy keeps the zero value
//	clone:"ignore"                              - CloneIgnore
//	clone:"readonly"                            - ReadOnly, never assigned on the copy
//	clone:"method:CloneC"                       - UseCloningMethod with MethodName=CloneC
//	clone:"UseCloningMethod:MethodName=CloneC"  - long form of the above
//	clone:"Bounded:Count=3,Mode=strict"         - any other kind, read with AnnotationProperty
//
// Types whose source cannot be tagged are annotated with Annotate:
//
//	replica.Annotate(reflect.TypeFor[vendor.Session](), "conn", replica.CloneIgnore())
//
// # Cloning Methods
//
// A UseCloningMethod member is produced by calling the named exported method on
// the source value that owns it. Accepted signatures are func() F and
// func() (F, error), with value or pointer receivers. Methods are resolved when
// the engine first plans a type; a missing method fails with ErrMethodNotFound.
//
// # Cloner Override
//
// Values below the root whose type implements Cloner[T] are copied by calling
// their Clone method instead of by reflection. The root value is always copied
// structurally, as is the value behind a root pointer or interface, so a Clone
// method may delegate to this package for its own type:
//
//	func (d *Doc) Clone() Doc { return replica.MustClone(context.Background(), *d) }
//
// # Signals
//
// Discovery, planning and cloning emit capitan signals (SignalMembersDiscovered,
// SignalPlanCreated, SignalCloneStart, SignalCloneComplete, SignalStrategyFailed).
package replica

// Cloner allows types to provide deep copy logic.
//
// The Clone method must return a deep copy where modifications to the clone
// do not affect the original value. For simple value types with no pointers,
// slices, or maps, Clone can simply return the receiver value:
//
//	func (u User) Clone() User { return u }
type Cloner[T any] interface {
	Clone() T
}
