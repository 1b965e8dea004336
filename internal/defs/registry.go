// Package defs holds the definition tables the constant evaluator
// consults: items (constants, methods), trait declarations, and trait
// implementations. The surrounding compiler builds a Registry during
// collection; from this core's perspective it is read-only.
package defs

import (
	"fmt"
	"strings"

	"github.com/vela-lang/vela/internal/typesystem"
)

// ItemID is the interned identity of a single definition.
type ItemID int

// NoItem is the zero ItemID sentinel for "no such item".
const NoItem ItemID = -1

// ItemKind classifies what a definition is.
type ItemKind uint8

const (
	KindFreeConst     ItemKind = iota // module-level constant
	KindInherentConst                 // constant in an inherent impl block
	KindTraitConst                    // constant declared on a trait
	KindImplConst                     // constant override in a trait impl
	KindTraitMethod                   // method declared on a trait
	KindImplMethod                    // method defined in a trait impl
	KindDropGlue                      // synthesized destructor for a type
)

func (k ItemKind) String() string {
	switch k {
	case KindFreeConst:
		return "const"
	case KindInherentConst:
		return "inherent const"
	case KindTraitConst:
		return "trait const"
	case KindImplConst:
		return "impl const"
	case KindTraitMethod:
		return "trait method"
	case KindImplMethod:
		return "impl method"
	case KindDropGlue:
		return "drop glue"
	default:
		return "unknown item"
	}
}

// ImplID identifies a registered trait implementation.
type ImplID int

// Instance is a monomorphized reference to an item: the item plus the
// concrete type arguments it is instantiated with.
type Instance struct {
	Item   ItemID
	Substs []typesystem.Type
}

func NewInstance(item ItemID, substs []typesystem.Type) Instance {
	return Instance{Item: item, Substs: substs}
}

// Key returns a stable string identity, usable as a map key.
func (in Instance) Key() string {
	parts := make([]string, 0, len(in.Substs)+1)
	parts = append(parts, fmt.Sprintf("#%d", in.Item))
	for _, s := range in.Substs {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, "|")
}

func (in Instance) String() string {
	if len(in.Substs) == 0 {
		return fmt.Sprintf("item#%d", in.Item)
	}
	args := make([]string, len(in.Substs))
	for i, s := range in.Substs {
		args[i] = s.String()
	}
	return fmt.Sprintf("item#%d<%s>", in.Item, strings.Join(args, ", "))
}

// MethodDef is one method declared on a trait, in declaration order.
// Methods that cannot be called through a trait object (ObjectSafe ==
// false) still occupy a vtable slot, but the slot is never populated.
type MethodDef struct {
	Item       ItemID
	Name       string
	ObjectSafe bool
}

// TraitDef is a trait declaration: its type parameter count (including
// the implicit self parameter) and its members.
type TraitDef struct {
	Name       string
	ParamCount int
	Methods    []MethodDef // declaration order, vtable order
	consts     map[string]ItemID
}

// Const returns the trait-declared constant with the given name.
func (t *TraitDef) Const(name string) (ItemID, bool) {
	id, ok := t.consts[name]
	return id, ok
}

// ImplDef is a registered trait implementation. TargetTypes are the
// types the trait parameters are implemented at; they may contain type
// variables for generic impls.
type ImplDef struct {
	ID          ImplID
	TraitName   string
	TargetTypes []typesystem.Type
	consts      map[string]ItemID
	methods     map[string]ItemID
}

// AssociatedConst finds this impl's constant override with the given
// name, matching by name and "constant" kind only.
func (im *ImplDef) AssociatedConst(name string) (ItemID, bool) {
	id, ok := im.consts[name]
	return id, ok
}

// AssociatedMethod finds this impl's method with the given name.
func (im *ImplDef) AssociatedMethod(name string) (ItemID, bool) {
	id, ok := im.methods[name]
	return id, ok
}

type itemData struct {
	name       string
	kind       ItemKind
	trait      string // owning trait for trait-declared items, "" otherwise
	impl       ImplID // owning impl for impl items, -1 otherwise
	hasDefault bool   // trait consts: declaration carries a default body
}

// Registry is the definition table for one compilation session.
type Registry struct {
	items           []itemData
	traits          map[string]*TraitDef
	implementations map[string][]*ImplDef
	implCount       ImplID
}

func NewRegistry() *Registry {
	return &Registry{
		traits:          make(map[string]*TraitDef),
		implementations: make(map[string][]*ImplDef),
	}
}

func (r *Registry) newItem(d itemData) ItemID {
	r.items = append(r.items, d)
	return ItemID(len(r.items) - 1)
}

func (r *Registry) item(id ItemID) itemData {
	if id < 0 || int(id) >= len(r.items) {
		panic(fmt.Sprintf("defs: no item with id %d", id))
	}
	return r.items[id]
}

// DefineFreeConst registers a module-level constant.
func (r *Registry) DefineFreeConst(name string) ItemID {
	return r.newItem(itemData{name: name, kind: KindFreeConst, impl: -1})
}

// DefineInherentConst registers a constant in an inherent impl block.
func (r *Registry) DefineInherentConst(name string) ItemID {
	return r.newItem(itemData{name: name, kind: KindInherentConst, impl: -1})
}

// DefineDropGlue registers the synthesized destructor item for a type.
func (r *Registry) DefineDropGlue(name string) ItemID {
	return r.newItem(itemData{name: name, kind: KindDropGlue, impl: -1})
}

// DefineTrait registers a trait. paramCount includes the implicit self
// parameter, so it is always >= 1.
func (r *Registry) DefineTrait(name string, paramCount int) error {
	if paramCount < 1 {
		panic(fmt.Sprintf("DefineTrait: trait %q needs at least the self parameter", name))
	}
	if _, ok := r.traits[name]; ok {
		return fmt.Errorf("trait %s is already defined", name)
	}
	r.traits[name] = &TraitDef{
		Name:       name,
		ParamCount: paramCount,
		consts:     make(map[string]ItemID),
	}
	return nil
}

// DefineTraitMethod registers a method on a trait, in declaration order.
func (r *Registry) DefineTraitMethod(trait, name string, objectSafe bool) ItemID {
	t, ok := r.traits[trait]
	if !ok {
		panic(fmt.Sprintf("DefineTraitMethod: trait %q does not exist", trait))
	}
	id := r.newItem(itemData{name: name, kind: KindTraitMethod, trait: trait, impl: -1})
	t.Methods = append(t.Methods, MethodDef{Item: id, Name: name, ObjectSafe: objectSafe})
	return id
}

// DefineTraitConst registers a constant declared on a trait. hasDefault
// records whether the declaration carries an actual default body, not
// just a signature.
func (r *Registry) DefineTraitConst(trait, name string, hasDefault bool) ItemID {
	t, ok := r.traits[trait]
	if !ok {
		panic(fmt.Sprintf("DefineTraitConst: trait %q does not exist", trait))
	}
	id := r.newItem(itemData{name: name, kind: KindTraitConst, trait: trait, impl: -1, hasDefault: hasDefault})
	t.consts[name] = id
	return id
}

// RegisterImpl registers an implementation of a trait at the given
// target types. Overlapping implementations are rejected: two impls
// overlap when every target type pair unifies after renaming.
func (r *Registry) RegisterImpl(trait string, targets []typesystem.Type) (*ImplDef, error) {
	t, ok := r.traits[trait]
	if !ok {
		panic(fmt.Sprintf("RegisterImpl: trait %q does not exist", trait))
	}
	if len(targets) != t.ParamCount {
		return nil, fmt.Errorf("trait %s expects %d type arguments, impl provides %d",
			trait, t.ParamCount, len(targets))
	}

	for _, existing := range r.implementations[trait] {
		overlap := true
		for i, target := range targets {
			renamed := typesystem.RenameTypeVars(target, "new")
			if _, err := typesystem.Unify(existing.TargetTypes[i], renamed); err != nil {
				overlap = false
				break
			}
		}
		if overlap {
			return nil, fmt.Errorf("overlapping implementations for trait %s: %s and %s",
				trait, typeListString(existing.TargetTypes), typeListString(targets))
		}
	}

	impl := &ImplDef{
		ID:          r.implCount,
		TraitName:   trait,
		TargetTypes: targets,
		consts:      make(map[string]ItemID),
		methods:     make(map[string]ItemID),
	}
	r.implCount++
	r.implementations[trait] = append(r.implementations[trait], impl)
	return impl, nil
}

// DefineImplConst registers a constant override inside an impl.
func (r *Registry) DefineImplConst(impl *ImplDef, name string) ItemID {
	id := r.newItem(itemData{name: name, kind: KindImplConst, impl: impl.ID})
	impl.consts[name] = id
	return id
}

// DefineImplMethod registers a method definition inside an impl.
func (r *Registry) DefineImplMethod(impl *ImplDef, name string) ItemID {
	id := r.newItem(itemData{name: name, kind: KindImplMethod, impl: impl.ID})
	impl.methods[name] = id
	return id
}

// Trait looks up a trait declaration by name.
func (r *Registry) Trait(name string) (*TraitDef, bool) {
	t, ok := r.traits[name]
	return t, ok
}

// Implementations returns all registered impls of a trait.
func (r *Registry) Implementations(trait string) []*ImplDef {
	return r.implementations[trait]
}

// ItemName returns the source name of an item.
func (r *Registry) ItemName(id ItemID) string {
	return r.item(id).name
}

// ItemKind returns the kind of an item.
func (r *Registry) ItemKind(id ItemID) ItemKind {
	return r.item(id).kind
}

// TraitOfItem returns the owning trait when the item is declared on a
// trait (as opposed to defined in an impl or free-standing).
func (r *Registry) TraitOfItem(id ItemID) (string, bool) {
	d := r.item(id)
	if d.trait == "" {
		return "", false
	}
	return d.trait, true
}

// ImplOfItem returns the owning impl for impl items.
func (r *Registry) ImplOfItem(id ItemID) (ImplID, bool) {
	d := r.item(id)
	if d.impl < 0 {
		return 0, false
	}
	return d.impl, true
}

// HasDefaultValue reports whether a trait-declared constant carries an
// actual default body (not just a signature).
func (r *Registry) HasDefaultValue(id ItemID) bool {
	return r.item(id).hasDefault
}

// IdentitySubsts returns the identity substitutions of an item: its own
// generic parameters as type variables. For an item inside an impl these
// are the impl's free type variables in target order; concrete impls
// yield an empty list.
func (r *Registry) IdentitySubsts(id ItemID) []typesystem.Type {
	d := r.item(id)
	if d.impl < 0 {
		return nil
	}
	impl := r.implByID(d.impl)
	if impl == nil {
		return nil
	}
	var out []typesystem.Type
	seen := map[string]bool{}
	for _, target := range impl.TargetTypes {
		for _, v := range target.FreeTypeVariables() {
			if !seen[v.Name] {
				seen[v.Name] = true
				out = append(out, v)
			}
		}
	}
	return out
}

func (r *Registry) implByID(id ImplID) *ImplDef {
	for _, impls := range r.implementations {
		for _, im := range impls {
			if im.ID == id {
				return im
			}
		}
	}
	return nil
}

func typeListString(types []typesystem.Type) string {
	if len(types) == 1 {
		return types[0].String()
	}
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
