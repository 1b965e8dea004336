package typesystem

import (
	"fmt"
	"reflect"
)

// Unify attempts to find a substitution that makes t1 and t2 equal.
// It enforces strict equality (invariant).
func Unify(t1, t2 Type) (Subst, error) {
	return unifyInternal(t1, t2, nil)
}

// typePair represents a pair of types being compared for co-induction
type typePair struct {
	t1 Type
	t2 Type
}

func unifyInternal(t1, t2 Type, visited []typePair) (Subst, error) {
	// Co-induction step: Check if we are already comparing these two types
	// in the current stack
	for _, p := range visited {
		if reflect.DeepEqual(p.t1, t1) && reflect.DeepEqual(p.t2, t2) {
			// Cycle detected, assume success (co-induction)
			return Subst{}, nil
		}
	}

	// Add current pair to visited
	visited = append(visited, typePair{t1: t1, t2: t2})

	// If types are strictly equal
	if reflect.DeepEqual(t1, t2) {
		return Subst{}, nil
	}

	switch t1 := t1.(type) {
	case TVar:
		return Bind(t1, t2)

	case TCon:
		switch t2 := t2.(type) {
		case TVar:
			return Bind(t2, t1)
		case TCon:
			if t1.Name == t2.Name {
				return Subst{}, nil
			}
			return nil, errUnify(t1, t2)
		default:
			return nil, errUnify(t1, t2)
		}

	case TApp:
		switch t2 := t2.(type) {
		case TVar:
			return Bind(t2, t1)
		case TApp:
			if len(t1.Args) != len(t2.Args) {
				return nil, errUnifyMsg(t1, t2, "type argument count mismatch")
			}
			subst, err := unifyInternal(t1.Constructor, t2.Constructor, visited)
			if err != nil {
				return nil, err
			}
			for i := range t1.Args {
				a1 := t1.Args[i].Apply(subst)
				a2 := t2.Args[i].Apply(subst)
				s, err := unifyInternal(a1, a2, visited)
				if err != nil {
					return nil, err
				}
				subst = subst.Compose(s)
			}
			return subst, nil
		default:
			return nil, errUnify(t1, t2)
		}

	case TFunc:
		switch t2 := t2.(type) {
		case TVar:
			return Bind(t2, t1)
		case TFunc:
			if len(t1.Params) != len(t2.Params) {
				return nil, errUnifyMsg(t1, t2, "parameter count mismatch")
			}
			subst := Subst{}
			for i := range t1.Params {
				p1 := t1.Params[i].Apply(subst)
				p2 := t2.Params[i].Apply(subst)
				s, err := unifyInternal(p1, p2, visited)
				if err != nil {
					return nil, err
				}
				subst = subst.Compose(s)
			}
			r1 := t1.ReturnType.Apply(subst)
			r2 := t2.ReturnType.Apply(subst)
			s, err := unifyInternal(r1, r2, visited)
			if err != nil {
				return nil, err
			}
			return subst.Compose(s), nil
		default:
			return nil, errUnify(t1, t2)
		}

	case TTuple:
		switch t2 := t2.(type) {
		case TVar:
			return Bind(t2, t1)
		case TTuple:
			if len(t1.Elements) != len(t2.Elements) {
				return nil, errUnifyMsg(t1, t2, "tuple arity mismatch")
			}
			subst := Subst{}
			for i := range t1.Elements {
				e1 := t1.Elements[i].Apply(subst)
				e2 := t2.Elements[i].Apply(subst)
				s, err := unifyInternal(e1, e2, visited)
				if err != nil {
					return nil, err
				}
				subst = subst.Compose(s)
			}
			return subst, nil
		default:
			return nil, errUnify(t1, t2)
		}

	default:
		return nil, errMismatch(fmt.Sprintf("unknown type kind: %T", t1))
	}
}

// Bind binds a type variable to a type, performing the occurs check.
func Bind(tv TVar, t Type) (Subst, error) {
	// If t is the same variable, return empty substitution
	if tVal, ok := t.(TVar); ok && tVal.Name == tv.Name {
		return Subst{}, nil
	}

	// Occurs check: ensure tv does not appear in t (to avoid infinite
	// types like a = List<a>)
	if OccursCheck(tv, t) {
		return nil, errMismatch(fmt.Sprintf("infinite type detected: %s in %s", tv, t))
	}

	return Subst{tv.Name: t}, nil
}

// OccursCheck returns true if tv appears free in t.
func OccursCheck(tv TVar, t Type) bool {
	for _, v := range t.FreeTypeVariables() {
		if v.Name == tv.Name {
			return true
		}
	}
	return false
}

func errUnify(t1, t2 Type) error {
	return fmt.Errorf("cannot unify %s with %s", t1, t2)
}

func errUnifyMsg(t1, t2 Type, msg string) error {
	return fmt.Errorf("%s: %s vs %s", msg, t1, t2)
}

func errMismatch(msg string) error {
	return fmt.Errorf("type mismatch: %s", msg)
}
