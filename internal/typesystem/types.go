package typesystem

import (
	"fmt"
	"strings"
)

// Type is the interface for all types in our system.
//
// The constant evaluator only ever sees fully-kinded monotypes: kind
// checking and generalization happen upstream in the type checker, so
// there is no kind or quantifier machinery here.
type Type interface {
	String() string
	Apply(Subst) Type
	FreeTypeVariables() []TVar
}

// TVar represents a type variable (e.g. 'a', 'b', 't1').
type TVar struct {
	Name string
}

func (t TVar) String() string { return t.Name }

func (t TVar) Apply(s Subst) Type {
	return ApplyWithCycleCheck(t, s, make(map[string]bool))
}

func (t TVar) FreeTypeVariables() []TVar { return []TVar{t} }

// TCon represents a concrete type constructor (e.g. Int, Bool, List).
type TCon struct {
	Name string
}

func (t TCon) String() string { return t.Name }

func (t TCon) Apply(s Subst) Type { return t }

func (t TCon) FreeTypeVariables() []TVar { return nil }

// TApp represents a type application (e.g. List<Int>, Map<String, a>).
type TApp struct {
	Constructor Type
	Args        []Type
}

func (t TApp) String() string {
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s<%s>", t.Constructor.String(), strings.Join(args, ", "))
}

func (t TApp) Apply(s Subst) Type {
	return ApplyWithCycleCheck(t, s, make(map[string]bool))
}

func (t TApp) FreeTypeVariables() []TVar {
	vars := t.Constructor.FreeTypeVariables()
	for _, arg := range t.Args {
		vars = append(vars, arg.FreeTypeVariables()...)
	}
	return uniqueTVars(vars)
}

// TFunc represents a function type (e.g. (Int, Int) -> Bool).
type TFunc struct {
	Params     []Type
	ReturnType Type
}

func (t TFunc) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("(%s) -> %s", strings.Join(params, ", "), t.ReturnType.String())
}

func (t TFunc) Apply(s Subst) Type {
	return ApplyWithCycleCheck(t, s, make(map[string]bool))
}

func (t TFunc) FreeTypeVariables() []TVar {
	vars := []TVar{}
	for _, p := range t.Params {
		vars = append(vars, p.FreeTypeVariables()...)
	}
	vars = append(vars, t.ReturnType.FreeTypeVariables()...)
	return uniqueTVars(vars)
}

// TTuple represents a tuple type (e.g. (Int, Bool)).
type TTuple struct {
	Elements []Type
}

func (t TTuple) String() string {
	elems := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		elems[i] = e.String()
	}
	return fmt.Sprintf("(%s)", strings.Join(elems, ", "))
}

func (t TTuple) Apply(s Subst) Type {
	return ApplyWithCycleCheck(t, s, make(map[string]bool))
}

func (t TTuple) FreeTypeVariables() []TVar {
	vars := []TVar{}
	for _, e := range t.Elements {
		vars = append(vars, e.FreeTypeVariables()...)
	}
	return uniqueTVars(vars)
}

// ApplyWithCycleCheck applies substitution with cycle detection.
// This is the main entry point for substitution application.
func ApplyWithCycleCheck(t Type, s Subst, visited map[string]bool) Type {
	if t == nil {
		return nil
	}

	switch typ := t.(type) {
	case TVar:
		// Check for cycle
		if visited[typ.Name] {
			return typ // Break cycle - return the variable as-is
		}

		if replacement, ok := s[typ.Name]; ok {
			// Check for direct self-reference
			if tv, ok := replacement.(TVar); ok && tv.Name == typ.Name {
				return typ
			}
			visited[typ.Name] = true
			result := ApplyWithCycleCheck(replacement, s, visited)
			delete(visited, typ.Name)
			return result
		}
		return typ

	case TCon:
		return typ

	case TApp:
		newArgs := make([]Type, len(typ.Args))
		for i, arg := range typ.Args {
			newArgs[i] = ApplyWithCycleCheck(arg, s, visited)
		}
		return TApp{
			Constructor: ApplyWithCycleCheck(typ.Constructor, s, visited),
			Args:        newArgs,
		}

	case TFunc:
		newParams := make([]Type, len(typ.Params))
		for i, p := range typ.Params {
			newParams[i] = ApplyWithCycleCheck(p, s, visited)
		}
		return TFunc{
			Params:     newParams,
			ReturnType: ApplyWithCycleCheck(typ.ReturnType, s, visited),
		}

	case TTuple:
		newElements := make([]Type, len(typ.Elements))
		for i, e := range typ.Elements {
			newElements[i] = ApplyWithCycleCheck(e, s, visited)
		}
		return TTuple{Elements: newElements}

	default:
		return t
	}
}

// Subst is a mapping from Type Variables to Types.
type Subst map[string]Type

// Compose combines two substitutions.
func (s1 Subst) Compose(s2 Subst) Subst {
	subst := Subst{}
	for k, v := range s2 {
		subst[k] = v
	}
	for k, v := range s1 {
		subst[k] = v.Apply(s2)
	}
	return subst
}

// IsConcrete reports whether t contains no free type variables.
func IsConcrete(t Type) bool {
	if t == nil {
		return true
	}
	return len(t.FreeTypeVariables()) == 0
}

func uniqueTVars(vars []TVar) []TVar {
	unique := []TVar{}
	seen := map[string]bool{}
	for _, v := range vars {
		if !seen[v.Name] {
			seen[v.Name] = true
			unique = append(unique, v)
		}
	}
	return unique
}
