package typesystem

// RenameTypeVars renames every free type variable in t by appending the
// given suffix. Used to keep variables from two independently quantified
// types apart before unifying them.
func RenameTypeVars(t Type, suffix string) Type {
	vars := t.FreeTypeVariables()
	subst := make(Subst)
	for _, v := range vars {
		subst[v.Name] = TVar{Name: v.Name + "_" + suffix}
	}
	return t.Apply(subst)
}

// ConstructorName extracts the constructor name from a type, unwrapping
// applications. Returns "" for variables and other headless types.
func ConstructorName(t Type) string {
	switch tt := t.(type) {
	case TCon:
		return tt.Name
	case TApp:
		return ConstructorName(tt.Constructor)
	default:
		return ""
	}
}
