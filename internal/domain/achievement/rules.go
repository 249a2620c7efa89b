package achievement

// Snapshot is the evidence rules are evaluated against.
type Snapshot struct {
	TotalProblems int64
	CurrentStreak int
	CurrentLevel  int
	ComboCount    int
	// RecentCorrect holds the correctness of the latest attempts, newest first.
	RecentCorrect []bool
}

// IsSatisfied evaluates the definition's predicate.
func (d Definition) IsSatisfied(s Snapshot) bool {
	v := d.Requirement.Value
	switch d.Requirement.Type {
	case RequirementProblemsSolved:
		return s.TotalProblems >= int64(v)
	case RequirementStreak:
		return s.CurrentStreak >= v
	case RequirementLevel:
		return s.CurrentLevel >= v
	case RequirementCombo:
		return s.ComboCount >= v
	case RequirementCorrectStreak:
		if len(s.RecentCorrect) < v {
			return false
		}
		for _, ok := range s.RecentCorrect[:v] {
			if !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Filter restricts evaluation to some requirement types. Nil means all.
type Filter func(RequirementType) bool

// OnlyTypes builds a Filter accepting the listed types.
func OnlyTypes(types ...RequirementType) Filter {
	set := make(map[RequirementType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return func(t RequirementType) bool {
		_, ok := set[t]
		return ok
	}
}

// ExceptTypes builds a Filter rejecting the listed types.
func ExceptTypes(types ...RequirementType) Filter {
	only := OnlyTypes(types...)
	return func(t RequirementType) bool { return !only(t) }
}

// Candidates returns the not-yet-unlocked definitions whose predicate holds,
// in catalog order.
func (c *Catalog) Candidates(unlocked map[string]bool, s Snapshot, filter Filter) []Definition {
	var out []Definition
	for _, d := range c.defs {
		if unlocked[d.Key] {
			continue
		}
		if filter != nil && !filter(d.Requirement.Type) {
			continue
		}
		if d.IsSatisfied(s) {
			out = append(out, d)
		}
	}
	return out
}
