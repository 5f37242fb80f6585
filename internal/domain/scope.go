package domain

import "fmt"

// Scope identifies the company/branch a warehouse entity belongs to.
// Entities with empty fields are shared: an empty company or branch on an
// entity matches any job scope (wildcard), but a mismatching value never does.
type Scope struct {
	Company string `bson:"company" json:"company"`
	Branch  string `bson:"branch,omitempty" json:"branch,omitempty"`
}

// Matches reports whether an entity with this scope may be used by a job
// running under jobScope. Empty entity fields are wildcards.
func (s Scope) Matches(jobScope Scope) bool {
	if s.Company != "" && s.Company != jobScope.Company {
		return false
	}
	if s.Branch != "" && s.Branch != jobScope.Branch {
		return false
	}
	return true
}

// IsZero reports whether the scope carries no restriction at all
func (s Scope) IsZero() bool {
	return s.Company == "" && s.Branch == ""
}

func (s Scope) String() string {
	if s.Branch == "" {
		return s.Company
	}
	return s.Company + "/" + s.Branch
}

// GuardScope returns ErrScopeViolation when an entity's scope does not match
// the job scope. Used by every orchestrator and the posting engine.
func GuardScope(entityKind, entityID string, entityScope, jobScope Scope) error {
	if entityScope.Matches(jobScope) {
		return nil
	}
	return fmt.Errorf("%w: %s %s belongs to %q, job runs under %q",
		ErrScopeViolation, entityKind, entityID, entityScope, jobScope)
}
