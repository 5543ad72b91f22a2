package access

import "slices"

// SensitivityKey is the document metadata field the visibility filter
// matches against.
const SensitivityKey = "sensitivity"

// Sensitivity levels stored on ingested documents.
const (
	SensitivityPublic       = "public"
	SensitivityInternal     = "internal"
	SensitivityConfidential = "confidential"
)

// VisibilityFilter is a predicate over document sensitivity. A nil
// *VisibilityFilter means unrestricted. Exactly one of Equals or In is set on
// a non-nil filter.
type VisibilityFilter struct {
	// Equals matches documents whose sensitivity equals this value.
	Equals string
	// In matches documents whose sensitivity is any of these values.
	In []string
}

// BuildFilter returns the visibility filter for role. Anonymous callers and
// students see public documents only, lecturers see public and internal
// documents, and admins are unrestricted (nil).
func BuildFilter(role Role) *VisibilityFilter {
	switch role {
	case RoleAdmin:
		return nil
	case RoleLecturer:
		return &VisibilityFilter{In: []string{SensitivityPublic, SensitivityInternal}}
	default:
		return &VisibilityFilter{Equals: SensitivityPublic}
	}
}

// DetectRole maps a filter back onto the role that would have produced it.
// Filters that no role produces resolve to RoleAnonymous.
func DetectRole(f *VisibilityFilter) Role {
	switch {
	case f == nil:
		return RoleAdmin
	case f.Equals == SensitivityPublic && len(f.In) == 0:
		return RoleStudent
	case f.Equals == "" && len(f.In) > 0:
		return RoleLecturer
	default:
		return RoleAnonymous
	}
}

// Allows reports whether a document with the given sensitivity passes the
// filter. A nil filter allows everything.
func (f *VisibilityFilter) Allows(sensitivity string) bool {
	if f == nil {
		return true
	}
	if len(f.In) > 0 {
		return slices.Contains(f.In, sensitivity)
	}
	return sensitivity == f.Equals
}

// Values returns the sensitivity values the filter admits, or nil when the
// filter is unrestricted.
func (f *VisibilityFilter) Values() []string {
	if f == nil {
		return nil
	}
	if len(f.In) > 0 {
		return slices.Clone(f.In)
	}
	return []string{f.Equals}
}
