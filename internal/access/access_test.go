package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilter(t *testing.T) {
	t.Parallel()

	assert.Nil(t, BuildFilter(RoleAdmin))
	assert.Equal(t, &VisibilityFilter{Equals: "public"}, BuildFilter(RoleStudent))
	assert.Equal(t, BuildFilter(RoleStudent), BuildFilter(RoleAnonymous))
	assert.Equal(t, &VisibilityFilter{In: []string{"public", "internal"}}, BuildFilter(RoleLecturer))
}

func TestBuildFilter_RoleMonotonicity(t *testing.T) {
	t.Parallel()

	corpus := []string{SensitivityPublic, SensitivityInternal, SensitivityConfidential, ""}

	visible := func(r Role) map[string]bool {
		out := map[string]bool{}
		f := BuildFilter(r)
		for _, s := range corpus {
			if f.Allows(s) {
				out[s] = true
			}
		}
		return out
	}

	for i, lower := range Roles {
		for _, higher := range Roles[i+1:] {
			lo, hi := visible(lower), visible(higher)
			for s := range lo {
				assert.Truef(t, hi[s], "%s sees %q but %s does not", lower, s, higher)
			}
		}
	}
}

func TestDetectRole_InvertsBuildFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role Role
		want Role
	}{
		{RoleAdmin, RoleAdmin},
		{RoleLecturer, RoleLecturer},
		{RoleStudent, RoleStudent},
		// anonymous and student share a filter; the inverse picks student.
		{RoleAnonymous, RoleStudent},
	}
	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, DetectRole(BuildFilter(tc.role)))
		})
	}

	assert.Equal(t, RoleAnonymous, DetectRole(&VisibilityFilter{Equals: "confidential"}))
}

func TestRejectionMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role     Role
		required string
		contains string
	}{
		{RoleStudent, "lecturer", "khusus Dosen"},
		{RoleLecturer, "admin", "Administrator"},
		{RoleAnonymous, "authenticated", "Login diperlukan"},
		{Role("guest"), "unknown", "Akses ditolak."},
	}
	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			t.Parallel()
			msg, required := RejectionMessage(tc.role)
			assert.Equal(t, tc.required, required)
			assert.Contains(t, msg, tc.contains)
		})
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "anonymous", "Student", " LECTURER ", "admin"} {
		_, err := ParseRole(in)
		require.NoError(t, err, in)
	}

	r, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleAnonymous, r)

	_, err = ParseRole("root")
	assert.True(t, errors.Is(err, ErrUnknownRole))
}

func TestRole_Valid(t *testing.T) {
	t.Parallel()

	for _, r := range Roles {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("").Valid())
	assert.False(t, Role("root").Valid())
}

func TestVisibilityFilter_Values(t *testing.T) {
	t.Parallel()

	var unrestricted *VisibilityFilter
	assert.Nil(t, unrestricted.Values())
	assert.Equal(t, []string{"public"}, BuildFilter(RoleStudent).Values())
	assert.Equal(t, []string{"public", "internal"}, BuildFilter(RoleLecturer).Values())
}
