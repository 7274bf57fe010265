package auth

import "testing"

func TestRoleOrdering(t *testing.T) {
	if !RoleAdmin.AtLeast(RoleOperator) || !RoleOperator.AtLeast(RoleDev) || !RoleDev.AtLeast(RoleReadonly) {
		t.Error("role order broken")
	}
	if RoleReadonly.AtLeast(RoleDev) {
		t.Error("readonly outranks dev")
	}
	if !RoleDev.AtLeast(RoleDev) {
		t.Error("AtLeast is not reflexive")
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in    string
		want  Role
		valid bool
	}{
		{"readonly", RoleReadonly, true},
		{"dev", RoleDev, true},
		{"operator", RoleOperator, true},
		{"admin", RoleAdmin, true},
		{"root", "", false},
		{"", "", false},
		{"Admin", "", false},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if tc.valid && (err != nil || got != tc.want) {
			t.Errorf("Parse(%q) = %v, %v", tc.in, got, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("Parse(%q) should fail", tc.in)
		}
	}
}

func TestLevelUnknownRole(t *testing.T) {
	if Role("root").Level() != -1 {
		t.Error("unknown role has a level")
	}
	if Role("root").Valid() {
		t.Error("unknown role is valid")
	}
}

func TestTokenResolution(t *testing.T) {
	tokens := DefaultTokens()

	if got := tokens.Resolve("admin-token"); got != RoleAdmin {
		t.Errorf("Resolve(admin-token) = %s", got)
	}
	if got := tokens.Resolve(""); got != RoleReadonly {
		t.Errorf("Resolve(empty) = %s, want readonly", got)
	}
	if got := tokens.Resolve("forged"); got != RoleReadonly {
		t.Errorf("Resolve(unknown) = %s, want readonly", got)
	}

	custom := NewTokenTable(map[string]Role{"t": RoleOperator})
	if got := custom.Resolve("t"); got != RoleOperator {
		t.Errorf("custom Resolve = %s", got)
	}
}
