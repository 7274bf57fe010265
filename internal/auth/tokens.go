package auth

// TokenTable maps bearer tokens to roles. The default table is a demo
// fixture; production deployments are expected to replace it at startup.
type TokenTable struct {
	tokens map[string]Role
}

// DefaultTokens returns the built-in demo token table.
func DefaultTokens() *TokenTable {
	return &TokenTable{
		tokens: map[string]Role{
			"admin-token":    RoleAdmin,
			"operator-token": RoleOperator,
			"dev-token":      RoleDev,
			"readonly-token": RoleReadonly,
		},
	}
}

// NewTokenTable creates a table from an explicit mapping.
func NewTokenTable(tokens map[string]Role) *TokenTable {
	cp := make(map[string]Role, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &TokenTable{tokens: cp}
}

// Resolve maps a bearer token to a role. A missing or unknown token
// resolves to readonly.
func (t *TokenTable) Resolve(token string) Role {
	if role, ok := t.tokens[token]; ok {
		return role
	}
	return RoleReadonly
}
