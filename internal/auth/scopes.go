package auth

const (
	ScopeOpenID          = "openid"
	ScopeProfile         = "profile"
	ScopeEmail           = "email"
	ScopeGovernanceRead  = "governance:read"
	ScopeGovernanceWrite = "governance:write"
)

// AllScopes defines the full set of scopes used by API clients.
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeGovernanceRead,
	ScopeGovernanceWrite,
}
