package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the decoded access token payload. Permissions is the resolved
// capability set the provider embedded at issuance.
type Claims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// HasPermission reports whether the token carries the given permission tag.
func (c *Claims) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
