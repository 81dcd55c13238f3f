package jwt

import "github.com/golang-jwt/jwt/v5"

// Claims identifies a Discord member acting through the HTTP API.
type Claims struct {
	jwt.RegisteredClaims
	Guild string `json:"guild"`
	Role  string `json:"role"`
}

type Role string

const (
	RoleViewer    Role = "viewer"
	RoleModerator Role = "moderator"
)

// CanModerate reports whether the claims allow map edits and forced finalizes.
func (c *Claims) CanModerate() bool { return Role(c.Role) == RoleModerator }
