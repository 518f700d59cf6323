package rafflejwt

import "time"

// Role grants access to operator endpoints.
type Role string

const (
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Claims are the validated contents of a token.
type Claims struct {
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Provider defines the interface for JWT token operations.
type Provider interface {
	// GenerateToken creates a signed token for subject with role.
	GenerateToken(subject string, role Role, ttl time.Duration) (string, error)

	// ValidateToken validates a token and returns its claims if valid.
	ValidateToken(tokenString string) (*Claims, error)
}
