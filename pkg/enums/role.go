package enums

// Role identifies the acting principal for an operation.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return r == RoleBuyer || r == RoleSeller || r == RoleAdmin
}
