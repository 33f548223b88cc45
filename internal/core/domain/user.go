package domain

type Role string

const (
	RoleOwner  Role = "owner"
	RoleSudo   Role = "sudo"
	RoleMember Role = "member"
)

// AtLeast reports whether r grants everything other grants.
func (r Role) AtLeast(other Role) bool {
	return r.rank() >= other.rank()
}

func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 2
	case RoleSudo:
		return 1
	default:
		return 0
	}
}
