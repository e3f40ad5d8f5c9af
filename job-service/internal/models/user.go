package models

type Role string

const (
	RoleCustomer Role = "customer"
	RoleWorker   Role = "worker"
	RoleAdmin    Role = "admin"
)

func ToRole(role string) Role {
	switch role {
	case "customer", "user":
		return RoleCustomer
	case "worker":
		return RoleWorker
	case "admin":
		return RoleAdmin
	default:
		return ""
	}
}

func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleWorker, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   Role
}
