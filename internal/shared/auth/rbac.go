package auth

// Role names stored on user records and embedded in access tokens.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

var roleRank = map[string]int{
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

// ValidRole reports whether the given role is one this service issues.
func ValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}

// RoleAtLeast reports whether have grants at least the privileges of want.
// Unknown roles never qualify.
func RoleAtLeast(have, want string) bool {
	h, ok := roleRank[have]
	if !ok {
		return false
	}
	w, ok := roleRank[want]
	if !ok {
		return false
	}
	return h >= w
}
