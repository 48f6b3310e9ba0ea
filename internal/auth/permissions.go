package auth

// Permission tags carried in the token's permissions claim. The identity
// provider resolves roles to this flat set at issuance time; the API never
// sees role names. The User role maps to the four own-* permissions and
// Manager additionally holds read:all-users.
const (
	PermWriteOwnUser  = "write:own-user"
	PermReadOwnUser   = "read:own-user"
	PermWriteOwnTodos = "write:own-todos"
	PermReadOwnTodos  = "read:own-todos"
	PermReadAllUsers  = "read:all-users"
)
