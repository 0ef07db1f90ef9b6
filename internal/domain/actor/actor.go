package actor

// Role は認証済みユーザーのロールを表す
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor は認証済みの操作主体を表す
// 認証基盤（トークン検証）は外部コラボレーターで、ここでは検証済みの {id, role} のみを扱う
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin は管理者権限を持つかを返す
// admin ロールは身元ではなく能力として扱う
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
