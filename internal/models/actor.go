package models

// ActorRole - роль аутентифицированного участника.
type ActorRole string

const (
	RoleClient ActorRole = "client" // Заказчик мероприятия
	RoleVendor ActorRole = "vendor" // Исполнитель
	RoleAdmin  ActorRole = "admin"  // Администратор платформы
	RoleSystem ActorRole = "system" // Фоновые задачи сервиса
)

// Actor - участник, от имени которого выполняется операция.
type Actor struct {
	UserID string    `json:"userId"`
	Role   ActorRole `json:"role"`
}

// SystemActor используется планировщиком выплат.
var SystemActor = Actor{UserID: "system", Role: RoleSystem}

// IsAdmin сообщает, может ли актор обходить период удержания выплаты.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Valid проверяет, что актор заполнен и роль известна.
func (a Actor) Valid() bool {
	if a.UserID == "" {
		return false
	}
	switch a.Role {
	case RoleClient, RoleVendor, RoleAdmin, RoleSystem:
		return true
	default:
		return false
	}
}
