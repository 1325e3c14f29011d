package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role tags for User.Role. A user is created through one of the two routing
// paths and keeps that role; promotion is out of scope.
const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
)

// AgentProfile.Role values.
const (
	AgentRoleAdmin = "admin"
	AgentRoleAgent = "agent"
)

// User is anyone the bot has seen: a customer writing in a private chat or an
// agent writing in the support group.
type User struct {
	ID         uuid.UUID `db:"id"`
	TelegramID int64     `db:"telegram_user_id"`
	Username   string    `db:"username"`
	FirstName  string    `db:"first_name"`
	LastName   string    `db:"last_name"`
	Role       string    `db:"user_type"`
	Active     bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
}

// FullName returns "First Last", falling back to the Telegram id when the
// profile carries no name at all.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return fmt.Sprintf("User %d", u.TelegramID)
	}
	return name
}

// DisplayName prefers the username for agent-facing listings.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fmt.Sprintf("%d", u.TelegramID)
}

// AgentProfile is the 1:1 extension row created alongside a User on the agent
// path.
type AgentProfile struct {
	UserID    uuid.UUID `db:"user_id"`
	Role      string    `db:"role"`
	Online    bool      `db:"is_online"`
	CreatedAt time.Time `db:"created_at"`
}

// Identity is the external principal as seen on the wire, before it is
// resolved to a User record.
type Identity struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}
