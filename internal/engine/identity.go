package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"deskbridge/internal/domain"
)

// resolveUser maps an external principal to a User record, creating one on
// first contact. Display-name drift is synced opportunistically; the role is
// never upgraded by this call.
func (e *Engine) resolveUser(ctx context.Context, id domain.Identity, role string) (*domain.User, error) {
	u, err := e.store.UserByTelegramID(ctx, id.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("lookup user %d: %w", id.TelegramID, err)
	}
	if u == nil {
		u = &domain.User{
			ID:         uuid.New(),
			TelegramID: id.TelegramID,
			Username:   id.Username,
			FirstName:  id.FirstName,
			LastName:   id.LastName,
			Role:       role,
			Active:     true,
			CreatedAt:  time.Now().UTC(),
		}
		if err := e.store.CreateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %d: %w", id.TelegramID, err)
		}
		if role == domain.RoleAgent {
			profile := &domain.AgentProfile{
				UserID:    u.ID,
				Role:      domain.AgentRoleAgent,
				Online:    true,
				CreatedAt: u.CreatedAt,
			}
			if err := e.store.CreateAgentProfile(ctx, profile); err != nil {
				return nil, fmt.Errorf("create agent profile %d: %w", id.TelegramID, err)
			}
		}
		e.logger.Info("user created", "telegram_id", id.TelegramID, "role", role, "user_id", u.ID)
		return u, nil
	}

	changed := false
	if u.Username != id.Username {
		u.Username = id.Username
		changed = true
	}
	if u.FirstName != id.FirstName {
		u.FirstName = id.FirstName
		changed = true
	}
	if u.LastName != id.LastName {
		u.LastName = id.LastName
		changed = true
	}
	if changed {
		if err := e.store.UpdateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("update user %d: %w", id.TelegramID, err)
		}
	}
	return u, nil
}

// ResolveAgent resolves (or registers) an agent identity. Used by the command
// layer before lock/unlock operations.
func (e *Engine) ResolveAgent(ctx context.Context, id domain.Identity) (*domain.User, error) {
	return e.resolveUser(ctx, id, domain.RoleAgent)
}
