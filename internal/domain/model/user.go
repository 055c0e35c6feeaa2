package model

import (
	"time"

	"telegram-subscription-billing/internal/domain"
)

// User is the minimal read model this service needs: enough to address
// notifications and to render admin summaries.
type User struct {
	ID           string // UUID
	TelegramID   int64
	Username     string
	RegisteredAt time.Time
}

func NewUser(id string, tgID int64, username string) (*User, error) {
	if id == "" || tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &User{ID: id, TelegramID: tgID, Username: username, RegisteredAt: time.Now()}, nil
}
