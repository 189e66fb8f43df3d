package activity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionUserLogin        Action = "USER_LOGIN"
	ActionUserRegister     Action = "USER_REGISTER"
	ActionPasswordChange   Action = "PASSWORD_CHANGE"
	ActionOAuth2Login      Action = "OAUTH2_LOGIN"
	ActionUserStatusChange Action = "USER_STATUS_CHANGE"
)

var ErrInvalidLog = errors.New("invalid activity log")

// Log is an append-only audit record owned by a user.
type Log struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Action    Action    `json:"action"`
	IPAddress string    `json:"ipAddress,omitempty"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New builds a Log with a fresh id and timestamp.
func New(userID, email string, action Action, ip, details string) Log {
	return Log{
		ID:        uuid.NewString(),
		UserID:    userID,
		Email:     email,
		Action:    action,
		IPAddress: ip,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func (a Action) IsValid() bool {
	switch a {
	case ActionUserLogin, ActionUserRegister, ActionPasswordChange, ActionOAuth2Login, ActionUserStatusChange:
		return true
	default:
		return false
	}
}

func (l Log) Validate() error {
	if l.ID == "" || l.UserID == "" || !l.Action.IsValid() || l.Timestamp.IsZero() {
		return ErrInvalidLog
	}
	return nil
}

type ListFilter struct {
	UserID string
	Limit  int
	Offset int
}
