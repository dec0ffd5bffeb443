package model

import "time"

// Session is the identity recovered from a valid session token.
type Session struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// KeyPrefix is the object-key prefix owned by this session's user.
func (s *Session) KeyPrefix() string {
	return UserKeyPrefix(s.UserID)
}

func UserKeyPrefix(userID string) string {
	return "users/" + userID + "/"
}
