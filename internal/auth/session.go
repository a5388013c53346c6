package auth

import "time"

const (
	SessionCookieName = "catalog_session"
	sessionKeyPrefix  = "catalog-session||"
	tokensSetKey      = "catalog-sessions"
	sessionTokenBytes = 35
)

type SessionUser struct {
	Username string `json:"username"`
}

// Session is kept server side, the client only holds the opaque token
type Session struct {
	Token     string      `json:"-"`
	User      SessionUser `json:"user"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func (s *Session) Valid(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}
