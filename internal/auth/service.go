package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/catalogsvc/pkg"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL = 24 * time.Hour
	// used to hash the decoy password compared when the username is unknown
	DefaultPasswordHashCost = 14
)

var (
	ErrEmptyCredentials   = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
)

type Service struct {
	users       CredentialStore
	redisClient *redis.Client
	ttl         time.Duration

	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
	// ability to inject a clock
	NowFunc func() time.Time
	// must match the cost of the stored hashes, so unknown users take as long as wrong passwords
	PasswordHashCost int

	decoyHashOnce sync.Once
	decoyHash     string
}

func NewAuthService(
	users CredentialStore,
	ttl time.Duration,
	redisClient *redis.Client,
) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		users:            users,
		ttl:              ttl,
		redisClient:      redisClient,
		RandStringFunc:   pkg.GenerateRandomString,
		NowFunc:          time.Now,
		PasswordHashCost: DefaultPasswordHashCost,
	}
}

func (as *Service) TTL() time.Duration {
	return as.ttl
}

// Login verifies the credentials and creates a new session.
// Unknown user and wrong password both yield ErrInvalidCredentials.
func (as *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	user, err := as.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			pkg.CheckPasswordHash(password, as.getDecoyHash())
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user.Username != username || !pkg.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := as.RandStringFunc(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := as.NowFunc()
	session := &Session{
		Token:     token,
		User:      SessionUser{Username: user.Username},
		CreatedAt: now,
		ExpiresAt: now.Add(as.ttl),
	}
	sessionBytes, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	if err := as.redisClient.Set(ctx, sessionKey(token), sessionBytes, as.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	// add token to the set of sessions, used by ScanAndClean
	if err := as.redisClient.SAdd(ctx, tokensSetKey, token).Err(); err != nil {
		return nil, fmt.Errorf("track session: %w", err)
	}

	return session, nil
}

// Logout destroys the session, destroying a missing session is not an error
func (as *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := as.redisClient.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if err := as.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
		return fmt.Errorf("untrack session: %w", err)
	}

	return nil
}

// Session returns the live session for the token or ErrSessionNotFound
func (as *Service) Session(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	sessionBytes, err := as.redisClient.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	session := &Session{}
	if err := json.Unmarshal(sessionBytes, session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	session.Token = token

	if !session.Valid(as.NowFunc()) {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

// IsAuthenticated has no side effects, it never extends or removes sessions
func (as *Service) IsAuthenticated(ctx context.Context, token string) (bool, error) {
	if _, err := as.Session(ctx, token); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ScanAndClean will run through all tracked sessions, and remove the expired or missing ones
func (as *Service) ScanAndClean(ctx context.Context) {
	sessionTokens, err := as.redisClient.SMembers(ctx, tokensSetKey).Result()
	if err != nil {
		log.Errorf("!!! auth service, scan and clean, get sessions: %s", err)
		return
	}

	if len(sessionTokens) == 0 {
		log.Debugln("=> auth service, scan and clean abort, no sessions")
		return
	}

	log.Debugf("=> auth service, scan and clean [%d sessions] start ...", len(sessionTokens))
	var toRemove []string
	for _, token := range sessionTokens {
		_, err := as.Session(ctx, token)
		if errors.Is(err, ErrSessionNotFound) {
			toRemove = append(toRemove, token)
			continue
		}
		if err != nil {
			log.Errorf("=> auth service, scan and clean session: %s", err)
		}
	}

	for _, token := range toRemove {
		if err := as.Logout(ctx, token); err != nil {
			log.Errorf("=> auth service, clean session: %s", err)
			continue
		}
	}
	log.Debugf("=> auth service, scan and clean done, removed %d sessions", len(toRemove))
}

func (as *Service) getDecoyHash() string {
	as.decoyHashOnce.Do(func() {
		decoy, err := pkg.GenerateRandomString(16)
		if err != nil {
			decoy = "decoy-password"
		}
		hash, err := pkg.HashPasswordWithCost(decoy, as.PasswordHashCost)
		if err != nil {
			log.Errorf("auth service, generate decoy hash: %s", err)
		}
		as.decoyHash = hash
	})
	return as.decoyHash
}
