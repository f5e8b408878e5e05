// Package auth signs operators in and out of the console.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/humanplus/posture-console/internal/model"
	jwtauth "github.com/humanplus/posture-console/pkg/auth"
	"github.com/humanplus/posture-console/pkg/logger"
)

// Provider is the identity backend.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*model.TokenResponse, error)
	SignOut(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (*model.User, error)
}

// Operator is an account known to LocalProvider.
type Operator struct {
	UID          string
	Email        string
	DisplayName  string
	PasswordHash string
	Disabled     bool
}

type LocalConfig struct {
	Operators []Operator
	// LoginRate and LoginBurst bound sign-in attempts per email.
	LoginRate    rate.Limit
	LoginBurst   int
	// LoginIdleTTL drops an email's limiter after this long without attempts.
	LoginIdleTTL time.Duration
}

// LocalProvider authenticates against a fixed operator list with bcrypt
// hashes and issues signed access tokens.
type LocalProvider struct {
	operators map[string]Operator
	tokens    jwtauth.JWTService
	listener  *Listener
	validate  *validator.Validate
	log       *logger.Logger

	loginRate  rate.Limit
	loginBurst int
	limiters   *cache.Cache

	revoked *cache.Cache
}

func NewLocalProvider(cfg LocalConfig, tokens jwtauth.JWTService, listener *Listener, log *logger.Logger) *LocalProvider {
	if cfg.LoginRate <= 0 {
		cfg.LoginRate = rate.Every(5 * time.Second)
	}
	if cfg.LoginBurst <= 0 {
		cfg.LoginBurst = 5
	}
	if cfg.LoginIdleTTL <= 0 {
		cfg.LoginIdleTTL = 15 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	ops := make(map[string]Operator, len(cfg.Operators))
	for _, op := range cfg.Operators {
		ops[normalizeEmail(op.Email)] = op
	}
	return &LocalProvider{
		operators:  ops,
		tokens:     tokens,
		listener:   listener,
		validate:   validator.New(),
		log:        log.With("auth"),
		loginRate:  cfg.LoginRate,
		loginBurst: cfg.LoginBurst,
		limiters:   cache.New(cfg.LoginIdleTTL, cfg.LoginIdleTTL),
		revoked:    cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	key := normalizeEmail(email)
	if err := p.validate.Var(key, "required,email"); err != nil {
		return nil, newError(CodeInvalidEmail, err)
	}
	if !p.limiter(key).Allow() {
		p.log.Warn("sign-in rate limited", "email", key)
		return nil, newError(CodeTooManyRequests, nil)
	}

	op, ok := p.operators[key]
	if !ok {
		return nil, newError(CodeUserNotFound, nil)
	}
	if op.Disabled {
		return nil, newError(CodeUserDisabled, nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, newError(CodeWrongPassword, nil)
		}
		return nil, newError(CodeInternal, fmt.Errorf("invalid password hash for %s: %w", key, err))
	}

	user := op.user()
	token, err := p.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, newError(CodeInternal, err)
	}

	if p.listener != nil {
		p.listener.publish(user)
	}
	p.log.Info("operator signed in", "uid", user.UID)
	return &model.TokenResponse{AccessToken: token, User: user}, nil
}

// SignOut revokes token until it would have expired.
func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	claims, err := p.tokens.ValidateToken(token)
	if err != nil {
		return newError(CodeInvalidToken, err)
	}
	ttl := cache.NoExpiration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	p.revoked.Set(claims.ID, struct{}{}, ttl)

	if p.listener != nil {
		p.listener.publish(nil)
	}
	p.log.Info("operator signed out", "uid", claims.UID)
	return nil
}

func (p *LocalProvider) ValidateToken(ctx context.Context, token string) (*model.User, error) {
	claims, err := p.tokens.ValidateToken(token)
	if err != nil {
		return nil, newError(CodeInvalidToken, err)
	}
	if _, revoked := p.revoked.Get(claims.ID); revoked {
		return nil, newError(CodeInvalidToken, errors.New("token revoked"))
	}
	op, ok := p.operators[normalizeEmail(claims.Email)]
	if !ok || op.UID != claims.UID {
		return nil, newError(CodeUserNotFound, nil)
	}
	if op.Disabled {
		return nil, newError(CodeUserDisabled, nil)
	}
	return op.user(), nil
}

func (p *LocalProvider) limiter(email string) *rate.Limiter {
	if l, ok := p.limiters.Get(email); ok {
		p.limiters.Set(email, l, cache.DefaultExpiration)
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(p.loginRate, p.loginBurst)
	if err := p.limiters.Add(email, l, cache.DefaultExpiration); err != nil {
		if existing, ok := p.limiters.Get(email); ok {
			return existing.(*rate.Limiter)
		}
	}
	return l
}

func (op Operator) user() *model.User {
	u := &model.User{UID: op.UID, Email: op.Email}
	if op.DisplayName != "" {
		name := op.DisplayName
		u.DisplayName = &name
	}
	return u
}

// HashPassword produces a bcrypt hash suitable for Operator.PasswordHash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
