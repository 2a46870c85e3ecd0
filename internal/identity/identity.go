// Package identity authenticates operators and carries their identity through requests.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/punchamoorthee/wastebank/internal/domain"
	"github.com/punchamoorthee/wastebank/internal/store"
)

var (
	ErrNotOperator     = errors.New("not a registered operator")
	ErrBadCredentials  = errors.New("invalid email or password")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrPasswordTooWeak = errors.New("password must be at least 6 characters")
)

const minPasswordLen = 6

// OperatorStore is the slice of the store holding operator accounts.
type OperatorStore interface {
	FindOperatorByEmail(ctx context.Context, email string) (*domain.Operator, error)
	CreateOperator(ctx context.Context, email, passwordHash string) (*domain.Operator, error)
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Authenticator registers operators, checks their passwords and issues tokens.
type Authenticator struct {
	store  OperatorStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(s OperatorStore, secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{store: s, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (a *Authenticator) Register(ctx context.Context, email, password string) (*domain.Operator, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return nil, ErrPasswordTooWeak
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	op, err := a.store.CreateOperator(ctx, email, string(hash))
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create operator: %w", err)
	}
	return op, nil
}

// Login verifies credentials and returns a signed token for the operator.
func (a *Authenticator) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	op, err := a.store.FindOperatorByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if op == nil {
		return "", ErrNotOperator
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	return a.Issue(op.Email)
}

// Issue signs a token for email.
func (a *Authenticator) Issue(email string) (string, error) {
	now := a.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the operator email carried by a valid token.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Email == "" {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}

type ctxKey struct{}

func WithOperator(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxKey{}, email)
}

// Operator returns the operator attached to ctx, if any.
func Operator(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(ctxKey{}).(string)
	return email, ok && email != ""
}

// OperatorOrDefault never fails: an anonymous context yields domain.UnknownOperator.
func OperatorOrDefault(ctx context.Context) string {
	if email, ok := Operator(ctx); ok {
		return email
	}
	return domain.UnknownOperator
}
