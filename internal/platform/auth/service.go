package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrNotFound           = errors.New("not found")
)

type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Me(ctx context.Context, id int64) (*Account, error)
}

type Service struct {
	store  AccountStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(store AccountStore, secret []byte, ttl time.Duration) *Service {
	return &Service{store: store, secret: secret, ttl: ttl, now: time.Now}
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
}

func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	acct, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrInvalidCredentials
	}
	if !acct.IsActive {
		return nil, ErrAccountDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	exp := now.Add(s.ttl)
	token, err := IssueToken(s.secret, acct.ID, acct.Role, exp)
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchLogin(ctx, acct.ID, now); err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: exp,
		UserID:    acct.ID,
		Username:  acct.Username,
		FullName:  acct.FullName,
		Role:      acct.Role,
	}, nil
}

func (s *Service) Me(ctx context.Context, id int64) (*Account, error) {
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrNotFound
	}
	return acct, nil
}

// IssueToken signs an HS256 token carrying sub (user id) and role.
func IssueToken(secret []byte, userID int64, role string, exp time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": role,
		"exp":  exp.Unix(),
	})
	return token.SignedString(secret)
}

// HashPassword is shared with user administration.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
