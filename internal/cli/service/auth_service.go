package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"Taskly/internal/cli/api"
	"Taskly/internal/cli/repo"
)

var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrLoginTaken         = errors.New("login already in use")
	ErrNotLoggedIn        = errors.New("not logged in")
)

// AuthService описывает юзкейс-уровень аутентификации для CLI.
type AuthService interface {
	// Register регистрирует пользователя и делает его текущим.
	Register(ctx context.Context, login, password string) error

	// Login логирование пользователя.
	Login(ctx context.Context, login, password string) error

	// Logout очищает локальный контекст аутентификации.
	Logout() error

	// CurrentUser возвращает логин текущего пользователя, если он установлен.
	CurrentUser() (string, error)
}

// Authenticator — серверная часть входа (реализуется api.Client).
type Authenticator interface {
	Register(ctx context.Context, login, password string) error
	Login(ctx context.Context, login, password string) error
}

type authService struct {
	remote Authenticator
	tokens repo.TokenStore
	users  repo.UserContextStore
}

// NewAuthService создаёт AuthService поверх сервера и локальных хранилищ токена и логина.
func NewAuthService(remote Authenticator, tokens repo.TokenStore, users repo.UserContextStore) AuthService {
	return &authService{remote: remote, tokens: tokens, users: users}
}

func (s *authService) Register(ctx context.Context, login, password string) error {
	if err := checkCredentials(login, password); err != nil {
		return err
	}
	if err := s.remote.Register(ctx, login, password); err != nil {
		return mapAuthError(err)
	}
	return s.users.SaveLogin(login)
}

func (s *authService) Login(ctx context.Context, login, password string) error {
	if err := checkCredentials(login, password); err != nil {
		return err
	}
	if err := s.remote.Login(ctx, login, password); err != nil {
		return mapAuthError(err)
	}
	return s.users.SaveLogin(login)
}

func (s *authService) Logout() error {
	return errors.Join(s.tokens.Clear(), s.users.ClearLogin())
}

func (s *authService) CurrentUser() (string, error) {
	login, err := s.users.LoadLogin()
	if err != nil {
		return "", ErrNotLoggedIn
	}
	if _, err := s.tokens.Load(); err != nil {
		return "", ErrNotLoggedIn
	}
	return login, nil
}

func checkCredentials(login, password string) error {
	if strings.TrimSpace(login) == "" || password == "" {
		return errors.New("login and password must not be empty")
	}
	return nil
}

func mapAuthError(err error) error {
	var se *api.StatusError
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code {
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	case http.StatusConflict:
		return ErrLoginTaken
	default:
		return fmt.Errorf("server error: %s", strings.TrimSpace(se.Body))
	}
}
