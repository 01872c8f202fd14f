// Package api — HTTP-клиент сервера Taskly: авторизация, записи, транскрибация.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"Taskly/internal/cli/repo"
)

// AuthCookie — имя cookie с JWT.
const AuthCookie = "auth_token"

// StatusError — неожиданный HTTP-статус ответа сервера.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

// ErrReadOnlyToken — попытка перезаписать токен, закреплённый за сессией.
var ErrReadOnlyToken = errors.New("session token is read-only")

// SessionToken — токен, закреплённый за сессией пользователя при входе.
// Файл токена он не читает, поэтому login другого пользователя в соседнем
// процессе не меняет учётную запись, под которой синхронизируется сессия.
type SessionToken string

func (t SessionToken) Load() (string, error) {
	if t == "" {
		return "", errors.New("no session token")
	}
	return string(t), nil
}

func (t SessionToken) Save(string) error { return ErrReadOnlyToken }

func (t SessionToken) Clear() error { return nil }

// Client ходит на сервер, подставляя сохранённый токен в cookie.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  repo.TokenStore
}

// New создаёт клиента. timeout ограничивает каждый запрос целиком, 0 — без ограничения.
func New(baseURL string, timeout time.Duration, tokens repo.TokenStore) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.tokens != nil {
		if token, err := c.tokens.Load(); err == nil && token != "" {
			req.AddCookie(&http.Cookie{Name: AuthCookie, Value: token})
		}
	}
	return req, nil
}

// do выполняет запрос и читает тело целиком (с обрезкой краевых пробелов).
func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, err
	}
	return resp, bytes.TrimSpace(body), nil
}

// PostJSON отправляет JSON POST-запрос.
func (c *Client) PostJSON(ctx context.Context, path string, payload any) (*http.Response, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(b))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// GetJSON выполняет GET-запрос, ожидая JSON.
func (c *Client) GetJSON(ctx context.Context, path string) (*http.Response, []byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// PersistAuthFromResponse извлекает auth cookie из ответа и сохраняет его в хранилище токенов.
func (c *Client) PersistAuthFromResponse(resp *http.Response) error {
	for _, ck := range resp.Cookies() {
		if ck.Name == AuthCookie && ck.Value != "" {
			return c.tokens.Save(ck.Value)
		}
	}
	return fmt.Errorf("no auth cookie in response")
}

type credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register регистрирует пользователя и сохраняет выданный токен.
func (c *Client) Register(ctx context.Context, login, password string) error {
	return c.authenticate(ctx, "/api/user/register", login, password)
}

// Login авторизует пользователя и сохраняет выданный токен.
func (c *Client) Login(ctx context.Context, login, password string) error {
	return c.authenticate(ctx, "/api/user/login", login, password)
}

func (c *Client) authenticate(ctx context.Context, path, login, password string) error {
	resp, body, err := c.PostJSON(ctx, path, credentials{Login: login, Password: password})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return c.PersistAuthFromResponse(resp)
}

// CheckAuth проверяет на сервере, что сохранённый токен действителен.
func (c *Client) CheckAuth(ctx context.Context) (string, error) {
	resp, body, err := c.PostJSON(ctx, "/api/user/test", struct{}{})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	var dr struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &dr); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return dr.Result, nil
}
