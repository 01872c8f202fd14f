package fs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Taskly/internal/cli/repo"
)

// AuthFSStore — файловое хранилище токена и контекста пользователя для CLI.
// Dir переопределяет каталог (по умолчанию <UserConfigDir>/Taskly).
type AuthFSStore struct {
	Dir string
}

var (
	_ repo.TokenStore       = AuthFSStore{}
	_ repo.UserContextStore = AuthFSStore{}
)

func (s AuthFSStore) configDir() (string, error) {
	p := s.Dir
	if p == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(dir, "Taskly")
	}
	if err := os.MkdirAll(p, 0o700); err != nil {
		return "", err
	}
	return p, nil
}

func (s AuthFSStore) path(name string) (string, error) {
	dir, err := s.configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (s AuthFSStore) write(name, value string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, []byte(value), 0o600)
}

// read читает файл и обрезает завершающие переводы строки/пробелы.
func (s AuthFSStore) read(name string) (string, error) {
	p, err := s.path(name)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	v := strings.TrimRight(string(b), " \t\r\n")
	if v == "" {
		return "", errors.New("empty " + name + " file")
	}
	return v, nil
}

func (s AuthFSStore) remove(name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Save сохраняет auth‑токен в файл.
func (s AuthFSStore) Save(token string) error {
	return s.write("auth_token", token)
}

// Load читает auth‑токен из файла.
func (s AuthFSStore) Load() (string, error) {
	return s.read("auth_token")
}

// Clear удаляет токен (logout).
func (s AuthFSStore) Clear() error {
	return s.remove("auth_token")
}

// SaveLogin сохраняет логин пользователя в файл.
func (s AuthFSStore) SaveLogin(login string) error {
	login = strings.TrimSpace(login)
	if login == "" {
		return errors.New("empty login")
	}
	return s.write("last_login", login)
}

// LoadLogin читает логин пользователя из файла.
func (s AuthFSStore) LoadLogin() (string, error) {
	return s.read("last_login")
}

func (s AuthFSStore) ClearLogin() error {
	return s.remove("last_login")
}

// SaveLastPullAt сохраняет время последнего успешного pull для указанного пользователя.
func (s AuthFSStore) SaveLastPullAt(login string, at time.Time) error {
	if login == "" {
		return errors.New("empty login")
	}
	// храним per-user, чтобы поддерживать несколько аккаунтов
	return s.write("last_pull_at_"+filepath.Base(login), at.UTC().Format(time.RFC3339))
}

// LoadLastPullAt читает время последнего pull для указанного пользователя.
func (s AuthFSStore) LoadLastPullAt(login string) (time.Time, error) {
	if login == "" {
		return time.Time{}, errors.New("empty login")
	}
	v, err := s.read("last_pull_at_" + filepath.Base(login))
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}
