package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"Taskly/internal/config"
)

// fakeServer имитирует сервер Taskly: вход, записи и распознавание.
type fakeServer struct {
	mu      sync.Mutex
	records map[string]json.RawMessage
	order   []string
	posted  []string
	deleted []string
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{records: map[string]json.RawMessage{}}
	ts := httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(ts.Close)
	return fs, ts
}

func (f *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	switch {
	case path == "/api/user/login" || path == "/api/user/register":
		var cr struct {
			Login    string `json:"login"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&cr)
		switch {
		case path == "/api/user/register" && cr.Login == "taken":
			w.WriteHeader(http.StatusConflict)
		case cr.Password != "secret":
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		default:
			http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: "tok-" + cr.Login})
			w.WriteHeader(http.StatusOK)
		}
	case path == "/api/user/test":
		if _, err := r.Cookie("auth_token"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"result":"authorized"}`))
	case path == "/api/records" && r.Method == http.MethodGet:
		out := make([]json.RawMessage, 0, len(f.order))
		for _, id := range f.order {
			out = append(out, f.records[id])
		}
		_ = json.NewEncoder(w).Encode(out)
	case path == "/api/records" && r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var head struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(body, &head)
		if _, ok := f.records[head.ID]; !ok {
			f.order = append(f.order, head.ID)
		}
		f.records[head.ID] = body
		f.posted = append(f.posted, head.ID)
		_, _ = w.Write(body)
	case strings.HasPrefix(path, "/api/records/") && r.Method == http.MethodDelete:
		id := strings.TrimPrefix(path, "/api/records/")
		f.deleted = append(f.deleted, id)
		if _, ok := f.records[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.records, id)
		for i, v := range f.order {
			if v == id {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
		w.WriteHeader(http.StatusNoContent)
	case path == "/api/transcribe":
		file, _, err := r.FormFile("audio")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"no audio file provided"}`))
			return
		}
		defer file.Close()
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "call the plumber\nabout the sink"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeServer) postedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posted...)
}

// testConfig — конфигурация клиента с каталогами во временной директории.
func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ServerURL:      serverURL,
		ClientDir:      dir,
		ClientDBPath:   filepath.Join(dir, "users"),
		SyncInterval:   time.Hour,
		RemoteTimeout:  2 * time.Second,
		AudioMaxSizeMB: 1,
	}
}

// offlineURL — адрес уже остановленного сервера.
func offlineURL(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()
	return ts.URL
}

// перехват stdout на время теста
func withStdoutCapture(t *testing.T, fn func()) string {
	t.Helper()
	old := Out
	var buf bytes.Buffer
	Out = &buf
	defer func() { Out = old }()
	fn()
	return buf.String()
}

var createdIDRe = regexp.MustCompile(`id:\s+(\S+)`)

// createdID достаёт id из вывода "Created:".
func createdID(t *testing.T, out string) string {
	t.Helper()
	m := createdIDRe.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no id in output: %s", out)
	}
	return m[1]
}
