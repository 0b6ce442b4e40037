package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/tessro/weradio/internal/weradio/client"
)

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if store.Exists() || store.IsAuthenticated() {
		t.Fatal("new store should be signed out")
	}
	if store.Token() != "" {
		t.Errorf("Token() = %q, want empty", store.Token())
	}

	if err := store.Save(&Credential{Token: "opaque.jwt", Username: "mario"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if reopened.Token() != "opaque.jwt" {
		t.Errorf("Token() = %q, want opaque.jwt", reopened.Token())
	}

	if err := reopened.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if reopened.IsAuthenticated() || reopened.Exists() {
		t.Error("store still authenticated after Delete()")
	}
	// Deleting twice is fine.
	if err := reopened.Delete(); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path); err == nil {
		t.Error("NewStore() error = nil for corrupt file")
	}
}

func TestLoginAndStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(client.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "token": "t1", "user": {"username": "mario", "role": "user"}}`)
	})
	mux.HandleFunc(client.PathVerify, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"valid": false, "error": "Invalid or expired token"}`)
			return
		}
		_, _ = io.WriteString(w, `{"valid": true, "user": {"username": "mario"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store, err := NewStore(filepath.Join(t.TempDir(), "credentials.json"))
	if err != nil {
		t.Fatal(err)
	}
	api := client.New(srv.URL, store, zap.NewNop())

	res, err := Status(context.Background(), api, store)
	if err != nil || res.Valid {
		t.Fatalf("Status() before login = %+v, %v", res, err)
	}

	cred, err := Login(context.Background(), api, store, "mario", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if cred.Role != "user" || store.Token() != "t1" {
		t.Errorf("credential = %+v", cred)
	}

	res, err = Status(context.Background(), api, store)
	if err != nil || !res.Valid {
		t.Errorf("Status() after login = %+v, %v", res, err)
	}

	if err := store.Save(&Credential{Token: "stale"}); err != nil {
		t.Fatal(err)
	}
	res, err = Status(context.Background(), api, store)
	if err != nil || res.Valid || res.Error != "Invalid or expired token" {
		t.Errorf("Status() with stale token = %+v, %v", res, err)
	}
}
