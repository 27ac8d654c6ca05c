package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/outpost-sh/outpost/internal/instance"
	"github.com/outpost-sh/outpost/internal/store"
)

func setupTestGate(t *testing.T) (*Gate, store.Store, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "outpost_auth_test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()

	db, err := store.InitDB(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to initialize database: %v", err)
	}

	st := store.NewSQLiteStore(db)
	gate := NewGate(st, []byte("test-secret"))

	cleanup := func() {
		db.Close()
		os.Remove(tmpFile.Name())
	}
	return gate, st, cleanup
}

func createTestUser(t *testing.T, st store.Store, u store.User, password string) *store.User {
	t.Helper()

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	u.PasswordHash = hash
	u.CreatedAt = time.Now()
	if err := st.CreateUser(&u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return &u
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "hunter2" {
		t.Error("HashPassword() returned the plaintext")
	}
	if !CheckPassword("hunter2", hash) {
		t.Error("CheckPassword() rejected the correct password")
	}
	if CheckPassword("wrong", hash) {
		t.Error("CheckPassword() accepted the wrong password")
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	gate, st, cleanup := setupTestGate(t)
	defer cleanup()

	createTestUser(t, st, store.User{ID: "u-1", Username: "alice", Role: store.RoleUser, CanCreate: true}, "hunter2")

	token, err := gate.Login("alice", "hunter2")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	requester, err := gate.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if requester.UID != "u-1" || requester.Username != "alice" {
		t.Errorf("Authenticate() = %+v, want uid u-1 / alice", requester)
	}
	if !requester.CanCreate {
		t.Error("Authenticate() lost CanCreate capability")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	gate, st, cleanup := setupTestGate(t)
	defer cleanup()

	createTestUser(t, st, store.User{ID: "u-1", Username: "alice", Role: store.RoleUser}, "hunter2")

	if _, err := gate.Login("alice", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := gate.Login("nobody", "hunter2"); err != ErrInvalidCredentials {
		t.Errorf("Login() unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateGarbageToken(t *testing.T) {
	gate, _, cleanup := setupTestGate(t)
	defer cleanup()

	if _, err := gate.Authenticate("not.a.token"); err != ErrInvalidToken {
		t.Errorf("Authenticate() error = %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticateDeletedUser(t *testing.T) {
	gate, st, cleanup := setupTestGate(t)
	defer cleanup()

	user := createTestUser(t, st, store.User{ID: "u-1", Username: "alice", Role: store.RoleUser}, "hunter2")
	token, err := gate.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	if err := st.DeleteUser("u-1"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	if _, err := gate.Authenticate(token); err != ErrInvalidToken {
		t.Errorf("Authenticate() after user deletion error = %v, want ErrInvalidToken", err)
	}
}

func TestRequesterCan(t *testing.T) {
	grantedID := instance.NewID()
	otherID := instance.NewID()

	tests := []struct {
		name      string
		requester Requester
		action    Action
		want      bool
	}{
		{
			name:      "owner can do anything",
			requester: Requester{Role: store.RoleOwner},
			action:    DeleteInstance(),
			want:      true,
		},
		{
			name:      "admin can manage users",
			requester: Requester{Role: store.RoleAdmin},
			action:    ManageUsers(),
			want:      true,
		},
		{
			name:      "user without grant cannot view",
			requester: Requester{Role: store.RoleUser},
			action:    ViewInstance(otherID),
			want:      false,
		},
		{
			name: "user with grant can view that instance",
			requester: Requester{
				Role:     store.RoleUser,
				viewable: map[instance.ID]struct{}{grantedID: {}},
			},
			action: ViewInstance(grantedID),
			want:   true,
		},
		{
			name: "grant does not extend to other instances",
			requester: Requester{
				Role:     store.RoleUser,
				viewable: map[instance.ID]struct{}{grantedID: {}},
			},
			action: ViewInstance(otherID),
			want:   false,
		},
		{
			name:      "view-all user can view anything",
			requester: Requester{Role: store.RoleUser, ViewAll: true},
			action:    ViewInstance(otherID),
			want:      true,
		},
		{
			name:      "create requires the create capability",
			requester: Requester{Role: store.RoleUser},
			action:    CreateInstance(),
			want:      false,
		},
		{
			name:      "create capability grants create",
			requester: Requester{Role: store.RoleUser, CanCreate: true},
			action:    CreateInstance(),
			want:      true,
		},
		{
			name:      "delete requires the delete capability",
			requester: Requester{Role: store.RoleUser, CanCreate: true},
			action:    DeleteInstance(),
			want:      false,
		},
		{
			name:      "plain user cannot manage users",
			requester: Requester{Role: store.RoleUser, CanCreate: true, CanDelete: true, ViewAll: true},
			action:    ManageUsers(),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.requester.Can(tt.action); got != tt.want {
				t.Errorf("Can(%v) = %v, want %v", tt.action.Kind, got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	gate, st, cleanup := setupTestGate(t)
	defer cleanup()

	user := createTestUser(t, st, store.User{ID: "u-1", Username: "alice", Role: store.RoleUser}, "hunter2")
	token, err := gate.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	var gotRequester *Requester
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequester = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid bearer token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Basic xyz", http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotRequester = nil
			req := httptest.NewRequest("GET", "/instance/list", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && (gotRequester == nil || gotRequester.UID != "u-1") {
				t.Errorf("requester in context = %+v, want uid u-1", gotRequester)
			}
		})
	}
}
