package auth

import (
	"errors"
	"testing"

	"github.com/solenko/tutord/internal/domain"
	"github.com/solenko/tutord/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, nil), store
}

func TestSignup_IssuesUsableToken(t *testing.T) {
	svc, _ := newTestService(t)

	user, token, err := svc.Signup("alice", "s3cret", "alice@example.com")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.ID == "" || token == "" {
		t.Fatalf("Signup returned empty user/token: %+v %q", user, token)
	}
	if user.PasswordHash == "s3cret" {
		t.Errorf("password stored in the clear")
	}

	got, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Authenticate = %+v, want alice", got)
	}
}

func TestSignup_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "pw"},
		{"empty password", "alice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Signup(tt.username, tt.password, "")
			if domain.Code(err) != domain.CodeValidation {
				t.Errorf("Signup(%q, %q) code = %q, want validation", tt.username, tt.password, domain.Code(err))
			}
		})
	}
}

func TestSignup_DuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)

	if _, _, err := svc.Signup("alice", "pw", ""); err != nil {
		t.Fatalf("first Signup: %v", err)
	}
	_, _, err := svc.Signup("alice", "other", "")
	if domain.Code(err) != domain.CodeAlreadyExists {
		t.Errorf("duplicate signup code = %q, want already_exists", domain.Code(err))
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	if _, _, err := svc.Signup("alice", "s3cret", ""); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	t.Run("correct credentials", func(t *testing.T) {
		user, token, err := svc.Login("alice", "s3cret")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if user.Username != "alice" || token == "" {
			t.Errorf("Login = %+v %q", user, token)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login("alice", "wrong")
		if domain.Code(err) != domain.CodeValidation {
			t.Errorf("wrong password code = %q, want validation", domain.Code(err))
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, err := svc.Login("nobody", "pw")
		if domain.Code(err) != domain.CodeValidation {
			t.Errorf("unknown user code = %q, want validation", domain.Code(err))
		}
	})
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	svc, _ := newTestService(t)

	for _, token := range []string{"", "deadbeef"} {
		if _, err := svc.Authenticate(token); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("Authenticate(%q) = %v, want unauthorized", token, err)
		}
	}
}

func TestTokens_IndependentPerLogin(t *testing.T) {
	svc, _ := newTestService(t)
	_, t1, err := svc.Signup("alice", "pw", "")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	_, t2, err := svc.Login("alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if t1 == t2 {
		t.Fatalf("expected distinct tokens per issuance")
	}

	// Both remain valid.
	for _, token := range []string{t1, t2} {
		if _, err := svc.Authenticate(token); err != nil {
			t.Errorf("Authenticate(%q...) = %v", token[:8], err)
		}
	}
}
