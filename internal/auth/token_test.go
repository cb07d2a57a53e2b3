package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spec-kit/taskboard/internal/domain"
)

const testHeader = `{"alg":"HS256","typ":"JWT"}`

func rawToken(payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(testHeader)) + "." + enc.EncodeToString([]byte(payload)) + ".c2lnbmF0dXJl"
}

func headerToken(header, payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(header)) + "." + enc.EncodeToString([]byte(payload)) + ".c2lnbmF0dXJl"
}

func TestDecode_MalformedTokens(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"one segment":    "abc",
		"two segments":   "abc.def",
		"four segments":  "a.b.c.d",
		"bad base64":     base64.RawURLEncoding.EncodeToString([]byte(testHeader)) + ".!!!notbase64!!!.sig",
		"non json":       rawToken("not json"),
		"exp not number": rawToken(`{"exp":"tomorrow"}`),
		"bad header":     "bm9wZQ." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1}`)) + ".sig",
		"unknown alg":    headerToken(`{"alg":"XS999"}`, `{"exp":4102444800}`),
		"missing alg":    headerToken(`{"typ":"JWT"}`, `{"exp":4102444800}`),
	}

	now := time.Now()
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(token); !errors.Is(err, ErrTokenDecode) {
				t.Errorf("Decode error = %v, want ErrTokenDecode", err)
			}
			if !IsExpired(token, now) {
				t.Error("IsExpired = false, want true for malformed token")
			}
			if user, ok := ExtractUser(token); ok || user != nil {
				t.Errorf("ExtractUser = (%v, %v), want absent", user, ok)
			}
		})
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"past", fmt.Sprintf(`{"exp":%d}`, now.Add(-time.Minute).Unix()), true},
		{"future", fmt.Sprintf(`{"exp":%d}`, now.Add(time.Hour).Unix()), false},
		{"missing exp", `{"user":{"role":"staff"}}`, true},
		{"null payload", `null`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpired(rawToken(tt.payload), now); got != tt.want {
				t.Errorf("IsExpired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractUser(t *testing.T) {
	token := rawToken(`{"exp":1,"user":{"id":"u-1","email":"a@b.c","name":"Ann","role":"manager"}}`)

	user, ok := ExtractUser(token)
	if !ok {
		t.Fatal("expected user claim")
	}
	if user.ID != "u-1" || user.Role != domain.RoleManager {
		t.Errorf("user = %+v", user)
	}

	if _, ok := ExtractUser(rawToken(`{"exp":1}`)); ok {
		t.Error("expected absent user when claim missing")
	}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour, 2*time.Hour)
	user := domain.User{ID: "u-1", Email: "s@example.com", Role: domain.RoleStaff, PasswordHash: "hash"}

	token, exp, err := tm.GenerateToken(user, domain.TokenKindAccess)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(exp) > time.Hour || time.Until(exp) < 59*time.Minute {
		t.Errorf("unexpected expiry %v", exp)
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.User == nil || claims.User.ID != "u-1" || claims.Kind != domain.TokenKindAccess {
		t.Errorf("claims = %+v", claims)
	}
	if claims.User.PasswordHash != "" {
		t.Error("password hash leaked into claims")
	}

	if IsExpired(token, time.Now()) {
		t.Error("fresh token reported expired")
	}

	refresh, refreshExp, err := tm.GenerateToken(user, domain.TokenKindRefresh)
	if err != nil {
		t.Fatalf("GenerateToken refresh: %v", err)
	}
	if !refreshExp.After(exp) {
		t.Error("refresh token should outlive access token")
	}
	if c, _ := Decode(refresh); c.Kind != domain.TokenKindRefresh {
		t.Errorf("kind = %q", c.Kind)
	}
}

func TestTokenManager_ParseRejectsForeignSignature(t *testing.T) {
	issuer := NewTokenManager("one", time.Hour, time.Hour)
	verifier := NewTokenManager("two", time.Hour, time.Hour)

	token, _, err := issuer.GenerateToken(domain.User{ID: "u", Role: domain.RoleStaff}, domain.TokenKindAccess)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatal("expected signature error")
	}
	if _, err := Decode(token); err != nil {
		t.Fatalf("unverified decode should still succeed: %v", err)
	}
}

func TestTokenManager_ParseRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour, time.Hour)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := tm.GenerateToken(domain.User{ID: "u", Role: domain.RoleStaff}, domain.TokenKindAccess)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	tm.now = time.Now
	if _, err := tm.ParseToken(token); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := ComparePassword(hash, "s3cret"); err != nil {
		t.Errorf("ComparePassword: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Error("expected mismatch")
	}
}
