package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func TestGenerateAndParseAccessToken(t *testing.T) {
	token, err := GenerateAccessToken("ci-runner", RoleOperator, testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateAccessToken() returned empty token")
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "ci-runner" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "ci-runner")
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %q, want %q", claims.Role, RoleOperator)
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}

	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != 15*time.Minute {
		t.Errorf("token lifetime = %v, want 15m", ttl)
	}
}

func TestGenerateAccessToken_DefaultTTL(t *testing.T) {
	token, err := GenerateAccessToken("x", RoleViewer, testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time); ttl != time.Hour {
		t.Errorf("token lifetime = %v, want 1h", ttl)
	}
}

func TestGenerateAccessToken_Rejects(t *testing.T) {
	if _, err := GenerateAccessToken("x", RoleViewer, "", 15); !errors.Is(err, ErrNoSecret) {
		t.Errorf("GenerateAccessToken(no secret) error = %v, want ErrNoSecret", err)
	}
	if _, err := GenerateAccessToken("x", Role("root"), testSecret, 15); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("GenerateAccessToken(bad role) error = %v, want ErrInvalidRole", err)
	}
}

func TestParseToken_Invalid(t *testing.T) {
	good, err := GenerateAccessToken("x", RoleViewer, testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	sign := func(c Claims, method jwt.SigningMethod) string {
		s, err := jwt.NewWithClaims(method, c).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("SignedString() error = %v", err)
		}
		return s
	}
	now := time.Now()
	valid := jwt.RegisteredClaims{
		Subject:   "x",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	noSubject := valid
	noSubject.Subject = ""
	noExpiry := valid
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"garbage", "not-a-valid-jwt", testSecret},
		{"wrong secret", good, "another-secret-key-at-least-32-chars"},
		{"expired", sign(Claims{RegisteredClaims: expired, Role: RoleViewer}, jwt.SigningMethodHS256), testSecret},
		{"missing expiry", sign(Claims{RegisteredClaims: noExpiry, Role: RoleViewer}, jwt.SigningMethodHS256), testSecret},
		{"missing subject", sign(Claims{RegisteredClaims: noSubject, Role: RoleViewer}, jwt.SigningMethodHS256), testSecret},
		{"unknown role", sign(Claims{RegisteredClaims: valid, Role: "owner"}, jwt.SigningMethodHS256), testSecret},
		{"wrong algorithm", sign(Claims{RegisteredClaims: valid, Role: RoleViewer}, jwt.SigningMethodHS512), testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.secret)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}
