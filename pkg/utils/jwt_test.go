package utils

import (
	"testing"
	"time"

	"github.com/glsbox/backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func configureJWTForTest(t *testing.T, secret string, expirationHours int) {
	t.Helper()

	originalSecret := append([]byte(nil), jwtSecret...)
	originalExpiration := jwtExpirationHours

	t.Cleanup(func() {
		jwtSecret = originalSecret
		jwtExpirationHours = originalExpiration
	})

	ConfigureJWT(secret, expirationHours)
}

func testUser() *models.User {
	return &models.User{
		BaseModel: models.BaseModel{ID: uuid.New()},
		Username:  "alice",
		Role:      models.UserRoleModerator,
	}
}

func TestGenerateToken(t *testing.T) {
	configureJWTForTest(t, "test-secret", 24)
	user := testUser()

	token, err := GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id %s, got %s", user.ID, claims.UserID)
	}
	if claims.Username != "alice" {
		t.Fatalf("expected username alice, got %q", claims.Username)
	}
	if claims.Role != models.UserRoleModerator {
		t.Fatalf("expected moderator role, got %v", claims.Role)
	}
}

func TestValidateToken(t *testing.T) {
	configureJWTForTest(t, "test-secret", 24)
	user := testUser()

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		token, err := GenerateToken(user)
		if err != nil {
			t.Fatalf("GenerateToken failed: %v", err)
		}

		ConfigureJWT("different-secret", 24)
		if _, err := ValidateToken(token); err == nil {
			t.Fatal("expected validation to fail with a different secret")
		}
		ConfigureJWT("test-secret", 24)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		claims := Claims{
			UserID:   user.ID,
			Username: user.Username,
			Role:     user.Role,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
		if err != nil {
			t.Fatalf("failed signing token: %v", err)
		}
		if _, err := ValidateToken(token); err == nil {
			t.Fatal("expected an expired token to be rejected")
		}
	})

	t.Run("rejects an unsigned token", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: user.ID}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("failed signing token: %v", err)
		}
		if _, err := ValidateToken(token); err == nil {
			t.Fatal("expected an unsigned token to be rejected")
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if _, err := ValidateToken("not-a-token"); err == nil {
			t.Fatal("expected garbage to be rejected")
		}
	})
}
