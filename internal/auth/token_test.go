package auth

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"ontrack-driver/internal/apperr"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestFromToken_DriverIDClaim(t *testing.T) {
	t.Parallel()

	tok := signed(t, jwt.MapClaims{"driver_id": "d-42", "name": "Sam"})

	id, err := FromToken(tok)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if id.DriverID != "d-42" || id.Name != "Sam" {
		t.Fatalf("unexpected identity: %#v", id)
	}
}

func TestFromToken_FallsBackToSub(t *testing.T) {
	t.Parallel()

	tok := signed(t, jwt.MapClaims{"sub": "d-7"})

	id, err := FromToken(tok)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if id.DriverID != "d-7" {
		t.Fatalf("unexpected identity: %#v", id)
	}
}

func TestFromToken_StripsBearerPrefix(t *testing.T) {
	t.Parallel()

	tok := signed(t, jwt.MapClaims{"driver_id": "d-1"})

	id, err := FromToken("Bearer " + tok)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if id.DriverID != "d-1" {
		t.Fatalf("unexpected identity: %#v", id)
	}
}

func TestFromToken_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "no driver id", token: signed(t, jwt.MapClaims{"email": "x@y.z"})},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := FromToken(tc.token); !errors.Is(err, apperr.Invalid) {
				t.Fatalf("expected Invalid, got %v", err)
			}
		})
	}
}
