package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("staff-7", RoleStaff, "rollcall", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := Parse(pair.AccessToken, "secret", "rollcall")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "staff-7" || claims.Role != RoleStaff {
		t.Errorf("claims: %+v", claims)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, _ := Issue("staff-7", RoleStaff, "rollcall", "secret", time.Minute, time.Hour)
	if _, err := Parse(pair.AccessToken, "other-secret", "rollcall"); err == nil {
		t.Fatal("token accepted with wrong key")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	pair, _ := Issue("staff-7", RoleStaff, "other-app", "secret", time.Minute, time.Hour)
	if _, err := Parse(pair.AccessToken, "secret", "rollcall"); err == nil {
		t.Fatal("token accepted with wrong issuer")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	pair, _ := Issue("staff-7", RoleStaff, "rollcall", "secret", -time.Minute, time.Hour)
	if _, err := Parse(pair.AccessToken, "secret", "rollcall"); err == nil {
		t.Fatal("expired token accepted")
	}
}
