package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func signHS256(t *testing.T, secret, header, payload string) string {
	t.Helper()
	h := base64.RawURLEncoding.EncodeToString([]byte(header))
	p := base64.RawURLEncoding.EncodeToString([]byte(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(h + "." + p))
	return h + "." + p + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestDevModeToken(t *testing.T) {
	v := &Verifier{Mode: "dev"}
	pr, err := v.Verify("t_acme:planner")
	if err != nil {
		t.Fatal(err)
	}
	if pr.Tenant != "t_acme" || pr.Role != "planner" {
		t.Fatalf("principal: %+v", pr)
	}
	if _, err := v.Verify("garbage"); err == nil {
		t.Fatal("malformed dev token must fail")
	}
}

func TestHMACMode(t *testing.T) {
	v := &Verifier{Mode: "hmac", HMACSecret: []byte("sekrit"), TenantClaim: "tenant", RoleClaim: "role"}
	tok := signHS256(t, "sekrit", `{"alg":"HS256","typ":"JWT"}`, `{"tenant":"t_acme","role":"Admin"}`)
	pr, err := v.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if pr.Tenant != "t_acme" || pr.Role != "admin" {
		t.Fatalf("principal: %+v", pr)
	}
}

func TestHMACRejectsBadSignature(t *testing.T) {
	v := &Verifier{Mode: "hmac", HMACSecret: []byte("sekrit"), TenantClaim: "tenant", RoleClaim: "role"}
	tok := signHS256(t, "wrong-secret", `{"alg":"HS256","typ":"JWT"}`, `{"tenant":"t_acme","role":"admin"}`)
	if _, err := v.Verify(tok); err == nil {
		t.Fatal("bad signature must fail")
	}
}

func TestHMACRejectsMissingTenant(t *testing.T) {
	v := &Verifier{Mode: "hmac", HMACSecret: []byte("sekrit"), TenantClaim: "tenant", RoleClaim: "role"}
	tok := signHS256(t, "sekrit", `{"alg":"HS256","typ":"JWT"}`, `{"role":"admin"}`)
	if _, err := v.Verify(tok); err == nil {
		t.Fatal("missing tenant claim must fail")
	}
}
