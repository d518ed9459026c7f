package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func fixedNow() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("s3cret")
	a.now = fixedNow
	tok, err := a.IssueJWT(User{ID: "u-1", Email: "a@b.c", Name: "Kim", Provider: "google"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	c, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	u := c.User()
	if u.ID != "u-1" || u.Name != "Kim" || u.Provider != "google" {
		t.Fatalf("user = %+v", u)
	}

	other := NewAuthService("other")
	other.now = fixedNow
	if _, err := other.Parse(tok); err == nil {
		t.Fatalf("wrong secret should fail")
	}

	later := NewAuthService("s3cret")
	later.now = func() time.Time { return fixedNow().Add(2 * time.Hour) }
	if _, err := later.Parse(tok); err == nil {
		t.Fatalf("expired token should fail")
	}
}

func TestParseUnverified(t *testing.T) {
	signer := NewAuthService("upstream")
	signer.now = fixedNow
	tok, err := signer.IssueJWT(User{ID: "u-2"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	a := NewAuthService("")
	a.now = fixedNow
	c, err := a.Parse(tok)
	if err != nil || c.User().ID != "u-2" {
		t.Fatalf("Parse = %+v, %v", c, err)
	}

	a.now = func() time.Time { return fixedNow().Add(2 * time.Hour) }
	if _, err := a.Parse(tok); err != jwt.ErrTokenExpired {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestClaimsUserFallbacks(t *testing.T) {
	c := &Claims{ID: "legacy", Nickname: "kakao-nick", Provider: "kakao"}
	u := c.User()
	if u.ID != "legacy" || u.Name != "kakao-nick" {
		t.Fatalf("user = %+v", u)
	}
}

func TestOptionalUser(t *testing.T) {
	a := NewAuthService("s3cret")
	a.now = fixedNow
	tok, _ := a.IssueJWT(User{ID: "u-3"}, time.Hour)

	var gotUser User
	var gotOK bool
	var gotTok string
	h := OptionalUser(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotOK = UserFromContext(r.Context())
		gotTok = TokenFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !gotOK || gotUser.ID != "u-3" || gotTok != tok {
		t.Fatalf("user=%+v ok=%v tok=%q", gotUser, gotOK, gotTok)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if gotOK || rec.Code != http.StatusOK {
		t.Fatalf("bad token should continue anonymously, ok=%v code=%d", gotOK, rec.Code)
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	a := NewAuthService("s3cret")
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", rec.Code)
	}
}
