package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService reads the login tokens issued by the exam API. With a secret it
// verifies the HS256 signature; without one it only decodes the payload and
// checks expiry, leaving verification to the upstream API.
type AuthService struct {
	hmac []byte
	now  func() time.Time
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{hmac: []byte(secret), now: time.Now}
}

type Claims struct {
	ID           string `json:"id,omitempty"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	Nickname     string `json:"nickname,omitempty"` // kakao
	Provider     string `json:"provider,omitempty"` // "google" or "kakao"
	ProfileImage string `json:"profileImage,omitempty"`
	jwt.RegisteredClaims
}

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	Provider     string `json:"provider,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// User maps the claims to a user. The id comes from sub, falling back to id.
func (c *Claims) User() User {
	id := c.Subject
	if id == "" {
		id = c.ID
	}
	name := c.Name
	if name == "" {
		name = c.Nickname
	}
	return User{ID: id, Email: c.Email, Name: name, Provider: c.Provider, ProfileImage: c.ProfileImage}
}

// IssueJWT signs a token for u. Only used by local tooling and tests; real
// tokens come from the exam API.
func (a *AuthService) IssueJWT(u User, ttl time.Duration) (string, error) {
	if len(a.hmac) == 0 {
		return "", errors.New("auth: no signing secret")
	}
	now := a.now()
	claims := &Claims{
		Email:    u.Email,
		Name:     u.Name,
		Provider: u.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

// Parse decodes tokenStr. A token without exp counts as expired.
func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	if len(a.hmac) == 0 {
		c := &Claims{}
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, c); err != nil {
			return nil, err
		}
		if c.ExpiresAt == nil || c.ExpiresAt.Time.Before(a.now()) {
			return nil, jwt.ErrTokenExpired
		}
		return c, nil
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: invalid token")
	}
	c, _ := token.Claims.(*Claims)
	return c, nil
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// OptionalUser attaches the user and raw token when a valid bearer token is
// present. Missing, malformed and expired tokens all continue anonymously.
func OptionalUser(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearer(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}
			c, err := a.Parse(tok)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithUser(r.Context(), c.User())
			ctx = WithToken(ctx, tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// JWTMiddleware rejects requests without a valid bearer token.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearer(r)
			if tok == "" {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := a.Parse(tok)
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := WithUser(r.Context(), c.User())
			ctx = WithToken(ctx, tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
