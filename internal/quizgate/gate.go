// Package quizgate issues and verifies the short-lived capability token
// that proves quiz completion. Verification is stateless; tokens die by
// expiry, there is no revocation list.
package quizgate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const perfectScore = 100

var (
	// ErrImperfectScore rejects every score other than exactly 100.
	ErrImperfectScore = errors.New("quiz score must be 100")
	ErrMissingToken   = errors.New("missing bearer token")
	ErrInvalidToken   = errors.New("invalid or expired token")
)

// Claims is the capability payload: the holder passed the quiz.
type Claims struct {
	Score int `json:"score"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

// ClaimsFromContext returns the verified claims set by Middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

// Gate signs and verifies capability tokens with a shared HS256 secret.
type Gate struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewGate(secret string, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Gate{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// IssueToken mints a capability iff the score is exactly the maximum.
func (g *Gate) IssueToken(score int) (string, error) {
	if score != perfectScore {
		return "", ErrImperfectScore
	}

	now := g.now()
	claims := Claims{
		Score: perfectScore,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

// VerifyToken checks signature, algorithm and expiry.
func (g *Gate) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware enforces the capability on protected routes: 401 when no
// token is presented, 403 when it fails verification.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		claims, err := g.VerifyToken(tokenString)
		if err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the credential after the auth scheme. Only a
// fully absent header counts as "nothing presented"; any other header
// goes through verification and is rejected there.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil
	}
	return parts[1], nil
}
