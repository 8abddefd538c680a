package quizgate

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueTokenStrictEqualityGate(t *testing.T) {
	gate := NewGate("test-secret", 2*time.Minute)

	for _, score := range []int{0, 50, 99, 101, -1, 1000} {
		_, err := gate.IssueToken(score)
		require.ErrorIs(t, err, ErrImperfectScore, "score %d must not yield a token", score)
	}

	token, err := gate.IssueToken(100)
	require.NoError(t, err)
	require.NotEmpty(t, token)
}

func TestVerifyTokenExpiryBoundary(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	gate := NewGate("test-secret", 2*time.Minute)
	gate.now = func() time.Time { return issuedAt }

	token, err := gate.IssueToken(100)
	require.NoError(t, err)

	gate.now = func() time.Time { return issuedAt.Add(119 * time.Second) }
	claims, err := gate.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, 100, claims.Score)

	gate.now = func() time.Time { return issuedAt.Add(121 * time.Second) }
	_, err = gate.VerifyToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewGate("issuer-secret", time.Minute)
	verifier := NewGate("other-secret", time.Minute)

	token, err := issuer.IssueToken(100)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareStatusCodes(t *testing.T) {
	gate := NewGate("test-secret", time.Minute)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, 100, claims.Score)
		w.WriteHeader(http.StatusOK)
	})
	handler := gate.Middleware(next)

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mint-nft", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/mint-nft", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("scheme without credential", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/mint-nft", nil)
		req.Header.Set("Authorization", "Bearer")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/mint-nft", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := gate.IssueToken(100)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/mint-nft", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}
