package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/CrowderSoup/microjobs/httpmw"
	"github.com/CrowderSoup/microjobs/services"
)

const (
	sessionCookie = "mj_session"
	clientCookie  = "mj_client"
)

type AuthMiddleware struct {
	authService *services.AuthService
}

func NewAuthMiddleware(authService *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Auth requires a Bearer token. It is used by the tasks API.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeErr(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		// Extract token from Bearer format
		authParts := strings.Split(authHeader, " ")
		if len(authParts) != 2 || authParts[0] != "Bearer" {
			writeErr(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		tokenString := authParts[1]

		email, err := m.authService.VerifyJWT(tokenString)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "invalid token")
			return
		}

		httpmw.SetUser(r.Context(), email)
		ctx := services.WithSession(r.Context(), email, tokenString)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Session requires the session cookie and sends anonymous visitors to the
// login page. It is used by the dashboard.
func (m *AuthMiddleware) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		email, err := m.authService.VerifyJWT(cookie.Value)
		if err != nil {
			clearSessionCookie(w, r)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		httpmw.SetUser(r.Context(), email)
		ctx := services.WithSession(r.Context(), email, cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientID makes sure every browser carries a stable identifier that
// survives logout, so notifications queued during logout still show.
func ClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(clientCookie); err == nil && validClientID(c.Value) {
			id = c.Value
		} else {
			id = newClientID()
			http.SetCookie(w, &http.Cookie{
				Name:     clientCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		}
		httpmw.SetClient(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(services.WithClientID(r.Context(), id)))
	})
}

func newClientID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:32]
	}
	return hex.EncodeToString(b[:])
}

func validClientID(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(services.TokenLifetime.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
