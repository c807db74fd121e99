package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/CrowderSoup/microjobs/dashboard"
	"github.com/CrowderSoup/microjobs/services"
)

// roleInvalidator forgets a cached role.
type roleInvalidator interface {
	Invalidate(email string)
}

// AuthHandler handles authentication-related endpoints
type AuthHandler struct {
	authService *services.AuthService
	notes       dashboard.Notifier
	store       *dashboard.Store
	roles       roleInvalidator
	renderer    *Renderer
}

func NewAuthHandler(authService *services.AuthService, notes dashboard.Notifier, store *dashboard.Store, roles roleInvalidator, renderer *Renderer) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		notes:       notes,
		store:       store,
		roles:       roles,
		renderer:    renderer,
	}
}

type loginPage struct {
	Email string
	Error string
	Sent  bool
	Link  string
}

// notices pulls the pending flash messages of the browser.
func notices(ctx context.Context, n dashboard.Notifier) []services.Notice {
	if q, ok := n.(*services.Notifications); ok {
		return q.Drain(services.ClientIDFromContext(ctx))
	}
	return nil
}

// LoginPage shows the sign-in form. Signed-in users go straight to the
// dashboard.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := h.authService.VerifyJWT(c.Value); err == nil {
			http.Redirect(w, r, dashboard.HomePath, http.StatusSeeOther)
			return
		}
	}
	h.renderer.Render(w, http.StatusOK, "login", pageData{
		Title:   "Sign in",
		Path:    r.URL.RequestURI(),
		Notices: notices(r.Context(), h.notes),
		Body:    loginPage{},
	})
}

// Login handles the login request (sending a magic link)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))

	// Validate email
	if email == "" || !strings.Contains(email, "@") {
		h.renderer.Render(w, http.StatusBadRequest, "login", pageData{
			Title: "Sign in",
			Path:  r.URL.RequestURI(),
			Body:  loginPage{Email: email, Error: "Invalid email address"},
		})
		return
	}

	// Get base URL from request or use default
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	// Generate magic link
	magicLink, err := h.authService.GenerateMagicLink(email, baseURL)
	if err != nil {
		log.Printf("Error generating magic link: %v", err)
		h.renderer.Render(w, http.StatusInternalServerError, "login", pageData{
			Title: "Sign in",
			Path:  r.URL.RequestURI(),
			Body:  loginPage{Email: email, Error: "Failed to generate login link"},
		})
		return
	}

	page := loginPage{Email: email, Sent: true}
	if !h.authService.MailConfigured() {
		// Without SMTP the link is shown on the page for development
		page.Link = magicLink
	}
	h.renderer.Render(w, http.StatusOK, "login", pageData{Title: "Sign in", Path: r.URL.RequestURI(), Body: page})
}

// HandleMagicLink processes a magic link token and starts a session
func (h *AuthHandler) HandleMagicLink(w http.ResponseWriter, r *http.Request) {
	// Get token from query
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}

	// Verify token
	email, err := h.authService.VerifyMagicLinkToken(token)
	if err != nil {
		h.renderer.Render(w, http.StatusBadRequest, "login", pageData{
			Title: "Sign in",
			Path:  r.URL.RequestURI(),
			Body:  loginPage{Error: "Invalid or expired link. Request a new one."},
		})
		return
	}

	// Create JWT token
	jwtToken, err := h.authService.CreateJWT(email)
	if err != nil {
		log.Printf("Error creating JWT: %v", err)
		http.Error(w, "Authentication error", http.StatusInternalServerError)
		return
	}

	setSessionCookie(w, r, jwtToken)
	http.Redirect(w, r, dashboard.HomePath, http.StatusSeeOther)
}

// Logout ends the session. The success notice is queued on the browser, so
// it shows on the login page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email, _ := services.EmailFromContext(ctx)

	dashboard.Logout(ctx, dashboard.SessionEnderFunc(func(ctx context.Context) {
		clearSessionCookie(w, r)
		h.store.Forget(sessionKey(ctx))
		h.roles.Invalidate(email)
	}), h.notes)

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// VerifyToken checks if a JWT token is valid
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
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

	// Verify token
	email, err := h.authService.VerifyJWT(authParts[1])
	if err != nil {
		writeErr(w, http.StatusUnauthorized, "invalid token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"email":  email,
		"status": "valid",
	})
}

// sessionKey names the cached task view of one user in one browser.
func sessionKey(ctx context.Context) string {
	email, _ := services.EmailFromContext(ctx)
	return email + "|" + services.ClientIDFromContext(ctx)
}
