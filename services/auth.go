package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenLifetime is how long a session token stays valid.
const TokenLifetime = 7 * 24 * time.Hour

// magicLinkLifetime bounds how long an emailed login link can be used.
const magicLinkLifetime = 15 * time.Minute

type AuthService struct {
	mu         sync.Mutex
	tokens     map[string]magicToken // Map of token -> pending login
	jwtSecret  []byte
	smtpConfig SMTPConfig
}

type magicToken struct {
	email   string
	expires time.Time
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func NewAuthService(jwtSecret string, smtpConfig SMTPConfig) *AuthService {
	if jwtSecret == "" {
		jwtSecret = "your-default-secret-key-change-in-production"
	}

	return &AuthService{
		tokens:     make(map[string]magicToken),
		jwtSecret:  []byte(jwtSecret),
		smtpConfig: smtpConfig,
	}
}

// GenerateMagicLink creates a one-time token and email magic link
func (s *AuthService) GenerateMagicLink(email string, baseURL string) (string, error) {
	// Generate a random token
	token, err := s.generateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.mu.Lock()
	s.tokens[token] = magicToken{email: email, expires: time.Now().Add(magicLinkLifetime)}
	s.mu.Unlock()

	// Create the magic link URL
	magicLink := fmt.Sprintf("%s/auth/magic-link?token=%s", baseURL, token)

	// Send the email (if SMTP is configured)
	if s.smtpConfig.Host != "" {
		if err := s.sendMagicLinkEmail(email, magicLink); err != nil {
			log.Printf("Warning: Failed to send email: %v", err)
		}
	}

	// For development, return the magic link directly
	return magicLink, nil
}

// MailConfigured reports whether magic links are delivered by email.
func (s *AuthService) MailConfigured() bool {
	return s.smtpConfig.Host != ""
}

// VerifyMagicLinkToken verifies a one-time token and returns the associated email
func (s *AuthService) VerifyMagicLinkToken(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, exists := s.tokens[token]
	if !exists {
		return "", errors.New("invalid or expired token")
	}

	// Remove the token (one-time use)
	delete(s.tokens, token)

	if time.Now().After(pending.expires) {
		return "", errors.New("invalid or expired token")
	}
	return pending.email, nil
}

// CreateJWT generates a JWT token for a user
func (s *AuthService) CreateJWT(email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(TokenLifetime).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// VerifyJWT verifies a JWT token and returns the email
func (s *AuthService) VerifyJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", errors.New("email claim missing")
	}

	return email, nil
}

// Helper to generate a secure random token
func (s *AuthService) generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Helper to send a magic link email
func (s *AuthService) sendMagicLinkEmail(to, magicLink string) error {
	if s.smtpConfig.Host == "" || s.smtpConfig.Port == "" ||
		s.smtpConfig.Username == "" || s.smtpConfig.Password == "" {
		return errors.New("SMTP not fully configured")
	}

	auth := smtp.PlainAuth("", s.smtpConfig.Username, s.smtpConfig.Password, s.smtpConfig.Host)

	from := s.smtpConfig.From
	if from == "" {
		from = s.smtpConfig.Username
	}

	subject := "Your MicroJobs login link"
	body := fmt.Sprintf("Click the link below to sign in to your MicroJobs dashboard:\n\n%s\n\nThe link expires in 15 minutes. If you didn't request it, you can safely ignore this email.", magicLink)

	message := fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\n\n%s", from, to, subject, body)

	addr := fmt.Sprintf("%s:%s", s.smtpConfig.Host, s.smtpConfig.Port)
	err := smtp.SendMail(addr, auth, from, []string{to}, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
