// Package server is the reference sync backend: bearer-token auth and one
// JSON document per user, replaced in full on every save.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/agonv/tapertrack/internal/auth"
	"github.com/agonv/tapertrack/internal/models"
)

const defaultTokenTTL = 30 * 24 * time.Hour

// maxDocumentBytes bounds a save request body; per-user documents are small.
const maxDocumentBytes = 4 << 20

// Claims are the JWT claims carried by every bearer token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Server routes the sync API. It satisfies http.Handler.
type Server struct {
	store     *Store
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    zerolog.Logger
	router    chi.Router
}

// New builds a server around a store and an HS256 signing secret.
func New(store *Store, jwtSecret []byte, logger zerolog.Logger) *Server {
	s := &Server{
		store:     store,
		jwtSecret: jwtSecret,
		tokenTTL:  defaultTokenTTL,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Post("/api/register", s.handleRegister)
	r.Post("/api/login", s.handleLogin)
	r.Get("/api/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/data", s.handleLoadData)
		r.Put("/api/data", s.handleSaveData)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) issueToken(user User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *Server) parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

type contextKey string

const userIDKey contextKey = "user_id"

// requireAuth extracts and validates the bearer token, rejects with a JSON
// Unauthorized body the client maps onto session invalidation.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		claims, err := s.parseToken(parts[1])
		if err != nil {
			s.logger.Warn().Err(err).Msg("token validation failed")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		// The account behind a token may have been deleted.
		if _, err := s.store.GetUserByID(claims.UserID); err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := contextWithUserID(r.Context(), claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := auth.ValidateCredentials(req.Username, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user, err := s.store.CreateUser(req.Username, hash)
	if errors.Is(err, ErrUsernameTaken) {
		writeError(w, http.StatusBadRequest, "Username already taken")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create user")
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	s.respondSession(w, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByUsername(req.Username)
	if errors.Is(err, ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("login lookup failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.respondSession(w, user)
}

func (s *Server) respondSession(w http.ResponseWriter, user User) {
	token, err := s.issueToken(user)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to issue token")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"username": user.Username,
	})
}

func (s *Server) handleLoadData(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	doc, err := s.store.LoadDocument(userID)
	if errors.Is(err, ErrNoDocument) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "empty", "data": nil})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("load failed")
		writeError(w, http.StatusInternalServerError, "load failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   json.RawMessage(doc),
	})
}

func (s *Server) handleSaveData(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	// Full-document replace: the body must at least parse as an AppState.
	var state models.AppState
	if err := json.Unmarshal(body, &state); err != nil {
		writeError(w, http.StatusBadRequest, "body is not a valid app state document")
		return
	}

	if err := s.store.SaveDocument(userID, body); err != nil {
		s.logger.Error().Err(err).Msg("save failed")
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
