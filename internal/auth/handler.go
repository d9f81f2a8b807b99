package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/sirupsen/logrus"

	"qa-portal/internal/config"
	"qa-portal/internal/engine"
	"qa-portal/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store        *store.Store
	passwordHash string
	jwtSecret    string
	accessTTL    time.Duration
	refreshTTL   time.Duration
	log          *logrus.Entry
}

// NewAuthHandler builds the handler from the auth config. A plaintext
// password is hashed once here so both forms are checked the same way.
func NewAuthHandler(s *store.Store, cfg config.AuthConfig, log *logrus.Logger) (*AuthHandler, error) {
	hash := cfg.PasswordHash
	if hash == "" {
		if cfg.Password == "" {
			return nil, errors.New("auth: no admin password configured")
		}
		var err error
		if hash, err = HashPassword(cfg.Password); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuthHandler{
		store:        s,
		passwordHash: hash,
		jwtSecret:    cfg.JWTSecret,
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
		log:          log.WithField("component", "auth"),
	}, nil
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.InvalidPayload("Invalid request body")
	}
	if body.Password == "" {
		return engine.UnauthorizedError("Password is required")
	}
	if !CheckPassword(body.Password, h.passwordHash) {
		h.log.WithField("ip", c.IP()).Warn("failed admin login")
		return engine.UnauthorizedError("Invalid password")
	}

	pair, err := h.generateTokenPair(c.UserContext(), AdminSubject)
	if err != nil {
		return err
	}
	h.log.WithField("ip", c.IP()).Info("admin login")
	return c.JSON(fiber.Map{"data": pair})
}

// Refresh handles POST /api/auth/refresh. The presented token is consumed
// and a new pair issued.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.InvalidPayload("Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	ctx := c.UserContext()
	rt, err := h.store.GetRefreshToken(ctx, h.store.DB, body.RefreshToken)
	if errors.Is(err, store.ErrNotFound) {
		return engine.UnauthorizedError("Invalid refresh token")
	}
	if err != nil {
		return err
	}

	if err := h.store.DeleteRefreshToken(ctx, h.store.DB, rt.Token); err != nil {
		return err
	}
	if time.Now().After(rt.ExpiresAt) {
		return engine.UnauthorizedError("Refresh token expired")
	}

	pair, err := h.generateTokenPair(ctx, rt.Subject)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.InvalidPayload("Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	if err := h.store.DeleteRefreshToken(c.UserContext(), h.store.DB, body.RefreshToken); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// LoginLimiter caps login attempts per client IP.
func LoginLimiter(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return engine.NewAppError("RATE_LIMITED", fiber.StatusTooManyRequests, "Too many login attempts, try again later")
		},
	})
}

// RegisterAuthRoutes registers auth routes on the given Fiber app.
// loginMW runs in front of the login handler only.
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler, loginMW ...fiber.Handler) {
	auth := app.Group("/api/auth")
	handlers := make([]fiber.Handler, 0, len(loginMW)+1)
	handlers = append(handlers, loginMW...)
	handlers = append(handlers, h.Login)
	auth.Post("/login", handlers...)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/logout", h.Logout)
}

func (h *AuthHandler) generateTokenPair(ctx context.Context, subject string) (*TokenPair, error) {
	accessToken, expires, err := GenerateAccessToken(subject, AdminRole, h.jwtSecret, h.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	rt, err := h.store.InsertRefreshToken(ctx, h.store.DB, subject, h.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rt.Token,
		ExpiresAt:    expires,
	}, nil
}
