package server

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"snapgrid/internal/cache"
	"snapgrid/internal/middleware"
	"snapgrid/internal/models"
	"snapgrid/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the body of POST /api/auth/login. Login may be an email
// or a username.
type LoginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create an account and return an access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration"
// @Success 201 {object} models.SuccessResponse{data=AuthResponse}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = validation.NormalizeEmail(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return respondError(c, models.NewValidationError("Username, email, and password are required"))
	}
	for _, check := range []error{
		validation.ValidateUsername(req.Username),
		validation.ValidateEmail(req.Email),
		validation.ValidatePassword(req.Password),
		validation.ValidateDisplayName(req.DisplayName),
	} {
		if check != nil {
			return respondError(c, models.NewValidationError(check.Error()))
		}
	}

	if existing, err := s.userRepo.GetByEmail(ctx, req.Email); err != nil {
		return respondError(c, err)
	} else if existing != nil {
		return respondError(c, models.NewConflictError("Email already registered"))
	}
	if existing, err := s.userRepo.GetByUsername(ctx, req.Username); err != nil {
		return respondError(c, err)
	} else if existing != nil {
		return respondError(c, models.NewConflictError("Username already taken"))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	user := &models.User{
		Username:    req.Username,
		Email:       req.Email,
		Password:    string(hashed),
		DisplayName: req.DisplayName,
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return respondError(c, err)
	}

	resp, err := s.issueToken(user)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusCreated, "Account created", resp)
}

// Login handles POST /api/auth/login
// @Summary Login
// @Description Authenticate by email or username
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} models.SuccessResponse{data=AuthResponse}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	login := strings.TrimSpace(req.Login)
	if login == "" {
		login = strings.TrimSpace(req.Email)
	}
	if login == "" {
		login = strings.TrimSpace(req.Username)
	}
	if login == "" || req.Password == "" {
		return respondError(c, models.NewValidationError("Login and password are required"))
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.userRepo.GetByEmail(ctx, login)
	} else {
		user, err = s.userRepo.GetByUsername(ctx, login)
	}
	if err != nil {
		return respondError(c, err)
	}
	if user == nil {
		return respondError(c, models.NewUnauthorizedError("Invalid credentials"))
	}
	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); cmpErr != nil {
		return respondError(c, models.NewUnauthorizedError("Invalid credentials"))
	}

	resp, err := s.issueToken(user)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Logged in", resp)
}

// Logout handles POST /api/auth/logout. The token's id is blacklisted until
// the token would have expired.
// @Summary Logout
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.revokeCurrentToken(c); err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Logged out", nil)
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse{data=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	userID := currentUserID(c)
	user, err := s.userService.GetProfile(c.UserContext(), userID, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return respondError(c, models.NewUnauthorizedError("Account no longer exists"))
		}
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Current user", user)
}

func (s *Server) issueToken(user *models.User) (*AuthResponse, error) {
	if s.config.JWTSecret == "" {
		return nil, models.NewInternalError(errors.New("JWT secret not configured"))
	}
	token, claims, err := middleware.IssueAccessToken(s.config.JWTSecret, s.config.JWTIssuer, user.ID, s.config.JWTTTL())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

func (s *Server) revokeCurrentToken(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*middleware.AccessClaims)
	if !ok || claims.ID == "" || s.redis == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(c.UserContext(), cache.TokenBlacklistKey(claims.ID), "1", ttl).Err(); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// AuthRequired returns the authentication middleware for REST routes.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := middleware.ParseAccessToken(s.config.JWTSecret, s.config.JWTIssuer, middleware.BearerToken(c))
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, middleware.ErrMissingToken) {
				msg = "Authorization required"
			}
			return respondError(c, models.NewUnauthorizedError(msg))
		}
		if s.isRevoked(c.UserContext(), claims.ID) {
			return respondError(c, models.NewUnauthorizedError("Token has been revoked"))
		}

		userID, _ := claims.UserID()
		s.authenticate(c, userID)
		c.Locals("claims", claims)
		return c.Next()
	}
}

// WebSocketAuth authenticates a live connection upgrade. Browsers cannot set
// headers on the upgrade, so a single-use ?ticket= from POST /api/ws/ticket
// or a ?token= access token is accepted as well as the bearer header.
func (s *Server) WebSocketAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ticket := c.Query("ticket"); ticket != "" {
			userID, err := s.consumeTicket(c.UserContext(), ticket)
			if err != nil {
				return respondError(c, err)
			}
			s.authenticate(c, userID)
			return c.Next()
		}

		token := middleware.BearerToken(c)
		if token == "" {
			token = c.Query("token")
		}
		claims, err := middleware.ParseAccessToken(s.config.JWTSecret, s.config.JWTIssuer, token)
		if err != nil || s.isRevoked(c.UserContext(), claims.ID) {
			return respondError(c, models.NewUnauthorizedError("Invalid or expired token"))
		}
		userID, _ := claims.UserID()
		s.authenticate(c, userID)
		return c.Next()
	}
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a websocket ticket
// @Description Returns a single-use ticket valid for 60 seconds, passed as ?ticket= on GET /ws
// @Tags realtime
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable, errors.New("websocket tickets are unavailable"))
	}
	ticket := uuid.NewString()
	userID := currentUserID(c)
	if err := s.redis.Set(c.UserContext(), cache.WSTicketKey(ticket), strconv.FormatUint(uint64(userID), 10), cache.WSTicketTTL).Err(); err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Ticket issued", fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL.Seconds()),
	})
}

func (s *Server) consumeTicket(ctx context.Context, ticket string) (uint, error) {
	if s.redis == nil {
		return 0, models.NewUnauthorizedError("Invalid or expired websocket ticket")
	}
	raw, err := s.redis.GetDel(ctx, cache.WSTicketKey(ticket)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, models.NewUnauthorizedError("Invalid or expired websocket ticket")
		}
		return 0, models.NewInternalError(err)
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, models.NewUnauthorizedError("Invalid or expired websocket ticket")
	}
	return uint(id), nil
}

// isRevoked reports whether the token id is blacklisted. Without Redis
// nothing is revoked.
func (s *Server) isRevoked(ctx context.Context, jti string) bool {
	if jti == "" || s.redis == nil {
		return false
	}
	n, err := s.redis.Exists(ctx, cache.TokenBlacklistKey(jti)).Result()
	return err == nil && n > 0
}

func (s *Server) authenticate(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, userID))
}
