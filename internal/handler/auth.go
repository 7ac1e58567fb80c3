package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/config"
	"github.com/iliyamo/sneak-radar/internal/middleware"
	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/repository"
	"github.com/iliyamo/sneak-radar/internal/utils"
)

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, email, password, role string, cost int) (uint64, error)
	CountAdmins(ctx context.Context) (int, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore is implemented by repository.TokenRepo.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	Rotate(ctx context.Context, userID uint64, oldHash, newHash string, exp time.Time) error
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler serves curator registration and sessions.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
	Log    *logrus.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: log}
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func (h *AuthHandler) internal(c echo.Context, err error, msg string) error {
	h.Log.WithError(err).Error(msg)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}

// issue creates a token pair and stores the refresh hash.  With oldHash
// set the previous refresh token is rotated out in the same transaction.
func (h *AuthHandler) issue(ctx context.Context, u userPart, oldHash string) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	newHash := utils.HashRefreshRaw(refresh.Raw)
	if oldHash != "" {
		err = h.Tokens.Rotate(ctx, u.ID, oldHash, newHash, refresh.Exp)
	} else {
		err = h.Tokens.StoreRefresh(ctx, u.ID, newHash, refresh.Exp)
	}
	if err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

// Register creates a curator account.  The first account becomes ADMIN,
// later ones MEMBER; admins promote members out of band.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	admins, err := h.Users.CountAdmins(ctx)
	if err != nil {
		return h.internal(c, err, "count admins failed")
	}
	role := model.RoleMember
	if admins == 0 {
		role = model.RoleAdmin
	}

	uid, err := h.Users.Create(ctx, email, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		if errors.Is(err, utils.ErrPasswordTooShort) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return h.internal(c, err, "create user failed")
	}
	resp, err := h.issue(ctx, userPart{ID: uid, Email: email, Role: role}, "")
	if err != nil {
		return h.internal(c, err, "issue tokens failed")
	}
	h.Log.WithFields(logrus.Fields{"user_id": uid, "role": role}).Info("curator registered")
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return h.internal(c, err, "query failed")
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	resp, err := h.issue(ctx, userPart{ID: u.ID, Email: u.Email, Role: u.Role}, "")
	if err != nil {
		return h.internal(c, err, "issue tokens failed")
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh exchanges a live refresh token for a new pair.  The old token
// is revoked; replaying it fails.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshInvalid) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return h.internal(c, err, "validate refresh failed")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return h.internal(c, err, "load user failed")
	}
	resp, err := h.issue(ctx, userPart{ID: u.ID, Email: u.Email, Role: u.Role}, hash)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshInvalid) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return h.internal(c, err, "issue tokens failed")
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the refresh token in the body, or with only a valid
// bearer token every session of that curator.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return h.internal(c, err, "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		if err := h.Tokens.RevokeAllForUser(ctx, claims.UserID); err != nil {
			return h.internal(c, err, "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me returns the identity of the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	id, _ := middleware.UserID(c)
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": id,
		"role":    middleware.Role(c),
	})
}
