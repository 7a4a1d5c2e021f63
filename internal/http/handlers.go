package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/SkyMonder/SkyCallPro/internal/directory"
)

type registerRequest struct {
	Username    string `json:"username" validate:"required,min=2,max=64"`
	Password    string `json:"password" validate:"required,min=6,max=128"`
	DisplayName string `json:"display_name,omitempty" validate:"max=128"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileResponse struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type authResponse struct {
	Token string          `json:"token,omitempty"`
	User  profileResponse `json:"user"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=128"`
}

// handleRegister creates a new identity.
func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, err := s.dir.Register(c.Request().Context(), req.Username, req.Password, req.DisplayName)
	switch {
	case errors.Is(err, directory.ErrUserExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": "username already taken"})
	case errors.Is(err, directory.ErrInvalidCredentials):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "username and password are required"})
	case err != nil:
		s.logger.Error().Err(err).Msg("registration failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "registration failed"})
	}

	return c.JSON(http.StatusCreated, authResponse{
		User: profileResponse{Username: user.Username, DisplayName: user.DisplayName},
	})
}

// handleLogin verifies credentials and issues a bearer token. The token is
// also what the client presents in its WebSocket announce.
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, err := s.dir.Verify(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		}
		s.logger.Error().Err(err).Msg("login failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "login failed"})
	}

	token, err := s.tokens.Sign(user.Username)
	if err != nil {
		s.logger.Error().Err(err).Msg("token signing failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "login failed"})
	}

	return c.JSON(http.StatusOK, authResponse{
		Token: token,
		User:  profileResponse{Username: user.Username, DisplayName: user.DisplayName},
	})
}

// handleProfile returns the public profile for a username.
func (s *Server) handleProfile(c echo.Context) error {
	user, err := s.dir.Profile(c.Request().Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, profileResponse{Username: user.Username, DisplayName: user.DisplayName})
}

// handleHistory returns the conversation between the caller and a peer,
// oldest first.
func (s *Server) handleHistory(c echo.Context) error {
	username, _ := c.Get("username").(string)
	peer := c.Param("peer")

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = n
	}

	messages, err := s.chat.History(c.Request().Context(), username, peer, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("user", username).Str("peer", peer).Msg("history query failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"messages": messages})
}

// handleUpdateProfile changes the caller's display name.
func (s *Server) handleUpdateProfile(c echo.Context) error {
	username, _ := c.Get("username").(string)

	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := s.dir.UpdateDisplayName(c.Request().Context(), username, req.DisplayName); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
	}
	return c.JSON(http.StatusOK, profileResponse{Username: username, DisplayName: req.DisplayName})
}
