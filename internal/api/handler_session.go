package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"meter-capture-agent/internal/auth"
	"meter-capture-agent/internal/settings"
	"meter-capture-agent/internal/users"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login signs an actor in through the auth webhook.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	actor, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"user": actor, "kpis": h.kpis()})
	case errors.Is(err, auth.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Enter username and password"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Login failed: " + err.Error()})
	case errors.Is(err, auth.ErrNoAuthWebhook):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Login failed: " + err.Error()})
	}
}

// Logout clears the current actor.
func (h *Handler) Logout(c *gin.Context) {
	h.Auth.Logout()
	c.Status(http.StatusNoContent)
}

// GetSession returns the current actor, or null for the guest.
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user":      h.Scoper.Current(),
		"namespace": h.Scoper.Namespace().String(),
	})
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateUser asks the create-user webhook to add an account.
func (h *Handler) CreateUser(c *gin.Context) {
	actor, ok := h.requireAdmin(c)
	if !ok {
		return
	}

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	err := h.Auth.CreateUser(c.Request.Context(), actor, req.Username, req.Password, req.Role)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"message": auth.MsgUserCreated})
	case errors.Is(err, settings.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": settings.MsgAdminOnly})
	case errors.Is(err, auth.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Enter username and password"})
	case errors.Is(err, users.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrNoCreateUserWebhook):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

type userEntry struct {
	Username string `json:"u"`
	Role     string `json:"role"`
}

// ListUsers returns the user directory without password material.
func (h *Handler) ListUsers(c *gin.Context) {
	actor, ok := h.requireAdmin(c)
	if !ok {
		return
	}
	list, err := h.Auth.ListUsers(c.Request.Context(), actor)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	items := make([]userEntry, 0, len(list))
	for _, rec := range list {
		items = append(items, userEntry{Username: rec.Username, Role: rec.Role})
	}
	c.JSON(http.StatusOK, gin.H{"users": items})
}

// DeleteUser removes a user from the directory.
func (h *Handler) DeleteUser(c *gin.Context) {
	actor, ok := h.requireAdmin(c)
	if !ok {
		return
	}
	err := h.Auth.DeleteUser(c.Request.Context(), actor, c.Param("username"))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrLastUser), errors.Is(err, users.ErrSignedIn):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}
