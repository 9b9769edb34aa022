package handlers

import (
	"errors"
	"net/http"

	"github.com/frostdev-ops/telemetry-backend-go/internal/api/middleware"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/auth"
	"github.com/frostdev-ops/telemetry-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Register creates a user account
func (h *Handlers) Register(c *gin.Context) {
	var creds auth.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if creds.LoginName() == "" || creds.Password == "" {
		utils.SendError(c, http.StatusBadRequest, "Login and password are required")
		return
	}

	user, err := h.auth.Register(c.Request.Context(), creds)
	switch {
	case errors.Is(err, auth.ErrLoginTaken):
		utils.SendError(c, http.StatusConflict, "A user with this login already exists")
		return
	case errors.Is(err, auth.ErrWeakPassword):
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		utils.SendAppError(c, err)
		return
	}

	utils.SendCreated(c, user)
}

// Login exchanges credentials for a bearer token. Both JSON bodies and
// OAuth2 password form posts are accepted.
func (h *Handlers) Login(c *gin.Context) {
	var creds auth.Credentials
	var err error
	if c.ContentType() == binding.MIMEPOSTForm {
		err = c.ShouldBindWith(&creds, binding.Form)
	} else {
		err = c.ShouldBindJSON(&creds)
	}
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.auth.Login(c.Request.Context(), creds)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			utils.SendError(c, http.StatusForbidden, "Incorrect login or password")
			return
		}
		utils.SendAppError(c, err)
		return
	}

	utils.SendSuccess(c, token)
}

// Me returns the authenticated user
func (h *Handlers) Me(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.auth.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			utils.SendError(c, http.StatusNotFound, "User not found")
			return
		}
		utils.SendAppError(c, err)
		return
	}

	utils.SendSuccess(c, user)
}
