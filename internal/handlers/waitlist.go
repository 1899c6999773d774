package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"studio-backend/internal/middleware"
	"studio-backend/internal/models"
	"studio-backend/internal/supabase"
)

const (
	MsgInvalidEmail      = "please provide a valid email address"
	MsgAlreadyRegistered = "you are already registered"
	MsgEmailRejected     = "invalid email"
	MsgSignupUnavailable = "registration is not possible right now"
)

// emailPart excludes "@" and any whitespace, including Unicode separators,
// vertical tab and the byte order mark.
const emailPart = `[^\s\p{Z}\x{000B}\x{FEFF}@]+`

var emailPattern = regexp.MustCompile(`^` + emailPart + `@` + emailPart + `\.` + emailPart + `$`)

// IsValidEmail checks the local@domain.tld shape after trimming.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type WaitlistStore interface {
	AddToWaitlist(ctx context.Context, email string) error
}

type WaitlistHandler struct {
	store      WaitlistStore
	log        *zap.Logger
	passSecret string
	now        func() time.Time
}

func NewWaitlistHandler(store WaitlistStore, log *zap.Logger, passSecret string) *WaitlistHandler {
	return &WaitlistHandler{
		store:      store,
		log:        log,
		passSecret: passSecret,
		now:        time.Now,
	}
}

// Join godoc
// @Summary     Join the waitlist
// @Description Registers an email address. The address is trimmed and lowercased before insert.
// @Tags        waitlist
// @Accept      json
// @Produce     json
// @Param       body body models.WaitlistRequest true "email"
// @Success     200 {object} models.WaitlistResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /api/waitlist [post]
func (h *WaitlistHandler) Join(c *gin.Context) {
	middleware.SetHandlerTag(c, "waitlist")

	// An unreadable body leaves Email nil and fails validation below.
	var req models.WaitlistRequest
	_ = c.ShouldBindJSON(&req)

	email, ok := req.Email.(string)
	if !ok || !IsValidEmail(email) {
		abortWithError(c, h.log, http.StatusBadRequest, MsgInvalidEmail, nil)
		return
	}
	email = NormalizeEmail(email)

	if err := h.store.AddToWaitlist(c.Request.Context(), email); err != nil {
		abortWithError(c, h.log, http.StatusBadRequest, insertErrorMessage(err), err)
		return
	}

	response := models.WaitlistResponse{OK: true}
	if h.passSecret != "" {
		token, err := middleware.IssueWaitlistPass(h.passSecret, email, h.now())
		if err != nil {
			h.log.Error("failed to issue waitlist pass", zap.Error(err))
		} else {
			response.Token = token
		}
	}

	c.JSON(http.StatusOK, response)
}

func insertErrorMessage(err error) string {
	switch {
	case errors.Is(err, supabase.ErrAlreadyExists):
		return MsgAlreadyRegistered
	case errors.Is(err, supabase.ErrCheckViolation):
		return MsgEmailRejected
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MsgSignupUnavailable
}
