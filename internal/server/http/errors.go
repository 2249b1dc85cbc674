package httpserver

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/and161185/food-advisor/internal/errs"
)

// Stable client-facing error messages.
const (
	msgMissingToken       = "Missing token"
	msgInvalidToken       = "Invalid token"
	msgAdminRequired      = "Admin access required"
	msgInvalidCredentials = "Invalid credentials"
	msgAccountInactive    = "Account is inactive"
	msgRateLimited        = "Too many login attempts"
	msgEmailTaken         = "User with this email already exists"
	msgUserNotFound       = "User not found"
	msgBadBody            = "Invalid request body"
	msgBadUserID          = "Invalid user id"
	msgInternal           = "Internal server error"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(errorResponse{Error: msg})
}

// fail maps a service or gate error to its status and stable message. Anything
// unrecognised is logged and answered with a generic 500.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errs.ErrMissingToken):
		return writeError(c, fiber.StatusUnauthorized, msgMissingToken)
	case errors.Is(err, errs.ErrInvalidToken):
		return writeError(c, fiber.StatusUnauthorized, msgInvalidToken)
	case errors.Is(err, errs.ErrForbidden):
		return writeError(c, fiber.StatusForbidden, msgAdminRequired)
	case errors.Is(err, errs.ErrInvalidCredentials):
		return writeError(c, fiber.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, errs.ErrAccountInactive):
		return writeError(c, fiber.StatusForbidden, msgAccountInactive)
	case errors.Is(err, errs.ErrRateLimited):
		return writeError(c, fiber.StatusTooManyRequests, msgRateLimited)
	case errors.Is(err, errs.ErrAlreadyExists):
		return writeError(c, fiber.StatusConflict, msgEmailTaken)
	case errors.Is(err, errs.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, msgUserNotFound)
	case errors.Is(err, errs.ErrValidation):
		return writeError(c, fiber.StatusBadRequest, validationMessage(err))
	}
	s.log.Error("request failed",
		zap.String("path", c.Path()),
		zap.String("request_id", requestIDOf(c)),
		zap.Error(err),
	)
	return writeError(c, fiber.StatusInternalServerError, msgInternal)
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), errs.ErrValidation.Error()+": ")
	if msg == "" || msg == errs.ErrValidation.Error() {
		return "Invalid input"
	}
	return msg
}
