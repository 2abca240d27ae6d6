package core

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError sends unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// respondFailure maps a gateway error onto respondError.
func respondFailure(c *gin.Context, err error, fallback string) {
	status := StatusCode(err)
	code := "BAD_GATEWAY"
	switch {
	case errors.Is(err, ErrUnauthorized):
		code = "UNAUTHORIZED"
	case errors.Is(err, ErrValidation):
		code = "VALIDATION_ERROR"
	case status == http.StatusNotFound:
		code = "NOT_FOUND"
	case status < 500:
		code = "BAD_REQUEST"
	}
	respondError(c, status, code, UserMessage(err, fallback))
}
