// Package response writes the JSON envelope every HTTP endpoint returns:
//
//	{"success": true, "data": ...}
//	{"success": false, "error": {"code": "...", "message": "...", "retryable": true}}
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	svcErr "github.com/simplesconnect/simples-connect/internal/errors"
)

type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Retryable tells the client the same request may succeed later.
	Retryable bool `json:"retryable,omitempty"`
}

// OK writes a 200 envelope around data.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Fail writes the envelope for err using the service error taxonomy.
func Fail(c *gin.Context, err error) {
	status, code, msg := svcErr.HTTPStatus(err)
	_ = c.Error(err)
	c.JSON(status, Envelope{Error: &Error{Code: code, Message: msg, Retryable: svcErr.IsRetryable(err)}})
}

// Abort stops the handler chain with an error envelope.
func Abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, Envelope{Error: &Error{Code: code, Message: msg}})
}
