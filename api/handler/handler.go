// Package handler implements the HTTP endpoints of the API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/webpeel/webpeel/models"
)

// verbose controls whether error responses carry the underlying error
// chain in the detail field. Off in production.
var verbose = true

// SetVerbose toggles detail fields on error responses.
func SetVerbose(v bool) { verbose = v }

// respondError maps an error onto its HTTP status and writes the standard
// envelope.
func respondError(c *gin.Context, err error) {
	kind := models.KindOf(err)
	env := models.ErrorEnvelope{
		Error:   kind,
		Message: err.Error(),
	}
	if pe, ok := models.AsPeelError(err); ok {
		env.Message = pe.Message
		if verbose && pe.Err != nil {
			env.Detail = pe.Err.Error()
		}
	}
	c.JSON(models.HTTPStatus(kind), env)
}

// respondBindError reports a request that failed validation.
func respondBindError(c *gin.Context, err error) {
	respondError(c, models.NewPeelError(models.KindInvalidRequest, err.Error(), errors.Unwrap(err)))
}

// respondNotFound reports an unknown resource.
func respondNotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, models.ErrorEnvelope{
		Error:   models.KindInvalidRequest,
		Message: msg,
	})
}
