package control

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/xpdflow/errors"
)

// DataResponse is the success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// respondError renders err with the status and body of its AppError; plain
// errors become internal errors.
func respondError(c *gin.Context, err error) {
	appErr := errors.From(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}
