package respond

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"github.com/agrosight/ndvi-vault/internal/apperr"
)

// ErrorBody is the standard structure for error responses.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON sends a JSON response with the specified HTTP status code and data.
func JSON(c *ginext.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// OK sends a 200 OK JSON response.
func OK(c *ginext.Context, data interface{}) {
	JSON(c, http.StatusOK, data)
}

// Created sends a 201 Created JSON response.
func Created(c *ginext.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error sends an error response whose status code is derived from the
// error's kind. Anything that maps to a 500 surfaces as a generic message;
// the wrapped cause stays in the logs.
func Error(c *ginext.Context, err error) {
	status := apperr.HTTPStatus(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}

	JSON(c, status, ErrorBody{Error: msg})
}
