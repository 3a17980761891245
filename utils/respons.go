package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const genericErrorMessage = "Something went wrong, please try again later"

// HideInternalErrors replaces 5xx messages with a generic one. It is switched
// on in production.
var HideInternalErrors bool

type JSONResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

type PageResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data"`
	Page       int         `json:"page"`
	TotalPages int         `json:"totalPages"`
	TotalItems int64       `json:"totalItems"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Success: code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondPage(c *gin.Context, message string, data interface{}, page, totalPages int, totalItems int64) {
	c.JSON(http.StatusOK, PageResponse{
		Success:    true,
		Message:    message,
		Data:       data,
		Page:       page,
		TotalPages: totalPages,
		TotalItems: totalItems,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(code))
	}
	message := err.Error()
	if code >= http.StatusInternalServerError {
		ErrorLogger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		if HideInternalErrors {
			message = genericErrorMessage
		}
	}
	c.JSON(code, JSONResponse{
		Success: false,
		Message: message,
	})
}

// RespondValidation reports field-level problems with a 400.
func RespondValidation(c *gin.Context, message string, errs interface{}) {
	c.JSON(http.StatusBadRequest, JSONResponse{
		Success: false,
		Message: message,
		Errors:  errs,
	})
}
