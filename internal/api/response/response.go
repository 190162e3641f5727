// Package response writes the JSON envelope shared by every API endpoint.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope. Code is 0 on success; on failure it carries a
// short machine-readable reason and Msg a human-readable one.
type Response struct {
	Code   int    `json:"code"`
	Reason string `json:"reason,omitempty"`
	Msg    string `json:"msg"`
	Data   any    `json:"data"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Msg: "success", Data: data})
}

// Created writes 201 with data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Code: 0, Msg: "created", Data: data})
}

// Error writes httpStatus with reason and msg.
func Error(c *gin.Context, httpStatus int, reason, msg string) {
	ErrorWithData(c, httpStatus, reason, msg, nil)
}

// ErrorWithData writes an error that also carries a payload, such as a
// validation report.
func ErrorWithData(c *gin.Context, httpStatus int, reason, msg string, data any) {
	c.JSON(httpStatus, Response{Code: httpStatus, Reason: reason, Msg: msg, Data: data})
}

// Abort writes the error and stops the handler chain.
func Abort(c *gin.Context, httpStatus int, reason, msg string) {
	Error(c, httpStatus, reason, msg)
	c.Abort()
}
