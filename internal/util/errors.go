package util

import (
	"fmt"
	"net/http"
)

// ResponseError carries the HTTP status it should be rendered with.
type ResponseError struct {
	Msg    string
	Status int
}

func (e ResponseError) Error() string { return e.Msg }

func NewResponseError(status int, format string, args ...any) error {
	return ResponseError{
		Msg:    fmt.Sprintf(format, args...),
		Status: status,
	}
}

func BadRequest(format string, args ...any) error {
	return NewResponseError(http.StatusBadRequest, format, args...)
}
