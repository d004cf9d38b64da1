package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error. Message is what the caller sees;
// Err is the underlying cause and is only ever logged.
type Error struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code and message, so
// wrapped copies still match the package-level sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap returns a copy of base carrying err as its cause. The sentinels are
// shared values and must never be mutated.
func Wrap(base *Error, err error) *Error {
	return &Error{Code: base.Code, Message: base.Message, Err: err}
}

var (
	ErrDatabaseOperation = New(http.StatusInternalServerError, "Error during database operation.", nil)
	ErrNoProducts        = New(http.StatusNotFound, "No products found.", nil)
	ErrInvalidJSON       = New(http.StatusBadRequest, "Invalid JSON payload.", nil)
	ErrPayloadTooLarge   = New(http.StatusRequestEntityTooLarge, "Request entity too large.", nil)
)

// As converts any error into an *Error, falling back to ErrDatabaseOperation
// so unknown failures never leak their detail to the caller.
func As(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(ErrDatabaseOperation, err)
}

// Respond writes err as {"message": ...} with its status code and aborts the
// gin chain.
func Respond(c *gin.Context, err error) {
	appErr := As(err)
	if appErr.Err != nil {
		_ = c.Error(appErr.Err)
	}
	c.AbortWithStatusJSON(appErr.Code, gin.H{"message": appErr.Message})
}
