package response

import (
	"net/http"

	"casino/internal/errs"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess     = 0
	CodeParamError  = 400
	CodeNotFound    = 404
	CodeServerError = 500
)

// Business codes. Every response is HTTP 200; the code carries the result.
const (
	CodeInvalidBet          = 1001
	CodeInsufficientFunds   = 1002
	CodeInactiveAccount     = 1003
	CodeTransientConflict   = 1004
	CodeEntropyUnavailable  = 1005
	CodeDuplicateSettlement = 1006
	CodeGameUnavailable     = 1007
	CodeInvalidTransition   = 1008
	CodeInvalidRequest      = 1009
)

type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
	Data      interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

var kindCodes = map[errs.Kind]int{
	errs.KindInvalidBet:          CodeInvalidBet,
	errs.KindInsufficientFunds:   CodeInsufficientFunds,
	errs.KindInactiveAccount:     CodeInactiveAccount,
	errs.KindTransientConflict:   CodeTransientConflict,
	errs.KindEntropyUnavailable:  CodeEntropyUnavailable,
	errs.KindNotFound:            CodeNotFound,
	errs.KindDuplicateSettlement: CodeDuplicateSettlement,
	errs.KindGameUnavailable:     CodeGameUnavailable,
	errs.KindInvalidTransition:   CodeInvalidTransition,
	errs.KindInvalidRequest:      CodeInvalidRequest,
}

// CodeFor maps an error to its business code.
func CodeFor(err error) int {
	if code, ok := kindCodes[errs.KindOf(err)]; ok {
		return code
	}
	return CodeServerError
}

// FromError writes err with its business code. Internal errors are not
// echoed to the client.
func FromError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	msg := err.Error()
	if kind == errs.KindInternal {
		msg = "internal error"
	}
	c.JSON(http.StatusOK, Response{
		Code:      CodeFor(err),
		Message:   msg,
		Retryable: errs.Retryable(err),
	})
}
