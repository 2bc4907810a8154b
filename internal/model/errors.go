package model

import "fmt"

// ErrorCode classifies recoverable failures reported to callers.
type ErrorCode string

const (
	CodeInsufficientHistory ErrorCode = "INSUFFICIENT_HISTORY"
	CodeInvalidDate         ErrorCode = "INVALID_DATE"
	CodeNoOpenCycle         ErrorCode = "NO_OPEN_CYCLE"
	CodeCycleAlreadyOpen    ErrorCode = "CYCLE_ALREADY_OPEN"
	CodeIneligibleSymbol    ErrorCode = "INELIGIBLE_SYMBOL"
	CodeMissingSellReason   ErrorCode = "MISSING_SELL_REASON"
	CodeNoData              ErrorCode = "NO_DATA"
	CodeMalformedData       ErrorCode = "MALFORMED_DATA"
	CodeInvalidSettings     ErrorCode = "INVALID_SETTINGS"
	CodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
)

// Error is a structured, recoverable failure carrying a reason code.
// Two Errors match under errors.Is when their codes are equal.
type Error struct {
	Code    ErrorCode
	Symbol  string
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Symbol != "" && e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Symbol, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Symbol != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Symbol)
	}
	return string(e.Code)
}

// Is matches on code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInsufficientHistory = &Error{Code: CodeInsufficientHistory}
	ErrInvalidDate         = &Error{Code: CodeInvalidDate}
	ErrNoOpenCycle         = &Error{Code: CodeNoOpenCycle}
	ErrCycleAlreadyOpen    = &Error{Code: CodeCycleAlreadyOpen}
	ErrIneligibleSymbol    = &Error{Code: CodeIneligibleSymbol}
	ErrMissingSellReason   = &Error{Code: CodeMissingSellReason}
	ErrNoData              = &Error{Code: CodeNoData}
	ErrMalformedData       = &Error{Code: CodeMalformedData}
	ErrInvalidSettings     = &Error{Code: CodeInvalidSettings}
	ErrInvalidRequest      = &Error{Code: CodeInvalidRequest}
)

// NewError builds an Error for a symbol.
func NewError(code ErrorCode, symbol, format string, args ...any) *Error {
	return &Error{Code: code, Symbol: symbol, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of err when it is (or wraps) an *Error.
func CodeOf(err error) (ErrorCode, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "", false
		}
		err = u.Unwrap()
	}
	return "", false
}
