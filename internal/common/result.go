// File: internal/common/result.go
package common

import (
	"fmt"
	"sort"
	"strings"
)

// Result is the success flag plus message handed back to callers that present outcomes.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// OK builds a successful result.
func OK(message string) Result {
	return Result{Success: true, Message: message}
}

// ResultFromError converts err into a Result. A nil error yields OK(successMessage).
func ResultFromError(err error, successMessage string) Result {
	if err == nil {
		return OK(successMessage)
	}
	if e, ok := AsError(err); ok {
		return Result{Success: false, Message: describe(e), Code: e.Code}
	}
	return Result{Success: false, Message: err.Error(), Code: ErrStorage.Code}
}

func describe(e *Error) string {
	switch d := e.Details.(type) {
	case nil:
		return e.Message
	case map[string]string:
		parts := make([]string, 0, len(d))
		for _, msg := range d {
			parts = append(parts, msg)
		}
		sort.Strings(parts)
		return strings.Join(parts, " ")
	default:
		if s := fmt.Sprint(d); s != "" {
			return s
		}
		return e.Message
	}
}
