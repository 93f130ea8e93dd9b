package utils

import (
	"fmt"
	"strings"
)

// ConvertPanicValueToError returns the value passed to panic as an error.
func ConvertPanicValueToError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%#v", v)
}

// CombineErrors combines errors into a single error with a multiline message (one line per
// error), nil errors are skipped. The combined error does not wrap the errors.
func CombineErrors(errs ...error) error {
	var lines []string
	for _, err := range errs {
		if err != nil {
			lines = append(lines, err.Error())
		}
	}

	if len(lines) == 0 {
		return nil
	}
	return combinedError(strings.Join(lines, "\n"))
}

// CombineErrorsWithPrefixMessage is like CombineErrors but the message starts with prefixMsg.
func CombineErrorsWithPrefixMessage(prefixMsg string, errs ...error) error {
	err := CombineErrors(errs...)
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", prefixMsg, err)
}

type combinedError string

func (e combinedError) Error() string {
	return string(e)
}
