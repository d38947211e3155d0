package errors

import (
	"fmt"
	"strings"
)

/*
Error aggregates zero or more wrapped errors and free-form messages into a
single value. It exists for the same reason the teacher's package carries
one: call sites that accumulate several failures (a batch save, a fan-out
retry) want to report all of them without losing any.
*/
type Error struct {
	Errs []error
	Msgs []any
}

func NewError(errs ...any) error {
	err := &Error{}

	for _, msg := range errs {
		switch v := msg.(type) {
		case error:
			err.Errs = append(err.Errs, v)
		case string:
			err.Msgs = append(err.Msgs, v)
		}
	}

	return err
}

func (err *Error) Error() string {
	builder := &strings.Builder{}

	for _, e := range err.Errs {
		builder.WriteString(e.Error())
		builder.WriteString("\n")
	}

	for _, msg := range err.Msgs {
		builder.WriteString(fmt.Sprintf("%v\n", msg))
	}

	return builder.String()
}
