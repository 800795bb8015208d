package utils

import (
	"errors"
	"fmt"

	"github.com/go-stack/stack"
)

type (
	BuildError struct {
		Stack   stack.CallStack
		Message string
		Args    []interface{}
	}
)

// Returns a new build error. The message and args are logged at debug level
// along with the stack of the caller.
func NewBuildError(message string, args ...interface{}) (b *BuildError) {
	b = &BuildError{
		Message: message,
		Args:    args,
		Stack:   stack.Trace().TrimBelow(stack.Caller(1)).TrimRuntime(),
	}
	Logger.Debug(message, append(args, "stack", fmt.Sprintf("%+v", b.Stack))...)
	return b
}

// Returns a new BuildError if err is not nil.
func NewBuildIfError(err error, message string, args ...interface{}) (b error) {
	if err != nil {
		var berr *BuildError
		if errors.As(err, &berr) {
			// This is already a build error so just append the args
			berr.Args = append(berr.Args, args...)
			return berr
		}

		args = append(args, "error", err.Error())
		b = NewBuildError(message, args...)
	}

	return
}

// BuildError implements Error() string.
func (b *BuildError) Error() string {
	return fmt.Sprint(b.Message, b.Args)
}
