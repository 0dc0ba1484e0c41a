package scriptfilter

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// ErrorKind categorizes script failures.
type ErrorKind string

const (
	KindSyntax   ErrorKind = "syntax_error"
	KindRuntime  ErrorKind = "runtime_error"
	KindTimeout  ErrorKind = "timeout_error"
	KindContract ErrorKind = "contract_error"
)

// ScriptError is a failure compiling or running the shade script.
type ScriptError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	X, Y    int       `json:"-"`
	atPixel bool
}

func (e *ScriptError) Error() string {
	if e.atPixel {
		return fmt.Sprintf("[%s] %s at pixel (%d, %d)", e.Kind, e.Message, e.X, e.Y)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func contractError(format string, args ...interface{}) *ScriptError {
	return &ScriptError{Kind: KindContract, Message: fmt.Sprintf(format, args...)}
}

// wrapError converts goja errors into a ScriptError.
func wrapError(err error) *ScriptError {
	var se *ScriptError
	if errors.As(err, &se) {
		return se
	}

	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		return &ScriptError{Kind: KindSyntax, Message: syntax.Error()}
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return &ScriptError{Kind: KindTimeout, Message: fmt.Sprintf("interrupted: %v", interrupted.Value())}
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		return &ScriptError{Kind: KindRuntime, Message: exc.Value().String()}
	}

	return &ScriptError{Kind: KindRuntime, Message: err.Error()}
}
