package codegen

import "fmt"

// InternalError reports an AST the generator cannot lower. It indicates a
// front-end bug, never a problem with user input.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "codegen: internal error: " + e.Message
}

func internalErrorf(format string, args ...interface{}) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}
