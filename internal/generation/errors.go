package generation

import "fmt"

type ErrorCode string

const (
	ErrorInvalidConfig  ErrorCode = "invalid_config"
	ErrorGenerateFailed ErrorCode = "generate_failed"
)

type Error struct {
	Code  ErrorCode
	Op    string
	Model string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "generation failed"
	}
	if e.Err == nil {
		return fmt.Sprintf("generation %s (code=%s model=%s)", e.Op, e.Code, e.Model)
	}
	return fmt.Sprintf("generation %s (code=%s model=%s): %v", e.Op, e.Code, e.Model, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
