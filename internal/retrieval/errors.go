package retrieval

import "fmt"

type ErrorCode string

const (
	ErrorValidation  ErrorCode = "validation_failed"
	ErrorEmbedFailed ErrorCode = "embed_failed"
	ErrorQueryFailed ErrorCode = "query_failed"
)

type Error struct {
	Code  ErrorCode
	Op    string
	Index string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "retrieval failed"
	}
	if e.Err == nil {
		return fmt.Sprintf("retrieval %s (code=%s index=%s)", e.Op, e.Code, e.Index)
	}
	return fmt.Sprintf("retrieval %s (code=%s index=%s): %v", e.Op, e.Code, e.Index, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
