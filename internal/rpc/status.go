package rpc

import (
	"errors"
	"fmt"
)

type Code uint8

const (
	CodeOK Code = iota
	CodeInvalidArgument
	CodeUnavailable
	CodeDeadlineExceeded
	CodeUnimplemented
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeInvalidArgument:
		return "InvalidArgument"
	case CodeUnavailable:
		return "Unavailable"
	case CodeDeadlineExceeded:
		return "DeadlineExceeded"
	case CodeUnimplemented:
		return "Unimplemented"
	case CodeInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Code(%d)", uint8(c))
	}
}

// Status is an application-level rejection returned by a handler.
type Status struct {
	Code    Code
	Message string
}

func (s *Status) Error() string {
	return fmt.Sprintf("rpc error: code = %s desc = %s", s.Code, s.Message)
}

func Errorf(code Code, format string, args ...interface{}) error {
	return &Status{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf classifies err the way it would travel on the wire.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var st *Status
	if errors.As(err, &st) {
		return st.Code
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return CodeDeadlineExceeded
		}
		return CodeUnavailable
	}
	return CodeInternal
}
