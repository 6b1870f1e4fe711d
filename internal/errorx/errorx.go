package errorx

import (
	"errors"
	"fmt"
)

// Code 业务错误码
type Code int

const (
	CodeInput           Code = 20001
	CodeInvalidPassword Code = 20004
	CodeInternal        Code = 20008
	CodeBusy            Code = 20009
	CodeNoPermission    Code = 30009

	CodeMeetingInput       Code = 30001
	CodeMeetingNotFound    Code = 30003
	CodeMeetingDatabase    Code = 30005
	CodeMeetingIsOver      Code = 30006
	CodeMeetingNotStart    Code = 30007
	CodeIsShared           Code = 30008
	CodeNotShare           Code = 30011
	CodeNotPermissionStop  Code = 30010
	CodeShareUserExhausted Code = 30012

	CodePollInput        Code = 50001
	CodePollNotFound     Code = 50003
	CodePollNotHost      Code = 50004
	CodePollDatabase     Code = 50005
	CodePollAlreadyStart Code = 50006
	CodePollNotStart     Code = 50007
	CodePollExist        Code = 50008
	CodePollAlreadyDone  Code = 50009

	CodeGroupAlreadyStart Code = 60000
	CodeGroupNotFound     Code = 60001
)

var messages = map[Code]string{
	CodeInput:           "invalid request data",
	CodeInvalidPassword: "invalid password",
	CodeInternal:        "internal error",
	CodeBusy:            "operation temporarily unavailable",
	CodeNoPermission:    "not permission",

	CodeMeetingInput:       "invalid request data",
	CodeMeetingNotFound:    "meeting not found",
	CodeMeetingDatabase:    "failed to access database",
	CodeMeetingIsOver:      "meeting is over",
	CodeMeetingNotStart:    "meeting is not start",
	CodeIsShared:           "other is sharing",
	CodeNotShare:           "not sharing",
	CodeNotPermissionStop:  "not permission to stop meeting",
	CodeShareUserExhausted: "no share user id available",

	CodePollInput:        "invalid request data",
	CodePollNotFound:     "poll not found",
	CodePollNotHost:      "user has no permission to operate poll",
	CodePollDatabase:     "failed to access database",
	CodePollAlreadyStart: "poll already start",
	CodePollNotStart:     "poll not start",
	CodePollExist:        "poll already exist",
	CodePollAlreadyDone:  "poll already done",

	CodeGroupAlreadyStart: "group already start",
	CodeGroupNotFound:     "group not found",
}

// Message 返回错误码对应的默认信息
func (c Code) Message() string {
	if msg, ok := messages[c]; ok {
		return msg
	}
	return fmt.Sprintf("unknown error %d", int(c))
}

// CodeError 对外暴露的业务错误，Detail 为可选的结构化补充信息
type CodeError struct {
	Code   Code   `json:"code"`
	Msg    string `json:"message"`
	Detail any    `json:"data,omitempty"`
}

func New(code Code, detail any) *CodeError {
	return &CodeError{Code: code, Msg: code.Message(), Detail: detail}
}

func Newf(code Code, format string, args ...any) *CodeError {
	return New(code, fmt.Sprintf(format, args...))
}

func (e *CodeError) Error() string {
	if e.Detail == nil {
		return fmt.Sprintf("%d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("%d: %s: %v", e.Code, e.Msg, e.Detail)
}

// Is 按错误码比较，detail 不参与
func (e *CodeError) Is(target error) bool {
	var t *CodeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrBusy              = New(CodeBusy, nil)
	ErrMeetingNotFound   = New(CodeMeetingNotFound, nil)
	ErrGroupNotFound     = New(CodeGroupNotFound, nil)
	ErrPollNotFound      = New(CodePollNotFound, nil)
	ErrPollAlreadyStart  = New(CodePollAlreadyStart, nil)
	ErrGroupAlreadyStart = New(CodeGroupAlreadyStart, nil)
)

// CodeOf 返回 err 链上的业务错误码，非业务错误返回 CodeInternal
func CodeOf(err error) Code {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

// IsRejection 判断是否为业务规则拒绝（而不是存储、网络等基础设施故障）
func IsRejection(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Code {
	case CodeInternal, CodeMeetingDatabase, CodePollDatabase:
		return false
	}
	return true
}

// Internal 把基础设施错误包装成对外的内部错误，原始错误仍可通过 errors.Unwrap 取得
func Internal(code Code, err error) error {
	return &wrapped{CodeError: New(code, err.Error()), cause: err}
}

type wrapped struct {
	*CodeError
	cause error
}

func (w *wrapped) Unwrap() error {
	return w.cause
}

func (w *wrapped) As(target any) bool {
	if t, ok := target.(**CodeError); ok {
		*t = w.CodeError
		return true
	}
	return false
}
