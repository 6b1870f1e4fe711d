package handler

import (
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"

	"live_meeting/internal/errorx"
	"live_meeting/internal/svc"
)

func RegisterHandlers(server *rest.Server, svcCtx *svc.ServiceContext) {
	httpx.SetErrorHandler(ErrorHandler)

	server.AddRoutes(
		[]rest.Route{
			{Method: http.MethodPost, Path: "/meetings/:number/join", Handler: JoinMeetingHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/meetings/:number/stop", Handler: StopMeetingHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/meetings/:number/share/start", Handler: StartShareHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/meetings/:number/share/stop", Handler: StopShareHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/meetings/:number/groups/start", Handler: StartGroupHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/meetings/:number/groups/stop", Handler: StopGroupHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/meetings/:number/groups/move", Handler: MoveMembersHandler(svcCtx)},
			{Method: http.MethodGet, Path: "/meetings/:number/groups", Handler: GroupDetailHandler(svcCtx)},
		},
		rest.WithPrefix("/api/v1"),
	)

	server.AddRoutes(
		[]rest.Route{
			{Method: http.MethodPost, Path: "/polls/:id/start", Handler: StartPollHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/polls/:id/stop", Handler: StopPollHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/polls/:id/commit", Handler: CommitPollHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/polls/:id/share", Handler: SetPollShareHandler(svcCtx)},
			{Method: http.MethodGet, Path: "/polls/:id/result", Handler: PollResultHandler(svcCtx)},
			{Method: http.MethodGet, Path: "/polls/:id/answer", Handler: PollAnswerHandler(svcCtx)},
			{Method: http.MethodDelete, Path: "/polls/:id", Handler: DeletePollHandler(svcCtx)},
		},
		rest.WithPrefix("/api/v1"),
	)
}

type ErrorResp struct {
	Code    errorx.Code `json:"code"`
	Message string      `json:"message"`
	Data    any         `json:"data,omitempty"`
}

// ErrorHandler 业务错误按错误码映射 HTTP 状态，响应体为 {code,message,data}
func ErrorHandler(err error) (int, any) {
	var ce *errorx.CodeError
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError, &ErrorResp{Code: errorx.CodeInternal, Message: errorx.CodeInternal.Message()}
	}

	resp := &ErrorResp{Code: ce.Code, Message: ce.Msg}
	// 基础设施错误的细节只写日志
	if errorx.IsRejection(err) {
		resp.Data = ce.Detail
	}
	return statusOf(ce.Code), resp
}

func statusOf(code errorx.Code) int {
	switch code {
	case errorx.CodeInput, errorx.CodeMeetingInput, errorx.CodePollInput, errorx.CodeInvalidPassword:
		return http.StatusBadRequest
	case errorx.CodeNoPermission, errorx.CodeNotPermissionStop, errorx.CodePollNotHost:
		return http.StatusForbidden
	case errorx.CodeMeetingNotFound, errorx.CodePollNotFound, errorx.CodeGroupNotFound:
		return http.StatusNotFound
	case errorx.CodeMeetingIsOver, errorx.CodeMeetingNotStart, errorx.CodeIsShared, errorx.CodeNotShare,
		errorx.CodePollAlreadyStart, errorx.CodePollNotStart, errorx.CodePollExist, errorx.CodePollAlreadyDone,
		errorx.CodeGroupAlreadyStart:
		return http.StatusConflict
	case errorx.CodeBusy, errorx.CodeShareUserExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
