package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"live_meeting/internal/errorx"
	"live_meeting/internal/svc"
)

type MeetingReq struct {
	UserID int64 `header:"X-User-Id"`
	Number int64 `path:"number"`
}

type JoinMeetingReq struct {
	UserID   int64  `header:"X-User-Id"`
	Number   int64  `path:"number"`
	Password string `json:"password,optional"`
}

type StopMeetingResp struct {
	Stopped bool `json:"stopped"`
}

type OkResp struct {
	Success bool `json:"success"`
}

// userRequest 携带调用者身份的请求
type userRequest interface {
	invoker() int64
}

func (r MeetingReq) invoker() int64 { return r.UserID }
func (r JoinMeetingReq) invoker() int64 { return r.UserID }

// parse 请求参数错误统一返回 CodeInput
// 用户 ID 必须为正数，0 保留给后台关闭任务
func parse(r *http.Request, v any) error {
	if err := httpx.Parse(r, v); err != nil {
		return errorx.New(errorx.CodeInput, err.Error())
	}
	if u, ok := v.(userRequest); ok && u.invoker() <= 0 {
		return errorx.Newf(errorx.CodeInput, "invalid user id: %d", u.invoker())
	}
	return nil
}

func JoinMeetingHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinMeetingReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		resp, err := svcCtx.MeetingLogic.Join(r.Context(), req.UserID, req.Number, req.Password)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}

func StopMeetingHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MeetingReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		stopped, err := svcCtx.MeetingLogic.Stop(r.Context(), req.Number, req.UserID)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, &StopMeetingResp{Stopped: stopped})
	}
}

func StartShareHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MeetingReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		if err := svcCtx.MeetingLogic.StartShare(r.Context(), req.Number, req.UserID); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, &OkResp{Success: true})
	}
}

func StopShareHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MeetingReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		if err := svcCtx.MeetingLogic.StopShare(r.Context(), req.Number, req.UserID); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, &OkResp{Success: true})
	}
}
