package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"live_meeting/internal/svc"
	"live_meeting/internal/types"
)

type StartGroupReq struct {
	UserID int64         `header:"X-User-Id"`
	Number int64         `path:"number"`
	Groups []types.Group `json:"groups"`
}

func (r StartGroupReq) invoker() int64 { return r.UserID }

type MoveMembersReq struct {
	Number  int64   `path:"number"`
	Members []int64 `json:"members"`
	From    int64   `json:"from"`
	To      int64   `json:"to"`
}

type GroupDetailReq struct {
	Number int64 `path:"number"`
}

type GroupDetailResp struct {
	Groups []types.Group `json:"groups"`
}

func StartGroupHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartGroupReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		if err := svcCtx.GroupLogic.Start(r.Context(), req.UserID, req.Number, req.Groups); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, &OkResp{Success: true})
	}
}

func StopGroupHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MeetingReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		if err := svcCtx.GroupLogic.Stop(r.Context(), req.UserID, req.Number); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, &OkResp{Success: true})
	}
}

func MoveMembersHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoveMembersReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		err := svcCtx.GroupLogic.MoveMembers(r.Context(), req.Number, req.Members, req.From, req.To)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, &OkResp{Success: true})
	}
}

func GroupDetailHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GroupDetailReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		groups, err := svcCtx.GroupLogic.Detail(r.Context(), req.Number)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, &GroupDetailResp{Groups: groups})
	}
}
