package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"live_meeting/internal/svc"
	"live_meeting/internal/types"
)

type PollReq struct {
	UserID int64 `header:"X-User-Id"`
	PollID int64 `path:"id"`
}

type CommitPollReq struct {
	UserID  int64          `header:"X-User-Id"`
	PollID  int64          `path:"id"`
	Answers []types.Answer `json:"answers"`
}

type SetPollShareReq struct {
	UserID int64 `header:"X-User-Id"`
	PollID int64 `path:"id"`
	Share  bool  `json:"share"`
}

type PollResp struct {
	ID        int64            `json:"id"`
	MeetingID int64            `json:"meeting_id"`
	Round     int              `json:"round"`
	Status    types.PollStatus `json:"status"`
	Share     bool             `json:"share"`
}

type PollAnswerResp struct {
	Answers []types.Answer `json:"answers"`
}

type CommitPollResp struct {
	Round int `json:"round"`
}

func toPollResp(p *types.Poll) *PollResp {
	return &PollResp{ID: p.ID, MeetingID: p.MeetingID, Round: p.Round, Status: p.Status, Share: p.Share}
}

func (r PollReq) invoker() int64 { return r.UserID }
func (r CommitPollReq) invoker() int64 { return r.UserID }
func (r SetPollShareReq) invoker() int64 { return r.UserID }

func StartPollHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PollReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		poll, err := svcCtx.PollLogic.Start(r.Context(), req.UserID, req.PollID)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, toPollResp(poll))
	}
}

func StopPollHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PollReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		poll, err := svcCtx.PollLogic.Stop(r.Context(), req.UserID, req.PollID)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, toPollResp(poll))
	}
}

func CommitPollHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CommitPollReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		round, err := svcCtx.PollLogic.Commit(r.Context(), req.UserID, req.PollID, req.Answers)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, &CommitPollResp{Round: round})
	}
}

func DeletePollHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PollReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		if err := svcCtx.PollLogic.Delete(r.Context(), req.UserID, req.PollID); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, &OkResp{Success: true})
	}
}

func PollResultHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PollReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		summary, err := svcCtx.PollLogic.Result(r.Context(), req.UserID, req.PollID)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, summary)
	}
}

func PollAnswerHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PollReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		answers, err := svcCtx.PollLogic.Answer(r.Context(), req.UserID, req.PollID)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, &PollAnswerResp{Answers: answers})
	}
}

func SetPollShareHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetPollShareReq
		if err := parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		poll, err := svcCtx.PollLogic.SetShare(r.Context(), req.UserID, req.PollID, req.Share)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, toPollResp(poll))
	}
}
