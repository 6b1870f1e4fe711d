package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/zeromicro/go-zero/core/logx"

	"live_meeting/internal/cache"
	"live_meeting/internal/errorx"
	"live_meeting/internal/event"
	"live_meeting/internal/model"
	"live_meeting/internal/types"
)

// PollLogic 投票轮次
// 一个会议同一时间最多只有一个进行中的投票，跨多行的约束由会议级分布式锁保证
type PollLogic struct {
	Polls          model.PollModel
	Meetings       model.MeetingModel
	Locker         *cache.Locker
	Events         event.Publisher
	AcquireTimeout time.Duration
	LockTimeout    time.Duration
	Now            func() time.Time
}

func pollLockName(meetingID int64) string {
	return fmt.Sprintf("new-poll-lock-%d", meetingID)
}

func (l *PollLogic) findPoll(ctx context.Context, pollID int64) (*types.Poll, error) {
	poll, err := l.Polls.FindOne(ctx, pollID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, errorx.Newf(errorx.CodePollNotFound, "invalid poll ID: %d", pollID)
	}
	if err != nil {
		return nil, errorx.Internal(errorx.CodePollDatabase, err)
	}
	return poll, nil
}

// checkHost 只有会议所有者可以操作投票
func (l *PollLogic) checkHost(ctx context.Context, poll *types.Poll, userID int64) error {
	meeting, err := findMeeting(ctx, l.Meetings, poll.MeetingID)
	if err != nil {
		return err
	}
	if meeting.OwnerID != userID {
		return errorx.Newf(errorx.CodePollNotHost, "user: %d not the owner", userID)
	}
	return nil
}

// Start 开始新一轮投票
func (l *PollLogic) Start(ctx context.Context, userID, pollID int64) (*types.Poll, error) {
	logger := logx.WithContext(ctx)

	poll, err := l.findPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if err := l.checkHost(ctx, poll, userID); err != nil {
		return nil, err
	}

	var started *types.Poll
	holder := fmt.Sprintf("%d-lock", poll.MeetingID)
	err = l.Locker.WithLock(ctx, pollLockName(poll.MeetingID), holder, l.AcquireTimeout, l.LockTimeout, func() error {
		// 锁内重新读取，锁外读到的状态可能已经过期
		current, err := l.findPoll(ctx, pollID)
		if err != nil {
			return err
		}
		if current.Status == types.PollOngoing {
			logger.Infof("poll already start: %d", pollID)
			return errorx.Newf(errorx.CodePollAlreadyStart, "poll already start: %d", pollID)
		}

		polls, err := l.Polls.FindByMeeting(ctx, poll.MeetingID)
		if err != nil {
			return errorx.Internal(errorx.CodePollDatabase, err)
		}
		for _, p := range polls {
			if p.ID != pollID && p.Status == types.PollOngoing {
				logger.Infof("already start poll %d in meeting %d", p.ID, p.MeetingID)
				return errorx.Newf(errorx.CodePollExist, "already start poll %d in meeting %d", p.ID, p.MeetingID)
			}
		}

		started, err = l.Polls.StartRound(ctx, pollID)
		if err != nil {
			return errorx.Internal(errorx.CodePollDatabase, err)
		}
		return nil
	})
	if err != nil {
		return nil, internal(errorx.CodeInternal, err)
	}

	logger.Infof("start poll %d round %d in meeting %d", started.ID, started.Round, started.MeetingID)
	l.Events.Publish(ctx, event.Event{
		MeetingID: started.MeetingID,
		Kind:      event.PollStarted,
		UserID:    userID,
		PollID:    started.ID,
		Round:     started.Round,
		At:        nowFunc(l.Now),
	})
	return started, nil
}

func (l *PollLogic) Stop(ctx context.Context, userID, pollID int64) (*types.Poll, error) {
	poll, err := l.findPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.Status != types.PollOngoing {
		return nil, errorx.Newf(errorx.CodePollNotFound, "not found ongoing poll ID: %d", pollID)
	}
	if err := l.checkHost(ctx, poll, userID); err != nil {
		return nil, err
	}

	finished, err := l.Polls.Finish(ctx, pollID)
	if err != nil {
		return nil, errorx.Internal(errorx.CodePollDatabase, err)
	}
	if !finished {
		return nil, errorx.Newf(errorx.CodePollNotFound, "not found ongoing poll ID: %d", pollID)
	}

	poll.Status = types.PollDone
	l.Events.Publish(ctx, event.Event{
		MeetingID: poll.MeetingID,
		Kind:      event.PollStopped,
		UserID:    userID,
		PollID:    poll.ID,
		Round:     poll.Round,
		At:        nowFunc(l.Now),
	})
	return poll, nil
}

// Commit 提交答案，记录在当前轮次下，返回轮次
func (l *PollLogic) Commit(ctx context.Context, userID, pollID int64, answers []types.Answer) (int, error) {
	poll, err := l.findPoll(ctx, pollID)
	if err != nil {
		return 0, err
	}
	switch poll.Status {
	case types.PollDone:
		return 0, errorx.Newf(errorx.CodePollAlreadyDone, "poll is over: %d", pollID)
	case types.PollNew:
		return 0, errorx.Newf(errorx.CodePollNotStart, "poll not start: %d", pollID)
	}

	var results []*types.PollResult
	for _, a := range answers {
		for _, option := range a.OptionIDs {
			results = append(results, &types.PollResult{
				PollID:     pollID,
				QuestionID: a.QuestionID,
				OptionID:   option,
				Round:      poll.Round,
				VoterID:    userID,
			})
		}
	}
	if err := l.Polls.InsertResults(ctx, results); err != nil {
		return 0, errorx.Internal(errorx.CodePollDatabase, err)
	}
	return poll.Round, nil
}

// Result 统计当前轮次的投票结果，之前轮次的记录不计入
// 结果未分享时只有会议所有者可以查看
func (l *PollLogic) Result(ctx context.Context, userID, pollID int64) (*types.PollSummary, error) {
	poll, err := l.findPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.Status == types.PollNew {
		return nil, errorx.Newf(errorx.CodePollNotStart, "poll not start: %d", pollID)
	}
	if !poll.Share {
		if err := l.checkHost(ctx, poll, userID); err != nil {
			return nil, err
		}
	}

	results, err := l.Polls.FindResults(ctx, pollID, poll.Round, 0)
	if err != nil {
		return nil, errorx.Internal(errorx.CodePollDatabase, err)
	}

	summary := &types.PollSummary{
		PollID:      poll.ID,
		Title:       poll.Title,
		Round:       poll.Round,
		Status:      poll.Status,
		IsAnonymous: poll.IsAnonymous,
		Options:     []types.OptionResult{},
	}
	voters := mapset.NewThreadUnsafeSet[int64]()
	for _, r := range results {
		voters.Add(r.VoterID)
		n := len(summary.Options)
		if n == 0 || summary.Options[n-1].QuestionID != r.QuestionID || summary.Options[n-1].OptionID != r.OptionID {
			summary.Options = append(summary.Options, types.OptionResult{QuestionID: r.QuestionID, OptionID: r.OptionID})
			n++
		}
		option := &summary.Options[n-1]
		option.Count++
		if !poll.IsAnonymous {
			option.Voters = append(option.Voters, r.VoterID)
		}
	}
	summary.VoterNum = voters.Cardinality()
	return summary, nil
}

// Answer 返回用户在当前轮次提交的答案
func (l *PollLogic) Answer(ctx context.Context, userID, pollID int64) ([]types.Answer, error) {
	poll, err := l.findPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	results, err := l.Polls.FindResults(ctx, pollID, poll.Round, userID)
	if err != nil {
		return nil, errorx.Internal(errorx.CodePollDatabase, err)
	}

	answers := []types.Answer{}
	for _, r := range results {
		n := len(answers)
		if n == 0 || answers[n-1].QuestionID != r.QuestionID {
			answers = append(answers, types.Answer{QuestionID: r.QuestionID})
			n++
		}
		answers[n-1].OptionIDs = append(answers[n-1].OptionIDs, r.OptionID)
	}
	return answers, nil
}

// SetShare 修改结果是否对参会者可见
func (l *PollLogic) SetShare(ctx context.Context, userID, pollID int64, share bool) (*types.Poll, error) {
	poll, err := l.findPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if err := l.checkHost(ctx, poll, userID); err != nil {
		return nil, err
	}

	if err := l.Polls.SetShare(ctx, pollID, share); err != nil {
		logx.WithContext(ctx).Errorf("failed to update poll %d share status: %v", pollID, err)
		return nil, errorx.Internal(errorx.CodePollDatabase, err)
	}
	poll.Share = share
	return poll, nil
}

// Delete 只允许删除未开始过的投票
func (l *PollLogic) Delete(ctx context.Context, userID, pollID int64) error {
	poll, err := l.findPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.Status != types.PollNew {
		return errorx.Newf(errorx.CodePollAlreadyStart, "poll already start: %d", pollID)
	}
	if err := l.checkHost(ctx, poll, userID); err != nil {
		return err
	}

	deleted, err := l.Polls.Delete(ctx, pollID)
	if err != nil {
		return errorx.Internal(errorx.CodePollDatabase, err)
	}
	if !deleted {
		return errorx.Newf(errorx.CodePollAlreadyStart, "poll already start: %d", pollID)
	}
	return nil
}
