package lvb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpc"
)

const (
	internalRoomPath = "/api/client/get_internal_room"
	stopRoomPath     = "/api/client/stop_room"
)

var ErrHostNotSet = errors.New("lvb: host not set")

// RoomProvider 第三方视频房间服务
type RoomProvider interface {
	// StopRoom 关闭令牌对应的房间，返回是否成功以及服务方的房间 ID
	StopRoom(ctx context.Context, token string) (bool, int64, error)
}

type headerReq struct {
	AppKey string `header:"app-key"`
	Token  string `header:"token"`
}

type stopRoomReq struct {
	AppKey string `header:"app-key"`
	Token  string `header:"token"`
	RoomID int64  `json:"room_id"`
}

type internalRoomResp struct {
	RoomID int64 `json:"room_id,default=-1"`
}

type stopRoomResp struct {
	Success bool `json:"success,optional"`
}

type Client struct {
	host   string
	appKey string
}

func NewClient(host, appKey string) *Client {
	return &Client{host: strings.TrimRight(host, "/"), appKey: appKey}
}

func (c *Client) StopRoom(ctx context.Context, token string) (bool, int64, error) {
	if c.host == "" {
		return false, 0, ErrHostNotSet
	}

	var room internalRoomResp
	if err := c.call(ctx, http.MethodGet, internalRoomPath, &headerReq{AppKey: c.appKey, Token: token}, &room); err != nil {
		return false, 0, err
	}
	// 房间没有在服务方创建过，视为已关闭
	if room.RoomID == 0 {
		return true, 0, nil
	}

	var stopped stopRoomResp
	req := &stopRoomReq{AppKey: c.appKey, Token: token, RoomID: room.RoomID}
	if err := c.call(ctx, http.MethodPost, stopRoomPath, req, &stopped); err != nil {
		return false, room.RoomID, err
	}
	logx.WithContext(ctx).Infof("lvb stop room %d: %t", room.RoomID, stopped.Success)
	return stopped.Success, room.RoomID, nil
}

func (c *Client) call(ctx context.Context, method, path string, req, resp any) error {
	r, err := httpc.Do(ctx, method, c.host+path, req)
	if err != nil {
		return fmt.Errorf("lvb: %s %s: %w", method, path, err)
	}
	defer r.Body.Close()

	if r.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(r.Body, 1024))
		return fmt.Errorf("lvb: %s %s: status %d: %s", method, path, r.StatusCode, body)
	}
	return httpc.ParseJsonBody(r, resp)
}
