package worker

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/service"
)

type workerService struct {
	worker *Worker
}

// Service 把 Worker 适配为 go-zero 的 service.Service，Start 阻塞到 Stop 被调用
func (w *Worker) Service() service.Service {
	return workerService{worker: w}
}

func (s workerService) Start() {
	h, err := s.worker.Start(context.Background())
	if err != nil {
		logx.Errorf("closure worker: %v", err)
	}
	<-h.Done()
}

func (s workerService) Stop() {
	s.worker.Stop()
}
