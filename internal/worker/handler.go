package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Pruner 执行历史保留清理，由 service.HistoryService 实现
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// HistoryPruneHandler 处理 history:prune 任务
type HistoryPruneHandler struct {
	pruner Pruner
}

// NewHistoryPruneHandler 创建 Handler 实例
func NewHistoryPruneHandler(pruner Pruner) *HistoryPruneHandler {
	if pruner == nil {
		panic("Pruner cannot be nil for HistoryPruneHandler")
	}
	return &HistoryPruneHandler{pruner: pruner}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *HistoryPruneHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID, _ := asynq.GetTaskID(ctx)
	queue, _ := asynq.GetQueueName(ctx)
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"queue":     queue,
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
	logCtx.Debug("Processing history prune task...")

	deleted, err := h.pruner.Prune(ctx)
	if err != nil {
		logCtx.WithError(err).Error("History prune failed")
		return fmt.Errorf("prune history: %w", err)
	}
	if deleted > 0 {
		logCtx.WithField("deleted", deleted).Info("History prune task removed old games")
	}
	return nil
}
