package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// 任务类型常量
const (
	TypeHistoryPrune = "history:prune" // 对局历史保留清理
)

const (
	QueueLow = "low"

	// 同一时间窗口内只保留一个待执行的清理任务
	pruneUniqueTTL = 30 * time.Second
)

// NewHistoryPruneTask 创建历史清理任务，清理本身没有参数
func NewHistoryPruneTask() *asynq.Task {
	return asynq.NewTask(TypeHistoryPrune, nil)
}

// Enqueuer 把后台任务投递到 asynq，实现 service.PruneEnqueuer
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	if client == nil {
		panic("asynq client cannot be nil for Enqueuer")
	}
	return &Enqueuer{client: client}
}

// EnqueuePrune 投递一次历史清理。已有相同任务排队时视为成功。
func (e *Enqueuer) EnqueuePrune(ctx context.Context) error {
	info, err := e.client.EnqueueContext(ctx, NewHistoryPruneTask(),
		asynq.Queue(QueueLow),
		asynq.Unique(pruneUniqueTTL),
		asynq.MaxRetry(3),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			logrus.Debug("History prune task already queued")
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", TypeHistoryPrune, err)
	}
	logrus.WithFields(logrus.Fields{"task_id": info.ID, "queue": info.Queue}).Debug("History prune task enqueued")
	return nil
}
