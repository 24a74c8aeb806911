package worker

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/DauBapp/WebCoCaro-DACN/internal/tasks"
)

// Scheduler 周期性投递历史清理任务
type Scheduler struct {
	scheduler *asynq.Scheduler
	log       *logrus.Entry
}

// NewScheduler 按 cronspec（如 "@every 10m"）注册 history:prune
func NewScheduler(redisOpt asynq.RedisClientOpt, cronspec string, logger *logrus.Logger) (*Scheduler, error) {
	logEntry := logger.WithField("component", "scheduler")
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: logger})

	entryID, err := scheduler.Register(cronspec, tasks.NewHistoryPruneTask(), asynq.Queue(tasks.QueueLow))
	if err != nil {
		return nil, fmt.Errorf("register %s with schedule %q: %w", tasks.TypeHistoryPrune, cronspec, err)
	}
	logEntry.Infof("Periodic history prune registered with schedule '%s' (EntryID: %s)", cronspec, entryID)
	return &Scheduler{scheduler: scheduler, log: logEntry}, nil
}

// Start 启动调度器，不阻塞
func (s *Scheduler) Start() error {
	s.log.Info("Asynq scheduler starting...")
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
	s.log.Info("Asynq scheduler stopped.")
}
