package store

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Janitor 按 cron 表达式定期清理输出目录
type Janitor struct {
	c      *cron.Cron
	store  *FileStore
	maxAge time.Duration
	logger *zerolog.Logger
}

func NewJanitor(s *FileStore, schedule string, maxAge time.Duration) (*Janitor, error) {
	j := &Janitor{
		c:      cron.New(),
		store:  s,
		maxAge: maxAge,
		logger: s.logger,
	}
	if _, err := j.c.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.c.Start()
}

// Stop 等待正在执行的清理结束
func (j *Janitor) Stop() {
	<-j.c.Stop().Done()
}

func (j *Janitor) run() {
	if _, err := j.store.Prune(j.maxAge); err != nil {
		j.logger.Warn().Err(err).Msg("prune output failed")
	}
}
