// Package scheduler запускает плановую задачу, помечающую просроченные
// активные подписки статусом expired. Записи со стёкшим сроком и без
// того не считаются действующими при разрешении прав, задача лишь
// приводит рекомендательный статус в соответствие с датами.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
)

// Sweeper описывает операцию выметания просроченных подписок.
type Sweeper interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

// Scheduler управляет плановыми задачами сервиса.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	log     *slog.Logger
}

// New создает планировщик с ежедневным выметанием просроченных подписок.
func New(sweeper Sweeper, log *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		log:     log,
	}
	if _, err := s.cron.AddFunc("@daily", s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start запускает планировщик в фоне.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("expiry scheduler started")
}

// Stop останавливает планировщик и дожидается завершения текущей задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("expiry scheduler stopped")
}

func (s *Scheduler) sweep() {
	count, err := s.sweeper.ExpireOverdue(context.Background())
	if err != nil {
		s.log.Error("failed to expire overdue subscriptions", sl.Err(err))
		return
	}
	s.log.Info("expiry sweep finished", slog.Int64("expired", count))
}
