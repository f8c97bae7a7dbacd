// state_cleanup.go — периодическая очистка просроченного состояния сессий.
//
// StateCleanupService запускает фоновую горутину с ticker
// (SC_STATE_CLEANUP_INTERVAL) и удаляет из console_state записи
// с истёкшим expires_at. Используется только с бэкендом сессий postgres.
//
// Prometheus-метрики:
//   - sc_session_state_removed_total — удалено просроченных записей
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

var stateRemoved = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sc_session_state_removed_total",
	Help: "Количество удалённых просроченных записей состояния сессий",
})

// ExpiredStateDeleter удаляет просроченное состояние сессий.
type ExpiredStateDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// StateCleanupService — фоновая очистка console_state.
type StateCleanupService struct {
	repo     ExpiredStateDeleter
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStateCleanupService создаёт сервис очистки.
func NewStateCleanupService(repo ExpiredStateDeleter, interval time.Duration, logger *slog.Logger) *StateCleanupService {
	return &StateCleanupService{
		repo:     repo,
		interval: interval,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "state_cleanup")),
	}
}

// Start запускает фоновую горутину с периодической очисткой.
func (s *StateCleanupService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Периодическая очистка состояния сессий запущена",
			slog.String("interval", s.interval.String()),
		)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Периодическая очистка состояния сессий остановлена")
				return
			case <-ticker.C:
				result, err := s.CleanupNow(ctx)
				if err != nil {
					s.logger.Error("Ошибка очистки состояния сессий",
						slog.String("error", err.Error()),
					)
					continue
				}
				if result.Removed > 0 {
					s.logger.Info("Просроченное состояние сессий удалено",
						slog.Int64("removed", result.Removed),
						slog.String("duration", result.Duration().String()),
					)
				}
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (s *StateCleanupService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// CleanupNow выполняет немедленную очистку.
func (s *StateCleanupService) CleanupNow(ctx context.Context) (*model.CleanupResult, error) {
	result := &model.CleanupResult{StartedAt: s.now()}

	removed, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return nil, fmt.Errorf("очистка console_state: %w", err)
	}
	result.Removed = removed
	result.CompletedAt = s.now()
	stateRemoved.Add(float64(removed))
	return result, nil
}
