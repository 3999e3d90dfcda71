package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
	"github.com/noah-isme/sessionguard/pkg/jobs"
)

const (
	ipHistoryQueueName = "ip_history"
	ipHistoryJobType   = "ip_history.record"
	// DefaultIPHistoryLimit is how many history rows device views show.
	DefaultIPHistoryLimit = 10
)

type ipHistoryRepository interface {
	Record(ctx context.Context, userID, ip string, at time.Time) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.IPHistory, error)
}

type ipHistoryEntry struct {
	UserID string
	IP     string
	At     time.Time
}

// IPHistoryService records login addresses off the request path.
type IPHistoryService struct {
	repo    ipHistoryRepository
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewIPHistoryService builds the service and its worker queue. Call Start
// before recording and Stop on shutdown.
func NewIPHistoryService(repo ipHistoryRepository, cfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *IPHistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &IPHistoryService{repo: repo, metrics: metrics, logger: logger}

	cfg.Logger = logger
	cfg.OnGiveUp = func(job jobs.Job, err error) {
		s.metrics.RecordJobDropped(ipHistoryQueueName)
	}
	s.queue = jobs.NewQueue(ipHistoryQueueName, s.handle, cfg)
	return s
}

// Start launches the workers.
func (s *IPHistoryService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains buffered records and stops the workers.
func (s *IPHistoryService) Stop() {
	s.queue.Stop()
}

// Record schedules a history write. It never blocks and never fails the
// caller; a full buffer drops the record.
func (s *IPHistoryService) Record(userID, ip string, at time.Time) {
	if userID == "" || ip == "" {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    ipHistoryJobType,
		Payload: ipHistoryEntry{UserID: userID, IP: ip, At: at},
	}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.metrics.RecordJobDropped(ipHistoryQueueName)
		s.logger.Warn("ip history record dropped",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// History returns the most recent addresses for userID.
func (s *IPHistoryService) History(ctx context.Context, userID string, limit int) ([]models.IPHistory, error) {
	if limit <= 0 {
		limit = DefaultIPHistoryLimit
	}
	rows, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load ip history")
	}
	return rows, nil
}

func (s *IPHistoryService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(ipHistoryEntry)
	if !ok {
		return errors.New("unexpected ip history payload")
	}
	if err := s.repo.Record(ctx, entry.UserID, entry.IP, entry.At); err != nil {
		return fmt.Errorf("record ip history: %w", err)
	}
	return nil
}
