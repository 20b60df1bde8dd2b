package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/yourusername/report-card/internal/config"
	"github.com/yourusername/report-card/internal/reports"
)

const (
	taskTypeReport = "report:generate"
	taskTypeSweep  = "session:sweep"

	// 期限切れセッションの時間ベース掃除の周期です。リクエスト数ベースの
	// 掃除と併用することで、アイドルなインスタンスでも溜まり続けません。
	sweepSchedule = "@every 5m"
)

// SessionSweeper は期限切れセッションを削除できるサービスが実装します。
type SessionSweeper interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// Manager はジョブの投入と状態管理を担います。
type Manager struct {
	cfg       *config.Config
	client    *asynq.Client
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	store     *Store
	reports   *reports.Service
	sweeper   SessionSweeper
	logger    *log.Logger
}

// TaskPayload は帳票生成ジョブのペイロードです。
type TaskPayload struct {
	JobID    string `json:"jobId"`
	OwnerID  int64  `json:"ownerId"`
	SchoolID int64  `json:"schoolId"`
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, reportService *reports.Service, sweeper SessionSweeper, store *Store, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if reportService == nil {
		return nil, errors.New("reportService is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"reports":     2,
				"maintenance": 1,
			},
		},
	)
	scheduler := asynq.NewScheduler(opt, nil)

	mux := asynq.NewServeMux()
	manager := &Manager{
		cfg:       cfg,
		client:    client,
		server:    server,
		scheduler: scheduler,
		mux:       mux,
		store:     store,
		reports:   reportService,
		sweeper:   sweeper,
		logger:    logger,
	}
	mux.HandleFunc(taskTypeReport, manager.handleReportTask)
	mux.HandleFunc(taskTypeSweep, manager.handleSweepTask)

	if sweeper != nil {
		sweepTask := asynq.NewTask(taskTypeSweep, nil, asynq.Queue("maintenance"))
		if _, err := scheduler.Register(sweepSchedule, sweepTask); err != nil {
			return nil, fmt.Errorf("failed to register sweep schedule: %w", err)
		}
	}
	return manager, nil
}

// StartWorkers は Asynq のサーバーとスケジューラーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			m.logf("asynq server stopped with error: %v", err)
		}
	}()
	if m.sweeper != nil {
		if err := m.scheduler.Start(); err != nil {
			m.logf("failed to start scheduler: %v", err)
		}
	}
}

// Shutdown はサーバー・スケジューラー・クライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.sweeper != nil {
		m.scheduler.Shutdown()
	}
	m.server.Shutdown()
	m.client.Close()
	return nil
}

// Schedule はジョブをキューに投入します。reports.JobScheduler を実装します。
func (m *Manager) Schedule(ctx context.Context, jobID string, ownerID, schoolID int64) error {
	_, err := m.Enqueue(ctx, &TaskPayload{
		JobID:    jobID,
		OwnerID:  ownerID,
		SchoolID: schoolID,
	})
	return err
}

// Enqueue はジョブレコードを作成してキューに投入します。
func (m *Manager) Enqueue(ctx context.Context, payload *TaskPayload) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("payload is nil")
	}
	if payload.JobID == "" {
		return "", fmt.Errorf("payload.JobID is required")
	}

	record := &Record{
		JobID:     payload.JobID,
		Operation: taskTypeReport,
		Status:    StatusQueued,
		OwnerID:   payload.OwnerID,
		SchoolID:  payload.SchoolID,
		Progress: ProgressInfo{
			Percent: 0,
			Stage:   "queued",
		},
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(taskTypeReport, body, asynq.Queue("reports"))
	info, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(1))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// GetRecord はジョブ情報を取得します。
func (m *Manager) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}

func (m *Manager) handleReportTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}

	if err := m.store.MarkRunning(ctx, payload.JobID); err != nil {
		return err
	}

	result, err := m.reports.RunJob(ctx, payload.JobID, func(stage string, percent int) {
		_ = m.store.UpdateProgress(ctx, payload.JobID, ProgressInfo{
			Stage:   stage,
			Percent: percent,
		})
	})
	if err != nil {
		return m.failJobWithError(ctx, payload.JobID, err)
	}

	downloadURL := fmt.Sprintf("/api/v1/jobs/%s/download", result.JobID)
	return m.store.MarkDone(ctx, payload.JobID, downloadURL, result.Meta)
}

func (m *Manager) handleSweepTask(ctx context.Context, task *asynq.Task) error {
	if m.sweeper == nil {
		return nil
	}
	deleted, err := m.sweeper.CleanupExpiredSessions(ctx)
	if err != nil {
		m.logf("scheduled session sweep failed: %v", err)
		return err
	}
	if deleted > 0 {
		m.logf("scheduled session sweep removed %d sessions", deleted)
	}
	return nil
}

func (m *Manager) failJobWithError(ctx context.Context, jobID string, err error) error {
	var apiErr *reports.Error
	if errors.As(err, &apiErr) {
		return m.store.MarkFailed(ctx, jobID, &ErrorInfo{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		})
	}
	return m.store.MarkFailed(ctx, jobID, &ErrorInfo{
		Code:    "INTERNAL_ERROR",
		Message: err.Error(),
	})
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
