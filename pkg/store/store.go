// Package store persists tasks, their keywords and matched influencers.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db/models"
)

// ErrTaskNotFound is returned when a task ID has no row
var ErrTaskNotFound = errors.New("task not found")

// ErrClaimContention is returned when a keyword could not be claimed
// because other callers kept winning the race
var ErrClaimContention = errors.New("keyword claim contention")

const maxClaimAttempts = 5

// KeywordCounts is the processed/total split for a task
type KeywordCounts struct {
	Total     int64
	Processed int64
}

type TaskStore struct {
	logger *logrus.Logger
	db     *gorm.DB
}

func NewTaskStore(logger *logrus.Logger, db *gorm.DB) *TaskStore {
	return &TaskStore{
		logger: logger,
		db:     db,
	}
}

// supportsRowLocks reports whether SELECT ... FOR UPDATE is available
func (s *TaskStore) supportsRowLocks() bool {
	return s.db.Dialector.Name() == "postgres"
}

// CreateTaskWithKeywords persists a task and its keywords in one transaction.
// Keywords are inserted in slice order.
func (s *TaskStore) CreateTaskWithKeywords(ctx context.Context, task *models.Task, queries []string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}

		keywords := make([]models.Keyword, 0, len(queries))
		for _, q := range queries {
			keywords = append(keywords, models.Keyword{
				TaskID:    task.ID,
				Query:     q,
				CreatedAt: task.CreatedAt,
			})
		}
		if len(keywords) == 0 {
			return nil
		}
		if err := tx.Create(&keywords).Error; err != nil {
			return fmt.Errorf("failed to insert keywords: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"keywords": len(queries),
	}).Debug("Task persisted")
	return nil
}

func (s *TaskStore) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Where("id = ?", taskID).Take(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return &task, nil
}

// ListRecentTasks returns up to limit tasks, newest first
func (s *TaskStore) ListRecentTasks(ctx context.Context, limit int) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskStore) ListKeywords(ctx context.Context, taskID string) ([]models.Keyword, error) {
	var keywords []models.Keyword
	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("id ASC").
		Find(&keywords).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	return keywords, nil
}

// ClaimNextKeyword selects the earliest unprocessed keyword of a task and
// flags it processed in the same transaction. It returns nil when every
// keyword has been claimed. The flag is set with a conditional update so two
// callers can never both claim the same keyword.
func (s *TaskStore) ClaimNextKeyword(ctx context.Context, taskID string) (*models.Keyword, error) {
	var claimed *models.Keyword

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for attempt := 0; attempt < maxClaimAttempts; attempt++ {
			query := tx.Where("task_id = ? AND processed = ?", taskID, false).Order("id ASC")
			if s.supportsRowLocks() {
				query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
			}

			var keyword models.Keyword
			err := query.Take(&keyword).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to select keyword: %w", err)
			}

			now := time.Now().UTC()
			result := tx.Model(&models.Keyword{}).
				Where("id = ? AND processed = ?", keyword.ID, false).
				Updates(map[string]interface{}{
					"processed":    true,
					"processed_at": now,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to flag keyword: %w", result.Error)
			}
			if result.RowsAffected == 1 {
				keyword.Processed = true
				keyword.ProcessedAt = &now
				claimed = &keyword
				return nil
			}

			s.logger.WithFields(logrus.Fields{
				"task_id":    taskID,
				"keyword_id": keyword.ID,
				"attempt":    attempt + 1,
			}).Debug("Keyword claimed by another caller, retrying")
		}
		return ErrClaimContention
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ReleaseKeyword returns a claimed keyword to the unprocessed pool
func (s *TaskStore) ReleaseKeyword(ctx context.Context, keywordID uint64) error {
	err := s.db.WithContext(ctx).Model(&models.Keyword{}).
		Where("id = ?", keywordID).
		Updates(map[string]interface{}{
			"processed":    false,
			"processed_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to release keyword: %w", err)
	}
	return nil
}

func (s *TaskStore) CountKeywords(ctx context.Context, taskID string) (KeywordCounts, error) {
	var counts KeywordCounts
	err := s.db.WithContext(ctx).Model(&models.Keyword{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN processed THEN 1 ELSE 0 END), 0) AS processed").
		Where("task_id = ?", taskID).
		Scan(&counts).Error
	if err != nil {
		return KeywordCounts{}, fmt.Errorf("failed to count keywords: %w", err)
	}
	return counts, nil
}

// InsertInfluencers stores rows, silently skipping any whose
// (task, channel, video) triple already exists. It returns the number of
// rows actually inserted.
func (s *TaskStore) InsertInfluencers(ctx context.Context, rows []models.Influencer) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var inserted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			row := rows[i]
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "task_id"}, {Name: "channel_id"}, {Name: "video_id"}},
				DoNothing: true,
			}).Create(&row)
			if result.Error != nil {
				return fmt.Errorf("failed to insert influencer %s/%s: %w", row.ChannelID, row.VideoID, result.Error)
			}
			inserted += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListInfluencers returns a task's rows ordered by views descending
func (s *TaskStore) ListInfluencers(ctx context.Context, taskID string) ([]models.Influencer, error) {
	var rows []models.Influencer
	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("views DESC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list influencers: %w", err)
	}
	return rows, nil
}

// UpdateProgress moves a running task forward. The update applies only while
// the task is running and the new progress is not lower than the stored one,
// so it reports false when another caller already moved the task further.
func (s *TaskStore) UpdateProgress(ctx context.Context, taskID string, progress int, status models.TaskStatus) (bool, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"progress":   progress,
		"status":     status,
		"updated_at": now,
	}
	if status.IsTerminal() {
		updates["completed_at"] = now
	}

	result := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status = ? AND progress <= ?", taskID, models.StatusRunning, progress).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update progress: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FailTask moves a running task to failed with progress 100
func (s *TaskStore) FailTask(ctx context.Context, taskID, message string) (bool, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status = ?", taskID, models.StatusRunning).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"progress":      100,
			"error_message": message,
			"updated_at":    now,
			"completed_at":  now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark task failed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *TaskStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access connection pool: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
