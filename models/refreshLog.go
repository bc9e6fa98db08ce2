package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/segments_backend/config"
	"gorm.io/gorm"
)

type RefreshStatus string

const (
	RefreshStatusStarted RefreshStatus = "started"
	RefreshStatusSuccess RefreshStatus = "success"
	RefreshStatusFailed  RefreshStatus = "failed"
)

// DataRefreshLog is the append-only audit record of one ingestion run.
// Created with status started, updated in place as chunks commit, finalized
// exactly once to success or failed. A long-lived started status means the
// process died mid-run; the last committed chunk stands.
type DataRefreshLog struct {
	ID               int           `gorm:"primary_key" json:"id"`
	Status           RefreshStatus `gorm:"type:enum('started','success','failed');not null;default:'started'" json:"status"`
	RecordsProcessed int           `gorm:"not null;default:0" json:"recordsProcessed"`
	Error            string        `gorm:"type:text" json:"error,omitempty"`
	StartedAt        time.Time     `gorm:"not null" json:"startedAt"`
	CompletedAt      *time.Time    `json:"completedAt"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"createdAt"`
}

func CreateRefreshLog(ctx context.Context) (*DataRefreshLog, error) {
	db := config.GetDB()
	refreshLog := DataRefreshLog{
		Status:           RefreshStatusStarted,
		RecordsProcessed: 0,
		StartedAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&refreshLog).Error; err != nil {
		return nil, err
	}
	return &refreshLog, nil
}

// setRecordsProcessed runs inside the chunk transaction so progress becomes
// visible only when the chunk commits. processed is cumulative for the run.
func (l *DataRefreshLog) setRecordsProcessed(tx *gorm.DB, processed int) error {
	if err := tx.Model(&DataRefreshLog{}).
		Where("id = ?", l.ID).
		Update("records_processed", processed).Error; err != nil {
		return err
	}
	l.RecordsProcessed = processed
	return nil
}

// finalize moves the log to its terminal status. The started-status guard in
// the WHERE makes finalization idempotent under races.
func (l *DataRefreshLog) finalize(ctx context.Context, status RefreshStatus, errMsg string) error {
	db := config.GetDB()
	now := time.Now().UTC()
	if err := db.WithContext(ctx).Model(&DataRefreshLog{}).
		Where("id = ? AND status = ?", l.ID, RefreshStatusStarted).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": &now,
			"error":        errMsg,
		}).Error; err != nil {
		return err
	}
	l.Status = status
	l.CompletedAt = &now
	l.Error = errMsg
	return nil
}

func ListRefreshLogs(ctx context.Context, page int, limit int) ([]*DataRefreshLog, *PaginationMeta, error) {
	page, limit = NormalizePageLimit(page, limit)
	db := config.GetDB()

	var total int64
	if err := db.WithContext(ctx).Model(&DataRefreshLog{}).Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var logs []*DataRefreshLog
	if err := db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, nil, err
	}
	return logs, NewPaginationMeta(page, limit, int(total)), nil
}
