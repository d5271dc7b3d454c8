package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/models"
)

// SequenceRepository 预订编号日计数器仓储
type SequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository 创建计数器仓储
func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *SequenceRepository) WithTx(tx *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: tx}
}

// Next 以单条 upsert 原子递增 seqDate 的计数并返回新值，从 1 开始
// 绑定事务时随事务回滚；未绑定事务时立即提交
func (r *SequenceRepository) Next(ctx context.Context, seqDate string) (int, error) {
	var seq int
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO reservation_day_sequences (seq_date, last_seq, updated_at) VALUES (?, 1, ?)
		ON CONFLICT (seq_date) DO UPDATE
		SET last_seq = reservation_day_sequences.last_seq + 1, updated_at = excluded.updated_at
		RETURNING last_seq`,
		seqDate, time.Now(),
	).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// Current 返回 seqDate 当前计数，不存在时为 0
func (r *SequenceRepository) Current(ctx context.Context, seqDate string) (int, error) {
	var seq models.ReservationDaySequence
	err := r.db.WithContext(ctx).Where("seq_date = ?", seqDate).Limit(1).Find(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq.LastSeq, nil
}
