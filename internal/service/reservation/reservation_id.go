package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/lavendermoon/villa-pms/internal/repository"
)

// seqDateLayout 编号中的日期段 YYMMDD
const seqDateLayout = "060102"

// FormatReservationID 生成 PREFIX-YYMMDD-NN，NN 至少两位
func FormatReservationID(prefix string, checkIn time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%02d", prefix, checkIn.Format(seqDateLayout), seq)
}

// allocateID 为入住日期分配下一个编号
func (s *Service) allocateID(ctx context.Context, seqRepo *repository.SequenceRepository, checkIn time.Time) (string, error) {
	seq, err := seqRepo.Next(ctx, checkIn.Format(seqDateLayout))
	if err != nil {
		return "", err
	}
	return FormatReservationID(s.cfg.IDPrefix, checkIn, seq), nil
}
