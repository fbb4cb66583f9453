package cmr

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a CMR repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBatch(ctx context.Context, cmrs []models.CMR) error {
	if len(cmrs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&cmrs).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CMR, error) {
	var row models.CMR
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.CMR, error) {
	var rows []models.CMR
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("stop_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, cmrID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.CMR{}).
		Where("id = ?", cmrID).
		Updates(updates).Error
}

func (r *repository) UpdateGroup(ctx context.Context, groupID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.CMR{}).
		Where("group_id = ?", groupID).
		Updates(updates).Error
}

type sequenceNumberSource struct {
	db *gorm.DB
}

// NewNumberSource hands out CMR numbers backed by the cmr_number_seq
// datastore sequence.
func NewNumberSource(db *gorm.DB) NumberSource {
	return &sequenceNumberSource{db: db}
}

func (s *sequenceNumberSource) Next(ctx context.Context, tx *gorm.DB, count int) ([]string, error) {
	conn := s.db
	if tx != nil {
		conn = tx
	}
	numbers := make([]string, 0, count)
	rows, err := conn.WithContext(ctx).
		Raw("SELECT nextval('cmr_number_seq') FROM generate_series(1, ?)", count).
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		numbers = append(numbers, fmt.Sprintf("CMR-%07d", seq))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return numbers, nil
}
