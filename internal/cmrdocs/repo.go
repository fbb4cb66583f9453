package cmrdocs

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
)

type artifactRepository struct {
	db *gorm.DB
}

// NewArtifactRepository builds an artifact repository bound to the
// provided DB.
func NewArtifactRepository(db *gorm.DB) ArtifactRepository {
	return &artifactRepository{db: db}
}

func (r *artifactRepository) WithTx(tx *gorm.DB) ArtifactRepository {
	if tx == nil {
		return r
	}
	return &artifactRepository{db: tx}
}

func (r *artifactRepository) Create(ctx context.Context, artifact *models.CMRArtifact) error {
	return r.db.WithContext(ctx).Create(artifact).Error
}

func (r *artifactRepository) LatestByGroup(ctx context.Context, groupID uuid.UUID) (*models.CMRArtifact, error) {
	var artifact models.CMRArtifact
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("generated_at DESC").
		First(&artifact).Error
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}
