package cmrdocs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/internal/cmr/propagation"
	"github.com/freightlinkhq/freightlink-backend/internal/cmrdocs/layout"
	"github.com/freightlinkhq/freightlink-backend/pkg/config"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
	"github.com/freightlinkhq/freightlink-backend/pkg/logger"
	"github.com/freightlinkhq/freightlink-backend/pkg/outbox"
)

const artifactContentType = "text/plain; charset=utf-8"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// DocumentMergedEvent is emitted once a merged artifact is persisted.
type DocumentMergedEvent struct {
	GroupID   uuid.UUID `json:"group_id"`
	OrderID   uuid.UUID `json:"order_id"`
	ObjectKey string    `json:"object_key"`
	Filename  string    `json:"filename"`
}

// Service renders consignment notes and merges multi-stop groups into
// one downloadable artifact.
type Service interface {
	Render(cmr models.CMR, order *models.Order) ([]byte, error)
	MergeGroup(ctx context.Context, groupID uuid.UUID) (*models.CMRArtifact, error)
	LatestArtifact(ctx context.Context, groupID uuid.UUID) (*models.CMRArtifact, []byte, error)
}

type service struct {
	groups    GroupReader
	writer    GroupWriter
	orders    OrderReader
	artifacts ArtifactRepository
	store     ArtifactStore
	locker    Locker
	renderer  layout.Renderer
	tx        txRunner
	outbox    outboxPublisher
	cfg       config.RenderConfig
	logg      *logger.Logger
}

// NewService builds the document pipeline.
func NewService(
	groups GroupReader,
	writer GroupWriter,
	orders OrderReader,
	artifacts ArtifactRepository,
	store ArtifactStore,
	locker Locker,
	renderer layout.Renderer,
	tx txRunner,
	outboxPub outboxPublisher,
	cfg config.RenderConfig,
	logg *logger.Logger,
) (Service, error) {
	if groups == nil || orders == nil || artifacts == nil || store == nil {
		return nil, fmt.Errorf("group reader, order reader, artifact repository and store required")
	}
	if tx == nil || outboxPub == nil {
		return nil, fmt.Errorf("transaction runner and outbox publisher required")
	}
	if renderer == nil {
		renderer = layout.NewTextRenderer()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &service{
		groups:    groups,
		writer:    writer,
		orders:    orders,
		artifacts: artifacts,
		store:     store,
		locker:    locker,
		renderer:  renderer,
		tx:        tx,
		outbox:    outboxPub,
		cfg:       cfg,
		logg:      logg,
	}, nil
}

// Render produces the document for one note. The output is a pure
// function of the note and order snapshots: rendering an unchanged
// note twice yields byte-identical output.
func (s *service) Render(cmr models.CMR, order *models.Order) ([]byte, error) {
	data, err := s.renderer.Render(BuildDocument(cmr, order))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRenderFailed, err, "render document").
			WithDetails(map[string]any{"stop_index": cmr.StopIndex})
	}
	return data, nil
}

// MergeGroup renders every note of the group in ascending stop index
// after recomputing signature propagation, concatenates the documents
// and persists one artifact. A failed stop aborts the whole merge so
// a corrupted partial document can never ship. Concurrent merges of
// the same group are collapsed to one: losers return the winner's
// latest artifact.
func (s *service) MergeGroup(ctx context.Context, groupID uuid.UUID) (*models.CMRArtifact, error) {
	if groupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if s.locker != nil {
		lockKey := "cmrdocs:merge:" + groupID.String()
		acquired, err := s.locker.SetNX(ctx, lockKey, time.Now().UTC().Unix(), s.cfg.LockTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire merge lock")
		}
		if !acquired {
			latest, err := s.artifacts.LatestByGroup(ctx, groupID)
			if err == nil {
				return latest, nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "merge already in progress")
		}
		defer func() {
			if err := s.locker.Del(context.WithoutCancel(ctx), lockKey); err != nil && s.logg != nil {
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
					"group_id": groupID.String(),
					"error":    err.Error(),
				}), "cmrdocs.merge.lock_release_failed")
			}
		}()
	}

	rows, err := s.groups.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cmr group not found")
	}

	order, err := s.orders.FindByID(ctx, rows[0].OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	resolved, _ := propagation.Propagate(rows)
	s.refreshSharedCache(ctx, groupID, resolved)

	var merged bytes.Buffer
	for i, row := range resolved {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeRenderFailed, err, "render timed out").
				WithDetails(map[string]any{"stop_index": row.StopIndex})
		}
		data, err := s.Render(row, order)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			merged.Write(layout.PageBreak)
		}
		merged.Write(data)
	}

	generatedAt := time.Now().UTC()
	filename := fmt.Sprintf("cmr-group-%s-%d", order.ID, generatedAt.Unix())
	objectKey := "cmr/" + filename

	if err := s.store.Save(ctx, objectKey, artifactContentType, merged.Bytes()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist merged document")
	}

	hash := sha256.Sum256(merged.Bytes())
	artifact := &models.CMRArtifact{
		GroupID:     groupID,
		OrderID:     order.ID,
		ObjectKey:   objectKey,
		Filename:    filename,
		SizeBytes:   int64(merged.Len()),
		ContentHash: hex.EncodeToString(hash[:]),
		GeneratedAt: generatedAt,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.artifacts.WithTx(tx).Create(ctx, artifact); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record artifact")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCMRDocumentMerged,
			AggregateType: enums.AggregateCMRGroup,
			AggregateID:   groupID,
			Version:       1,
			Data: DocumentMergedEvent{
				GroupID:   groupID,
				OrderID:   order.ID,
				ObjectKey: objectKey,
				Filename:  filename,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// refreshSharedCache writes the recomputed shared signatures back so
// the cached columns stay consistent with the resolution. The columns
// are convenience only; failure here never fails a merge.
func (s *service) refreshSharedCache(ctx context.Context, groupID uuid.UUID, resolved []models.CMR) {
	if s.writer == nil || len(resolved) == 0 {
		return
	}
	err := s.writer.UpdateGroup(ctx, groupID, map[string]any{
		"shared_sender_signature":    resolved[0].SharedSenderSignature,
		"shared_carrier_signature":   resolved[0].SharedCarrierSignature,
		"shared_consignee_signature": resolved[0].SharedConsigneeSignature,
	})
	if err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"group_id": groupID.String(),
			"error":    err.Error(),
		}), "cmrdocs.merge.shared_cache_refresh_failed")
	}
}

func (s *service) LatestArtifact(ctx context.Context, groupID uuid.UUID) (*models.CMRArtifact, []byte, error) {
	artifact, err := s.artifacts.LatestByGroup(ctx, groupID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "no merged document for group")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load artifact")
	}
	data, err := s.store.Read(ctx, artifact.ObjectKey)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read artifact")
	}
	return artifact, data, nil
}
