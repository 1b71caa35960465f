package job

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xxxsen/richnote/internal/model"
)

const referenceSyncBatch = 200

type referenceSyncer interface {
	ListActive(ctx context.Context, limit, offset uint) ([]model.Document, error)
	SyncReferences(ctx context.Context, doc *model.Document) error
}

// ReferenceSyncJob rebuilds the document to entry index from content.
type ReferenceSyncJob struct {
	docs referenceSyncer
}

func NewReferenceSyncJob(docs referenceSyncer) *ReferenceSyncJob {
	return &ReferenceSyncJob{docs: docs}
}

func (j *ReferenceSyncJob) Name() string {
	return "reference_sync"
}

func (j *ReferenceSyncJob) Run(ctx context.Context) error {
	var errs error
	synced := 0
	for offset := uint(0); ; offset += referenceSyncBatch {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		docs, err := j.docs.ListActive(ctx, referenceSyncBatch, offset)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list documents: %w", err))
		}
		for i := range docs {
			if err := j.docs.SyncReferences(ctx, &docs[i]); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			synced++
		}
		if len(docs) < referenceSyncBatch {
			break
		}
	}
	logutil.GetLogger(ctx).Info("reference index rebuilt",
		zap.Int("documents", synced),
		zap.Int("failed", len(multierr.Errors(errs))),
	)
	return errs
}
