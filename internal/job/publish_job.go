package job

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type userLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

type publisher interface {
	PublishAll(ctx context.Context, userID string) (int, error)
}

// PublishJob republishes every document of every user that has one.
type PublishJob struct {
	users     userLister
	publisher publisher
}

func NewPublishJob(users userLister, publisher publisher) *PublishJob {
	return &PublishJob{users: users, publisher: publisher}
}

func (j *PublishJob) Name() string {
	return "publish"
}

func (j *PublishJob) Run(ctx context.Context) error {
	userIDs, err := j.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	var errs error
	total := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		n, err := j.publisher.PublishAll(ctx, userID)
		total += n
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("user %s: %w", userID, err))
		}
	}
	logutil.GetLogger(ctx).Info("documents republished",
		zap.Int("users", len(userIDs)),
		zap.Int("documents", total),
	)
	return errs
}
