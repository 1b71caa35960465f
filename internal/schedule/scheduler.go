package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	RunOnce(ctx context.Context, name string) error
	Start(ctx context.Context)
	Stop()
}

type scheduledJob struct {
	job     Job
	spec    string
	running atomic.Bool
}

type CronScheduler struct {
	cron *cron.Cron
	jobs map[string]*scheduledJob
	ctx  context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
		jobs: make(map[string]*scheduledJob),
	}
}

// AddJob registers a job. An empty spec registers it for RunOnce only.
func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	if _, exists := c.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	spec = strings.TrimSpace(spec)
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	sj := &scheduledJob{job: job, spec: spec}
	if spec != "" {
		if _, err := c.cron.AddFunc(spec, func() { _ = c.run(c.context(), sj) }); err != nil {
			logger.Error("schedule job failed", zap.Error(err))
			return err
		}
		logger.Info("job scheduled")
	} else {
		logger.Info("job registered without schedule")
	}
	c.jobs[name] = sj
	return nil
}

// RunOnce runs a registered job right away, unless it is already running.
func (c *CronScheduler) RunOnce(ctx context.Context, name string) error {
	sj, ok := c.jobs[name]
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	return c.run(ctx, sj)
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *CronScheduler) run(ctx context.Context, sj *scheduledJob) error {
	logger := logutil.GetLogger(ctx).With(
		zap.String("job", sj.job.Name()),
		zap.String("spec", sj.spec),
	)
	if !sj.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return nil
	}
	defer sj.running.Store(false)

	start := time.Now()
	logger.Info("job started")
	err := sj.job.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
		return err
	}
	logger.Info("job finished", zap.Duration("duration", elapsed))
	return nil
}
