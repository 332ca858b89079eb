// File: internal/jobs/product_expiry.go
package jobs

import (
	"context"
	"fmt"
	"time"

	"deals_marketplace/internal/config"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper is the maintenance operation the job triggers.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// ProductExpiryJob periodically removes products past their retention window.
type ProductExpiryJob struct {
	sweeper       Sweeper
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
	timeout       time.Duration
}

// NewProductExpiryJob creates a new ProductExpiryJob.
func NewProductExpiryJob(sweeper Sweeper, logger *zap.Logger, cfg *config.Config) *ProductExpiryJob {
	cronLog := NewCronLogger(logger.Named("cron"))
	scheduler := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.SkipIfStillRunning(cronLog), cron.Recover(cronLog)),
	)

	return &ProductExpiryJob{
		sweeper:       sweeper,
		logger:        logger.Named("ProductExpiryJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
		timeout:       5 * time.Minute,
	}
}

// SetupAndStart schedules and starts the cron job.
func (j *ProductExpiryJob) SetupAndStart() error {
	jobSpec := j.cfg.ProductExpiryJobSchedule
	if jobSpec == "" {
		j.logger.Warn("Product expiry job schedule not defined (PRODUCT_EXPIRY_JOB_SCHEDULE). Job will not run.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, func() { _, _ = j.RunOnce(context.Background()) })
	if err != nil {
		j.logger.Error("Failed to schedule product expiry job", zap.String("spec", jobSpec), zap.Error(err))
		return fmt.Errorf("schedule product expiry job %q: %w", jobSpec, err)
	}

	j.logger.Info("Product expiry job scheduled", zap.String("spec", jobSpec), zap.Int("jobID", int(jobID)))
	j.cronScheduler.Start()
	return nil
}

// RunOnce performs a single sweep, bounded by the job timeout.
func (j *ProductExpiryJob) RunOnce(ctx context.Context) (int64, error) {
	runID := uuid.NewString()
	log := j.logger.With(zap.String("runID", runID))
	log.Info("Starting product expiry run")

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	started := time.Now()
	expired, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		log.Error("Product expiry run failed", zap.Error(err))
		return 0, err
	}
	log.Info("Product expiry run completed",
		zap.Int64("products_expired", expired),
		zap.Duration("took", time.Since(started)),
	)
	return expired, nil
}

// Stop gracefully stops the cron scheduler.
func (j *ProductExpiryJob) Stop() {
	if j.cronScheduler == nil {
		return
	}
	j.logger.Info("Stopping product expiry job scheduler...")
	stopCtx := j.cronScheduler.Stop()
	select {
	case <-stopCtx.Done():
		j.logger.Info("Product expiry job scheduler stopped gracefully.")
	case <-time.After(10 * time.Second):
		j.logger.Warn("Product expiry job scheduler stop timed out.")
	}
}

// --- Cron Logger Adapter ---

// cronLogger adapts zap.Logger to cron.Logger interface.
type cronLogger struct {
	zl *zap.Logger
}

// NewCronLogger creates a new cronLogger.
func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

// Info logs routine messages from cron at debug level; cron is chatty.
func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	cl.zl.Debug(msg, parseKeysAndValues(keysAndValues...)...)
}

// Error logs error messages from cron.
func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(parseKeysAndValues(keysAndValues...), zap.Error(err))
	cl.zl.Error(msg, fields...)
}

func parseKeysAndValues(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(key, "MISSING_VALUE"))
		}
	}
	return fields
}
