package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// AttemptPurger deletes old login attempt rows
type AttemptPurger interface {
	CleanupOldAttempts(ctx context.Context, daysOld int) (int64, error)
}

// AuditPurger deletes old setting audit rows
type AuditPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob runs the scheduled purge of login attempts and the
// setting audit trail. Lock rows are never purged; they are the durable
// lockout history.
type RetentionJob struct {
	attempts         AttemptPurger
	audit            AuditPurger
	logger           *slog.Logger
	schedule         string
	loginAttemptDays int
	settingAuditDays int
	cron             *cron.Cron
}

func NewRetentionJob(attempts AttemptPurger, audit AuditPurger, logger *slog.Logger, schedule string, loginAttemptDays, settingAuditDays int) *RetentionJob {
	return &RetentionJob{
		attempts:         attempts,
		audit:            audit,
		logger:           logger,
		schedule:         schedule,
		loginAttemptDays: loginAttemptDays,
		settingAuditDays: settingAuditDays,
	}
}

// Start schedules the purge and runs it once immediately
func (j *RetentionJob) Start() error {
	j.cron = cron.New()

	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return err
	}

	go j.run()
	j.cron.Start()

	j.logger.Info("retention job scheduled",
		slog.String("schedule", j.schedule),
		slog.Int("login_attempt_days", j.loginAttemptDays),
		slog.Int("setting_audit_days", j.settingAuditDays))
	return nil
}

// Stop halts the schedule and waits for a running purge to finish
func (j *RetentionJob) Stop() {
	if j.cron != nil {
		ctx := j.cron.Stop()
		<-ctx.Done()
	}
}

func (j *RetentionJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	deleted, err := j.attempts.CleanupOldAttempts(ctx, j.loginAttemptDays)
	if err != nil {
		j.logger.Error("login attempt purge failed", slog.Any("error", err))
	} else if deleted > 0 {
		j.logger.Info("login attempt purge completed", slog.Int64("deleted", deleted))
	}

	cutoff := time.Now().AddDate(0, 0, -j.settingAuditDays)
	deleted, err = j.audit.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("setting audit purge failed", slog.Any("error", err))
	} else if deleted > 0 {
		j.logger.Info("setting audit purge completed", slog.Int64("deleted", deleted))
	}
}
