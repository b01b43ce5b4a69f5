package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// CronService runs the background jobs: draining the audit outbox, purging
// expired refresh tokens and the nightly ledger reconciliation
type CronService struct {
	cron      *cron.Cron
	audit     *AuditService
	reconcile *ReconcileService
	auth      *AuthService
}

// CronSchedule holds the job specs in robfig/cron syntax
type CronSchedule struct {
	AuditRetry string
	Reconcile  string
}

// NewCronService registers every job. It fails on an invalid spec.
func NewCronService(audit *AuditService, reconcile *ReconcileService, auth *AuthService, schedule CronSchedule) (*CronService, error) {
	s := &CronService{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger), cron.Recover(cron.DefaultLogger))),
		audit:     audit,
		reconcile: reconcile,
		auth:      auth,
	}

	if _, err := s.cron.AddFunc(schedule.AuditRetry, s.retryAudit); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(schedule.Reconcile, s.runReconcile); err != nil {
		return nil, err
	}
	if auth != nil {
		if _, err := s.cron.AddFunc("@daily", s.purgeTokens); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start launches the scheduler
func (s *CronService) Start() {
	s.cron.Start()
	log.Printf("🚀 CronService started (%d jobs)", len(s.cron.Entries()))
}

// Stop waits for running jobs and stops the scheduler
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	log.Println("🛑 CronService stopped")
}

func (s *CronService) retryAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	written, err := s.audit.RetryPending(ctx)
	if err != nil {
		log.Printf("❌ Audit outbox retry error: %v", err)
		return
	}
	if written > 0 {
		log.Printf("📝 Audit outbox: %d pending entries written", written)
	}
}

func (s *CronService) runReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if _, err := s.reconcile.Run(ctx); err != nil {
		log.Printf("❌ Reconciliation error: %v", err)
	}
}

func (s *CronService) purgeTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.auth.PurgeExpiredTokens(ctx); err != nil {
		log.Printf("❌ Refresh token purge error: %v", err)
	}
}
