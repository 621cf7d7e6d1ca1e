package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/craftworks/mailtriage/config"
	"github.com/craftworks/mailtriage/dto"
	cron_config "github.com/craftworks/mailtriage/internal/cron/config"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/tracing"
)

const (
	// GroupProcessing serializes processing jobs; only one pipeline run
	// touches the staging queue at a time.
	GroupProcessing = "processing"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupProcessing: new(sync.Mutex),
	},
}

// pendingProcessor is the slice of the email processor the scheduler drives.
type pendingProcessor interface {
	ProcessPending(ctx context.Context, doctype enum.Doctype, limit int) (*dto.ProcessingStats, error)
}

type CronManager struct {
	cfg       *config.Config
	log       logger.Logger
	cron      *cronv3.Cron
	k8s       kubernetes.Interface
	stopCh    chan struct{}
	jobIDs    map[string]cronv3.EntryID
	processor pendingProcessor
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, emailProcessor pendingProcessor) *CronManager {
	return &CronManager{
		cfg:       cfg,
		log:       log,
		k8s:       k8s,
		stopCh:    make(chan struct{}),
		jobIDs:    make(map[string]cronv3.EntryID),
		processor: emailProcessor,
	}
}

// Start initializes and starts the cron manager with leader election.
// If k8s is nil, it will start in local mode without leader election.
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "mailtriage-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		le.Run(context.Background())
	}()

	// Fall back to local mode if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c

	// Drain whatever queued up while the scheduler was down. The drain holds
	// the processing lock so the first scheduled tick cannot overlap it.
	go func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		jobLocks.locks[GroupProcessing].Lock()
		defer jobLocks.locks[GroupProcessing].Unlock()
		cm.runProcessing(enum.DoctypeLead)
		cm.runProcessing(enum.DoctypeExpense)
	}()
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronScheduleProcessLeads != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleProcessLeads, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupProcessing].Lock()
			defer jobLocks.locks[GroupProcessing].Unlock()
			cm.runProcessing(enum.DoctypeLead)
		})
		if err != nil {
			cm.log.Fatalf("Could not add lead processing cron job: %v", err)
		}
		cm.jobIDs["process_leads"] = id
		cm.log.Infof("Registered lead processing job with schedule: %s", cronConfig.CronScheduleProcessLeads)
	}

	if cronConfig.CronScheduleProcessExpenses != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleProcessExpenses, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupProcessing].Lock()
			defer jobLocks.locks[GroupProcessing].Unlock()
			cm.runProcessing(enum.DoctypeExpense)
		})
		if err != nil {
			cm.log.Fatalf("Could not add expense processing cron job: %v", err)
		}
		cm.jobIDs["process_expenses"] = id
		cm.log.Infof("Registered expense processing job with schedule: %s", cronConfig.CronScheduleProcessExpenses)
	}
}

func (cm *CronManager) runProcessing(doctype enum.Doctype) {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.runProcessing")
	defer span.Finish()
	tracing.TagComponentCronJob(span)
	span.SetTag("doctype", doctype.String())

	stats, err := cm.processor.ProcessPending(ctx, doctype, 0)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Processing run for %s failed: %v", doctype, err)
		return
	}

	if stats.Aborted {
		cm.log.Warnf("Processing run %s for %s aborted: %s", stats.RunID, doctype, stats.AbortReason)
	}
}
