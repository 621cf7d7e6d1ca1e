package cron

import (
	"context"
	"os"
	"testing"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"k8s.io/client-go/kubernetes"

	"github.com/craftworks/mailtriage/config"
	"github.com/craftworks/mailtriage/dto"
	cron_config "github.com/craftworks/mailtriage/internal/cron/config"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/logger"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

type mockEmailProcessor struct {
	mock.Mock
}

func (m *mockEmailProcessor) ProcessPending(ctx context.Context, doctype enum.Doctype, limit int) (*dto.ProcessingStats, error) {
	args := m.Called(ctx, doctype, limit)
	if stats, ok := args.Get(0).(*dto.ProcessingStats); ok {
		return stats, args.Error(1)
	}
	return nil, args.Error(1)
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func TestNewCronManager(t *testing.T) {
	cfg := &config.Config{
		Logger: &logger.Config{
			LogLevel: "info",
		},
	}
	log := getLogger()
	k8s := &mockKubernetesInterface{}

	cm := NewCronManager(cfg, log, k8s, nil)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_RegisteredSchedulesParse(t *testing.T) {
	os.Setenv("CRON_SCHEDULE_PROCESS_LEADS", "0 */5 * * * *")
	os.Setenv("CRON_SCHEDULE_PROCESS_EXPENSES", "0 */15 * * * *")
	defer os.Unsetenv("CRON_SCHEDULE_PROCESS_LEADS")
	defer os.Unsetenv("CRON_SCHEDULE_PROCESS_EXPENSES")

	cfg := &config.Config{
		Logger: &logger.Config{
			LogLevel: "info",
		},
	}
	cm := NewCronManager(cfg, getLogger(), &mockKubernetesInterface{}, nil)

	mockCron := cronv3.New(cronv3.WithSeconds())

	var cronConfig cron_config.Config
	cronConfig.CronScheduleProcessLeads = "0 */5 * * * *"
	cronConfig.CronScheduleProcessExpenses = "0 */15 * * * *"

	leadsID, err := mockCron.AddFunc(cronConfig.CronScheduleProcessLeads, func() {})
	assert.NoError(t, err)
	cm.jobIDs["process_leads"] = leadsID

	expensesID, err := mockCron.AddFunc(cronConfig.CronScheduleProcessExpenses, func() {})
	assert.NoError(t, err)
	cm.jobIDs["process_expenses"] = expensesID

	cm.cron = mockCron

	assert.NotNil(t, cm.cron)
	assert.Equal(t, 2, len(cm.jobIDs))
}

func TestCronManager_StartupDrainHoldsProcessingLock(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	proc := new(mockEmailProcessor)
	proc.On("ProcessPending", mock.Anything, enum.DoctypeLead, 0).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(&dto.ProcessingStats{}, nil).Once()
	proc.On("ProcessPending", mock.Anything, enum.DoctypeExpense, 0).
		Return(&dto.ProcessingStats{}, nil).Once()

	cfg := &config.Config{
		Logger: &logger.Config{
			LogLevel: "info",
		},
	}
	cm := NewCronManager(cfg, getLogger(), nil, proc)
	cm.StartCron()
	defer cm.Stop()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("startup drain never ran")
	}

	// The drain owns the processing lock for its whole run; a scheduled tick
	// firing now would queue on the mutex instead of overlapping the drain.
	assert.False(t, jobLocks.locks[GroupProcessing].TryLock())

	close(release)

	assert.Eventually(t, func() bool {
		if jobLocks.locks[GroupProcessing].TryLock() {
			jobLocks.locks[GroupProcessing].Unlock()
			return true
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	proc.AssertExpectations(t)
}

func TestCronManager_Stop(t *testing.T) {
	cfg := &config.Config{
		Logger: &logger.Config{
			LogLevel: "info",
		},
	}
	cm := NewCronManager(cfg, getLogger(), &mockKubernetesInterface{}, nil)

	mockCron := cronv3.New()
	mockCron.Start()
	cm.cron = mockCron

	cm.Stop()

	select {
	case <-cm.stopCh:
	default:
		t.Error("Stop channel was not closed")
	}
}
