package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Realtime lead pipeline, every 5 minutes
	CronScheduleProcessLeads string `env:"CRON_SCHEDULE_PROCESS_LEADS" envDefault:"0 */5 * * * *"`
	// Realtime expense pipeline, every 15 minutes
	CronScheduleProcessExpenses string `env:"CRON_SCHEDULE_PROCESS_EXPENSES" envDefault:"0 */15 * * * *"`
}
