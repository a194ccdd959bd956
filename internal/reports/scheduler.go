package reports

import (
	"context"
	"log"
	"strings"
	"time"
)

// Scheduler triggers report batches on schedule.
type Scheduler struct {
	driver        *Driver
	dailyAt       string
	weeklyAt      string
	weeklyWeekday time.Weekday
	logger        *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(driver *Driver, cfg Config, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		driver:        driver,
		dailyAt:       cfg.DailyAt,
		weeklyAt:      cfg.WeeklyAt,
		weeklyWeekday: parseWeekday(cfg.WeeklyWeekday),
		logger:        logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.driver == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			tick := now.UTC()
			if matchesDailyAt(s.dailyAt, tick) {
				s.logger.Printf("reports: running daily batch")
				s.driver.RunBatch(ctx, CadenceDaily)
			}
			if tick.Weekday() == s.weeklyWeekday && matchesDailyAt(s.weeklyAt, tick) {
				s.logger.Printf("reports: running weekly batch")
				s.driver.RunBatch(ctx, CadenceWeekly)
			}
		}
	}
}

func matchesDailyAt(value string, now time.Time) bool {
	at, err := time.Parse("15:04", value)
	if err != nil {
		return false
	}
	return now.Hour() == at.Hour() && now.Minute() == at.Minute()
}

func parseWeekday(value string) time.Weekday {
	for day := time.Sunday; day <= time.Saturday; day++ {
		if strings.EqualFold(day.String(), value) {
			return day
		}
	}
	return time.Monday
}
