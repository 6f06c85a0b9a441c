// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const vipResyncInterval = 6 * time.Hour

// StartScheduler runs the periodic jobs: VIP resync every few hours and the
// nightly payout report upload (00:10 local time, previous day).
func StartScheduler(ctx context.Context, vip *VIPService, reports *ReportService, clock *Clock) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(clock.Location()))
	if err != nil {
		return nil, err
	}

	if vip != nil && vip.Checker != nil {
		_, err = sched.NewJob(
			gocron.DurationJob(vipResyncInterval),
			gocron.NewTask(func() {
				n, err := vip.SyncAll(ctx)
				if err != nil {
					log.Printf("[SCHED] VIP resync error: %v", err)
					return
				}
				log.Printf("[SCHED] ✅ VIP resync done: %d accounts", n)
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}

	if reports != nil && reports.Uploader != nil {
		_, err = sched.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 10, 0))),
			gocron.NewTask(func() {
				day := clock.Now().AddDate(0, 0, -1).Format(DayLayout)
				if _, err := reports.UploadDailyReport(ctx, day); err != nil {
					log.Printf("[SCHED] Report upload for %s failed: %v", day, err)
				}
			}),
		)
		if err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}
