// Package scheduler runs the billing service on a cron schedule.
//
// Every run, whether started by the schedule, the ops API or the command
// line, goes through Job. A Job takes a Locker before billing so that two
// runs never charge the same invoices at once, and records each attempt in
// a bounded History.
//
//	job := scheduler.NewJob(service, locker, scheduler.NewHistory(50), logger, metrics)
//	s, err := scheduler.New("0 0 1 * *", job, logger)
//	if err != nil {
//		return err
//	}
//	s.Start()
//	defer s.Stop(ctx)
package scheduler
