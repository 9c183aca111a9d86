package automation

// Stats summarizes an affiliate's automations and their executions
type Stats struct {
	TotalAutomations  int64
	ActiveAutomations int64
	Jobs              map[ExecutionStatus]int64
	SuccessRate       float64
}

// NewStats derives the success rate from the job counts. The rate is the
// share of SENT among finished deliveries (SENT and FAILED) in percent.
func NewStats(total, active int64, jobs map[ExecutionStatus]int64) Stats {
	if jobs == nil {
		jobs = make(map[ExecutionStatus]int64)
	}
	for _, s := range []ExecutionStatus{StatusScheduled, StatusSent, StatusFailed, StatusCancelled} {
		if _, ok := jobs[s]; !ok {
			jobs[s] = 0
		}
	}
	rate := 0.0
	if finished := jobs[StatusSent] + jobs[StatusFailed]; finished > 0 {
		rate = float64(jobs[StatusSent]) / float64(finished) * 100
	}
	return Stats{
		TotalAutomations:  total,
		ActiveAutomations: active,
		Jobs:              jobs,
		SuccessRate:       rate,
	}
}
