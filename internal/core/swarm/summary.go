package swarm

import "time"

// Stats summarizes a finished swarm
type Stats struct {
	Clients  int
	Failures int // Clients with an error or a non-zero exit code
	Min      time.Duration
	Max      time.Duration
	Mean     time.Duration
}

// Summarize computes elapsed-time statistics over the clients that ran
func Summarize(results []Result) Stats {
	stats := Stats{Clients: len(results)}

	var total time.Duration
	ran := 0
	for _, r := range results {
		if r.Err != nil || r.ExitCode != 0 {
			stats.Failures++
		}
		if r.ExitCode < 0 {
			continue
		}
		if ran == 0 || r.Elapsed < stats.Min {
			stats.Min = r.Elapsed
		}
		if r.Elapsed > stats.Max {
			stats.Max = r.Elapsed
		}
		total += r.Elapsed
		ran++
	}

	if ran > 0 {
		stats.Mean = total / time.Duration(ran)
	}

	return stats
}
