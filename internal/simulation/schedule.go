package simulation

// Schedule is the ordered list of processed-token counts at which a stream
// is checkpointed. It is strictly increasing and ends at the stream length.
type Schedule []int

// BuildSchedule splits a stream of n tokens into parts equal partitions and
// returns the partition boundaries floor(n*p/parts) for p in [1, parts].
// Boundaries that repeat the previous one, or that fall at 0 processed
// tokens, are collapsed, so the schedule has at most min(n, parts) entries.
// Non-positive n or parts yield an empty schedule.
func BuildSchedule(n, parts int) Schedule {
	if n <= 0 || parts <= 0 {
		return Schedule{}
	}

	sched := make(Schedule, 0, min(n, parts))
	prev := 0

	for p := 1; p <= parts; p++ {
		t := int(int64(n) * int64(p) / int64(parts))
		if t == prev {
			continue
		}

		sched = append(sched, t)
		prev = t
	}

	return sched
}

// Len returns the number of checkpoints.
func (s Schedule) Len() int {
	return len(s)
}

// Last returns the final checkpoint, or 0 for an empty schedule.
func (s Schedule) Last() int {
	if len(s) == 0 {
		return 0
	}

	return s[len(s)-1]
}
