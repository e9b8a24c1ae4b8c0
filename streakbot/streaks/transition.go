package streaks

// Transition is the outcome of applying one day's progress to a record.
type Transition string

const (
	Started   Transition = "started"
	Continued Transition = "continued"
	Reset     Transition = "reset"
	Unchanged Transition = "unchanged"
)

// Advance applies a qualifying post made on today to prev and returns the
// resulting record. prev is never modified.
func Advance(prev *Record, key Key, channel string, today Date) (*Record, Transition) {
	if prev == nil {
		return &Record{
			GuildID:      key.GuildID,
			UserID:       key.UserID,
			Topic:        key.Topic,
			Channel:      channel,
			StreakLevel:  1,
			BestStreak:   1,
			LastPostedOn: today,
			CreatedOn:    today,
		}, Started
	}

	next := *prev
	next.Channel = channel

	var t Transition
	switch gap := today.DaysSince(prev.LastPostedOn); {
	case gap <= 0:
		t = Unchanged
	case gap == 1 && prev.StreakLevel > 0:
		next.StreakLevel = prev.StreakLevel + 1
		t = Continued
	default:
		next.StreakLevel = 1
		t = Reset
	}

	if next.BestStreak < next.StreakLevel {
		next.BestStreak = next.StreakLevel
	}
	if t != Unchanged {
		next.LastPostedOn = today
	}
	return &next, t
}
