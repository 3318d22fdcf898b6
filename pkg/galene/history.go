// Copyright 2024-2026 Aiku AI

package galene

import "time"

// DefaultHistoryWindow is how old a chat message may be before it is treated
// as replayed history.
const DefaultHistoryWindow = 5 * time.Second

// IsHistory reports whether t lies more than window in the past. The server
// replays recent chat to clients that join, and such messages must not be
// relayed again.
func IsHistory(t time.Time, window time.Duration) bool {
	return isHistoryAt(t, window, time.Now())
}

func isHistoryAt(t time.Time, window time.Duration, now time.Time) bool {
	return t.Add(window).Before(now)
}
