package player

import "sync"

var (
	shared     *Player
	sharedOnce sync.Once
)

// Shared returns a process-wide [Player], creating it with default options
// on first use. Hosts that can pass a player explicitly should construct
// their own with [New] instead.
func Shared() *Player {
	sharedOnce.Do(func() {
		shared = New()
	})
	return shared
}
