package loadtest

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	DefaultTimeout       = 10 * time.Second
	PercentageMultiplier = 100
	progressInterval     = time.Second
	maxResponseBytes     = 1 << 20
)

// DefaultTotals are the quiz lengths offered by the web client.
var DefaultTotals = []int{10, 20, 30}
