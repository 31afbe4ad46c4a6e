package config

import "time"

// Application constants
const (
	AppName    = "sopo-dashboard"
	AppVersion = "1.0.0"

	// Input encodings understood by the shipment loader
	EncodingEUCKR = "euc-kr"
	EncodingUTF8  = "utf-8"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// File Paths (relative to RootDir)
	DefaultDataDir    = "data"
	DefaultLogsDir    = "logs"
	DefaultReportsDir = "data/reports"
	DefaultCSVPath    = "data/logistics_by_center.csv"

	// Analytics defaults
	DefaultZScoreThreshold   = 2.5
	DefaultHolidayWindowDays = 2
	DefaultPeriodDays        = 14
	DefaultRankingWorkers    = 4
	DefaultJobWorkers        = 2
	DefaultSeed              = 42
	DefaultWorstN            = 10

	// Network Timeouts
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second
)

// AllowedPeriodDays lists the evaluation windows offered to callers.
var AllowedPeriodDays = []int{7, 14, 30}

// IsAllowedPeriod reports whether days is one of AllowedPeriodDays.
func IsAllowedPeriod(days int) bool {
	for _, d := range AllowedPeriodDays {
		if d == days {
			return true
		}
	}
	return false
}
