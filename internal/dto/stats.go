package dto

import "time"

// SchoolStatsResponse aggregates school-facing counters. Computed from
// terminal, immutable-once-written data so repeated reads over unchanged
// stores return identical values.
type SchoolStatsResponse struct {
	SchoolID             string    `json:"schoolId"`
	PendingRequests      int       `json:"pendingRequests"`
	ApprovedRequests     int       `json:"approvedRequests"`
	DocumentedActivities int       `json:"documentedActivities"`
	SubmissionPoints     float64   `json:"submissionPoints"`
	ActivityPoints       float64   `json:"activityPoints"`
	TotalPoints          float64   `json:"totalPoints"`
	GeneratedAt          time.Time `json:"generatedAt"`
}

// SystemMetrics is a lightweight observability snapshot for admin tooling.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"avg_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
