package service

import (
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/noah-isme/eco-coord-api/internal/dto"
)

// MetricsService keeps cheap in-process counters for the admin snapshot
// endpoint. Prometheus carries the full series; this is the quick look.
type MetricsService struct {
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	requestsTotal   atomic.Uint64
	requestDuration atomic.Uint64 // cumulative microseconds

	dbQueries       atomic.Uint64
	dbQueryDuration atomic.Uint64 // cumulative microseconds
}

func NewMetricsService() *MetricsService {
	return &MetricsService{}
}

func (s *MetricsService) RecordCacheHit()  { s.cacheHits.Add(1) }
func (s *MetricsService) RecordCacheMiss() { s.cacheMisses.Add(1) }

func (s *MetricsService) RecordRequest(duration time.Duration) {
	s.requestsTotal.Add(1)
	s.requestDuration.Add(uint64(duration.Microseconds()))
}

func (s *MetricsService) RecordDBQuery(duration time.Duration) {
	s.dbQueries.Add(1)
	s.dbQueryDuration.Add(uint64(duration.Microseconds()))
}

// Snapshot returns current counter values with derived averages.
func (s *MetricsService) Snapshot() dto.SystemMetrics {
	hits := s.cacheHits.Load()
	misses := s.cacheMisses.Load()
	requests := s.requestsTotal.Load()
	queries := s.dbQueries.Load()

	return dto.SystemMetrics{
		CacheHitRatio:            ratio(hits, hits+misses),
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: averageMs(s.requestDuration.Load(), requests),
		DBQueryCount:             queries,
		AverageDBQueryDurationMs: averageMs(s.dbQueryDuration.Load(), queries),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func ratio(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return roundTo(float64(part)/float64(whole), 4)
}

func averageMs(totalMicros, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return roundTo(float64(totalMicros)/float64(count)/1000, 3)
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow10(places)
	return math.Round(v*factor) / factor
}
