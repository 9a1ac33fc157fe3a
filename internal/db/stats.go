package db

import (
	"context"
	"fmt"
	"time"
)

// BucketStats aggregates the submissions that fell into one leak bucket.
type BucketStats struct {
	Bucket        string  `json:"bucket"`
	Count         int64   `json:"count"`
	AvgScore      float64 `json:"avgScore"`
	AvgRevenueEst float64 `json:"avgRevenueEst"`
	Emailed       int64   `json:"emailed"`
	CRMSynced     int64   `json:"crmSynced"`
}

// Stats summarises submissions created since a point in time.
type Stats struct {
	Since    time.Time     `json:"since"`
	Total    int64         `json:"total"`
	AvgScore float64       `json:"avgScore"`
	Buckets  []BucketStats `json:"buckets"`
}

// SubmissionStats groups submissions created at or after since by leak
// bucket. Buckets with no submissions are omitted.
func (s *Store) SubmissionStats(ctx context.Context, since time.Time) (Stats, error) {
	var rows []BucketStats
	err := s.db.WithContext(ctx).
		Model(&Submission{}).
		Select("leak_bucket AS bucket, COUNT(*) AS count, AVG(leak_score) AS avg_score, "+
			"AVG(revenue_est) AS avg_revenue_est, COUNT(email_sent_at) AS emailed, COUNT(crm_synced_at) AS crm_synced").
		Where("created_at >= ?", since).
		Group("leak_bucket").
		Order("leak_bucket").
		Scan(&rows).Error
	if err != nil {
		return Stats{}, fmt.Errorf("submission stats: %w", err)
	}
	return summarize(since, rows), nil
}

// summarize folds per-bucket rows into totals; the overall average is
// weighted by bucket size.
func summarize(since time.Time, rows []BucketStats) Stats {
	st := Stats{Since: since, Buckets: rows}
	if st.Buckets == nil {
		st.Buckets = []BucketStats{}
	}
	var weighted float64
	for _, r := range rows {
		st.Total += r.Count
		weighted += r.AvgScore * float64(r.Count)
	}
	if st.Total > 0 {
		st.AvgScore = weighted / float64(st.Total)
	}
	return st
}
