package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hikarw/kioku/internal/domain/entities"
)

// StatisticsService is a read-only aggregation layer over the review and
// history tables. It never mutates anything.
type StatisticsService struct {
	store StatsStore
	log   *zap.Logger
}

// NewStatisticsService builds the statistics engine.
func NewStatisticsService(store StatsStore, log *zap.Logger) *StatisticsService {
	return &StatisticsService{store: store, log: log}
}

// Mastery counts flashcard-track items whose stored stability has reached the
// mastery threshold. Per-type counts always sum to the totals. The MCQ track
// has no mastery notion.
func (s *StatisticsService) Mastery(ctx context.Context, itemType *entities.ItemType, jlptLevel *int) (*entities.MasteryStats, error) {
	if itemType != nil && !itemType.IsValid() {
		return nil, fmt.Errorf("%w: item type %q", entities.ErrInvalidArgument, *itemType)
	}

	rows, err := s.store.ReviewRows(ctx, itemType, jlptLevel)
	if err != nil {
		return nil, err
	}

	stats := &entities.MasteryStats{ByType: make(map[entities.ItemType]entities.MasteryCount)}
	for _, r := range rows {
		count := stats.ByType[r.ItemType]
		count.Total++
		stats.Total++
		if r.Card.Stability >= entities.MasteryThresholdDays {
			count.Mastered++
			stats.Mastered++
		}
		stats.ByType[r.ItemType] = count
	}
	return stats, nil
}

// RetentionRate is the percentage of history rows rated Good or Easy over the
// inclusive calendar-date range. Empty history yields 0.0.
func (s *StatisticsService) RetentionRate(ctx context.Context, start, end *time.Time) (float64, error) {
	rows, err := s.historyInRange(ctx, start, end)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0.0, nil
	}

	success := 0
	for _, row := range rows {
		if row.Rating.Success() {
			success++
		}
	}
	return float64(success) / float64(len(rows)) * 100, nil
}

// DailyCounts returns per-date review counts. When both bounds are given,
// every date in the inclusive range appears, zero-filled; otherwise only
// dates that have reviews appear.
func (s *StatisticsService) DailyCounts(ctx context.Context, start, end *time.Time) ([]entities.DailyCount, error) {
	rows, err := s.historyInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	counts := make(map[time.Time]int)
	for _, row := range rows {
		counts[dateOf(row.ReviewedAt)]++
	}

	if start != nil && end != nil {
		from, to := dateOf(*start), dateOf(*end)
		out := make([]entities.DailyCount, 0, int(to.Sub(from).Hours()/24)+1)
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			out = append(out, entities.DailyCount{Date: d, Count: counts[d]})
		}
		return out, nil
	}

	out := make([]entities.DailyCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, entities.DailyCount{Date: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// AverageDuration is the mean of recorded answer durations in seconds,
// rounded to one decimal. Rows without a duration are skipped; 0.0 when no
// row qualifies.
func (s *StatisticsService) AverageDuration(ctx context.Context, start, end *time.Time) (float64, error) {
	rows, err := s.historyInRange(ctx, start, end)
	if err != nil {
		return 0, err
	}

	var totalMs, n int
	for _, row := range rows {
		if row.DurationMs == nil {
			continue
		}
		totalMs += *row.DurationMs
		n++
	}
	if n == 0 {
		return 0.0, nil
	}
	seconds := float64(totalMs) / float64(n) / 1000.0
	return math.Round(seconds*10) / 10, nil
}

// MostReviewed returns the top-limit flashcard reviews by review count
// descending, ties broken by ascending id for reproducibility.
func (s *StatisticsService) MostReviewed(ctx context.Context, limit int, itemType *entities.ItemType) ([]*entities.Review, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d must be positive", entities.ErrInvalidArgument, limit)
	}
	if itemType != nil && !itemType.IsValid() {
		return nil, fmt.Errorf("%w: item type %q", entities.ErrInvalidArgument, *itemType)
	}
	return s.store.TopReviewed(ctx, limit, itemType)
}

// historyInRange widens the bounds to whole calendar days (UTC) before
// querying, so ranges are date-inclusive regardless of the time component.
func (s *StatisticsService) historyInRange(ctx context.Context, start, end *time.Time) ([]entities.HistoryRow, error) {
	var from, to *time.Time
	if start != nil {
		f := dateOf(*start)
		from = &f
	}
	if end != nil {
		t := dateOf(*end).AddDate(0, 0, 1) // exclusive upper bound
		to = &t
	}
	return s.store.HistoryBetween(ctx, from, to)
}

// dateOf truncates a timestamp to midnight UTC of its calendar date.
func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
