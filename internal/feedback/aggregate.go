package feedback

// FeedbackTotals counts rated messages by rating.
type FeedbackTotals struct {
	Total    int `json:"total"`
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// RefinementTotals counts refinements.
type RefinementTotals struct {
	Total int `json:"total"`
}

// CategoryTotals is the per-category breakdown.
type CategoryTotals struct {
	Feedback    int `json:"feedback"`
	Positive    int `json:"positive"`
	Negative    int `json:"negative"`
	Refinements int `json:"refinements"`
}

// Aggregate is the read-only rollup over a window.
type Aggregate struct {
	Feedback    FeedbackTotals            `json:"feedback"`
	Refinements RefinementTotals          `json:"refinements"`
	Tags        map[string]int            `json:"tags"`
	ByCategory  map[string]CategoryTotals `json:"byCategory"`
}

const uncategorized = "uncategorized"

// Rollup computes the aggregate for the given rows. It never mutates its input.
func Rollup(b Batch) Aggregate {
	agg := Aggregate{
		Tags:       map[string]int{},
		ByCategory: map[string]CategoryTotals{},
	}

	for _, it := range b.Items {
		agg.Feedback.Total++
		cat := categoryKey(it.Category)
		ct := agg.ByCategory[cat]
		ct.Feedback++
		switch it.Rating {
		case RatingPositive:
			agg.Feedback.Positive++
			ct.Positive++
		case RatingNegative:
			agg.Feedback.Negative++
			ct.Negative++
		default:
			agg.Feedback.Neutral++
		}
		agg.ByCategory[cat] = ct
		countTags(agg.Tags, it.Tags)
	}

	for _, r := range b.Refinements {
		agg.Refinements.Total++
		cat := categoryKey(r.Category)
		ct := agg.ByCategory[cat]
		ct.Refinements++
		agg.ByCategory[cat] = ct
		countTags(agg.Tags, r.Tags)
	}
	return agg
}

// AsMetrics flattens the headline numbers into proposal metrics.
func (a Aggregate) AsMetrics() map[string]float64 {
	m := map[string]float64{
		"feedback.total":    float64(a.Feedback.Total),
		"feedback.positive": float64(a.Feedback.Positive),
		"feedback.negative": float64(a.Feedback.Negative),
		"feedback.neutral":  float64(a.Feedback.Neutral),
		"refinements.total": float64(a.Refinements.Total),
	}
	if a.Feedback.Total > 0 {
		m["feedback.positive_ratio"] = float64(a.Feedback.Positive) / float64(a.Feedback.Total)
	}
	return m
}

func categoryKey(c string) string {
	if c == "" {
		return uncategorized
	}
	return c
}

// countTags counts each distinct tag once per row.
func countTags(into map[string]int, tags []string) {
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		into[t]++
	}
}
