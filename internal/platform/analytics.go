package platform

// AnalyticsData is a sparse set of post metrics. Platforms expose different
// metric sets, so every field is optional.
type AnalyticsData struct {
	Impressions    *int64   `json:"impressions,omitempty"`
	Reach          *int64   `json:"reach,omitempty"`
	Likes          *int64   `json:"likes,omitempty"`
	Comments       *int64   `json:"comments,omitempty"`
	Shares         *int64   `json:"shares,omitempty"`
	Clicks         *int64   `json:"clicks,omitempty"`
	Saves          *int64   `json:"saves,omitempty"`
	EngagementRate *float64 `json:"engagementRate,omitempty"`
}

// IsEmpty reports whether no metric is present.
func (a AnalyticsData) IsEmpty() bool {
	return a.Impressions == nil && a.Reach == nil && a.Likes == nil &&
		a.Comments == nil && a.Shares == nil && a.Clicks == nil &&
		a.Saves == nil && a.EngagementRate == nil
}

// withEngagementRate derives EngagementRate as
// (likes+comments+shares+saves)/impressions*100. Any rate reported by the
// vendor is discarded. Without impressions the rate is left unset.
func (a AnalyticsData) withEngagementRate() AnalyticsData {
	a.EngagementRate = nil
	if a.Impressions == nil || *a.Impressions <= 0 {
		return a
	}
	var interactions int64
	for _, v := range []*int64{a.Likes, a.Comments, a.Shares, a.Saves} {
		if v != nil {
			interactions += *v
		}
	}
	a.EngagementRate = Float64(float64(interactions) / float64(*a.Impressions) * 100)
	return a
}
