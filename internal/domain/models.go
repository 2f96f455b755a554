package domain

import "time"

// RawRecord is a single upstream record before normalization. Shapes differ
// per acquisition method, so it stays a loose map.
type RawRecord map[string]any

// UnifiedPost is the normalized item every platform is mapped into
type UnifiedPost struct {
	ID        string    `json:"id"`
	Platform  Platform  `json:"platform"`
	Author    string    `json:"author"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	URL       string    `json:"url"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	Reposts   int       `json:"reposts"`
	Views     int       `json:"views,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// Estimated is set when the source carried no timestamp and fetch time was used.
	Estimated bool    `json:"timestampEstimated,omitempty"`
	Image     string  `json:"image,omitempty"`
	Score     float64 `json:"score"`
	Strategy  string  `json:"strategy,omitempty"`
}

// Engagement is the unweighted interaction total used for minimum-engagement filtering.
func (p UnifiedPost) Engagement() int {
	return p.Likes + p.Comments + p.Reposts
}

// CacheEntry is the serialized form of a cached adapter result
type CacheEntry struct {
	Key       string        `json:"key"`
	Payload   []UnifiedPost `json:"payload"`
	ExpiresAt time.Time     `json:"expiresAt"`
}
