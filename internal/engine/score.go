package engine

import (
	"sort"
	"strings"
)

// Engagement scores are normalized to a 0..10 scale per platform family so
// results from different networks rank against each other.

// VideoScore rates view-driven platforms. Comments weigh heaviest since they
// signal active engagement rather than passive playback.
func VideoScore(views, likes, comments int64) float64 {
	v := float64(clampCount(views))
	l := float64(clampCount(likes))
	c := float64(clampCount(comments))
	return clipScore((v + l*10 + c*20) / 100000)
}

// SocialScore rates feed platforms where shares are the strongest signal.
func SocialScore(likes, comments, shares int64, engagementRate float64) float64 {
	l := float64(clampCount(likes))
	c := float64(clampCount(comments))
	s := float64(clampCount(shares))
	if engagementRate < 0 {
		engagementRate = 0
	}
	return clipScore((l + c*5 + s*10 + engagementRate*1000) / 10000)
}

// MicroblogScore rates repost-driven platforms. Quote posts outrank plain
// reposts because they carry commentary.
func MicroblogScore(retweets, likes, replies, quotes int64) float64 {
	r := float64(clampCount(retweets))
	l := float64(clampCount(likes))
	p := float64(clampCount(replies))
	q := float64(clampCount(quotes))
	return clipScore((r*10 + l*2 + p*5 + q*15) / 5000)
}

// WebScore maps search relevance onto the shared scale.
func WebScore(relevance float64) float64 {
	return clipScore(relevance * 10)
}

// ScoreRecord computes the viral score for a record based on its platform.
func ScoreRecord(rec *SearchRecord) {
	switch strings.ToLower(rec.Platform) {
	case "youtube", "video":
		rec.ViralScore = VideoScore(rec.Metrics.Views, rec.Metrics.Likes, rec.Metrics.Comments)
	case "twitter", "x":
		rec.ViralScore = MicroblogScore(rec.Metrics.Retweets, rec.Metrics.Likes, rec.Metrics.Replies, rec.Metrics.Quotes)
	case "instagram", "facebook", "tiktok", "social":
		rec.ViralScore = SocialScore(rec.Metrics.Likes, rec.Metrics.Comments, rec.Metrics.Shares, rec.Metrics.EngagementRate)
	default:
		rec.ViralScore = WebScore(rec.Relevance)
	}
}

// TopViral returns the n highest-scoring records across all buckets, ties
// keeping their incoming order. Records that scored zero are not viral.
func TopViral(records []SearchRecord, n int) []SearchRecord {
	if n <= 0 {
		return nil
	}
	scored := make([]SearchRecord, 0, len(records))
	for _, r := range records {
		if r.ViralScore > 0 {
			scored = append(scored, r)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].ViralScore > scored[j].ViralScore
	})
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

func clampCount(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func clipScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
