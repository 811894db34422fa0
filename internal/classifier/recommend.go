package classifier

import (
	"sort"

	"github.com/seantiz/taskroute/internal/platform"
)

// RecommendCount is the number of platforms recommended per task.
const RecommendCount = 3

// Recommend ranks the snapshot by the mean of speed, reliability and
// scalability, descending, breaking ties by id ascending, and returns up to
// n platform ids.
func Recommend(snap platform.Snapshot, n int) []string {
	ranked := make(platform.Snapshot, len(snap))
	copy(ranked, snap)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := ranked[i].Performance.RoutingScore(), ranked[j].Performance.RoutingScore()
		if si != sj {
			return si > sj
		}
		return ranked[i].ID < ranked[j].ID
	})

	ids := make([]string, 0, min(n, len(ranked)))
	for _, p := range ranked {
		if len(ids) == n {
			break
		}
		ids = append(ids, p.ID)
	}
	return ids
}
