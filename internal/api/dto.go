package api

import (
	"github.com/starford/sowilo/internal/finder"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/query"
)

// FindResponse is the answer to GET /api/find.
type FindResponse struct {
	ID     string        `json:"id"`
	Query  query.Query   `json:"query"`
	Dir    string        `json:"dir"`
	Items  []models.Item `json:"items"`
	TookMS float64       `json:"took_ms"`
}

func newFindResponse(res *finder.Result) FindResponse {
	return FindResponse{
		ID:     res.ID,
		Query:  res.Query,
		Dir:    res.Dir,
		Items:  res.Items,
		TookMS: float64(res.Took.Microseconds()) / 1000,
	}
}

// ActionResponse lists the effects produced by POST /api/actions.
type ActionResponse struct {
	Effects []models.Effect `json:"effects"`
}

// CacheResponse describes the cached listing (GET /api/cache).
type CacheResponse struct {
	Cached    bool    `json:"cached"`
	Dir       string  `json:"dir,omitempty"`
	Recursive bool    `json:"recursive"`
	Entries   int     `json:"entries"`
	WalkedAt  string  `json:"walked_at,omitempty"`
	TookMS    float64 `json:"took_ms"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
}
