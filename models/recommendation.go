package models

type TrailerResult struct {
	SourceTitle string `json:"source_title"`
	VideoID     string `json:"video_id"`
}

type Outcome string

const (
	OutcomePopulated Outcome = "populated"
	OutcomeEmpty     Outcome = "empty"
)

// RecommendationBatch is the result of a single pipeline run. Results are in
// lookup completion order, which is not stable across runs.
type RecommendationBatch struct {
	Generation uint64          `json:"generation"`
	Title      string          `json:"title"`
	Results    []TrailerResult `json:"results"`
	Outcome    Outcome         `json:"outcome"`
}

func (s *RecommendationBatch) VideoIDs() []string {
	ids := make([]string, 0, len(s.Results))
	for _, r := range s.Results {
		ids = append(ids, r.VideoID)
	}
	return ids
}
