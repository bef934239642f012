package preview

import (
	"sync"

	"github.com/webtor-io/recs/models"
)

// View holds what a detail screen would render for the recommendation
// section. It is written from the loop and read from anywhere.
type View struct {
	mux      sync.RWMutex
	trailers []models.TrailerResult
	outcome  models.Outcome
	revealed bool
}

func (s *View) Reset() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.trailers = nil
	s.outcome = ""
}

func (s *View) ShowTrailers(b *models.RecommendationBatch) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.trailers = append([]models.TrailerResult{}, b.Results...)
	s.outcome = b.Outcome
}

func (s *View) Reveal() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.revealed = true
}

func (s *View) Trailers() []models.TrailerResult {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return append([]models.TrailerResult{}, s.trailers...)
}

func (s *View) Revealed() bool {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.revealed
}
