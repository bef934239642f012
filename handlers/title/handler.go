package title

import (
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/webtor-io/recs/models"
	"github.com/webtor-io/recs/services/preview"
	"github.com/webtor-io/recs/services/state"
	"github.com/webtor-io/recs/services/tmdb"
)

type Handler struct {
	m       *preview.Manager
	st      *state.Store
	catalog *tmdb.Api
}

type ratingResponse struct {
	Change string            `json:"change"`
	Title  *preview.Snapshot `json:"title"`
}

type watchlistResponse struct {
	Added bool              `json:"added"`
	Title *preview.Snapshot `json:"title"`
}

func RegisterHandler(r *gin.Engine, m *preview.Manager, catalog *tmdb.Api) {
	h := &Handler{
		m:       m,
		st:      m.Store(),
		catalog: catalog,
	}
	gr := r.Group("")
	gr.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Content-Type"},
	}))
	gr.POST("/titles", h.open)
	gr.GET("/titles/:id", h.get)
	gr.DELETE("/titles/:id", h.close)
	gr.POST("/titles/:id/rating", h.toggleRating)
	gr.POST("/titles/:id/watchlist", h.toggleWatchlist)
	gr.GET("/titles/:id/history", h.history)
	gr.GET("/watchlist", h.watchlist)
	gr.GET("/events", h.events)
}

func (s *Handler) id(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.AbortWithError(http.StatusBadRequest, errors.Errorf("invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

// open starts a session for an item described by the client.
func (s *Handler) open(c *gin.Context) {
	var item models.ContentItem
	if err := c.ShouldBindJSON(&item); err != nil {
		_ = c.AbortWithError(http.StatusBadRequest, errors.Wrap(err, "failed to decode item"))
		return
	}
	if item.ID <= 0 || item.DisplayTitle() == "" {
		_ = c.AbortWithError(http.StatusBadRequest, errors.New("item needs an id and a title"))
		return
	}
	sess, err := s.m.Open(c.Request.Context(), item)
	if err != nil {
		log.WithError(err).WithField("id", item.ID).Error("failed to open title")
		_ = c.AbortWithError(http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot(c.Request.Context()))
}

func (s *Handler) session(c *gin.Context) *preview.Session {
	id, ok := s.id(c)
	if !ok {
		return nil
	}
	if sess := s.m.Get(id); sess != nil {
		return sess
	}
	if s.catalog == nil {
		_ = c.AbortWithError(http.StatusNotFound, errors.Errorf("title %v is not opened", id))
		return nil
	}
	item, err := s.catalog.GetMovie(c.Request.Context(), id)
	if errors.Is(err, tmdb.ErrNotFound) {
		_ = c.AbortWithError(http.StatusNotFound, err)
		return nil
	} else if err != nil {
		log.WithError(err).WithField("id", id).Error("failed to get title")
		_ = c.AbortWithError(http.StatusBadGateway, err)
		return nil
	}
	sess, err := s.m.Open(c.Request.Context(), *item)
	if err != nil {
		log.WithError(err).WithField("id", id).Error("failed to open title")
		_ = c.AbortWithError(http.StatusBadGateway, err)
		return nil
	}
	return sess
}

func (s *Handler) get(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot(c.Request.Context()))
}

func (s *Handler) close(c *gin.Context) {
	id, ok := s.id(c)
	if !ok {
		return
	}
	if !s.m.Close(id) {
		_ = c.AbortWithError(http.StatusNotFound, errors.Errorf("title %v is not opened", id))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Handler) toggleRating(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	ch, err := sess.ToggleRating(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to toggle rating")
		_ = c.AbortWithError(http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusAccepted, &ratingResponse{
		Change: ch.String(),
		Title:  sess.Snapshot(c.Request.Context()),
	})
}

func (s *Handler) toggleWatchlist(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	added, err := sess.ToggleWatchlist(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to toggle watchlist")
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, &watchlistResponse{
		Added: added,
		Title: sess.Snapshot(c.Request.Context()),
	})
}

func (s *Handler) history(c *gin.Context) {
	id, ok := s.id(c)
	if !ok {
		return
	}
	events, err := s.st.EventLog().Find(c.Request.Context(), state.Filter{
		UserID: s.st.UserID(),
		ItemID: id,
	})
	if err != nil {
		log.WithError(err).Error("failed to get history")
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = []models.RatingEvent{}
	}
	c.JSON(http.StatusOK, events)
}

func (s *Handler) watchlist(c *gin.Context) {
	c.JSON(http.StatusOK, s.st.LoadWatchlist(c.Request.Context()))
}
