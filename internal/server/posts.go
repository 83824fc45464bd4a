package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/UkralStul/syndication-service/internal/dataloader"
	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/schema"
	"github.com/UkralStul/syndication-service/internal/server/response"
	"github.com/UkralStul/syndication-service/internal/syndication"
)

const defaultPostsLimit = 20

type postView struct {
	*domain.MasterPost
	CanPublish bool          `json:"canPublish"`
	SitePosts  []copySummary `json:"sitePosts"`
}

type copySummary struct {
	ID         string         `json:"id"`
	Site       *domain.Site   `json:"site,omitempty"`
	Preview    schema.Preview `json:"preview"`
	CanPublish bool           `json:"canPublish"`
}

type planView struct {
	*syndication.Plan
	Summary    syndication.Summary `json:"summary"`
	CanPublish bool                `json:"canPublish"`
}

// === Master Post Handlers ===

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	limit, offset := defaultPostsLimit, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.BadRequest(w, "invalid limit", v)
			return
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.BadRequest(w, "invalid offset", v)
			return
		}
		offset = n
	}

	posts, err := s.store.GetPosts(r.Context(), limit, offset)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.OK(w, posts)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	values, err := decodeValues(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	post, err := s.syndication.CreatePost(r.Context(), values)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Created(w, post)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	post, err := s.store.GetPostByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	copies, err := s.store.GetSitePostsByMasterID(ctx, post.ID)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	siteIDs := make([]string, 0, len(copies))
	for _, sp := range copies {
		siteIDs = append(siteIDs, sp.SiteID)
	}
	sitesByID := dataloader.For(ctx, s.store).LoadSites(ctx, siteIDs)

	masterTitle := ""
	if post.Title != nil {
		masterTitle = *post.Title
	}
	view := postView{
		MasterPost: post,
		CanPublish: domain.HasUnpublishedChanges(post.Rev, post.PublishedRev),
		SitePosts:  make([]copySummary, 0, len(copies)),
	}
	for _, sp := range copies {
		site := sitesByID[sp.SiteID]
		siteTitle := ""
		if site != nil {
			siteTitle = site.Title
		}
		view.SitePosts = append(view.SitePosts, copySummary{
			ID:         sp.ID,
			Site:       site,
			Preview:    schema.SitePostPreview(sp, masterTitle, siteTitle),
			CanPublish: domain.HasUnpublishedChanges(sp.Rev, sp.PublishedRev),
		})
	}
	response.OK(w, view)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	values, err := decodeValues(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	post, err := s.syndication.UpdatePost(r.Context(), chi.URLParam(r, "id"), values)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.OK(w, post)
}

func (s *Server) handlePublishPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.syndication.PublishPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.OK(w, post)
}

// === Rollout Handlers ===

// handlePlan отдает план раскатки для диалога подтверждения.
func (s *Server) handlePlan(mode syndication.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := s.syndication.Plan(r.Context(), chi.URLParam(r, "id"), mode)
		if err != nil {
			response.Err(w, r, err)
			return
		}
		response.OK(w, planView{
			Plan:       plan,
			Summary:    plan.Summary(),
			CanPublish: domain.HasUnpublishedChanges(plan.Master.Rev, plan.Master.PublishedRev),
		})
	}
}

func (s *Server) handleRollout(w http.ResponseWriter, r *http.Request) {
	res, err := s.syndication.Rollout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.OK(w, res)
}

func (s *Server) handlePublishAndRollout(w http.ResponseWriter, r *http.Request) {
	res, err := s.syndication.PublishAndRollout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.OK(w, res)
}
