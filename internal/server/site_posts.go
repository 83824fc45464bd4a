package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/UkralStul/syndication-service/internal/dataloader"
	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/inheritance"
	"github.com/UkralStul/syndication-service/internal/schema"
	"github.com/UkralStul/syndication-service/internal/server/response"
)

type sitePostView struct {
	*domain.SitePost
	Site       *domain.Site        `json:"site,omitempty"`
	Master     *domain.MasterPost  `json:"master,omitempty"`
	// Effective - контент, который увидит сайт: наследуемые поля берутся у мастера.
	Effective  domain.Content      `json:"effective"`
	Form       []schema.FieldState `json:"form"`
	Preview    schema.Preview      `json:"preview"`
	CanPublish bool                `json:"canPublish"`
}

type overrideRequest struct {
	Overridden *bool `json:"overridden"`
}

type inheritanceRequest struct {
	Enabled *bool `json:"enabled"`
}

// view дополняет документ сайтом, мастером и состоянием формы.
func (s *Server) view(r *http.Request, sp *domain.SitePost) sitePostView {
	ctx := r.Context()
	loaders := dataloader.For(ctx, s.store)

	v := sitePostView{
		SitePost:   sp,
		Form:       schema.Form(sp),
		CanPublish: domain.HasUnpublishedChanges(sp.Rev, sp.PublishedRev),
	}
	var master *domain.MasterPost
	siteTitle, masterTitle := "", ""
	if site, ok := loaders.LoadSites(ctx, []string{sp.SiteID})[sp.SiteID]; ok {
		v.Site = site
		siteTitle = site.Title
	}
	if sp.MasterPostID != "" {
		if m, ok := loaders.LoadPosts(ctx, []string{sp.MasterPostID})[sp.MasterPostID]; ok {
			master = m
			v.Master = m
			if m.Title != nil {
				masterTitle = *m.Title
			}
		}
	}
	v.Effective = inheritance.Resolve(sp, master)
	v.Preview = schema.SitePostPreview(sp, masterTitle, siteTitle)
	return v
}

// === Site Post Handlers ===

func (s *Server) handleGetSitePost(w http.ResponseWriter, r *http.Request) {
	sp, err := s.store.GetSitePostByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.OK(w, s.view(r, sp))
}

func (s *Server) handleEditSitePost(w http.ResponseWriter, r *http.Request) {
	values, err := decodeValues(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	sp, err := s.editors.Session(chi.URLParam(r, "id")).EditLocal(r.Context(), values)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.OK(w, s.view(r, sp))
}

func (s *Server) handlePublishSitePost(w http.ResponseWriter, r *http.Request) {
	sp, err := s.editors.Session(chi.URLParam(r, "id")).Publish(r.Context())
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.OK(w, s.view(r, sp))
}

// handleFieldOverride выставляет переопределение поля в нужное значение.
// Если поле уже в этом состоянии, документ не меняется.
func (s *Server) handleFieldOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := domain.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	if req.Overridden == nil {
		response.BadRequest(w, "overridden is required", "")
		return
	}

	sp, err := s.editors.Session(chi.URLParam(r, "id")).SetFieldOverride(ctx, f, *req.Overridden)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.OK(w, s.view(r, sp))
}

func (s *Server) handleInheritance(w http.ResponseWriter, r *http.Request) {
	var req inheritanceRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	if req.Enabled == nil {
		response.BadRequest(w, "enabled is required", "")
		return
	}
	sp, err := s.editors.Session(chi.URLParam(r, "id")).SetInheritanceEnabled(r.Context(), *req.Enabled)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.OK(w, s.view(r, sp))
}
