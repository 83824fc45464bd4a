package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/UkralStul/syndication-service/internal/server/response"
	"github.com/UkralStul/syndication-service/internal/structure"
)

// === Navigation Handlers ===

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	response.OK(w, s.tree)
}

func (s *Server) handleStructurePosts(w http.ResponseWriter, r *http.Request) {
	node, _ := s.tree.Find("posts")
	s.resolve(w, r, node)
}

func (s *Server) handleStructureSitePosts(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteId")
	node, ok := s.tree.Find(structure.SiteNodeID(siteID))
	if !ok {
		response.NotFound(w, "site is not in the registry", siteID)
		return
	}
	s.resolve(w, r, node)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request, node *structure.Node) {
	args, err := pagination(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	page, err := structure.Resolve(r.Context(), s.store, node, args)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.OK(w, page)
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListSites(r.Context())
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.OK(w, list)
}
