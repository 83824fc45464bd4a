// Package server - HTTP API студии: мастер-посты, раскатка, копии по сайтам,
// переключатели наследования и живые обновления документов.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/UkralStul/syndication-service/internal/dataloader"
	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/editor"
	"github.com/UkralStul/syndication-service/internal/events"
	"github.com/UkralStul/syndication-service/internal/logging"
	"github.com/UkralStul/syndication-service/internal/server/response"
	"github.com/UkralStul/syndication-service/internal/sites"
	"github.com/UkralStul/syndication-service/internal/storage"
	"github.com/UkralStul/syndication-service/internal/structure"
	"github.com/UkralStul/syndication-service/internal/syndication"
)

// Deps - зависимости сервера.
type Deps struct {
	Storage  storage.Storage
	Registry *sites.Registry
	Observer *events.Observer
	Editor   editor.Options
	Logger   *zerolog.Logger
}

// Server держит сервисы и собирает роутер.
type Server struct {
	store       storage.Storage
	registry    *sites.Registry
	tree        *structure.Node
	observer    *events.Observer
	syndication *syndication.Service
	editors     *editor.Manager
	upgrader    websocket.Upgrader
	logger      *zerolog.Logger
}

// New создает сервер.
func New(d Deps) *Server {
	if d.Registry == nil {
		d.Registry = sites.Default()
	}
	if d.Observer == nil {
		d.Observer = events.NewObserver()
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	return &Server{
		store:       d.Storage,
		registry:    d.Registry,
		tree:        structure.Build(d.Registry),
		observer:    d.Observer,
		syndication: syndication.NewService(d.Storage, d.Observer),
		editors:     editor.NewManager(d.Storage, d.Observer, d.Editor),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: d.Logger,
	}
}

// Router собирает chi-роутер со всеми маршрутами.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return dataloader.Middleware(s.store, next) })

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Route not found", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusMethodNotAllowed, response.Fail(
			"METHOD_NOT_ALLOWED", "Method not allowed", "Method "+r.Method+" is not supported for this endpoint"))
	})

	r.Get("/health", s.handleHealth)

	r.Route("/structure", func(r chi.Router) {
		r.Get("/", s.handleStructure)
		r.Get("/posts", s.handleStructurePosts)
		r.Get("/sites/{siteId}/posts", s.handleStructureSitePosts)
	})

	r.Get("/sites", s.handleListSites)

	r.Route("/posts", func(r chi.Router) {
		r.Get("/", s.handleListPosts)
		r.Post("/", s.handleCreatePost)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetPost)
			r.Patch("/", s.handleUpdatePost)
			r.Post("/publish", s.handlePublishPost)
			r.Get("/rollout", s.handlePlan(syndication.ModeSync))
			r.Post("/rollout", s.handleRollout)
			r.Get("/publish-rollout", s.handlePlan(syndication.ModeCreateOnly))
			r.Post("/publish-rollout", s.handlePublishAndRollout)
		})
	})

	r.Route("/site-posts/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetSitePost)
		r.Patch("/", s.handleEditSitePost)
		r.Post("/publish", s.handlePublishSitePost)
		r.Post("/fields/{field}/override", s.handleFieldOverride)
		r.Post("/inheritance", s.handleInheritance)
		r.Get("/live", s.handleLive)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{"status": "ok", "subscribers": s.observer.Total()})
}

// === Helpers ===

// decodeJSON читает тело запроса. Неизвестные поля - ошибка клиента.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("body", nil, err.Error())
	}
	return nil
}

// decodeValues читает объект контентных полей.
func decodeValues(r *http.Request) (domain.Values, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, domain.NewValidationError("body", nil, err.Error())
	}
	return domain.DecodeValues(raw)
}

// pagination разбирает ?limit=&cursor=.
func pagination(r *http.Request) (storage.PaginationArgs, error) {
	var args storage.PaginationArgs
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return args, domain.NewValidationError("limit", v, "must be a non-negative integer")
		}
		args.Limit = n
	}
	if v := q.Get("cursor"); v != "" {
		args.Cursor = &v
	}
	return args, nil
}
