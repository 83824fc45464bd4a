package storage

import (
	"context"

	"github.com/UkralStul/syndication-service/internal/domain"
)

// PaginationArgs - аргументы для пагинации.
type PaginationArgs struct {
	Limit  int
	Cursor *string
}

// Storage определяет контракт для хранилищ документов.
type Storage interface {
	// Реестр сайтов
	ListSites(ctx context.Context) ([]*domain.Site, error)
	GetSiteBySiteID(ctx context.Context, siteID string) (*domain.Site, error)
	UpsertSite(ctx context.Context, site *domain.Site) (*domain.Site, error)

	// Мастер-посты
	GetPosts(ctx context.Context, limit, offset int) ([]*domain.MasterPost, error)
	GetPostByID(ctx context.Context, id string) (*domain.MasterPost, error)
	CreatePost(ctx context.Context, post *domain.MasterPost) (*domain.MasterPost, error)
	UpdatePost(ctx context.Context, id string, values domain.Values) (*domain.MasterPost, error)
	PublishPost(ctx context.Context, id string) (*domain.MasterPost, error)
	CountPostsBySlug(ctx context.Context, slug, excludeID string) (int64, error)

	// Site posts
	GetSitePostByID(ctx context.Context, id string) (*domain.SitePost, error)
	GetSitePostsByMasterID(ctx context.Context, masterID string) ([]*domain.SitePost, error)
	GetSitePostsBySiteID(ctx context.Context, siteID string, args PaginationArgs) ([]*domain.SitePost, error)
	PatchSitePost(ctx context.Context, id string, patch Patch) (*domain.SitePost, error)
	PublishSitePost(ctx context.Context, id string) (*domain.SitePost, error)

	// Commit применяет транзакцию целиком или не применяет ничего.
	Commit(ctx context.Context, tx *Transaction) ([]*domain.SitePost, error)

	// Методы для Dataloader'ов
	GetSitesByIDs(ctx context.Context, ids []string) (map[string]*domain.Site, error)
	GetPostsByIDs(ctx context.Context, ids []string) (map[string]*domain.MasterPost, error)
}
