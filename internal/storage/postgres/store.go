package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/schema"
	"github.com/UkralStul/syndication-service/internal/storage"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string, logLevel logger.LogLevel) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Выполняем миграцию схемы. Уникальный индекс (master_post_id, site_id)
	// страхует от гонки между проверкой и созданием site post.
	if err := db.AutoMigrate(&domain.Site{}, &domain.MasterPost{}, &domain.SitePost{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// notFound переводит gorm.ErrRecordNotFound в доменную ошибку.
func notFound(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFoundError(resource, id)
	}
	return err
}

// validID отсекает строки, которые postgres не сможет привести к uuid.
func validID(resource, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.NewNotFoundError(resource, id)
	}
	return nil
}

// === Site Methods ===

func (s *Store) ListSites(ctx context.Context) ([]*domain.Site, error) {
	var sites []*domain.Site
	err := s.db.WithContext(ctx).Order("site_id ASC").Find(&sites).Error
	return sites, err
}

func (s *Store) GetSiteBySiteID(ctx context.Context, siteID string) (*domain.Site, error) {
	var site domain.Site
	if err := s.db.WithContext(ctx).First(&site, "site_id = ?", siteID).Error; err != nil {
		return nil, notFound(err, "site", siteID)
	}
	return &site, nil
}

func (s *Store) UpsertSite(ctx context.Context, site *domain.Site) (*domain.Site, error) {
	if err := schema.ValidateSite(site); err != nil {
		return nil, err
	}

	stored := *site
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "site_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description"}),
	}).Create(&stored).Error
	if err != nil {
		return nil, err
	}
	return s.GetSiteBySiteID(ctx, site.SiteID)
}

// === Master Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.MasterPost) (*domain.MasterPost, error) {
	stored := post.Clone()
	stored.ID = ""
	stored.Rev = 1
	stored.PublishedRev = 0
	if err := s.db.WithContext(ctx).Create(stored).Error; err != nil {
		return nil, err
	}
	// GORM автоматически заполнит ID и CreatedAt после создания
	return stored, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.MasterPost, error) {
	if err := validID("post", id); err != nil {
		return nil, err
	}
	var post domain.MasterPost
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "post", id)
	}
	return &post, nil
}

func (s *Store) GetPosts(ctx context.Context, limit, offset int) ([]*domain.MasterPost, error) {
	var posts []*domain.MasterPost
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&posts).Error
	return posts, err
}

func (s *Store) UpdatePost(ctx context.Context, id string, values domain.Values) (*domain.MasterPost, error) {
	if err := validID("post", id); err != nil {
		return nil, err
	}
	var post domain.MasterPost
	// Используем транзакцию для атомарности операции чтения-записи
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, "id = ?", id).Error; err != nil {
			return notFound(err, "post", id)
		}
		if err := post.Content.Apply(values); err != nil {
			return err
		}
		post.Rev++
		post.UpdatedAt = time.Now().UTC()
		return tx.Save(&post).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Store) PublishPost(ctx context.Context, id string) (*domain.MasterPost, error) {
	if err := validID("post", id); err != nil {
		return nil, err
	}
	var post domain.MasterPost
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, "id = ?", id).Error; err != nil {
			return notFound(err, "post", id)
		}
		if !domain.HasUnpublishedChanges(post.Rev, post.PublishedRev) {
			return domain.ErrNothingToPublish
		}
		post.PublishedRev = post.Rev
		return tx.Model(&post).Update("published_rev", post.PublishedRev).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Store) CountPostsBySlug(ctx context.Context, slug, excludeID string) (int64, error) {
	var n int64
	query := s.db.WithContext(ctx).Model(&domain.MasterPost{}).Where("slug = ?", slug)
	if validID("post", excludeID) == nil {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&n).Error
	return n, err
}

// === Site Post Methods ===

func (s *Store) GetSitePostByID(ctx context.Context, id string) (*domain.SitePost, error) {
	if err := validID("sitePost", id); err != nil {
		return nil, err
	}
	var sp domain.SitePost
	if err := s.db.WithContext(ctx).First(&sp, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "sitePost", id)
	}
	return &sp, nil
}

func (s *Store) GetSitePostsByMasterID(ctx context.Context, masterID string) ([]*domain.SitePost, error) {
	var sitePosts []*domain.SitePost
	err := s.db.WithContext(ctx).
		Where("master_post_id = ?", masterID).
		Order("created_at ASC, id ASC").
		Find(&sitePosts).Error
	return sitePosts, err
}

func (s *Store) GetSitePostsBySiteID(ctx context.Context, siteID string, args storage.PaginationArgs) ([]*domain.SitePost, error) {
	var sitePosts []*domain.SitePost
	query := s.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("created_at ASC, id ASC").
		Limit(args.Limit)

	// Реализация курсорной пагинации
	if args.Cursor != nil {
		var cursor domain.SitePost
		if err := s.db.WithContext(ctx).First(&cursor, "id = ?", *args.Cursor).Error; err == nil {
			query = query.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
		}
	}

	err := query.Find(&sitePosts).Error
	return sitePosts, err
}

func (s *Store) PatchSitePost(ctx context.Context, id string, patch storage.Patch) (*domain.SitePost, error) {
	out, err := s.Commit(ctx, storage.NewTransaction().Patch(id, patch))
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *Store) PublishSitePost(ctx context.Context, id string) (*domain.SitePost, error) {
	if err := validID("sitePost", id); err != nil {
		return nil, err
	}
	var sp domain.SitePost
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sp, "id = ?", id).Error; err != nil {
			return notFound(err, "sitePost", id)
		}
		if !domain.HasUnpublishedChanges(sp.Rev, sp.PublishedRev) {
			return domain.ErrNothingToPublish
		}
		sp.PublishedRev = sp.Rev
		return tx.Model(&sp).Update("published_rev", sp.PublishedRev).Error
	})
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// Commit выполняет все операции в одной транзакции БД.
func (s *Store) Commit(ctx context.Context, t *storage.Transaction) ([]*domain.SitePost, error) {
	out := make([]*domain.SitePost, 0, t.Len())
	now := time.Now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		out = out[:0]
		for _, m := range t.Mutations() {
			if m.Create != nil {
				sp := m.Create.Clone()
				if err := storage.PrepareCreate(sp, now); err != nil {
					return err
				}
				var count int64
				if err := tx.Model(&domain.SitePost{}).
					Where("master_post_id = ? AND site_id = ?", sp.MasterPostID, sp.SiteID).
					Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					return domain.NewDuplicateError("sitePost", storage.PairKey(sp.MasterPostID, sp.SiteID))
				}
				sp.ID = ""
				if err := tx.Create(sp).Error; err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						return domain.NewDuplicateError("sitePost", storage.PairKey(sp.MasterPostID, sp.SiteID))
					}
					return err
				}
				out = append(out, sp)
				continue
			}

			if err := validID("sitePost", m.PatchID); err != nil {
				return err
			}
			var sp domain.SitePost
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sp, "id = ?", m.PatchID).Error; err != nil {
				return notFound(err, "sitePost", m.PatchID)
			}
			if err := m.Patch.ApplyTo(&sp, now); err != nil {
				return err
			}
			if err := tx.Save(&sp).Error; err != nil {
				return err
			}
			out = append(out, &sp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// === Dataloader Methods ===

func (s *Store) GetSitesByIDs(ctx context.Context, ids []string) (map[string]*domain.Site, error) {
	var sites []*domain.Site
	if err := s.db.WithContext(ctx).Where("id IN ?", parseable(ids)).Find(&sites).Error; err != nil {
		return nil, err
	}
	result := make(map[string]*domain.Site, len(sites))
	for _, site := range sites {
		result[site.ID] = site
	}
	return result, nil
}

func (s *Store) GetPostsByIDs(ctx context.Context, ids []string) (map[string]*domain.MasterPost, error) {
	var posts []*domain.MasterPost
	if err := s.db.WithContext(ctx).Where("id IN ?", parseable(ids)).Find(&posts).Error; err != nil {
		return nil, err
	}
	result := make(map[string]*domain.MasterPost, len(posts))
	for _, p := range posts {
		result[p.ID] = p
	}
	return result, nil
}

func parseable(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID("", id) == nil {
			out = append(out, id)
		}
	}
	return out
}
