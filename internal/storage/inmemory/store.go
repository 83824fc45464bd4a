package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/schema"
	"github.com/UkralStul/syndication-service/internal/storage"
	"github.com/google/uuid"
)

// Store реализует интерфейс Storage в памяти.
// Наружу всегда отдаются копии, чтобы вызывающий код не менял документы в обход Commit.
type Store struct {
	mu          sync.RWMutex
	sites       map[string]*domain.Site
	posts       map[string]*domain.MasterPost
	sitePosts   map[string]*domain.SitePost
	sitePostsBy map[string]string   // map[PairKey]sitePostID
	bySite      map[string][]string // map[siteID][]sitePostID
	now         func() time.Time
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		sites:       make(map[string]*domain.Site),
		posts:       make(map[string]*domain.MasterPost),
		sitePosts:   make(map[string]*domain.SitePost),
		sitePostsBy: make(map[string]string),
		bySite:      make(map[string][]string),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// === Site Methods ===

func (s *Store) ListSites(ctx context.Context) ([]*domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sites := make([]*domain.Site, 0, len(s.sites))
	for _, site := range s.sites {
		c := *site
		sites = append(sites, &c)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].SiteID < sites[j].SiteID })
	return sites, nil
}

func (s *Store) GetSiteBySiteID(ctx context.Context, siteID string) (*domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, site := range s.sites {
		if site.SiteID == siteID {
			c := *site
			return &c, nil
		}
	}
	return nil, domain.NewNotFoundError("site", siteID)
}

func (s *Store) UpsertSite(ctx context.Context, site *domain.Site) (*domain.Site, error) {
	if err := schema.ValidateSite(site); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sites {
		if existing.SiteID == site.SiteID {
			existing.Title = site.Title
			existing.Description = site.Description
			c := *existing
			return &c, nil
		}
	}
	stored := *site
	stored.ID = uuid.NewString()
	s.sites[stored.ID] = &stored
	c := stored
	return &c, nil
}

// === Master Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.MasterPost) (*domain.MasterPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := post.Clone()
	stored.ID = uuid.NewString()
	stored.Rev = 1
	stored.PublishedRev = 0
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	s.posts[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.MasterPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, domain.NewNotFoundError("post", id)
	}
	return post.Clone(), nil
}

func (s *Store) GetPosts(ctx context.Context, limit, offset int) ([]*domain.MasterPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allPosts := make([]*domain.MasterPost, 0, len(s.posts))
	for _, p := range s.posts {
		allPosts = append(allPosts, p)
	}

	sort.Slice(allPosts, func(i, j int) bool {
		return allPosts[i].CreatedAt.After(allPosts[j].CreatedAt)
	})

	start := offset
	if start >= len(allPosts) {
		return []*domain.MasterPost{}, nil
	}
	end := start + limit
	if end > len(allPosts) {
		end = len(allPosts)
	}
	out := make([]*domain.MasterPost, 0, end-start)
	for _, p := range allPosts[start:end] {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, values domain.Values) (*domain.MasterPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, domain.NewNotFoundError("post", id)
	}
	updated := post.Clone()
	if err := updated.Content.Apply(values); err != nil {
		return nil, err
	}
	updated.Rev++
	updated.UpdatedAt = s.now()
	s.posts[id] = updated
	return updated.Clone(), nil
}

func (s *Store) PublishPost(ctx context.Context, id string) (*domain.MasterPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, domain.NewNotFoundError("post", id)
	}
	if !domain.HasUnpublishedChanges(post.Rev, post.PublishedRev) {
		return nil, domain.ErrNothingToPublish
	}
	post.PublishedRev = post.Rev
	return post.Clone(), nil
}

func (s *Store) CountPostsBySlug(ctx context.Context, slug, excludeID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for id, p := range s.posts {
		if id != excludeID && p.Slug != nil && *p.Slug == slug {
			n++
		}
	}
	return n, nil
}

// === Site Post Methods ===

func (s *Store) GetSitePostByID(ctx context.Context, id string) (*domain.SitePost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := s.sitePosts[id]
	if !ok {
		return nil, domain.NewNotFoundError("sitePost", id)
	}
	return sp.Clone(), nil
}

func (s *Store) GetSitePostsByMasterID(ctx context.Context, masterID string) ([]*domain.SitePost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*domain.SitePost{}
	for _, sp := range s.sitePosts {
		if sp.MasterPostID == masterID {
			out = append(out, sp.Clone())
		}
	}
	sortSitePosts(out)
	return out, nil
}

func (s *Store) GetSitePostsBySiteID(ctx context.Context, siteID string, args storage.PaginationArgs) ([]*domain.SitePost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.bySite[siteID]
	if !ok {
		return []*domain.SitePost{}, nil
	}
	return s.paginateSitePosts(ids, args), nil
}

func (s *Store) PatchSitePost(ctx context.Context, id string, patch storage.Patch) (*domain.SitePost, error) {
	out, err := s.Commit(ctx, storage.NewTransaction().Patch(id, patch))
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *Store) PublishSitePost(ctx context.Context, id string) (*domain.SitePost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.sitePosts[id]
	if !ok {
		return nil, domain.NewNotFoundError("sitePost", id)
	}
	if !domain.HasUnpublishedChanges(sp.Rev, sp.PublishedRev) {
		return nil, domain.ErrNothingToPublish
	}
	sp.PublishedRev = sp.Rev
	return sp.Clone(), nil
}

// Commit сначала применяет все операции к копиям документов и только при
// отсутствии ошибок подменяет их в хранилище.
func (s *Store) Commit(ctx context.Context, tx *storage.Transaction) ([]*domain.SitePost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	staged := make(map[string]*domain.SitePost)
	created := make(map[string]bool)
	pairs := make(map[string]string)
	order := make([]string, 0, tx.Len())

	for _, m := range tx.Mutations() {
		if m.Create != nil {
			sp := m.Create.Clone()
			if err := storage.PrepareCreate(sp, now); err != nil {
				return nil, err
			}
			// Проверка существования внутри той же блокировки, что и запись
			key := storage.PairKey(sp.MasterPostID, sp.SiteID)
			if _, exists := s.sitePostsBy[key]; exists {
				return nil, domain.NewDuplicateError("sitePost", key)
			}
			if _, exists := pairs[key]; exists {
				return nil, domain.NewDuplicateError("sitePost", key)
			}
			sp.ID = uuid.NewString()
			staged[sp.ID] = sp
			created[sp.ID] = true
			pairs[key] = sp.ID
			order = append(order, sp.ID)
			continue
		}

		sp, ok := staged[m.PatchID]
		if !ok {
			current, exists := s.sitePosts[m.PatchID]
			if !exists {
				return nil, domain.NewNotFoundError("sitePost", m.PatchID)
			}
			sp = current.Clone()
			staged[sp.ID] = sp
			order = append(order, sp.ID)
		}
		if err := m.Patch.ApplyTo(sp, now); err != nil {
			return nil, err
		}
	}

	out := make([]*domain.SitePost, 0, len(order))
	for _, id := range order {
		sp := staged[id]
		s.sitePosts[id] = sp
		if created[id] {
			s.sitePostsBy[storage.PairKey(sp.MasterPostID, sp.SiteID)] = id
			s.bySite[sp.SiteID] = append(s.bySite[sp.SiteID], id)
		}
		out = append(out, sp.Clone())
	}
	return out, nil
}

// paginateSitePosts - вспомогательная функция для пагинации
func (s *Store) paginateSitePosts(ids []string, args storage.PaginationArgs) []*domain.SitePost {
	all := make([]*domain.SitePost, 0, len(ids))
	for _, id := range ids {
		if sp, ok := s.sitePosts[id]; ok {
			all = append(all, sp)
		}
	}
	// Сортируем по времени создания, чтобы пагинация была консистентной
	sortSitePosts(all)

	startIndex := 0
	if args.Cursor != nil {
		for i, sp := range all {
			if sp.ID == *args.Cursor {
				startIndex = i + 1
				break
			}
		}
	}

	if startIndex >= len(all) {
		return []*domain.SitePost{}
	}

	endIndex := startIndex + args.Limit
	if endIndex > len(all) {
		endIndex = len(all)
	}

	out := make([]*domain.SitePost, 0, endIndex-startIndex)
	for _, sp := range all[startIndex:endIndex] {
		out = append(out, sp.Clone())
	}
	return out
}

func sortSitePosts(list []*domain.SitePost) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// === Dataloader Methods ===

func (s *Store) GetSitesByIDs(ctx context.Context, ids []string) (map[string]*domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]*domain.Site, len(ids))
	for _, id := range ids {
		if site, ok := s.sites[id]; ok {
			c := *site
			results[id] = &c
		}
	}
	return results, nil
}

func (s *Store) GetPostsByIDs(ctx context.Context, ids []string) (map[string]*domain.MasterPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]*domain.MasterPost, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			results[id] = p.Clone()
		}
	}
	return results, nil
}
