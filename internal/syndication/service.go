// Package syndication реализует действия над мастер-постом: раскатку по сайтам
// с синхронизацией и вариант "опубликовать и создать недостающие копии".
package syndication

import (
	"context"
	"errors"
	"fmt"

	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/events"
	"github.com/UkralStul/syndication-service/internal/logging"
	"github.com/UkralStul/syndication-service/internal/schema"
	"github.com/UkralStul/syndication-service/internal/storage"
)

// Service выполняет действия над мастер-постами.
type Service struct {
	store  storage.Storage
	events events.Publisher
}

// NewService создает сервис.
func NewService(store storage.Storage, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	return &Service{store: store, events: pub}
}

// Result - итог выполнения действия.
type Result struct {
	Plan      *Plan              `json:"plan"`
	Summary   Summary            `json:"summary"`
	Documents []*domain.SitePost `json:"documents"`
	Published bool               `json:"published"`
}

// Plan читает мастер, сайты и существующие копии и строит план без записи.
func (s *Service) Plan(ctx context.Context, masterID string, mode Mode) (*Plan, error) {
	master, err := s.store.GetPostByID(ctx, masterID)
	if err != nil {
		return nil, err
	}
	sites, err := s.store.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	existing, err := s.store.GetSitePostsByMasterID(ctx, masterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get site posts: %w", err)
	}
	return Partition(mode, master, sites, existing), nil
}

// Rollout создает недостающие копии со всеми полями мастера и обновляет
// наследуемые поля существующих копий. Все записи идут одной транзакцией.
func (s *Service) Rollout(ctx context.Context, masterID string) (*Result, error) {
	plan, err := s.Plan(ctx, masterID, ModeSync)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, plan, false)
}

// PublishAndRollout публикует мастер и создает копии для сайтов, где их нет.
// Существующие копии не трогаются. Если публиковать нечего, действие недоступно.
func (s *Service) PublishAndRollout(ctx context.Context, masterID string) (*Result, error) {
	if _, err := s.store.PublishPost(ctx, masterID); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().Str("post_id", masterID).Msg("master post published")

	plan, err := s.Plan(ctx, masterID, ModeCreateOnly)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, plan, true)
}

func (s *Service) execute(ctx context.Context, plan *Plan, published bool) (*Result, error) {
	ctx = logging.WithFields(ctx, map[string]any{
		"post_id": plan.Master.ID,
		"mode":    string(plan.Mode),
	})
	log := logging.FromContext(ctx)

	result := &Result{Plan: plan, Summary: plan.Summary(), Documents: []*domain.SitePost{}, Published: published}
	tx := plan.Transaction()
	if tx.Len() == 0 {
		log.Info().Msg("rollout: nothing to write")
		return result, nil
	}

	docs, err := s.store.Commit(ctx, tx)
	if err != nil {
		log.Error().Err(err).Int("mutations", tx.Len()).Msg("rollout transaction failed")
		return nil, fmt.Errorf("rollout of post %s failed: %w", plan.Master.ID, err)
	}

	for i, m := range tx.Mutations() {
		t := events.TypePatched
		if m.Create != nil {
			t = events.TypeCreated
		}
		s.events.Publish(events.NewEvent(t, docs[i]))
	}
	result.Documents = docs

	log.Info().
		Int("created", result.Summary.Created).
		Int("synced", result.Summary.Synced).
		Int("skipped", result.Summary.Skipped).
		Msg("rollout committed")
	return result, nil
}

// === Master Post Methods ===

// CreatePost создает мастер-пост. Занятый slug блокирует сохранение.
func (s *Service) CreatePost(ctx context.Context, values domain.Values) (*domain.MasterPost, error) {
	post := &domain.MasterPost{}
	if err := post.Content.Apply(values); err != nil {
		return nil, err
	}
	if post.Slug != nil {
		if err := schema.CheckSlugUnique(ctx, s.store, *post.Slug, ""); err != nil {
			return nil, err
		}
	}
	return s.store.CreatePost(ctx, post)
}

// UpdatePost меняет поля мастер-поста (черновик). Копии не трогаются до раскатки.
func (s *Service) UpdatePost(ctx context.Context, id string, values domain.Values) (*domain.MasterPost, error) {
	if v, ok := values[domain.FieldSlug]; ok && v != nil {
		slug, isString := v.(string)
		if !isString {
			return nil, domain.NewValidationError(string(domain.FieldSlug), v, "expected string")
		}
		if err := schema.CheckSlugUnique(ctx, s.store, slug, id); err != nil {
			return nil, err
		}
	}
	return s.store.UpdatePost(ctx, id, values)
}

// PublishPost публикует мастер-пост без раскатки.
func (s *Service) PublishPost(ctx context.Context, id string) (*domain.MasterPost, error) {
	post, err := s.store.PublishPost(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNothingToPublish) {
		logging.FromContext(ctx).Error().Err(err).Str("post_id", id).Msg("publish failed")
	}
	return post, err
}
