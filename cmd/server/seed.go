package main

import (
	"context"
	"fmt"
	"time"

	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/editor"
	"github.com/UkralStul/syndication-service/internal/events"
	"github.com/UkralStul/syndication-service/internal/logging"
	"github.com/UkralStul/syndication-service/internal/storage"
	"github.com/UkralStul/syndication-service/internal/syndication"
)

// fillWithMockData заполняет хранилище демо-данными: раскатанный пост с одной
// переопределенной копией и черновик без копий.
func fillWithMockData(ctx context.Context, s storage.Storage, pub events.Publisher) error {
	svc := syndication.NewService(s, pub)
	published := time.Now().UTC().Truncate(time.Minute)

	// 1. Пост, который раскатываем на все сайты
	post, err := svc.CreatePost(ctx, domain.Values{
		domain.FieldTitle:       "Renten holdes uendret",
		domain.FieldSlug:        "renten-holdes-uendret",
		domain.FieldPublishedAt: published,
		domain.FieldBody: domain.Body{
			{Key: "intro", Style: "normal", Text: "Styringsrenten ligger fast denne gangen."},
		},
	})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create post: %w", err)
	}

	// 2. Публикуем и создаем копии
	res, err := svc.PublishAndRollout(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to roll out post: %w", err)
	}

	// 3. На первой копии переопределяем заголовок
	if len(res.Documents) > 0 {
		copyID := res.Documents[0].ID
		session := editor.NewManager(s, pub, editor.DefaultOptions()).Session(copyID)
		if _, err := session.ToggleFieldOverride(ctx, domain.FieldTitle); err != nil {
			return fmt.Errorf("fillWithMockData: failed to override title: %w", err)
		}
		if _, err := session.EditLocal(ctx, domain.Values{domain.FieldTitle: "Renten står stille"}); err != nil {
			return fmt.Errorf("fillWithMockData: failed to edit copy: %w", err)
		}
	}

	// 4. Черновик без копий
	draft, err := svc.CreatePost(ctx, domain.Values{
		domain.FieldTitle: "Utkast: boligmarkedet i høst",
		domain.FieldSlug:  "boligmarkedet-i-host",
	})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create draft: %w", err)
	}

	logging.FromContext(ctx).Info().
		Str("post_id", post.ID).
		Str("draft_id", draft.ID).
		Int("site_posts", len(res.Documents)).
		Msg("mock data filled")
	return nil
}
