package dataloader

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/logging"
	"github.com/UkralStul/syndication-service/internal/storage"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	SiteByID *dataloader.Loader
	PostByID *dataloader.Loader
}

// NewLoaders создает лоадеры поверх хранилища. Живут в рамках одного запроса.
func NewLoaders(store storage.Storage) *Loaders {
	sitesFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		// Один запрос к хранилищу на все ключи
		sites, err := store.GetSitesByIDs(ctx, keys.Keys())
		if err != nil {
			return errorResults(len(keys), err)
		}
		// Формируем результат в том же порядке, что и ключи
		results := make([]*dataloader.Result, len(keys))
		for i, k := range keys {
			if site, ok := sites[k.String()]; ok {
				results[i] = &dataloader.Result{Data: site}
			} else {
				results[i] = &dataloader.Result{Error: domain.NewNotFoundError("site", k.String())}
			}
		}
		return results
	}

	postsFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		posts, err := store.GetPostsByIDs(ctx, keys.Keys())
		if err != nil {
			return errorResults(len(keys), err)
		}
		results := make([]*dataloader.Result, len(keys))
		for i, k := range keys {
			if p, ok := posts[k.String()]; ok {
				results[i] = &dataloader.Result{Data: p}
			} else {
				results[i] = &dataloader.Result{Error: domain.NewNotFoundError("post", k.String())}
			}
		}
		return results
	}

	return &Loaders{
		SiteByID: dataloader.NewBatchedLoader(sitesFn, dataloader.WithWait(time.Millisecond*1)),
		PostByID: dataloader.NewBatchedLoader(postsFn, dataloader.WithWait(time.Millisecond*1)),
	}
}

// errorResults - в случае ошибки возвращаем ее для всех ключей.
func errorResults(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.Storage, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithLoaders(r.Context(), NewLoaders(store))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithLoaders кладет лоадеры в контекст.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, key, l)
}

// For извлекает лоадеры из контекста. Вне HTTP-запроса создает новые.
func For(ctx context.Context, store storage.Storage) *Loaders {
	if l, ok := ctx.Value(key).(*Loaders); ok {
		return l
	}
	return NewLoaders(store)
}

// LoadSites загружает сайты пачкой. Отсутствующие сайты пропускаются.
func (l *Loaders) LoadSites(ctx context.Context, ids []string) map[string]*domain.Site {
	if len(ids) == 0 {
		return map[string]*domain.Site{}
	}
	thunk := l.SiteByID.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))
	data, errs := thunk()
	logFailed(ctx, "site", ids, errs)
	out := make(map[string]*domain.Site, len(ids))
	for i, d := range data {
		if site, ok := d.(*domain.Site); ok && site != nil {
			out[ids[i]] = site
		}
	}
	return out
}

// LoadPosts загружает мастер-посты пачкой. Отсутствующие посты пропускаются.
func (l *Loaders) LoadPosts(ctx context.Context, ids []string) map[string]*domain.MasterPost {
	if len(ids) == 0 {
		return map[string]*domain.MasterPost{}
	}
	thunk := l.PostByID.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))
	data, errs := thunk()
	logFailed(ctx, "post", ids, errs)
	out := make(map[string]*domain.MasterPost, len(ids))
	for i, d := range data {
		if p, ok := d.(*domain.MasterPost); ok && p != nil {
			out[ids[i]] = p
		}
	}
	return out
}

// logFailed пишет в лог ошибки загрузки. Отсутствующий документ ошибкой не считается.
func logFailed(ctx context.Context, resource string, ids []string, errs []error) {
	for i, err := range errs {
		if err == nil || errors.Is(err, domain.ErrNotFound) {
			continue
		}
		logging.FromContext(ctx).Error().Err(err).
			Str("resource", resource).
			Str("id", ids[i]).
			Msg("dataloader: load failed")
	}
}
