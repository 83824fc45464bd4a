// Package sites - статический реестр сайтов, на которые раскатываются посты.
package sites

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/logging"
)

// Entry - запись реестра.
type Entry struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Registry - упорядоченный список сайтов.
type Registry struct {
	entries []Entry
}

// Default - реестр по умолчанию.
func Default() *Registry {
	return &Registry{entries: []Entry{
		{ID: "bank", Title: "Bank"},
		{ID: "smn", Title: "SMN"},
		{ID: "ostlandet", Title: "Østlandet"},
	}}
}

// New создает реестр и проверяет записи.
func New(entries []Entry) (*Registry, error) {
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("sites[%d].id", i), e.ID, "required")
		}
		if e.Title == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("sites[%d].title", i), e.Title, "required")
		}
		if seen[e.ID] {
			return nil, domain.NewDuplicateError("site", e.ID)
		}
		seen[e.ID] = true
	}
	return &Registry{entries: append([]Entry(nil), entries...)}, nil
}

type file struct {
	Sites []Entry `yaml:"sites"`
}

// Parse разбирает YAML вида:
//
//	sites:
//	  - id: bank
//	    title: Bank
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sites: %w", err)
	}
	return New(f.Sites)
}

// Load читает реестр из файла. Пустой путь дает реестр по умолчанию.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file %s: %w", path, err)
	}
	return Parse(data)
}

// Entries возвращает копию записей.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// SiteStore - часть хранилища, нужная для синхронизации реестра.
type SiteStore interface {
	UpsertSite(ctx context.Context, site *domain.Site) (*domain.Site, error)
}

// Sync записывает реестр в хранилище как документы site.
func (r *Registry) Sync(ctx context.Context, store SiteStore) ([]*domain.Site, error) {
	out := make([]*domain.Site, 0, len(r.entries))
	for _, e := range r.entries {
		site, err := store.UpsertSite(ctx, &domain.Site{SiteID: e.ID, Title: e.Title, Description: e.Description})
		if err != nil {
			return nil, fmt.Errorf("sync site %s: %w", e.ID, err)
		}
		out = append(out, site)
	}
	logging.FromContext(ctx).Info().Int("sites", len(out)).Msg("site registry synced")
	return out, nil
}
