// Package structure описывает навигацию по документам: мастер-посты отдельно,
// копии сгруппированы по сайтам из реестра.
package structure

import (
	"context"
	"fmt"
	"strconv"

	"github.com/UkralStul/syndication-service/internal/dataloader"
	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/schema"
	"github.com/UkralStul/syndication-service/internal/sites"
	"github.com/UkralStul/syndication-service/internal/storage"
)

// Kind - тип узла дерева.
type Kind string

const (
	KindList         Kind = "list"
	KindDivider      Kind = "divider"
	KindDocumentList Kind = "documentList"
)

const (
	TypePost     = "post"
	TypeSitePost = "sitePost"

	DefaultLimit = 50
)

// Node - узел дерева навигации.
type Node struct {
	ID         string            `json:"id,omitempty"`
	Title      string            `json:"title,omitempty"`
	Kind       Kind              `json:"kind"`
	SchemaType string            `json:"schemaType,omitempty"`
	Filter     string            `json:"filter,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Children   []*Node           `json:"children,omitempty"`
}

// SiteNodeID - id узла со списком копий сайта.
func SiteNodeID(siteID string) string { return "site-" + siteID }

// Build строит дерево для реестра.
func Build(reg *sites.Registry) *Node {
	children := []*Node{
		{
			ID:    "master",
			Title: "Master Content",
			Kind:  KindList,
			Children: []*Node{
				{ID: "posts", Title: "Posts", Kind: KindDocumentList, SchemaType: TypePost},
			},
		},
		{Kind: KindDivider},
	}
	for _, e := range reg.Entries() {
		children = append(children, &Node{
			ID:         SiteNodeID(e.ID),
			Title:      e.Title,
			Kind:       KindDocumentList,
			SchemaType: TypeSitePost,
			Filter:     `_type == "sitePost" && site->siteId == $siteId`,
			Params:     map[string]string{"siteId": e.ID},
		})
	}
	return &Node{ID: "content", Title: "Content", Kind: KindList, Children: children}
}

// Find ищет узел по id в глубину.
func (n *Node) Find(id string) (*Node, bool) {
	if n.ID == id && id != "" {
		return n, true
	}
	for _, c := range n.Children {
		if found, ok := c.Find(id); ok {
			return found, true
		}
	}
	return nil, false
}

// Item - документ в списке.
type Item struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Preview      schema.Preview `json:"preview"`
	Rev          int64          `json:"rev"`
	PublishedRev int64          `json:"publishedRev"`
}

// Page - страница списка.
type Page struct {
	Items      []Item  `json:"items"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// Resolve возвращает документы листа дерева. Для постов курсор - смещение,
// для копий - id последнего документа предыдущей страницы.
func Resolve(ctx context.Context, store storage.Storage, node *Node, args storage.PaginationArgs) (*Page, error) {
	if node.Kind != KindDocumentList {
		return nil, domain.NewValidationError("node", node.ID, "not a document list")
	}
	if args.Limit <= 0 {
		args.Limit = DefaultLimit
	}

	switch node.SchemaType {
	case TypePost:
		return resolvePosts(ctx, store, args)
	case TypeSitePost:
		return resolveSitePosts(ctx, store, node.Params["siteId"], args)
	}
	return nil, fmt.Errorf("unknown schema type %q", node.SchemaType)
}

func resolvePosts(ctx context.Context, store storage.Storage, args storage.PaginationArgs) (*Page, error) {
	offset := 0
	if args.Cursor != nil {
		n, err := strconv.Atoi(*args.Cursor)
		if err != nil || n < 0 {
			return nil, domain.NewValidationError("cursor", *args.Cursor, "must be a non-negative offset")
		}
		offset = n
	}

	posts, err := store.GetPosts(ctx, args.Limit, offset)
	if err != nil {
		return nil, err
	}
	page := &Page{Items: make([]Item, 0, len(posts))}
	for _, p := range posts {
		title := "Untitled"
		if p.Title != nil && *p.Title != "" {
			title = *p.Title
		}
		subtitle := ""
		if p.Slug != nil {
			subtitle = *p.Slug
		}
		page.Items = append(page.Items, Item{
			ID:           p.ID,
			Type:         TypePost,
			Preview:      schema.Preview{Title: title, Subtitle: subtitle},
			Rev:          p.Rev,
			PublishedRev: p.PublishedRev,
		})
	}
	if len(posts) == args.Limit {
		next := strconv.Itoa(offset + len(posts))
		page.NextCursor = &next
	}
	return page, nil
}

func resolveSitePosts(ctx context.Context, store storage.Storage, siteID string, args storage.PaginationArgs) (*Page, error) {
	site, err := store.GetSiteBySiteID(ctx, siteID)
	if err != nil {
		return nil, err
	}
	docs, err := store.GetSitePostsBySiteID(ctx, site.ID, args)
	if err != nil {
		return nil, err
	}

	masterIDs := make([]string, 0, len(docs))
	for _, sp := range docs {
		if sp.MasterPostID != "" {
			masterIDs = append(masterIDs, sp.MasterPostID)
		}
	}
	masters := dataloader.For(ctx, store).LoadPosts(ctx, masterIDs)

	page := &Page{Items: make([]Item, 0, len(docs))}
	for _, sp := range docs {
		masterTitle := ""
		if m, ok := masters[sp.MasterPostID]; ok && m.Title != nil {
			masterTitle = *m.Title
		}
		page.Items = append(page.Items, Item{
			ID:           sp.ID,
			Type:         TypeSitePost,
			Preview:      schema.SitePostPreview(sp, masterTitle, site.Title),
			Rev:          sp.Rev,
			PublishedRev: sp.PublishedRev,
		})
	}
	if len(docs) == args.Limit {
		next := docs[len(docs)-1].ID
		page.NextCursor = &next
	}
	return page, nil
}
