// internal/storage/inmemory/store_test.go

package inmemory

import (
	"context"
	"errors"
	"testing"

	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore создает хранилище с одним сайтом и одним постом для тестов
func newTestStore(t *testing.T) (*Store, *domain.Site, *domain.MasterPost) {
	store := New()
	ctx := context.Background()
	site, err := store.UpsertSite(ctx, &domain.Site{SiteID: "bank", Title: "Bank"})
	require.NoError(t, err)
	post, err := store.CreatePost(ctx, &domain.MasterPost{
		Content: domain.Content{Title: domain.String("Test Post"), Slug: domain.String("test-post")},
	})
	require.NoError(t, err)
	return store, site, post
}

func TestStore_CreateAndGetPost(t *testing.T) {
	store, _, post := newTestStore(t)
	ctx := context.Background()

	retrieved, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Post", *retrieved.Title)
	assert.Equal(t, int64(1), retrieved.Rev)

	_, err = store.GetPostByID(ctx, "non-existent-id")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_ReturnsCopies(t *testing.T) {
	store, _, post := newTestStore(t)
	ctx := context.Background()

	*post.Title = "mutated outside"
	retrieved, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Post", *retrieved.Title)
}

func TestStore_UpsertSite(t *testing.T) {
	store, site, _ := newTestStore(t)
	ctx := context.Background()

	updated, err := store.UpsertSite(ctx, &domain.Site{SiteID: "bank", Title: "Bank AS"})
	require.NoError(t, err)
	assert.Equal(t, site.ID, updated.ID)
	assert.Equal(t, "Bank AS", updated.Title)

	_, err = store.UpsertSite(ctx, &domain.Site{SiteID: "smn"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	sites, err := store.ListSites(ctx)
	require.NoError(t, err)
	assert.Len(t, sites, 1)
}

func TestStore_PublishPost(t *testing.T) {
	store, _, post := newTestStore(t)
	ctx := context.Background()

	published, err := store.PublishPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, published.Rev, published.PublishedRev)

	_, err = store.PublishPost(ctx, post.ID)
	assert.ErrorIs(t, err, domain.ErrNothingToPublish)

	updated, err := store.UpdatePost(ctx, post.ID, domain.Values{domain.FieldTitle: "New"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Rev)

	_, err = store.PublishPost(ctx, post.ID)
	assert.NoError(t, err)
}

func TestStore_CountPostsBySlug(t *testing.T) {
	store, _, post := newTestStore(t)
	ctx := context.Background()

	n, err := store.CountPostsBySlug(ctx, "test-post", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.CountPostsBySlug(ctx, "test-post", post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestStore_CommitCreatesSitePost(t *testing.T) {
	store, site, post := newTestStore(t)
	ctx := context.Background()

	out, err := store.Commit(ctx, storage.NewTransaction().Create(&domain.SitePost{
		MasterPostID: post.ID,
		SiteID:       site.ID,
	}))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NotEmpty(t, out[0].ID)
	assert.True(t, *out[0].InheritanceEnabled, "inheritance defaults to enabled")
	assert.Equal(t, domain.FieldSet{}, out[0].OverriddenFields)

	byMaster, err := store.GetSitePostsByMasterID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, byMaster, 1)
	assert.Equal(t, site.ID, byMaster[0].SiteID)
}

func TestStore_CommitRejectsDuplicatePair(t *testing.T) {
	store, site, post := newTestStore(t)
	ctx := context.Background()

	_, err := store.Commit(ctx, storage.NewTransaction().Create(&domain.SitePost{MasterPostID: post.ID, SiteID: site.ID}))
	require.NoError(t, err)

	_, err = store.Commit(ctx, storage.NewTransaction().Create(&domain.SitePost{MasterPostID: post.ID, SiteID: site.ID}))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestStore_CommitIsAtomic(t *testing.T) {
	store, site, post := newTestStore(t)
	ctx := context.Background()

	out, err := store.Commit(ctx, storage.NewTransaction().Create(&domain.SitePost{MasterPostID: post.ID, SiteID: site.ID}))
	require.NoError(t, err)
	existing := out[0]

	// Патч валиден, а создание дубликата - нет: не должно примениться ничего
	tx := storage.NewTransaction().
		Patch(existing.ID, storage.Patch{Values: domain.Values{domain.FieldTitle: "changed"}}).
		Create(&domain.SitePost{MasterPostID: post.ID, SiteID: site.ID})
	_, err = store.Commit(ctx, tx)
	require.Error(t, err)

	after, err := store.GetSitePostByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Nil(t, after.Title)
	assert.Equal(t, existing.Rev, after.Rev)
}

func TestStore_CommitRejectsMissingReferences(t *testing.T) {
	store, site, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Commit(ctx, storage.NewTransaction().Create(&domain.SitePost{SiteID: site.ID}))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Commit(ctx, storage.NewTransaction().Patch("missing", storage.Patch{}))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_PatchAndPublishSitePost(t *testing.T) {
	store, site, post := newTestStore(t)
	ctx := context.Background()

	out, err := store.Commit(ctx, storage.NewTransaction().Create(&domain.SitePost{MasterPostID: post.ID, SiteID: site.ID}))
	require.NoError(t, err)
	id := out[0].ID

	overridden := domain.FieldSet{domain.FieldTitle}
	patched, err := store.PatchSitePost(ctx, id, storage.Patch{
		OverriddenFields: &overridden,
		Values:           domain.Values{domain.FieldTitle: "Local"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), patched.Rev)
	assert.Equal(t, "Local", *patched.Title)
	assert.True(t, patched.OverriddenFields.Has(domain.FieldTitle))

	published, err := store.PublishSitePost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), published.PublishedRev)

	_, err = store.PublishSitePost(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNothingToPublish)
}

func TestStore_SyncOnlyPatchSkipsLocalFields(t *testing.T) {
	store, site, post := newTestStore(t)
	ctx := context.Background()

	overridden := domain.FieldSet{domain.FieldTitle}
	out, err := store.Commit(ctx, storage.NewTransaction().Create(&domain.SitePost{
		MasterPostID:     post.ID,
		SiteID:           site.ID,
		OverriddenFields: overridden,
		Content:          domain.Content{Title: domain.String("Local")},
	}))
	require.NoError(t, err)
	id := out[0].ID

	patched, err := store.PatchSitePost(ctx, id, storage.Patch{
		Values:   domain.Values{domain.FieldTitle: "Master", domain.FieldSlug: "master"},
		SyncOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Local", *patched.Title)
	assert.Equal(t, "master", *patched.Slug)
	assert.Equal(t, int64(2), patched.Rev)

	unchanged, err := store.PatchSitePost(ctx, id, storage.Patch{
		Values:   domain.Values{domain.FieldTitle: "Master"},
		SyncOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Local", *unchanged.Title)
	assert.Equal(t, int64(2), unchanged.Rev, "nothing left to write, revision stays")
}

func TestStore_SitePostPagination(t *testing.T) {
	store := New()
	ctx := context.Background()
	site, err := store.UpsertSite(ctx, &domain.Site{SiteID: "smn", Title: "SMN"})
	require.NoError(t, err)

	// Создаем 5 site posts для разных мастеров
	for i := 0; i < 5; i++ {
		post, err := store.CreatePost(ctx, &domain.MasterPost{})
		require.NoError(t, err)
		_, err = store.Commit(ctx, storage.NewTransaction().Create(&domain.SitePost{MasterPostID: post.ID, SiteID: site.ID}))
		require.NoError(t, err)
	}

	firstPage, err := store.GetSitePostsBySiteID(ctx, site.ID, storage.PaginationArgs{Limit: 2})
	require.NoError(t, err)
	require.Len(t, firstPage, 2)

	// курсор - это ID последнего элемента на предыдущей странице
	cursor := firstPage[1].ID
	secondPage, err := store.GetSitePostsBySiteID(ctx, site.ID, storage.PaginationArgs{Limit: 3, Cursor: &cursor})
	require.NoError(t, err)
	require.Len(t, secondPage, 3)

	assert.NotEqual(t, firstPage[0].ID, secondPage[0].ID)
	assert.NotEqual(t, firstPage[1].ID, secondPage[0].ID)
}
