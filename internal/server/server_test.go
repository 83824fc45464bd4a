package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/editor"
	"github.com/UkralStul/syndication-service/internal/events"
	"github.com/UkralStul/syndication-service/internal/server/response"
	"github.com/UkralStul/syndication-service/internal/sites"
	"github.com/UkralStul/syndication-service/internal/storage"
	"github.com/UkralStul/syndication-service/internal/storage/inmemory"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *response.Error `json:"error"`
}

type testServer struct {
	*httptest.Server
	store    *inmemory.Store
	observer *events.Observer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

// newTestServerWith позволяет подменить хранилище оберткой поверх inmemory
func newTestServerWith(t *testing.T, wrap func(*inmemory.Store) storage.Storage) *testServer {
	t.Helper()
	store := inmemory.New()
	_, err := sites.Default().Sync(context.Background(), store)
	require.NoError(t, err)

	var backend storage.Storage = store
	if wrap != nil {
		backend = wrap(store)
	}

	nop := zerolog.Nop()
	obs := events.NewObserver()
	srv := New(Deps{
		Storage:  backend,
		Observer: obs,
		Editor:   editor.Options{PublishWait: time.Second, PollInterval: time.Millisecond},
		Logger:   &nop,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: store, observer: obs}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// createAndRollout создает мастер-пост и раскатывает его на все сайты
func (ts *testServer) createAndRollout(t *testing.T) (domain.MasterPost, []domain.SitePost) {
	t.Helper()
	status, env := ts.do(t, http.MethodPost, "/posts", map[string]any{"title": "A", "slug": "a"})
	require.Equal(t, http.StatusCreated, status)
	post := decode[domain.MasterPost](t, env)

	status, env = ts.do(t, http.MethodPost, "/posts/"+post.ID+"/rollout", nil)
	require.Equal(t, http.StatusOK, status)
	res := decode[struct {
		Documents []domain.SitePost `json:"documents"`
	}](t, env)
	require.Len(t, res.Documents, 3)
	return post, res.Documents
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	status, env := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, env.Error)
	assert.Equal(t, "ok", decode[map[string]any](t, env)["status"])
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	status, env := ts.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestPosts_CreateAndDuplicateSlug(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.do(t, http.MethodPost, "/posts", map[string]any{"title": "A", "slug": "a"})
	require.Equal(t, http.StatusCreated, status)

	status, env := ts.do(t, http.MethodPost, "/posts", map[string]any{"slug": "a"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_EXISTS", env.Error.Code)

	status, env = ts.do(t, http.MethodPost, "/posts", map[string]any{"author": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	status, env = ts.do(t, http.MethodGet, "/posts", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.MasterPost](t, env), 1)
}

func TestRollout_PlanThenCommit(t *testing.T) {
	ts := newTestServer(t)
	status, env := ts.do(t, http.MethodPost, "/posts", map[string]any{"title": "A", "slug": "a"})
	require.Equal(t, http.StatusCreated, status)
	post := decode[domain.MasterPost](t, env)

	status, env = ts.do(t, http.MethodGet, "/posts/"+post.ID+"/rollout", nil)
	require.Equal(t, http.StatusOK, status)
	plan := decode[struct {
		Summary struct {
			Created int `json:"created"`
		} `json:"summary"`
		Entries []struct {
			Outcome string `json:"outcome"`
		} `json:"entries"`
		CanPublish bool `json:"canPublish"`
	}](t, env)
	assert.Equal(t, 3, plan.Summary.Created)
	assert.Len(t, plan.Entries, 3)
	assert.True(t, plan.CanPublish)

	status, env = ts.do(t, http.MethodPost, "/posts/"+post.ID+"/rollout", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = ts.do(t, http.MethodGet, "/posts/"+post.ID, nil)
	require.Equal(t, http.StatusOK, status)
	view := decode[struct {
		SitePosts []struct {
			ID      string `json:"id"`
			Preview struct {
				Title    string `json:"title"`
				Subtitle string `json:"subtitle"`
			} `json:"preview"`
		} `json:"sitePosts"`
	}](t, env)
	require.Len(t, view.SitePosts, 3)
	for _, sp := range view.SitePosts {
		assert.Equal(t, "A", sp.Preview.Title)
		assert.Contains(t, sp.Preview.Subtitle, "Inherited")
	}

	status, env = ts.do(t, http.MethodPost, "/posts/missing/rollout", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestPublishAndRollout(t *testing.T) {
	ts := newTestServer(t)
	status, env := ts.do(t, http.MethodPost, "/posts", map[string]any{"title": "A"})
	require.Equal(t, http.StatusCreated, status)
	post := decode[domain.MasterPost](t, env)

	status, env = ts.do(t, http.MethodPost, "/posts/"+post.ID+"/publish-rollout", nil)
	require.Equal(t, http.StatusOK, status)
	res := decode[struct {
		Published bool `json:"published"`
		Summary   struct {
			Created int `json:"created"`
		} `json:"summary"`
	}](t, env)
	assert.True(t, res.Published)
	assert.Equal(t, 3, res.Summary.Created)

	status, env = ts.do(t, http.MethodPost, "/posts/"+post.ID+"/publish-rollout", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "NOTHING_TO_PUBLISH", env.Error.Code)
}

func TestSitePost_OverrideEditPublish(t *testing.T) {
	ts := newTestServer(t)
	_, docs := ts.createAndRollout(t)
	id := docs[0].ID

	status, env := ts.do(t, http.MethodPatch, "/site-posts/"+id, map[string]any{"title": "Local"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INHERITED_FIELD", env.Error.Code)

	status, env = ts.do(t, http.MethodPost, "/site-posts/"+id+"/fields/title/override", map[string]any{"overridden": true})
	require.Equal(t, http.StatusOK, status)
	sp := decode[domain.SitePost](t, env)
	assert.Equal(t, domain.FieldSet{domain.FieldTitle}, sp.OverriddenFields)

	status, env = ts.do(t, http.MethodPatch, "/site-posts/"+id, map[string]any{"title": "Local"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Local", *decode[domain.SitePost](t, env).Title)

	status, _ = ts.do(t, http.MethodPost, "/site-posts/"+id+"/publish", nil)
	require.Equal(t, http.StatusOK, status)
	status, env = ts.do(t, http.MethodPost, "/site-posts/"+id+"/publish", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "NOTHING_TO_PUBLISH", env.Error.Code)

	// Выключение переопределения возвращает значение мастера и публикует
	status, env = ts.do(t, http.MethodPost, "/site-posts/"+id+"/fields/title/override", map[string]any{"overridden": false})
	require.Equal(t, http.StatusOK, status)
	view := decode[struct {
		domain.SitePost
		CanPublish bool `json:"canPublish"`
	}](t, env)
	assert.Equal(t, "A", *view.Title)
	assert.Empty(t, view.OverriddenFields)
	assert.False(t, view.CanPublish)
}

func TestSitePost_EffectiveContent(t *testing.T) {
	ts := newTestServer(t)
	_, docs := ts.createAndRollout(t)
	id := docs[0].ID

	type effectiveView struct {
		Effective domain.Content `json:"effective"`
	}

	status, env := ts.do(t, http.MethodGet, "/site-posts/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "A", *decode[effectiveView](t, env).Effective.Title)

	status, _ = ts.do(t, http.MethodPost, "/site-posts/"+id+"/fields/title/override", map[string]any{"overridden": true})
	require.Equal(t, http.StatusOK, status)
	status, env = ts.do(t, http.MethodPatch, "/site-posts/"+id, map[string]any{"title": "Local"})
	require.Equal(t, http.StatusOK, status)
	view := decode[effectiveView](t, env)
	assert.Equal(t, "Local", *view.Effective.Title)
	assert.Equal(t, "a", *view.Effective.Slug, "inherited fields come from the master")
}

// overrideRaceStore один раз, после чтения документа, сохраняет переопределение
// title, как будто параллельный запрос успел его включить
type overrideRaceStore struct {
	*inmemory.Store
	armed atomic.Bool
}

func (o *overrideRaceStore) GetSitePostByID(ctx context.Context, id string) (*domain.SitePost, error) {
	sp, err := o.Store.GetSitePostByID(ctx, id)
	if err == nil && o.armed.CompareAndSwap(true, false) {
		overridden := domain.FieldSet{domain.FieldTitle}
		if _, err := o.Store.PatchSitePost(ctx, id, storage.Patch{OverriddenFields: &overridden}); err != nil {
			return nil, err
		}
	}
	return sp, err
}

func TestSitePost_FieldOverrideDecidesUnderSession(t *testing.T) {
	var race *overrideRaceStore
	ts := newTestServerWith(t, func(s *inmemory.Store) storage.Storage {
		race = &overrideRaceStore{Store: s}
		return race
	})
	_, docs := ts.createAndRollout(t)
	id := docs[0].ID

	race.armed.Store(true)
	status, env := ts.do(t, http.MethodPost, "/site-posts/"+id+"/fields/title/override", map[string]any{"overridden": true})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[domain.SitePost](t, env).OverriddenFields.Has(domain.FieldTitle))

	stored, err := ts.store.GetSitePostByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, stored.OverriddenFields.Has(domain.FieldTitle), "request asked for overridden, so the field stays overridden")
}

func TestSitePost_FieldOverrideValidation(t *testing.T) {
	ts := newTestServer(t)
	_, docs := ts.createAndRollout(t)
	id := docs[0].ID

	status, _ := ts.do(t, http.MethodPost, "/site-posts/"+id+"/fields/author/override", map[string]any{"overridden": true})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodPost, "/site-posts/"+id+"/fields/title/override", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodPost, "/site-posts/missing/fields/title/override", map[string]any{"overridden": true})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSitePost_InheritanceToggle(t *testing.T) {
	ts := newTestServer(t)
	post, docs := ts.createAndRollout(t)
	id := docs[0].ID

	status, env := ts.do(t, http.MethodPost, "/site-posts/"+id+"/inheritance", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, status)
	view := decode[struct {
		domain.SitePost
		Form []struct {
			Name   string `json:"name"`
			Hidden bool   `json:"hidden"`
		} `json:"form"`
	}](t, env)
	assert.False(t, *view.InheritanceEnabled)
	for _, f := range view.Form {
		if f.Name == "title" {
			assert.False(t, f.Hidden, "local fields are visible")
		}
	}

	status, _ = ts.do(t, http.MethodPatch, "/site-posts/"+id, map[string]any{"title": "Local"})
	require.Equal(t, http.StatusOK, status)
	status, _ = ts.do(t, http.MethodPatch, "/posts/"+post.ID, map[string]any{"title": "A2"})
	require.Equal(t, http.StatusOK, status)

	status, env = ts.do(t, http.MethodPost, "/site-posts/"+id+"/inheritance", map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, status)
	sp := decode[domain.SitePost](t, env)
	assert.Equal(t, "A2", *sp.Title)
	assert.Equal(t, sp.Rev, sp.PublishedRev)

	status, _ = ts.do(t, http.MethodPost, "/site-posts/"+id+"/inheritance", "{}")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStructure(t *testing.T) {
	ts := newTestServer(t)
	ts.createAndRollout(t)

	status, env := ts.do(t, http.MethodGet, "/structure", nil)
	require.Equal(t, http.StatusOK, status)
	tree := decode[struct {
		Title    string `json:"title"`
		Children []struct {
			Title string `json:"title"`
		} `json:"children"`
	}](t, env)
	assert.Equal(t, "Content", tree.Title)
	assert.Len(t, tree.Children, 5)

	status, env = ts.do(t, http.MethodGet, "/structure/sites/bank/posts", nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[struct {
		Items []struct {
			Preview struct {
				Subtitle string `json:"subtitle"`
			} `json:"preview"`
		} `json:"items"`
	}](t, env)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Bank | Inherited", page.Items[0].Preview.Subtitle)

	status, _ = ts.do(t, http.MethodGet, "/structure/posts?limit=1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodGet, "/structure/sites/unknown/posts", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.do(t, http.MethodGet, "/structure/sites/bank/posts?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = ts.do(t, http.MethodGet, "/sites", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.Site](t, env), 3)
}

func TestLive(t *testing.T) {
	ts := newTestServer(t)
	_, docs := ts.createAndRollout(t)
	id := docs[0].ID

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/site-posts/" + id + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.observer.Subscribers(id) == 1 }, time.Second, 5*time.Millisecond)

	status, _ := ts.do(t, http.MethodPost, "/site-posts/"+id+"/fields/slug/override", map[string]any{"overridden": true})
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.TypePatched, ev.Type)
	assert.Equal(t, id, ev.DocumentID)
	assert.Equal(t, domain.FieldSet{domain.FieldSlug}, ev.Document.OverriddenFields)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return ts.observer.Subscribers(id) == 0 }, time.Second, 5*time.Millisecond)
}

func TestLive_UnknownDocument(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.do(t, http.MethodGet, "/site-posts/missing/live", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
