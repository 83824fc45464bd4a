// Package editor реализует переключатели формы site post: переопределение отдельного
// поля и наследование уровня документа. Каждая правка проходит через сессию
// документа с явными состояниями Idle -> Writing -> PendingPublish -> Idle.
package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/events"
	"github.com/UkralStul/syndication-service/internal/inheritance"
	"github.com/UkralStul/syndication-service/internal/logging"
	"github.com/UkralStul/syndication-service/internal/schema"
	"github.com/UkralStul/syndication-service/internal/storage"
)

// State - состояние сессии редактирования.
type State int

const (
	StateIdle State = iota
	StateWriting
	StatePendingPublish
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWriting:
		return "writing"
	case StatePendingPublish:
		return "pendingPublish"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options - параметры ожидания перед автопубликацией.
type Options struct {
	PublishWait  time.Duration
	PollInterval time.Duration
}

// DefaultOptions - значения по умолчанию.
func DefaultOptions() Options {
	return Options{PublishWait: 2 * time.Second, PollInterval: 50 * time.Millisecond}
}

// Session - сессия редактирования одного site post. Сама сессия ничего не хранит:
// состояние документа живет в Manager только пока правка не завершена.
type Session struct {
	id string
	m  *Manager
}

// State возвращает текущее состояние.
func (s *Session) State() State {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.states[s.id]
}

// begin занимает сессию. Пока правка не завершена, второй вызов получает ErrBusy.
func (s *Session) begin() error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if st := s.m.states[s.id]; st != StateIdle {
		return fmt.Errorf("site post %s is %s: %w", s.id, st, domain.ErrBusy)
	}
	s.m.states[s.id] = StateWriting
	return nil
}

// set меняет состояние. Idle освобождает запись документа.
func (s *Session) set(st State) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if st == StateIdle {
		delete(s.m.states, s.id)
		return
	}
	s.m.states[s.id] = st
}

// ToggleFieldOverride переключает переопределение поля.
// Включение меняет только набор переопределений, черновик ждет ручной публикации.
// Выключение подтягивает текущее значение мастера и публикует документ.
func (s *Session) ToggleFieldOverride(ctx context.Context, f domain.Field) (*domain.SitePost, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.set(StateIdle)

	// Сначала читаем текущее состояние, потом пишем
	doc, err := s.m.store.GetSitePostByID(ctx, s.id)
	if err != nil {
		return nil, err
	}
	if !inheritance.Enabled(doc.InheritanceEnabled) {
		return nil, domain.NewValidationError(string(f), nil, "inheritance is disabled, all fields are local")
	}
	return s.applyOverride(ctx, doc, f, doc.OverriddenFields.Has(f))
}

// SetFieldOverride приводит переопределение поля к нужному значению.
// Решение принимается по документу, прочитанному под сессией; если поле уже
// в нужном состоянии, документ возвращается без записи.
func (s *Session) SetFieldOverride(ctx context.Context, f domain.Field, overridden bool) (*domain.SitePost, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.set(StateIdle)

	doc, err := s.m.store.GetSitePostByID(ctx, s.id)
	if err != nil {
		return nil, err
	}
	if !inheritance.Enabled(doc.InheritanceEnabled) {
		return nil, domain.NewValidationError(string(f), nil, "inheritance is disabled, all fields are local")
	}
	if doc.OverriddenFields.Has(f) == overridden {
		return doc, nil
	}
	return s.applyOverride(ctx, doc, f, !overridden)
}

func (s *Session) applyOverride(ctx context.Context, doc *domain.SitePost, f domain.Field, turningOff bool) (*domain.SitePost, error) {
	overridden := inheritance.ApplyOverrideToggle(doc.OverriddenFields, f, turningOff)
	patch := storage.Patch{OverriddenFields: &overridden}

	if turningOff {
		master, err := s.master(ctx, doc)
		if err != nil {
			return nil, err
		}
		if master != nil {
			if v, ok := master.Get(f); ok {
				patch.Values = domain.Values{f: v}
			}
		}
	}

	updated, err := s.m.store.PatchSitePost(ctx, s.id, patch)
	if err != nil {
		return nil, err
	}
	s.m.events.Publish(events.NewEvent(events.TypePatched, updated))
	logging.FromContext(ctx).Info().
		Str("site_post_id", s.id).
		Str("field", string(f)).
		Bool("overridden", !turningOff).
		Msg("field override toggled")

	if !turningOff {
		return updated, nil
	}
	return s.publishWhenVisible(ctx, updated)
}

// SetInheritanceEnabled меняет флаг наследования документа. Переход false -> true
// запускает полную синхронизацию непереопределенных полей и автопубликацию.
func (s *Session) SetInheritanceEnabled(ctx context.Context, enabled bool) (*domain.SitePost, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.set(StateIdle)

	doc, err := s.m.store.GetSitePostByID(ctx, s.id)
	if err != nil {
		return nil, err
	}
	prev := doc.InheritanceEnabled
	if inheritance.Enabled(prev) == enabled {
		return doc, nil
	}

	updated, err := s.m.store.PatchSitePost(ctx, s.id, storage.Patch{InheritanceEnabled: domain.Bool(enabled)})
	if err != nil {
		return nil, err
	}
	s.m.events.Publish(events.NewEvent(events.TypePatched, updated))

	if !inheritance.ResyncOnTransition(prev, enabled) {
		return updated, nil
	}

	master, err := s.master(ctx, updated)
	if err != nil {
		return nil, err
	}
	if master == nil {
		return updated, nil
	}
	values := inheritance.FieldsToSync(master.Content, updated.OverriddenFields, true)
	if len(values) == 0 {
		return updated, nil
	}

	updated, err = s.m.store.PatchSitePost(ctx, s.id, storage.Patch{Values: values})
	if err != nil {
		return nil, err
	}
	s.m.events.Publish(events.NewEvent(events.TypePatched, updated))
	logging.FromContext(ctx).Info().
		Str("site_post_id", s.id).
		Int("fields", len(values)).
		Msg("inheritance re-enabled, synced from master")
	return s.publishWhenVisible(ctx, updated)
}

// EditLocal записывает локальные значения. Наследуемые поля менять нельзя.
func (s *Session) EditLocal(ctx context.Context, values domain.Values) (*domain.SitePost, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.set(StateIdle)

	doc, err := s.m.store.GetSitePostByID(ctx, s.id)
	if err != nil {
		return nil, err
	}
	for _, f := range values.Fields() {
		if schema.ReadOnly(doc, f) {
			return nil, fmt.Errorf("%s: %w", f, domain.ErrInheritedField)
		}
	}

	updated, err := s.m.store.PatchSitePost(ctx, s.id, storage.Patch{Values: values})
	if err != nil {
		return nil, err
	}
	s.m.events.Publish(events.NewEvent(events.TypePatched, updated))
	return updated, nil
}

// Publish публикует черновик вручную.
func (s *Session) Publish(ctx context.Context) (*domain.SitePost, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.set(StateIdle)

	published, err := s.m.store.PublishSitePost(ctx, s.id)
	if err != nil {
		return nil, err
	}
	s.m.events.Publish(events.NewEvent(events.TypePublished, published))
	return published, nil
}

// master загружает мастер-пост. Отсутствующая или висячая ссылка - не ошибка,
// синхронизация просто пропускается.
func (s *Session) master(ctx context.Context, doc *domain.SitePost) (*domain.MasterPost, error) {
	if doc.MasterPostID == "" {
		return nil, nil
	}
	master, err := s.m.store.GetPostByID(ctx, doc.MasterPostID)
	if errors.Is(err, domain.ErrNotFound) {
		logging.FromContext(ctx).Warn().
			Str("site_post_id", doc.ID).
			Str("post_id", doc.MasterPostID).
			Msg("master post not found, sync skipped")
		return nil, nil
	}
	return master, err
}

// publishWhenVisible ждет, пока патч станет виден в хранилище, и публикует документ.
func (s *Session) publishWhenVisible(ctx context.Context, patched *domain.SitePost) (*domain.SitePost, error) {
	s.set(StatePendingPublish)

	ctx, cancel := context.WithTimeout(ctx, s.m.opts.PublishWait)
	defer cancel()

	ticker := time.NewTicker(s.m.opts.PollInterval)
	defer ticker.Stop()

	for {
		doc, err := s.m.store.GetSitePostByID(ctx, s.id)
		if err != nil {
			return nil, err
		}
		if doc.Rev >= patched.Rev {
			if !domain.HasUnpublishedChanges(doc.Rev, doc.PublishedRev) {
				return doc, nil
			}
			published, err := s.m.store.PublishSitePost(ctx, s.id)
			if err != nil {
				return nil, fmt.Errorf("auto-publish of site post %s: %w", s.id, err)
			}
			s.m.events.Publish(events.NewEvent(events.TypePublished, published))
			return published, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("auto-publish of site post %s: patch rev %d not visible: %w", s.id, patched.Rev, ctx.Err())
		case <-ticker.C:
		}
	}
}
