// Package events рассылает изменения документов подписчикам (живые поля редактора).
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/UkralStul/syndication-service/internal/domain"
)

// Type - вид изменения документа.
type Type string

const (
	TypeCreated   Type = "created"
	TypePatched   Type = "patched"
	TypePublished Type = "published"
)

// Event - изменение site post.
type Event struct {
	Type       Type             `json:"type"`
	DocumentID string           `json:"documentId"`
	Rev        int64            `json:"rev"`
	Document   *domain.SitePost `json:"document"`
	Timestamp  time.Time        `json:"timestamp"`
}

// NewEvent создает событие по документу.
func NewEvent(t Type, sp *domain.SitePost) Event {
	return Event{Type: t, DocumentID: sp.ID, Rev: sp.Rev, Document: sp, Timestamp: time.Now().UTC()}
}

// Publisher - получатель событий. Реализуется Observer.
type Publisher interface {
	Publish(ev Event)
}

// Observer хранит каналы для подписчиков на изменения документов.
type Observer struct {
	mu sync.RWMutex
	//          map[documentID] map[subscriberID] channel
	subs map[string]map[string]chan Event
}

// NewObserver - конструктор наблюдателя.
func NewObserver() *Observer {
	return &Observer{
		subs: make(map[string]map[string]chan Event),
	}
}

// Publish неблокирующе отправляет событие всем подписчикам документа.
// Если клиент не успевает читать, событие для него пропускается.
func (o *Observer) Publish(ev Event) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, ch := range o.subs[ev.DocumentID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe подписывает на изменения документа до отмены ctx.
// Канал закрывается после отписки.
func (o *Observer) Subscribe(ctx context.Context, documentID string) <-chan Event {
	ch := make(chan Event, 8)
	subID := uuid.NewString()

	o.mu.Lock()
	if o.subs[documentID] == nil {
		o.subs[documentID] = make(map[string]chan Event)
	}
	o.subs[documentID][subID] = ch
	o.mu.Unlock()

	// Горутина для очистки при отключении клиента
	go func() {
		<-ctx.Done()
		o.mu.Lock()
		if docSubs, ok := o.subs[documentID]; ok {
			delete(docSubs, subID)
			if len(docSubs) == 0 {
				delete(o.subs, documentID)
			}
		}
		close(ch)
		o.mu.Unlock()
	}()

	return ch
}

// Subscribers - количество подписчиков документа.
func (o *Observer) Subscribers(documentID string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs[documentID])
}

// Total - количество подписчиков по всем документам.
func (o *Observer) Total() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n := 0
	for _, docSubs := range o.subs {
		n += len(docSubs)
	}
	return n
}

// Discard - Publisher, который ничего не делает (CLI, тесты).
type Discard struct{}

// Publish ничего не делает.
func (Discard) Publish(Event) {}
