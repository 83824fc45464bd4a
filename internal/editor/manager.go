package editor

import (
	"sync"

	"github.com/UkralStul/syndication-service/internal/events"
	"github.com/UkralStul/syndication-service/internal/storage"
)

// Manager хранит состояние правок по документам, чтобы параллельные правки
// одного site post видели общее состояние. Запись есть только у документов
// с незавершенной правкой.
type Manager struct {
	store  storage.Storage
	events events.Publisher
	opts   Options

	mu     sync.Mutex
	states map[string]State
}

// NewManager создает менеджер сессий.
func NewManager(store storage.Storage, pub events.Publisher, opts Options) *Manager {
	if pub == nil {
		pub = events.Discard{}
	}
	def := DefaultOptions()
	if opts.PublishWait <= 0 {
		opts.PublishWait = def.PublishWait
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	return &Manager{
		store:  store,
		events: pub,
		opts:   opts,
		states: make(map[string]State),
	}
}

// Session возвращает сессию документа. Сессия - легкий дескриптор,
// его не нужно кэшировать.
func (m *Manager) Session(sitePostID string) *Session {
	return &Session{id: sitePostID, m: m}
}
