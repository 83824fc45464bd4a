package syndication

import (
	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/inheritance"
	"github.com/UkralStul/syndication-service/internal/storage"
)

// Mode - вариант раскатки.
type Mode string

const (
	// ModeSync создает недостающие копии и синхронизирует существующие.
	ModeSync Mode = "rollout"
	// ModeCreateOnly только создает недостающие копии.
	ModeCreateOnly Mode = "publish-rollout"
)

// Outcome - что раскатка сделает с сайтом.
type Outcome string

const (
	OutcomeCreate Outcome = "create"
	OutcomeSync   Outcome = "sync"
	// OutcomeSkip - наследование выключено, локальная копия не трогается.
	OutcomeSkip Outcome = "skip"
	// OutcomeExists - копия есть, а режим не обновляет существующие.
	OutcomeExists Outcome = "exists"
)

// Entry - решение по одному сайту.
type Entry struct {
	Site       *domain.Site   `json:"site"`
	Outcome    Outcome        `json:"outcome"`
	SitePostID string         `json:"sitePostId,omitempty"`
	Changes    []domain.Field `json:"changes,omitempty"`

	values domain.Values
}

// Plan - разбиение сайтов по исходам. По нему строится и диалог подтверждения,
// и транзакция, поэтому счетчики и запись не могут разойтись.
type Plan struct {
	Mode    Mode               `json:"mode"`
	Master  *domain.MasterPost `json:"master"`
	Entries []Entry            `json:"entries"`
}

// Summary - счетчики для пользователя.
type Summary struct {
	Created   int `json:"created"`
	Synced    int `json:"synced"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Existing  int `json:"existing"`
}

// Partition раскладывает сайты реестра по исходам. Не обращается к хранилищу.
func Partition(mode Mode, master *domain.MasterPost, sites []*domain.Site, existing []*domain.SitePost) *Plan {
	bySite := make(map[string]*domain.SitePost, len(existing))
	for _, sp := range existing {
		if _, dup := bySite[sp.SiteID]; !dup {
			bySite[sp.SiteID] = sp
		}
	}

	plan := &Plan{Mode: mode, Master: master, Entries: make([]Entry, 0, len(sites))}
	for _, site := range sites {
		sp, ok := bySite[site.ID]
		switch {
		case !ok:
			plan.Entries = append(plan.Entries, Entry{
				Site:    site,
				Outcome: OutcomeCreate,
				values:  master.Content.Values(),
			})
		case mode == ModeCreateOnly:
			plan.Entries = append(plan.Entries, Entry{Site: site, Outcome: OutcomeExists, SitePostID: sp.ID})
		case !inheritance.Enabled(sp.InheritanceEnabled):
			plan.Entries = append(plan.Entries, Entry{Site: site, Outcome: OutcomeSkip, SitePostID: sp.ID})
		default:
			toSync := inheritance.FieldsToSync(master.Content, sp.OverriddenFields, true)
			changed := inheritance.ChangedFields(sp.Content, toSync)
			plan.Entries = append(plan.Entries, Entry{
				Site:       site,
				Outcome:    OutcomeSync,
				SitePostID: sp.ID,
				Changes:    changed.Fields(),
				values:     changed,
			})
		}
	}
	return plan
}

// Summary считает исходы плана.
func (p *Plan) Summary() Summary {
	var s Summary
	for _, e := range p.Entries {
		switch e.Outcome {
		case OutcomeCreate:
			s.Created++
		case OutcomeSync:
			if len(e.Changes) > 0 {
				s.Synced++
			} else {
				s.Unchanged++
			}
		case OutcomeSkip:
			s.Skipped++
		case OutcomeExists:
			s.Existing++
		}
	}
	return s
}

// Transaction собирает операции плана в одну транзакцию.
// Синхронизация без изменений в транзакцию не попадает.
func (p *Plan) Transaction() *storage.Transaction {
	tx := storage.NewTransaction()
	for _, e := range p.Entries {
		switch e.Outcome {
		case OutcomeCreate:
			sp := &domain.SitePost{
				MasterPostID:       p.Master.ID,
				SiteID:             e.Site.ID,
				InheritanceEnabled: domain.Bool(true),
				OverriddenFields:   domain.FieldSet{},
			}
			_ = sp.Content.Apply(e.values)
			tx.Create(sp)
		case OutcomeSync:
			if len(e.values) > 0 {
				tx.Patch(e.SitePostID, storage.Patch{Values: e.values, SyncOnly: true})
			}
		}
	}
	return tx
}
