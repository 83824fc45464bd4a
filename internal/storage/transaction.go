package storage

import (
	"time"

	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/inheritance"
	"github.com/UkralStul/syndication-service/internal/schema"
)

// Patch - набор изменений site post. Пустые поля не трогаются.
type Patch struct {
	Values             domain.Values    `json:"values,omitempty"`
	OverriddenFields   *domain.FieldSet `json:"overriddenFields,omitempty"`
	InheritanceEnabled *bool            `json:"inheritanceEnabled,omitempty"`
	// SyncOnly - значения пишутся только в поля, которые наследуются на момент
	// записи. Локальная правка, сделанная после планирования, не затирается.
	SyncOnly bool `json:"syncOnly,omitempty"`
}

// ApplyTo применяет патч к документу и поднимает ревизию черновика.
// Общий код для всех реализаций хранилища. Sync-патч, от которого ничего
// не осталось, документ не меняет.
func (p Patch) ApplyTo(sp *domain.SitePost, now time.Time) error {
	values := p.Values
	if p.SyncOnly {
		values = make(domain.Values, len(p.Values))
		for f, v := range p.Values {
			if inheritance.IsInherited(sp, f) {
				values[f] = v
			}
		}
		if len(values) == 0 && p.OverriddenFields == nil && p.InheritanceEnabled == nil {
			return nil
		}
	}
	if err := sp.Content.Apply(values); err != nil {
		return err
	}
	if p.OverriddenFields != nil {
		sp.OverriddenFields = p.OverriddenFields.Clone()
	}
	if p.InheritanceEnabled != nil {
		v := *p.InheritanceEnabled
		sp.InheritanceEnabled = &v
	}
	sp.Rev++
	sp.UpdatedAt = now
	return nil
}

// Mutation - одна операция в транзакции. Заполнено либо Create, либо PatchID.
type Mutation struct {
	Create  *domain.SitePost
	PatchID string
	Patch   Patch
}

// Transaction копит операции и отправляется в хранилище одним Commit.
// Create всегда условный: если для пары мастер/сайт уже есть site post,
// вся транзакция отклоняется.
type Transaction struct {
	mutations []Mutation
}

// NewTransaction создает пустую транзакцию.
func NewTransaction() *Transaction {
	return &Transaction{}
}

// Create добавляет создание site post.
func (t *Transaction) Create(sp *domain.SitePost) *Transaction {
	t.mutations = append(t.mutations, Mutation{Create: sp})
	return t
}

// Patch добавляет изменение существующего site post.
func (t *Transaction) Patch(id string, p Patch) *Transaction {
	t.mutations = append(t.mutations, Mutation{PatchID: id, Patch: p})
	return t
}

// Mutations возвращает накопленные операции.
func (t *Transaction) Mutations() []Mutation { return t.mutations }

// Len - количество операций.
func (t *Transaction) Len() int { return len(t.mutations) }

// PrepareCreate проставляет значения по умолчанию для нового site post.
func PrepareCreate(sp *domain.SitePost, now time.Time) error {
	if err := schema.ValidateSitePost(sp); err != nil {
		return err
	}
	if sp.InheritanceEnabled == nil {
		sp.InheritanceEnabled = domain.Bool(true)
	}
	if sp.OverriddenFields == nil {
		sp.OverriddenFields = domain.FieldSet{}
	}
	sp.Rev = 1
	sp.PublishedRev = 0
	sp.CreatedAt = now
	sp.UpdatedAt = now
	return nil
}

// PairKey - ключ уникальности пары мастер/сайт.
func PairKey(masterID, siteID string) string {
	return masterID + "/" + siteID
}
