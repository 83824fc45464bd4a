// Package inheritance содержит правила согласования site post с мастер-постом:
// какие поля наследуются, что копировать при синхронизации и когда она нужна.
// Все функции чистые и не обращаются к хранилищу.
package inheritance

import "github.com/UkralStul/syndication-service/internal/domain"

// Enabled читает флаг наследования уровня документа. Отсутствующий флаг равен true.
func Enabled(flag *bool) bool {
	return flag == nil || *flag
}

// IsInherited - поле наследуется, если наследование включено и поле не переопределено.
// Выключенное наследование документа всегда важнее набора переопределений.
func IsInherited(sp *domain.SitePost, f domain.Field) bool {
	return Enabled(sp.InheritanceEnabled) && !sp.OverriddenFields.Has(f)
}

// FieldsToSync возвращает непустые поля мастера, кроме переопределенных.
// При выключенном наследовании возвращает пустой набор.
func FieldsToSync(master domain.Content, overridden domain.FieldSet, inheritanceEnabled bool) domain.Values {
	out := domain.Values{}
	if !inheritanceEnabled {
		return out
	}
	for _, f := range domain.ContentFields {
		if overridden.Has(f) {
			continue
		}
		if v, ok := master.Get(f); ok {
			out[f] = v
		}
	}
	return out
}

// ApplyOverrideToggle добавляет поле в набор при включении переопределения
// и убирает при выключении.
func ApplyOverrideToggle(current domain.FieldSet, f domain.Field, turningOff bool) domain.FieldSet {
	if turningOff {
		return current.Without(f)
	}
	return current.With(f)
}

// ChangedFields оставляет только те значения, которые отличаются от локальных.
func ChangedFields(local domain.Content, sync domain.Values) domain.Values {
	out := domain.Values{}
	for f, v := range sync {
		if !local.Equal(f, v) {
			out[f] = v
		}
	}
	return out
}

// ResyncOnTransition сообщает, нужна ли полная синхронизация при смене флага.
// Срабатывает только переход false -> true; отсутствующее прошлое значение не считается false.
func ResyncOnTransition(prev *bool, next bool) bool {
	return prev != nil && !*prev && next
}

// Resolve собирает итоговый контент site post: наследуемые поля берутся из мастера,
// локальные - из самой копии.
func Resolve(sp *domain.SitePost, master *domain.MasterPost) domain.Content {
	out := sp.Content.Clone()
	if master == nil {
		return out
	}
	for _, f := range domain.ContentFields {
		if !IsInherited(sp, f) {
			continue
		}
		v, _ := master.Get(f)
		_ = out.Set(f, v)
	}
	return out
}
