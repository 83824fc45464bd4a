// Package schema описывает типы документов site и sitePost: поля, их видимость,
// доступность для редактирования, валидацию и превью.
package schema

import (
	"context"
	"strings"

	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/inheritance"
)

// Kind - тип значения поля.
type Kind string

const (
	KindString    Kind = "string"
	KindText      Kind = "text"
	KindSlug      Kind = "slug"
	KindDatetime  Kind = "datetime"
	KindImage     Kind = "image"
	KindBlocks    Kind = "blocks"
	KindBoolean   Kind = "boolean"
	KindReference Kind = "reference"
	KindFieldList Kind = "fieldList"
)

// FieldDef - описание поля документа.
type FieldDef struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Kind        Kind   `json:"kind"`
	Required    bool   `json:"required,omitempty"`
	To          string `json:"to,omitempty"`
	Description string `json:"description,omitempty"`
}

// Type - описание типа документа.
type Type struct {
	Name   string     `json:"name"`
	Title  string     `json:"title"`
	Fields []FieldDef `json:"fields"`
}

const (
	fieldMasterPost         = "masterPost"
	fieldSite               = "site"
	fieldInheritanceEnabled = "inheritanceEnabled"
	fieldOverriddenFields   = "overriddenFields"
)

var contentKinds = map[domain.Field]Kind{
	domain.FieldTitle:       KindString,
	domain.FieldSlug:        KindSlug,
	domain.FieldPublishedAt: KindDatetime,
	domain.FieldImage:       KindImage,
	domain.FieldBody:        KindBlocks,
}

// SiteType - схема документа site.
var SiteType = Type{
	Name:  "site",
	Title: "Site",
	Fields: []FieldDef{
		{Name: "title", Title: "Title", Kind: KindString, Required: true},
		{Name: "siteId", Title: "Site ID", Kind: KindString, Required: true},
		{Name: "description", Title: "Description", Kind: KindText},
	},
}

// SitePostType - схема документа sitePost.
var SitePostType = func() Type {
	t := Type{
		Name:  "sitePost",
		Title: "Site Post",
		Fields: []FieldDef{
			{Name: fieldMasterPost, Title: "Master Post", Kind: KindReference, To: "post", Required: true},
			{Name: fieldSite, Title: "Site", Kind: KindReference, To: "site", Required: true},
			{
				Name:        fieldInheritanceEnabled,
				Title:       "Inheritance Enabled",
				Kind:        KindBoolean,
				Description: "When enabled, this post inherits content from the master post. Disable to make all fields locally editable.",
			},
			{
				Name:        fieldOverriddenFields,
				Title:       "Overridden Fields",
				Kind:        KindFieldList,
				Description: "Select which fields to override with local values. Unselected fields inherit from master.",
			},
		},
	}
	for _, f := range domain.ContentFields {
		t.Fields = append(t.Fields, FieldDef{Name: string(f), Title: f.Title(), Kind: contentKinds[f]})
	}
	return t
}()

// Hidden сообщает, скрыто ли поле sitePost в редакторе.
// Список переопределений скрыт при выключенном наследовании; контентное поле
// видно, только если оно локальное.
func Hidden(sp *domain.SitePost, name string) bool {
	if name == fieldOverriddenFields {
		return !inheritance.Enabled(sp.InheritanceEnabled)
	}
	f, err := domain.ParseField(name)
	if err != nil {
		return false
	}
	return inheritance.IsInherited(sp, f)
}

// ReadOnly - наследуемое поле нельзя редактировать локально.
func ReadOnly(sp *domain.SitePost, f domain.Field) bool {
	return inheritance.IsInherited(sp, f)
}

// FieldState - состояние поля для отрисовки формы.
type FieldState struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Hidden    bool   `json:"hidden"`
	Inherited bool   `json:"inherited"`
	// Toggle - показывать ли переключатель переопределения рядом с полем.
	Toggle bool `json:"toggle"`
}

// Form возвращает состояние всех полей sitePost.
func Form(sp *domain.SitePost) []FieldState {
	enabled := inheritance.Enabled(sp.InheritanceEnabled)
	out := make([]FieldState, 0, len(SitePostType.Fields))
	for _, def := range SitePostType.Fields {
		st := FieldState{Name: def.Name, Title: def.Title, Hidden: Hidden(sp, def.Name)}
		if f, err := domain.ParseField(def.Name); err == nil {
			st.Inherited = inheritance.IsInherited(sp, f)
			st.Toggle = enabled
		}
		out = append(out, st)
	}
	return out
}

// ValidateSitePost проверяет обязательные ссылки.
func ValidateSitePost(sp *domain.SitePost) error {
	if strings.TrimSpace(sp.MasterPostID) == "" {
		return domain.NewValidationError(fieldMasterPost, sp.MasterPostID, "required")
	}
	if strings.TrimSpace(sp.SiteID) == "" {
		return domain.NewValidationError(fieldSite, sp.SiteID, "required")
	}
	for _, f := range sp.OverriddenFields {
		if _, err := domain.ParseField(string(f)); err != nil {
			return domain.NewValidationError(fieldOverriddenFields, f, "unknown content field")
		}
	}
	return nil
}

// ValidateSite проверяет обязательные поля сайта по SiteType.
func ValidateSite(site *domain.Site) error {
	values := map[string]string{
		"title":       site.Title,
		"siteId":      site.SiteID,
		"description": site.Description,
	}
	for _, def := range SiteType.Fields {
		if def.Required && strings.TrimSpace(values[def.Name]) == "" {
			return domain.NewValidationError(def.Name, values[def.Name], "required")
		}
	}
	return nil
}

// Preview - строка списка документов.
type Preview struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

// SitePostPreview строит превью: локальный заголовок, иначе заголовок мастера,
// в подзаголовке - сайт и режим наследования.
func SitePostPreview(sp *domain.SitePost, masterTitle, siteTitle string) Preview {
	title := "Untitled"
	switch {
	case sp.Title != nil && *sp.Title != "":
		title = *sp.Title
	case masterTitle != "":
		title = masterTitle
	}

	mode := "Inherited"
	if !inheritance.Enabled(sp.InheritanceEnabled) {
		mode = "Local"
	}
	parts := make([]string, 0, 2)
	if siteTitle != "" {
		parts = append(parts, siteTitle)
	}
	parts = append(parts, mode)
	return Preview{Title: title, Subtitle: strings.Join(parts, " | ")}
}

// SlugCounter считает посты с таким же slug.
type SlugCounter interface {
	CountPostsBySlug(ctx context.Context, slug, excludeID string) (int64, error)
}

// CheckSlugUnique блокирует сохранение мастер-поста с уже занятым slug.
func CheckSlugUnique(ctx context.Context, counter SlugCounter, slug, excludeID string) error {
	if strings.TrimSpace(slug) == "" {
		return nil
	}
	n, err := counter.CountPostsBySlug(ctx, slug, excludeID)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.NewDuplicateError("slug", slug)
	}
	return nil
}
