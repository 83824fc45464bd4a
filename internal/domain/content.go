package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"time"
)

// Field - имя контентного поля, которое может наследоваться от мастер-поста.
type Field string

const (
	FieldTitle       Field = "title"
	FieldSlug        Field = "slug"
	FieldPublishedAt Field = "publishedAt"
	FieldImage       Field = "image"
	FieldBody        Field = "body"
)

// ContentFields - все наследуемые поля в порядке схемы.
var ContentFields = []Field{FieldTitle, FieldSlug, FieldPublishedAt, FieldImage, FieldBody}

var fieldTitles = map[Field]string{
	FieldTitle:       "Title",
	FieldSlug:        "Slug",
	FieldPublishedAt: "Published At",
	FieldImage:       "Image",
	FieldBody:        "Body",
}

// ParseField проверяет, что строка - одно из контентных полей.
func ParseField(s string) (Field, error) {
	f := Field(s)
	if _, ok := fieldTitles[f]; !ok {
		return "", NewValidationError("field", s, "unknown content field")
	}
	return f, nil
}

// Title возвращает человекочитаемое название поля.
func (f Field) Title() string { return fieldTitles[f] }

// FieldSet - набор переопределенных полей. Порядок сохраняется, дубликатов нет.
type FieldSet []Field

// Has проверяет наличие поля в наборе.
func (s FieldSet) Has(f Field) bool { return slices.Contains(s, f) }

// With возвращает новый набор с добавленным полем.
func (s FieldSet) With(f Field) FieldSet {
	if s.Has(f) {
		return s.Clone()
	}
	return append(s.Clone(), f)
}

// Without возвращает новый набор без поля.
func (s FieldSet) Without(f Field) FieldSet {
	out := make(FieldSet, 0, len(s))
	for _, v := range s {
		if v != f {
			out = append(out, v)
		}
	}
	return out
}

// Clone копирует набор. Пустой набор копируется как пустой, а не nil.
func (s FieldSet) Clone() FieldSet {
	out := make(FieldSet, len(s))
	copy(out, s)
	return out
}

// Image - ссылка на ассет изображения.
type Image struct {
	AssetRef string   `json:"assetRef"`
	Alt      string   `json:"alt,omitempty"`
	Hotspot  *Hotspot `json:"hotspot,omitempty"`
}

// Hotspot - точка фокуса изображения в долях от размера.
type Hotspot struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Block - один блок тела поста.
type Block struct {
	Key   string `json:"_key"`
	Style string `json:"style,omitempty"`
	Text  string `json:"text"`
}

// Body - тело поста. nil означает отсутствующее значение.
type Body []Block

// Content - пять контентных полей. Любое из них может быть пустым (nil).
type Content struct {
	Title       *string    `json:"title,omitempty" gorm:"type:varchar(255)"`
	Slug        *string    `json:"slug,omitempty" gorm:"type:varchar(255);index"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Image       *Image     `json:"image,omitempty" gorm:"type:text;serializer:json"`
	Body        Body       `json:"body,omitempty" gorm:"type:text;serializer:json"`
}

// Values - значения полей по имени. nil-значение означает "очистить поле".
type Values map[Field]any

// Fields возвращает ключи в порядке схемы.
func (v Values) Fields() []Field {
	out := make([]Field, 0, len(v))
	for _, f := range ContentFields {
		if _, ok := v[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Get возвращает значение поля и false, если поле пустое.
func (c *Content) Get(f Field) (any, bool) {
	switch f {
	case FieldTitle:
		if c.Title != nil {
			return *c.Title, true
		}
	case FieldSlug:
		if c.Slug != nil {
			return *c.Slug, true
		}
	case FieldPublishedAt:
		if c.PublishedAt != nil {
			return *c.PublishedAt, true
		}
	case FieldImage:
		if c.Image != nil {
			return cloneImage(*c.Image), true
		}
	case FieldBody:
		if c.Body != nil {
			return slices.Clone(c.Body), true
		}
	}
	return nil, false
}

// Set записывает значение поля. nil очищает поле.
func (c *Content) Set(f Field, v any) error {
	if v == nil {
		c.clear(f)
		return nil
	}
	switch f {
	case FieldTitle, FieldSlug:
		s, ok := v.(string)
		if !ok {
			return NewValidationError(string(f), v, "expected string")
		}
		if f == FieldTitle {
			c.Title = &s
		} else {
			c.Slug = &s
		}
	case FieldPublishedAt:
		t, ok := v.(time.Time)
		if !ok {
			return NewValidationError(string(f), v, "expected time")
		}
		c.PublishedAt = &t
	case FieldImage:
		img, ok := v.(Image)
		if !ok {
			return NewValidationError(string(f), v, "expected image")
		}
		img = cloneImage(img)
		c.Image = &img
	case FieldBody:
		b, ok := v.(Body)
		if !ok {
			return NewValidationError(string(f), v, "expected body blocks")
		}
		c.Body = slices.Clone(b)
		if c.Body == nil {
			c.Body = Body{}
		}
	default:
		return NewValidationError(string(f), v, "unknown content field")
	}
	return nil
}

// Apply записывает набор значений.
func (c *Content) Apply(values Values) error {
	for _, f := range values.Fields() {
		if err := c.Set(f, values[f]); err != nil {
			return err
		}
	}
	return nil
}

// Values возвращает все непустые поля.
func (c *Content) Values() Values {
	out := make(Values, len(ContentFields))
	for _, f := range ContentFields {
		if v, ok := c.Get(f); ok {
			out[f] = v
		}
	}
	return out
}

// Equal сравнивает значение поля с переданным.
func (c *Content) Equal(f Field, v any) bool {
	cur, ok := c.Get(f)
	if !ok || v == nil {
		return !ok && v == nil
	}
	if t, isTime := cur.(time.Time); isTime {
		other, ok := v.(time.Time)
		return ok && t.Equal(other)
	}
	return reflect.DeepEqual(cur, v)
}

// Clone возвращает глубокую копию контента.
func (c Content) Clone() Content {
	out := Content{}
	for _, f := range ContentFields {
		if v, ok := c.Get(f); ok {
			_ = out.Set(f, v)
		}
	}
	return out
}

func (c *Content) clear(f Field) {
	switch f {
	case FieldTitle:
		c.Title = nil
	case FieldSlug:
		c.Slug = nil
	case FieldPublishedAt:
		c.PublishedAt = nil
	case FieldImage:
		c.Image = nil
	case FieldBody:
		c.Body = nil
	}
}

func cloneImage(img Image) Image {
	if img.Hotspot != nil {
		h := *img.Hotspot
		img.Hotspot = &h
	}
	return img
}

// DecodeValue разбирает JSON-значение поля. JSON null дает nil.
func DecodeValue(f Field, raw json.RawMessage) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var (
		v   any
		err error
	)
	switch f {
	case FieldTitle, FieldSlug:
		var s string
		err = json.Unmarshal(raw, &s)
		v = s
	case FieldPublishedAt:
		var t time.Time
		err = json.Unmarshal(raw, &t)
		v = t
	case FieldImage:
		var img Image
		err = json.Unmarshal(raw, &img)
		v = img
	case FieldBody:
		var b Body
		err = json.Unmarshal(raw, &b)
		v = b
	default:
		return nil, NewValidationError(string(f), string(raw), "unknown content field")
	}
	if err != nil {
		return nil, NewValidationError(string(f), string(raw), fmt.Sprintf("invalid value: %v", err))
	}
	return v, nil
}

// DecodeValues разбирает JSON-объект вида {"title": "...", ...}.
func DecodeValues(raw map[string]json.RawMessage) (Values, error) {
	out := make(Values, len(raw))
	for name, r := range raw {
		f, err := ParseField(name)
		if err != nil {
			return nil, err
		}
		v, err := DecodeValue(f, r)
		if err != nil {
			return nil, err
		}
		out[f] = v
	}
	return out, nil
}
