package domain

import "time"

// MasterPost - канонический источник контента.
type MasterPost struct {
	ID           string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Content      `gorm:"embedded"`
	Rev          int64     `json:"rev" gorm:"not null;default:1"`
	PublishedRev int64     `json:"publishedRev" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"createdAt" gorm:"not null;default:now()"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"not null;default:now()"`
}

// TableName задает имя таблицы для gorm.
func (MasterPost) TableName() string { return "posts" }

// Clone возвращает глубокую копию поста.
func (p *MasterPost) Clone() *MasterPost {
	c := *p
	c.Content = p.Content.Clone()
	return &c
}

// Site - сайт из реестра, на который раскатываются посты.
type Site struct {
	ID          string `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SiteID      string `json:"siteId" gorm:"type:varchar(64);not null;uniqueIndex"`
	Title       string `json:"title" gorm:"type:varchar(255);not null"`
	Description string `json:"description,omitempty" gorm:"type:text"`
}

// SitePost - копия мастер-поста для конкретного сайта.
// MasterPostID и SiteID ссылаются на ID документов, а не на ключ реестра.
type SitePost struct {
	ID                 string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MasterPostID       string    `json:"masterPostId" gorm:"type:varchar(36);not null;uniqueIndex:idx_site_posts_master_site"`
	SiteID             string    `json:"siteId" gorm:"type:varchar(36);not null;uniqueIndex:idx_site_posts_master_site;index"`
	InheritanceEnabled *bool     `json:"inheritanceEnabled" gorm:"default:true"`
	OverriddenFields   FieldSet  `json:"overriddenFields" gorm:"type:text;serializer:json"`
	Content            `gorm:"embedded"`
	Rev                int64     `json:"rev" gorm:"not null;default:1"`
	PublishedRev       int64     `json:"publishedRev" gorm:"not null;default:0"`
	CreatedAt          time.Time `json:"createdAt" gorm:"not null;default:now()"`
	UpdatedAt          time.Time `json:"updatedAt" gorm:"not null;default:now()"`
}

// TableName задает имя таблицы для gorm.
func (SitePost) TableName() string { return "site_posts" }

// Clone возвращает глубокую копию site post.
func (sp *SitePost) Clone() *SitePost {
	c := *sp
	if sp.InheritanceEnabled != nil {
		v := *sp.InheritanceEnabled
		c.InheritanceEnabled = &v
	}
	c.OverriddenFields = sp.OverriddenFields.Clone()
	c.Content = sp.Content.Clone()
	return &c
}

// HasUnpublishedChanges сообщает, есть ли что публиковать.
func HasUnpublishedChanges(rev, publishedRev int64) bool {
	return rev != publishedRev
}

// Bool - хелпер для указателей на bool.
func Bool(v bool) *bool { return &v }

// String - хелпер для указателей на string.
func String(v string) *string { return &v }
