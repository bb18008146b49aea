package models

import "time"

type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Username     string `gorm:"size:150;not null;uniqueIndex" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`
}

// Post is owned by exactly one author. PubDate is set once at creation.
type Post struct {
	ID       string    `gorm:"primaryKey;size:36" json:"id"`
	Text     string    `gorm:"type:text;not null" json:"text"`
	PubDate  time.Time `gorm:"not null;index" json:"pub_date"`
	AuthorID string    `gorm:"size:36;not null;index" json:"-"`
	Author   string    `gorm:"column:author_username;not null" json:"author"`
	Image    string    `json:"image"`
	User     *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
}

func (p *Post) OwnerID() string {
	if p == nil {
		return ""
	}
	return p.AuthorID
}

// Comment is always attached to an existing post.
type Comment struct {
	ID       string    `gorm:"primaryKey;size:36" json:"id"`
	Text     string    `gorm:"type:text;not null" json:"text"`
	Created  time.Time `gorm:"not null;index" json:"created"`
	AuthorID string    `gorm:"size:36;not null;index" json:"-"`
	Author   string    `gorm:"column:author_username;not null" json:"author"`
	PostID   string    `gorm:"size:36;not null;index" json:"post"`
	User     *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Post     *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

func (c *Comment) OwnerID() string {
	if c == nil {
		return ""
	}
	return c.AuthorID
}

type Group struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Title       string `gorm:"size:200;not null" json:"title"`
	Slug        string `gorm:"size:200;not null;uniqueIndex" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
}

// Follow is a directed edge "subscriber follows target". The pair is unique.
type Follow struct {
	SubscriberID  string `gorm:"primaryKey;size:36" json:"-"`
	TargetID      string `gorm:"primaryKey;size:36" json:"-"`
	Subscriber    string `gorm:"column:subscriber_username;not null" json:"user"`
	Target        string `gorm:"column:target_username;not null" json:"following"`
	SubscriberRef *User  `gorm:"foreignKey:SubscriberID;constraint:OnDelete:CASCADE" json:"-"`
	TargetRef     *User  `gorm:"foreignKey:TargetID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Group) TableName() string { return "topic_groups" }
