package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/totegamma/quire/internal/domain"
)

type User struct {
	ID            string    `json:"_id" gorm:"primaryKey;type:char(24)"`
	Username      string    `json:"username" gorm:"type:text;not null;uniqueIndex"`
	Email         string    `json:"email" gorm:"type:text"`
	Password      string    `json:"-" gorm:"type:text;not null"`
	Token         string    `json:"token" gorm:"type:text"`
	EmailVerified bool      `json:"emailVerified" gorm:"type:boolean;not null;default:false"`
	JoinDate      time.Time `json:"joinDate" gorm:"type:timestamp with time zone;not null"`
}

type Document struct {
	ID                string                             `json:"_id" gorm:"primaryKey;type:char(24)"`
	Title             string                             `json:"title" gorm:"type:text;not null"`
	CharCount         int                                `json:"char_count" gorm:"type:integer;not null;default:0"`
	CharCountNoSpaces int                                `json:"char_count_no_spaces" gorm:"type:integer;not null;default:0"`
	WordCount         int                                `json:"word_count" gorm:"type:integer;not null;default:0"`
	Content           datatypes.JSONType[domain.Content] `json:"content" gorm:"type:jsonb;not null"`
	PermRead          pq.StringArray                     `json:"perm_read" gorm:"type:text[];not null;index:,type:gin"`
	PermEdit          pq.StringArray                     `json:"perm_edit" gorm:"type:text[];not null;index:,type:gin"`
	Owner             string                             `json:"owner" gorm:"type:char(24);not null;index"`
	ReadLink          *string                            `json:"read_link" gorm:"type:text;uniqueIndex"`
	EditLink          *string                            `json:"edit_link" gorm:"type:text;uniqueIndex"`
	CreationDate      time.Time                          `json:"creation_date" gorm:"type:timestamp with time zone;not null"`
	EditDate          time.Time                          `json:"edit_date" gorm:"type:timestamp with time zone;not null"`
}
