package models

import "time"

// Record is a single named value in durable storage
type Record struct {
	Name      string    `json:"name" gorm:"type:varchar(191);primaryKey"`
	Value     string    `json:"value" gorm:"type:longtext;not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Record
func (Record) TableName() string {
	return "records"
}
