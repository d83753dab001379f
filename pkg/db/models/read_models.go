package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Read-model rows are derived state: consumers upsert them keyed by aggregate
// id, so re-applying an event leaves them unchanged.

type ClientRecord struct {
	UUID      string    `gorm:"column:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Segment   string    `gorm:"column:segment"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ClientRecord) TableName() string { return "client_records" }

type UserRecord struct {
	UUID      string    `gorm:"column:uuid;primaryKey"`
	FullName  string    `gorm:"column:full_name;not null"`
	Email     string    `gorm:"column:email"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserRecord) TableName() string { return "user_records" }

type WorkRecord struct {
	UUID       string     `gorm:"column:uuid;primaryKey"`
	UserID     string     `gorm:"column:user_id;not null;index"`
	ClientID   string     `gorm:"column:client_id;index"`
	Hours      float64    `gorm:"column:hours;not null"`
	WorkedOn   *time.Time `gorm:"column:worked_on"`
	Note       string     `gorm:"column:note"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (WorkRecord) TableName() string { return "work_records" }

type ContractRecord struct {
	UUID        string          `gorm:"column:uuid;primaryKey"`
	ClientID    string          `gorm:"column:client_id;index"`
	UserID      string          `gorm:"column:user_id;index"`
	MonthlyRate decimal.Decimal `gorm:"column:monthly_rate;type:numeric(12,2)"`
	ActiveFrom  *time.Time      `gorm:"column:active_from"`
	ActiveTo    *time.Time      `gorm:"column:active_to"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (ContractRecord) TableName() string { return "contract_records" }

type ConferenceRecord struct {
	UUID      string         `gorm:"column:uuid;primaryKey"`
	Title     string         `gorm:"column:title;not null"`
	Location  string         `gorm:"column:location"`
	StartsOn  *time.Time     `gorm:"column:starts_on"`
	Tags      pq.StringArray `gorm:"column:tags;type:text[]"`
	Canceled  bool           `gorm:"column:canceled;not null;default:false"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (ConferenceRecord) TableName() string { return "conference_records" }
