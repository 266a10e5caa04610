package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ResourceKind string

const (
	KindSeat   ResourceKind = "seat"
	KindLocker ResourceKind = "locker"
)

// Kinds lists resource kinds in the order they are checked during assignment.
var Kinds = []ResourceKind{KindSeat, KindLocker}

func ParseKind(s string) (ResourceKind, bool) {
	switch ResourceKind(s) {
	case KindSeat, "seats":
		return KindSeat, true
	case KindLocker, "lockers":
		return KindLocker, true
	}
	return "", false
}

// Table is the table holding resources of the kind.
func (k ResourceKind) Table() string {
	return string(k) + "s"
}

// Column is the subscriptions column referencing resources of the kind.
func (k ResourceKind) Column() string {
	return string(k) + "_id"
}

// Label is the capitalised kind name used in user facing messages.
func (k ResourceKind) Label() string {
	switch k {
	case KindSeat:
		return "Seat"
	case KindLocker:
		return "Locker"
	}
	return "Resource"
}

type SubscriptionStatus string

const (
	StatusPending   SubscriptionStatus = "pending"
	StatusActive    SubscriptionStatus = "active"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

type Library struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"size:120;not null"`
	City      string `gorm:"size:80"`
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Branch struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	LibraryID string `gorm:"type:uuid;not null;index"`
	Name      string `gorm:"size:120;not null"`
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time

	Library *Library `gorm:"foreignKey:LibraryID"`
}

type Plan struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	LibraryID    string `gorm:"type:uuid;not null;index"`
	Name         string `gorm:"size:120;not null"`
	DurationDays int    `gorm:"not null"`
	PriceCents   int64  `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Student struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	LibraryID string `gorm:"type:uuid;not null;index"`
	BranchID  string `gorm:"type:uuid;index"`
	Username  string `gorm:"size:80;not null"`
	Name      string `gorm:"size:120"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Seat and Locker share a column layout so both tables can be read into Resource.
type Seat struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	LibraryID string  `gorm:"type:uuid;not null;index"`
	BranchID  string  `gorm:"type:uuid;not null;uniqueIndex:idx_seats_branch_number"`
	Number    string  `gorm:"size:20;not null;uniqueIndex:idx_seats_branch_number"`
	Section   *string `gorm:"size:40"`
	Type      *string `gorm:"size:40"`
	IsActive  bool    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Locker struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	LibraryID string  `gorm:"type:uuid;not null;index"`
	BranchID  string  `gorm:"type:uuid;not null;uniqueIndex:idx_lockers_branch_number"`
	Number    string  `gorm:"size:20;not null;uniqueIndex:idx_lockers_branch_number"`
	Section   *string `gorm:"size:40"`
	Type      *string `gorm:"size:40"`
	IsActive  bool    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Resource is a seat or locker row read through its kind's table.
type Resource struct {
	ID        string
	LibraryID string
	BranchID  string
	Number    string
	Section   *string
	Type      *string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time

	Kind ResourceKind `gorm:"-"`
}

type Subscription struct {
	ID        string             `gorm:"type:uuid;primaryKey"`
	LibraryID string             `gorm:"type:uuid;not null;index"`
	BranchID  string             `gorm:"type:uuid;not null;index"`
	StudentID string             `gorm:"type:uuid;not null;index"`
	PlanID    string             `gorm:"type:uuid;not null"`
	SeatID    *string            `gorm:"type:uuid;index"`
	LockerID  *string            `gorm:"type:uuid;index"`
	StartDate time.Time          `gorm:"not null"`
	EndDate   time.Time          `gorm:"not null;index"`
	Status    SubscriptionStatus `gorm:"size:20;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Seat   *Seat   `gorm:"foreignKey:SeatID;constraint:OnDelete:RESTRICT"`
	Locker *Locker `gorm:"foreignKey:LockerID;constraint:OnDelete:RESTRICT"`
}

// ResourceID returns the id of the resource of the given kind held by the subscription.
func (s *Subscription) ResourceID(kind ResourceKind) *string {
	switch kind {
	case KindSeat:
		return s.SeatID
	case KindLocker:
		return s.LockerID
	}
	return nil
}

type AuditRecord struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	Type           string    `gorm:"size:60;not null;index"`
	OccurredAt     time.Time `gorm:"not null"`
	LibraryID      string    `gorm:"type:uuid;index"`
	BranchID       string    `gorm:"type:uuid"`
	SubscriptionID string    `gorm:"type:uuid;index"`
	ResourceKind   string    `gorm:"size:20"`
	ResourceID     string    `gorm:"type:uuid"`
	Actor          string    `gorm:"size:80"`
	Detail         string
	CreatedAt      time.Time
}

// All returns every model in migration order.
func All() []interface{} {
	return []interface{}{
		&Library{}, &Branch{}, &Plan{}, &Student{},
		&Seat{}, &Locker{}, &Subscription{}, &AuditRecord{},
	}
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (l *Library) BeforeCreate(*gorm.DB) error      { newID(&l.ID); return nil }
func (b *Branch) BeforeCreate(*gorm.DB) error       { newID(&b.ID); return nil }
func (p *Plan) BeforeCreate(*gorm.DB) error         { newID(&p.ID); return nil }
func (s *Student) BeforeCreate(*gorm.DB) error      { newID(&s.ID); return nil }
func (s *Seat) BeforeCreate(*gorm.DB) error         { newID(&s.ID); return nil }
func (l *Locker) BeforeCreate(*gorm.DB) error       { newID(&l.ID); return nil }
func (r *Resource) BeforeCreate(*gorm.DB) error     { newID(&r.ID); return nil }
func (s *Subscription) BeforeCreate(*gorm.DB) error { newID(&s.ID); return nil }
