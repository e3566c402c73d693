package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusScheduled = "Scheduled"
	StatusCompleted = "Completed"
)

// Schedule is one booked collection. Date is the instant of civil midnight of
// the collection day in the service timezone. MonthlyKey is only present while
// the record is live.
type Schedule struct {
	ID                 primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	Protocol           string             `json:"protocol" bson:"protocol"`
	Category           string             `json:"category" bson:"category"`
	Date               time.Time          `json:"date" bson:"date"`
	AddressID          primitive.ObjectID `json:"address_id" bson:"address_id"`
	NeighborhoodName   string             `json:"neighborhood_name" bson:"neighborhood_name"`
	AddressText        string             `json:"address_text" bson:"address_text"`
	RequesterName      string             `json:"requester_name" bson:"requester_name"`
	TaxID              string             `json:"tax_id" bson:"tax_id"`
	Phone              string             `json:"phone" bson:"phone"`
	Description        string             `json:"description,omitempty" bson:"description,omitempty"`
	Status             string             `json:"status" bson:"status"`
	CompletionPhotoRef string             `json:"completion_photo_ref,omitempty" bson:"completion_photo_ref,omitempty"`
	CompletedBy        string             `json:"completed_by,omitempty" bson:"completed_by,omitempty"`
	QRPayload          string             `json:"qr_payload" bson:"qr_payload"`
	MonthlyKey         string             `json:"-" bson:"monthly_key,omitempty"`
	CreatedByIP        string             `json:"created_by_ip,omitempty" bson:"created_by_ip,omitempty"`
	UserAgent          string             `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" bson:"updated_at"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	DeletedAt          *time.Time         `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

func (s *Schedule) IsCompleted() bool {
	return s.Status == StatusCompleted
}

// ScheduleRequest is the citizen's booking request as received over HTTP.
// The untagged trailing fields are filled from the transport.
type ScheduleRequest struct {
	Category      string `json:"category" validate:"required,category"`
	Date          string `json:"date" validate:"required,civil_date"`
	AddressID     string `json:"address_id" validate:"required,mongodb"`
	RequesterName string `json:"requester_name" validate:"required,min=3,max=120"`
	TaxID         string `json:"tax_id" validate:"required,tax_id"`
	Phone         string `json:"phone" validate:"required,br_phone"`
	Description   string `json:"description,omitempty" validate:"max=500"`

	ClientIP  string `json:"-" validate:"-"`
	UserAgent string `json:"-" validate:"-"`
	RequestID string `json:"-" validate:"-"`
}

// Receipt is what a successful submission returns.
type Receipt struct {
	Protocol  string `json:"protocol"`
	QRPayload string `json:"qr_payload"`
}

// CompleteRequest marks a collection done. PhotoRef points at an image stored
// elsewhere; drivers must provide one.
type CompleteRequest struct {
	PhotoRef string `json:"photo_ref,omitempty" validate:"omitempty,max=500"`
}

// ScheduleView is the admin representation with the civil date resolved.
type ScheduleView struct {
	*Schedule
	CivilDate string `json:"civil_date"`
}

// Verification is the reduced public view behind the QR code.
type Verification struct {
	Protocol         string `json:"protocol"`
	Category         string `json:"category"`
	Date             string `json:"date"`
	RequesterName    string `json:"requester_name"`
	NeighborhoodName string `json:"neighborhood_name"`
	AddressText      string `json:"address_text"`
	Status           string `json:"status"`
	Description      string `json:"description,omitempty"`
	QRPayload        string `json:"qr_payload"`
}

// ScheduleFilter narrows admin listings. Zero values mean "any".
type ScheduleFilter struct {
	Status   string
	Category string
	// From and To bound Date as [From, To) when From is non-zero.
	From   time.Time
	To     time.Time
	Query  string
	Limit  int
	Offset int64
}

// ScheduleQuery is the raw admin listing query as received over HTTP.
type ScheduleQuery struct {
	Status   string
	Category string
	Date     string
	Query    string
	Limit    int
	Offset   int64
}

type Availability struct {
	Category         string   `json:"category"`
	UnavailableDates []string `json:"unavailable_dates"`
}

type TodayStats struct {
	TotalToday          int64            `json:"total_today"`
	RemainingByCategory map[string]int64 `json:"remaining_by_category"`
	CountByCategory     map[string]int64 `json:"count_by_category"`
}

type LifetimeTotals struct {
	TotalAll     int64 `json:"total_all"`
	CompletedAll int64 `json:"completed_all"`
}
