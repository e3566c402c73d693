package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AuditScheduleCreate   = "SCHEDULE_CREATE"
	AuditScheduleComplete = "SCHEDULE_COMPLETE"
	AuditScheduleDelete   = "SCHEDULE_DELETE"

	AuditEntitySchedule = "Schedule"
)

type AuditEvent struct {
	ID        primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	EventID   string             `json:"event_id" bson:"event_id"`
	Action    string             `json:"action" bson:"action"`
	Entity    string             `json:"entity" bson:"entity"`
	EntityID  string             `json:"entity_id" bson:"entity_id"`
	Protocol  string             `json:"protocol" bson:"protocol"`
	ActorID   string             `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	ActorRole string             `json:"actor_role,omitempty" bson:"actor_role,omitempty"`
	IP        string             `json:"ip,omitempty" bson:"ip,omitempty"`
	UserAgent string             `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	RequestID string             `json:"request_id,omitempty" bson:"request_id,omitempty"`
	Before    *Schedule          `json:"before,omitempty" bson:"before,omitempty"`
	After     *Schedule          `json:"after,omitempty" bson:"after,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

const (
	RoleAdmin  = "admin"
	RoleDriver = "driver"
)

// Actor describes who triggered a state change. Role and ID come from an
// upstream authentication layer and are taken at face value.
type Actor struct {
	ID        string
	Role      string
	IP        string
	UserAgent string
	RequestID string
}

func (a Actor) IsDriver() bool {
	return a.Role == RoleDriver
}
