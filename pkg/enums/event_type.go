package enums

// EventType tags a domain event row. The set is open ended: resolution of
// unknown tags falls back to the default routing address instead of failing.
type EventType string

const (
	EventClientCreated              EventType = "CLIENT_CREATED"
	EventClientUpdated              EventType = "CLIENT_UPDATED"
	EventUserCreated                EventType = "USER_CREATED"
	EventUserUpdated                EventType = "USER_UPDATED"
	EventWorkLogged                 EventType = "WORK_LOGGED"
	EventWorkUpdated                EventType = "WORK_UPDATED"
	EventContractCreated            EventType = "CONTRACT_CREATED"
	EventContractConsultantModified EventType = "CONTRACT_CONSULTANT_MODIFIED"
	EventConferenceScheduled        EventType = "CONFERENCE_SCHEDULED"
	EventConferenceCanceled         EventType = "CONFERENCE_CANCELED"
)

// AggregateFamily groups aggregates that share a routing address and a
// read-model consumer.
type AggregateFamily string

const (
	FamilyClient     AggregateFamily = "client"
	FamilyUser       AggregateFamily = "user"
	FamilyWork       AggregateFamily = "work"
	FamilyContract   AggregateFamily = "contract"
	FamilyConference AggregateFamily = "conference"
)
