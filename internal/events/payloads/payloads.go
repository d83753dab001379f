// Package payloads holds the typed event bodies and their decoders. One
// event type, one struct; the ledger stores them as opaque JSON and the
// registry restores the shape on the consumer side.
package payloads

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/caddelle/ops-backend/internal/events"
	"github.com/caddelle/ops-backend/pkg/enums"
)

type ClientCreated struct {
	Name    string `json:"name"`
	Segment string `json:"segment,omitempty"`
	Country string `json:"country,omitempty"`
}

type ClientUpdated struct {
	Name    string `json:"name,omitempty"`
	Segment string `json:"segment,omitempty"`
	Country string `json:"country,omitempty"`
}

type UserCreated struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
}

type UserUpdated struct {
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Active   *bool  `json:"active,omitempty"`
}

type WorkLogged struct {
	UserID   string     `json:"userId"`
	ClientID string     `json:"clientId"`
	Hours    float64    `json:"hours"`
	WorkedOn *time.Time `json:"workedOn,omitempty"`
	Note     string     `json:"note,omitempty"`
}

type WorkUpdated struct {
	Hours float64 `json:"hours,omitempty"`
	Note  string  `json:"note,omitempty"`
}

type ContractCreated struct {
	ClientID    string          `json:"clientId"`
	UserID      string          `json:"userId"`
	MonthlyRate decimal.Decimal `json:"monthlyRate"`
	ActiveFrom  *time.Time      `json:"activeFrom,omitempty"`
	ActiveTo    *time.Time      `json:"activeTo,omitempty"`
}

// ContractConsultantModified changes the consultant assignment or rate on a
// contract. Externally it fans out per calendar month of the active span,
// keyed by the consultant, so billing reprocesses exactly the affected
// months.
type ContractConsultantModified struct {
	UserID      string          `json:"userId"`
	MonthlyRate decimal.Decimal `json:"monthlyRate"`
	ActiveFrom  time.Time       `json:"activeFrom"`
	ActiveTo    time.Time       `json:"activeTo"`
}

func (p ContractConsultantModified) DateRange() (time.Time, time.Time) {
	return p.ActiveFrom, p.ActiveTo
}

func (p ContractConsultantModified) RangeKey() string {
	return p.UserID
}

type ConferenceScheduled struct {
	Title    string     `json:"title"`
	Location string     `json:"location,omitempty"`
	StartsOn *time.Time `json:"startsOn,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
}

type ConferenceCanceled struct {
	Reason string `json:"reason,omitempty"`
}

func decode[T any](raw json.RawMessage) (any, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// RegisterAll wires every payload decoder into the registry. Called once at
// boot; consumers share the resulting registry.
func RegisterAll(registry *events.Registry) {
	registry.Register(enums.EventClientCreated, decode[ClientCreated])
	registry.Register(enums.EventClientUpdated, decode[ClientUpdated])
	registry.Register(enums.EventUserCreated, decode[UserCreated])
	registry.Register(enums.EventUserUpdated, decode[UserUpdated])
	registry.Register(enums.EventWorkLogged, decode[WorkLogged])
	registry.Register(enums.EventWorkUpdated, decode[WorkUpdated])
	registry.Register(enums.EventContractCreated, decode[ContractCreated])
	registry.Register(enums.EventContractConsultantModified, decode[ContractConsultantModified])
	registry.Register(enums.EventConferenceScheduled, decode[ConferenceScheduled])
	registry.Register(enums.EventConferenceCanceled, decode[ConferenceCanceled])
}
