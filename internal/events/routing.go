package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/caddelle/ops-backend/pkg/enums"
	"github.com/caddelle/ops-backend/pkg/logger"
	"github.com/caddelle/ops-backend/pkg/metrics"
)

// Address names an internal bus destination.
type Address string

const (
	AddressClients     Address = "domain.events.clients"
	AddressUsers       Address = "domain.events.users"
	AddressWork        Address = "domain.events.work"
	AddressContracts   Address = "domain.events.contracts"
	AddressConferences Address = "domain.events.conferences"

	// AddressDefault catches everything the table cannot place. It always has
	// a listener so misroutes surface in logs instead of disappearing.
	AddressDefault Address = "domain.events.unrouted"
)

func familyAddress(family enums.AggregateFamily) Address {
	switch family {
	case enums.FamilyClient:
		return AddressClients
	case enums.FamilyUser:
		return AddressUsers
	case enums.FamilyWork:
		return AddressWork
	case enums.FamilyContract:
		return AddressContracts
	case enums.FamilyConference:
		return AddressConferences
	default:
		return AddressDefault
	}
}

// keywordRoutes is the fallback for event types the exact table does not
// know. Order matters: first substring hit wins.
var keywordRoutes = []struct {
	keyword string
	address Address
}{
	{"client", AddressClients},
	{"user", AddressUsers},
	{"work", AddressWork},
	{"contract", AddressContracts},
	{"conference", AddressConferences},
}

// RoutingTable resolves an event type to a bus address. Resolution never
// fails: exact match first, then a keyword scan over the aggregate hint and
// the type itself, then the default address with a warning.
type RoutingTable struct {
	exact   map[enums.EventType]Address
	logg    *logger.Logger
	metrics *metrics.EventingMetrics
}

type RoutingTableParams struct {
	Overrides map[string]string
	Logger    *logger.Logger
	Metrics   *metrics.EventingMetrics
}

func NewRoutingTable(params RoutingTableParams) (*RoutingTable, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("routing table requires a logger")
	}
	exact := make(map[enums.EventType]Address)
	for _, eventType := range []enums.EventType{
		enums.EventClientCreated,
		enums.EventClientUpdated,
		enums.EventUserCreated,
		enums.EventUserUpdated,
		enums.EventWorkLogged,
		enums.EventWorkUpdated,
		enums.EventContractCreated,
		enums.EventContractConsultantModified,
		enums.EventConferenceScheduled,
		enums.EventConferenceCanceled,
	} {
		exact[eventType] = familyAddress(FamilyFor(eventType))
	}
	for rawType, rawAddress := range params.Overrides {
		eventType := enums.EventType(strings.TrimSpace(rawType))
		address := Address(strings.TrimSpace(rawAddress))
		if eventType == "" || address == "" {
			return nil, fmt.Errorf("routing override %q=%q is malformed", rawType, rawAddress)
		}
		exact[eventType] = address
	}
	return &RoutingTable{exact: exact, logg: params.Logger, metrics: params.Metrics}, nil
}

// Resolve returns the address for the event type. The hint is the aggregate
// type name supplied by the command, consulted only when the exact table has
// no entry.
func (t *RoutingTable) Resolve(ctx context.Context, eventType enums.EventType, hint string) Address {
	if address, ok := t.exact[eventType]; ok {
		return address
	}
	haystacks := []string{strings.ToLower(hint), strings.ToLower(string(eventType))}
	for _, route := range keywordRoutes {
		for _, haystack := range haystacks {
			if haystack != "" && strings.Contains(haystack, route.keyword) {
				return route.address
			}
		}
	}
	t.metrics.IncRoutingMiss()
	t.logg.Warn(t.logg.WithFields(ctx, map[string]any{
		"event_type":     string(eventType),
		"aggregate_hint": hint,
	}), "no route for event type, using default address")
	return AddressDefault
}
