package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/automarked/automarked-sub000/internal/rest"
)

// GroupRegistry mirrors which users have bell-subscribed to a company's
// notification group. Local state is always replaced by the gateway's
// returned list; there is no optimistic toggle. Operations on the same
// company are serialized so rapid toggles apply in order.
type GroupRegistry struct {
	rest   rest.Client
	logger zerolog.Logger

	mu      sync.Mutex
	members map[string][]string
	queues  map[string]*sync.Mutex
}

// NewGroupRegistry builds an empty registry.
func NewGroupRegistry(restClient rest.Client, logger zerolog.Logger) *GroupRegistry {
	return &GroupRegistry{
		rest:    restClient,
		logger:  logger.With().Str("component", "group_registry").Logger(),
		members: make(map[string][]string),
		queues:  make(map[string]*sync.Mutex),
	}
}

// Fetch loads the subscriber list for a company.
func (g *GroupRegistry) Fetch(ctx context.Context, companyID string) error {
	queue := g.queue(companyID)
	queue.Lock()
	defer queue.Unlock()

	list, err := g.rest.GroupMembers(ctx, companyID)
	if err != nil {
		g.logger.Error().Err(err).Str("company_id", companyID).Msg("group fetch failed")
		return err
	}
	g.replace(companyID, list)
	return nil
}

// Add subscribes userID to the company group.
func (g *GroupRegistry) Add(ctx context.Context, companyID, userID string) error {
	queue := g.queue(companyID)
	queue.Lock()
	defer queue.Unlock()

	list, err := g.rest.GroupAdd(ctx, companyID, userID)
	if err != nil {
		g.logger.Error().Err(err).Str("company_id", companyID).Msg("group add failed")
		return err
	}
	g.replace(companyID, list)
	return nil
}

// Remove unsubscribes userID from the company group.
func (g *GroupRegistry) Remove(ctx context.Context, companyID, userID string) error {
	queue := g.queue(companyID)
	queue.Lock()
	defer queue.Unlock()

	list, err := g.rest.GroupRemove(ctx, companyID, userID)
	if err != nil {
		g.logger.Error().Err(err).Str("company_id", companyID).Msg("group remove failed")
		return err
	}
	g.replace(companyID, list)
	return nil
}

// Clear removes every subscriber of the company group.
func (g *GroupRegistry) Clear(ctx context.Context, companyID string) error {
	queue := g.queue(companyID)
	queue.Lock()
	defer queue.Unlock()

	list, err := g.rest.GroupClear(ctx, companyID)
	if err != nil {
		g.logger.Error().Err(err).Str("company_id", companyID).Msg("group clear failed")
		return err
	}
	g.replace(companyID, list)
	return nil
}

// Members returns a copy of the last known subscriber list.
func (g *GroupRegistry) Members(companyID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.members[companyID]...)
}

// queue returns the per-company mutex that serializes operations.
func (g *GroupRegistry) queue(companyID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	if q, ok := g.queues[companyID]; ok {
		return q
	}
	q := &sync.Mutex{}
	g.queues[companyID] = q
	return q
}

func (g *GroupRegistry) replace(companyID string, list []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[companyID] = list
}
