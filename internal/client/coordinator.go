package client

import (
	"context"
	"sync"

	"github.com/johnwards/leadtrack/internal/domain"
	"github.com/johnwards/leadtrack/internal/ws"
)

// CacheState is the lifecycle of the coordinator's collection cache.
type CacheState int

const (
	// CacheEmpty means nothing has been fetched yet.
	CacheEmpty CacheState = iota
	// CacheLoading means a fetch is in flight.
	CacheLoading
	// CacheReady means the cache reflects the last confirmed server state.
	CacheReady
	// CacheStale means the server has moved on; the cache is displayable
	// but a refresh is due.
	CacheStale
)

func (s CacheState) String() string {
	switch s {
	case CacheEmpty:
		return "empty"
	case CacheLoading:
		return "loading"
	case CacheReady:
		return "ready"
	case CacheStale:
		return "stale"
	}
	return "unknown"
}

// Coordinator owns a paginated lead cache and keeps it consistent under two
// independent change sources: mutations made through this client and push
// events from other clients. Nobody else writes the cache.
//
// Refreshes carry a generation token. Any invalidation bumps the generation,
// so a fetch that started before the invalidation cannot overwrite newer
// state when it lands.
type Coordinator struct {
	client *Client

	mu         sync.Mutex
	state      CacheState
	page       *LeadPage
	query      ListQuery
	generation uint64
	subs       map[int]func(ws.Event)
	nextSub    int
}

// NewCoordinator creates a coordinator over the given client with an empty
// cache and a default query: first page, ten leads, newest first.
func NewCoordinator(c *Client) *Coordinator {
	return &Coordinator{
		client: c,
		query:  ListQuery{Page: 1, PageSize: 10, SortDesc: true},
		subs:   make(map[int]func(ws.Event)),
	}
}

// Snapshot returns the cached page (nil until the first refresh completes)
// and the cache state.
func (co *Coordinator) Snapshot() (*LeadPage, CacheState) {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.page, co.state
}

// Query returns the current list query.
func (co *Coordinator) Query() ListQuery {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.query
}

// SetQuery changes the list query and marks the cache stale. The cached page
// keeps displaying until the next refresh lands.
func (co *Coordinator) SetQuery(q ListQuery) {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.query = q
	co.invalidateLocked()
}

// Refresh fetches the current query from the server and installs the result,
// unless the cache was invalidated after this refresh started. In that case
// the result is discarded and the cache stays stale for the newer refresh
// to settle.
func (co *Coordinator) Refresh(ctx context.Context) error {
	co.mu.Lock()
	gen := co.generation
	query := co.query
	if co.state != CacheReady {
		co.state = CacheLoading
	}
	co.mu.Unlock()

	page, err := co.client.ListLeads(ctx, query)

	co.mu.Lock()
	defer co.mu.Unlock()
	if err != nil {
		if co.generation == gen && co.state == CacheLoading {
			if co.page == nil {
				co.state = CacheEmpty
			} else {
				co.state = CacheStale
			}
		}
		return err
	}
	if co.generation != gen {
		// Superseded while in flight.
		return nil
	}
	co.page = page
	co.state = CacheReady
	return nil
}

// HandleEvent feeds one push event into the cache. Invalidation is
// idempotent and applies to every event, echoes of this client's own
// mutations included; subscriber notification is suppressed for echoes.
func (co *Coordinator) HandleEvent(evt ws.Event) {
	co.mu.Lock()
	co.invalidateLocked()
	echo := evt.UserID != "" && evt.UserID == co.client.SessionID()
	var subs []func(ws.Event)
	if !echo {
		subs = make([]func(ws.Event), 0, len(co.subs))
		for _, fn := range co.subs {
			subs = append(subs, fn)
		}
	}
	co.mu.Unlock()

	// Callbacks run outside the lock so a subscriber can call back into
	// the coordinator.
	for _, fn := range subs {
		fn(evt)
	}
}

// Subscribe registers a callback for non-echo push events. The returned
// function unsubscribes; calling it more than once is harmless.
func (co *Coordinator) Subscribe(fn func(ws.Event)) func() {
	co.mu.Lock()
	defer co.mu.Unlock()
	id := co.nextSub
	co.nextSub++
	co.subs[id] = fn

	return func() {
		co.mu.Lock()
		defer co.mu.Unlock()
		delete(co.subs, id)
	}
}

// CreateLead creates a lead through the API and marks the cache stale on
// success: totals and page boundaries have shifted server-side. There is no
// optimistic insert; the cache only ever holds server-confirmed state.
func (co *Coordinator) CreateLead(ctx context.Context, input domain.LeadInput) (*domain.Lead, error) {
	lead, err := co.client.CreateLead(ctx, input)
	if err != nil {
		return nil, err
	}
	co.mu.Lock()
	co.invalidateLocked()
	co.mu.Unlock()
	return lead, nil
}

// UpdateLead applies a patch through the API. When the updated lead sits on
// the cached page it is replaced in place and the cache stays ready;
// otherwise the cache is marked stale.
func (co *Coordinator) UpdateLead(ctx context.Context, id string, patch domain.Patch) (*domain.Lead, error) {
	lead, err := co.client.UpdateLead(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	co.mu.Lock()
	defer co.mu.Unlock()
	if co.page != nil {
		for i := range co.page.Items {
			if co.page.Items[i].ID == lead.ID {
				co.page.Items[i] = *lead
				return lead, nil
			}
		}
	}
	co.invalidateLocked()
	return lead, nil
}

// DeleteLead deletes a lead through the API, drops it from the cached page
// and marks the cache stale: the page now under-fills and totals changed.
func (co *Coordinator) DeleteLead(ctx context.Context, id string) (*domain.Lead, error) {
	lead, err := co.client.DeleteLead(ctx, id)
	if err != nil {
		return nil, err
	}

	co.mu.Lock()
	defer co.mu.Unlock()
	if co.page != nil {
		items := co.page.Items[:0]
		for _, l := range co.page.Items {
			if l.ID != lead.ID {
				items = append(items, l)
			}
		}
		co.page.Items = items
	}
	co.invalidateLocked()
	return lead, nil
}

// invalidateLocked bumps the generation and degrades the state. Empty stays
// empty: there is nothing to mark stale.
func (co *Coordinator) invalidateLocked() {
	co.generation++
	if co.state != CacheEmpty {
		co.state = CacheStale
	}
}
