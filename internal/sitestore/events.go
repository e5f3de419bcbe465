package sitestore

import (
	"sort"
	"sync"

	"github.com/signalsfoundry/sitecover/model"
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventSiteAdded EventType = iota
	EventSiteUpdated
	EventSiteRemoved
)

func (t EventType) String() string {
	switch t {
	case EventSiteAdded:
		return "added"
	case EventSiteUpdated:
		return "updated"
	case EventSiteRemoved:
		return "removed"
	}
	return "unknown"
}

// Event is emitted to subscribers when a site changes.
type Event struct {
	Type EventType
	Site model.Site
}

// notifier fans events out to subscribers in subscription order.
type notifier struct {
	mu      sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// Subscribe registers a callback for site events. It returns an unsubscribe
// function; calling it more than once is harmless.
func (n *notifier) Subscribe(fn func(Event)) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(Event))
	}
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// publish runs subscribers outside any store lock so they may call back
// into the store.
func (n *notifier) publish(ev Event) {
	n.mu.Lock()
	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Event), len(ids))
	for i, id := range ids {
		subs[i] = n.subs[id]
	}
	n.mu.Unlock()

	for _, sub := range subs {
		sub(ev)
	}
}
