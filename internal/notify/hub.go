// Package notify fans committed reservation changes out to connected clients.
package notify

import (
	"sync"
	"sync/atomic"

	"go-gin-reservation-ledger/internal/model"

	"github.com/google/uuid"
)

// Subscription 一個連線的訂閱，C 在 Close 後關閉
type Subscription struct {
	ID            string
	OwnerIdentity string
	Privileged    bool

	ch      chan model.ChangeNotice
	hub     *Hub
	dropped atomic.Int64
	once    sync.Once
}

func (s *Subscription) C() <-chan model.ChangeNotice {
	return s.ch
}

// Dropped 因為緩衝區滿而丟掉的事件數
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// wants 管理者收到全部事件，一般使用者只收到自己的預約
func (s *Subscription) wants(event *model.ChangeEvent) bool {
	return s.Privileged || s.OwnerIdentity == event.OwnerIdentity
}

// Hub 單一程序內的廣播，送不進去的訂閱者直接丟棄該事件
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
	}
}

func (h *Hub) Subscribe(ownerIdentity string, privileged bool) *Subscription {
	sub := &Subscription{
		ID:            uuid.NewString(),
		OwnerIdentity: ownerIdentity,
		Privileged:    privileged,
		ch:            make(chan model.ChangeNotice, h.buffer),
		hub:           h,
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()

	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; ok {
		delete(h.subs, sub.ID)
		close(sub.ch)
	}
}

// Broadcast 回傳實際送達的訂閱數
func (h *Hub) Broadcast(event *model.ChangeEvent) int {
	notice := event.Notice()

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subs {
		if !sub.wants(event) {
			continue
		}
		select {
		case sub.ch <- notice:
			delivered++
		default:
			sub.dropped.Add(1)
		}
	}
	return delivered
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
