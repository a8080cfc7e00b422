package net

import (
	"hash/fnv"
	"sync"

	"github.com/golang/glog"
)

const shardCount = 32

type room struct {
	id string

	// publish serializes persist and fan-out so the log order of a room is
	// also its broadcast order.
	publish sync.Mutex

	mu      sync.Mutex
	members map[*Session]struct{}

	// pending counts publishers holding the room; guarded by the shard lock.
	pending int
}

type shard struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// Registry maps room ids to the sessions subscribed to them. Rooms are spread
// over shards so unrelated rooms do not contend; a room exists only while it
// has members or an in-flight publish.
type Registry struct {
	shards [shardCount]*shard
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{rooms: make(map[string]*room)}
	}
	return r
}

func (r *Registry) shardFor(roomID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return r.shards[h.Sum32()%shardCount]
}

// Join subscribes sess to roomID. Joining twice is a no-op.
func (r *Registry) Join(sess *Session, roomID string) {
	sh := r.shardFor(roomID)
	sh.mu.Lock()
	rm, ok := sh.rooms[roomID]
	if !ok {
		rm = &room{id: roomID, members: make(map[*Session]struct{})}
		sh.rooms[roomID] = rm
	}
	rm.mu.Lock()
	rm.members[sess] = struct{}{}
	rm.mu.Unlock()
	sh.mu.Unlock()

	sess.addRoom(roomID)
	glog.V(1).Infof("[room] %s joined %s", sess.ID, roomID)
}

// Leave unsubscribes sess from roomID. Leaving a room it is not in is a no-op.
func (r *Registry) Leave(sess *Session, roomID string) {
	sess.removeRoom(roomID)

	sh := r.shardFor(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rm, ok := sh.rooms[roomID]
	if !ok {
		return
	}
	rm.mu.Lock()
	delete(rm.members, sess)
	empty := len(rm.members) == 0
	rm.mu.Unlock()
	if empty && rm.pending == 0 {
		delete(sh.rooms, roomID)
	}
	glog.V(1).Infof("[room] %s left %s", sess.ID, roomID)
}

// Drop removes sess from every room it joined.
func (r *Registry) Drop(sess *Session) {
	for _, roomID := range sess.Rooms() {
		r.Leave(sess, roomID)
	}
}

func (r *Registry) acquire(roomID string) *room {
	sh := r.shardFor(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rm, ok := sh.rooms[roomID]
	if !ok {
		rm = &room{id: roomID, members: make(map[*Session]struct{})}
		sh.rooms[roomID] = rm
	}
	rm.pending++
	return rm
}

func (r *Registry) release(rm *room) {
	sh := r.shardFor(rm.id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rm.pending--
	rm.mu.Lock()
	empty := len(rm.members) == 0
	rm.mu.Unlock()
	if empty && rm.pending == 0 && sh.rooms[rm.id] == rm {
		delete(sh.rooms, rm.id)
	}
}

// Publish runs persist and, if it succeeds, queues frame to every member of
// roomID except sender. Publishes to one room are serialized. The persist
// error is returned and nothing is broadcast. It returns the number of
// sessions the frame was queued for.
func (r *Registry) Publish(sender *Session, roomID string, frame []byte, persist func() error) (int, error) {
	rm := r.acquire(roomID)
	defer r.release(rm)

	rm.publish.Lock()
	defer rm.publish.Unlock()

	if persist != nil {
		if err := persist(); err != nil {
			return 0, err
		}
	}

	rm.mu.Lock()
	targets := make([]*Session, 0, len(rm.members))
	for sess := range rm.members {
		if sess != sender {
			targets = append(targets, sess)
		}
	}
	rm.mu.Unlock()

	queued := 0
	for _, sess := range targets {
		if sess.Enqueue(frame) {
			queued++
		} else {
			glog.V(1).Infof("[room] dropped frame for %s in %s", sess.ID, roomID)
		}
	}
	return queued, nil
}

// Exclusive runs fn while holding roomID's publish lock, so fn is ordered
// against every Publish to the room. Nothing is broadcast.
func (r *Registry) Exclusive(roomID string, fn func() error) error {
	rm := r.acquire(roomID)
	defer r.release(rm)

	rm.publish.Lock()
	defer rm.publish.Unlock()
	return fn()
}

// Members returns the number of sessions in roomID.
func (r *Registry) Members(roomID string) int {
	sh := r.shardFor(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rm, ok := sh.rooms[roomID]
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

type RegistryStats struct {
	Rooms       int
	Memberships int
}

func (r *Registry) Stats() RegistryStats {
	var stats RegistryStats
	for _, sh := range r.shards {
		sh.mu.Lock()
		for _, rm := range sh.rooms {
			rm.mu.Lock()
			if len(rm.members) > 0 {
				stats.Rooms++
				stats.Memberships += len(rm.members)
			}
			rm.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	return stats
}
