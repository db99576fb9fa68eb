// Package session manages connected WebSocket clients and message
// routing for collaborative documents, threading clock.Local,
// clock.Lamport and clock.Vector stamps through every dispatch so the
// RGA underneath stays causally consistent across replicas.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Polqt/crdtcollab/clock"
	"github.com/Polqt/crdtcollab/crdt"
)

// ─────────────────────────────────────────────────────────────
// Message types
// ─────────────────────────────────────────────────────────────

const (
	MsgInsert   = "insert"
	MsgDelete   = "delete"
	MsgSnapshot = "snapshot"
	MsgAck      = "ack"
	MsgError    = "error"
)

// Message is the wire format for a CRDT operation.
type Message struct {
	DocID    string          `json:"doc_id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	SenderID string          `json:"sender_id"`
	Ts       time.Time       `json:"ts"`
}

// InsertPayload carries an RGA insert operation.
type InsertPayload struct {
	ID      clock.Lamport `json:"id"`
	AfterID clock.Lamport `json:"after_id"`
	Char    string        `json:"char"` // single rune as string
}

// DeletePayload carries an RGA delete operation.
type DeletePayload struct {
	ID clock.Lamport `json:"id"`
}

// SnapshotPayload is sent to new joiners: the document's current text
// plus its version vector, so the joiner can compute ObservedAll against
// the host's knowledge before replaying its own backlog (spec.md §1's
// "buffer-version acknowledgement" scenario).
type SnapshotPayload struct {
	Text      string              `json:"text"`
	Vector    []clock.VectorEntry `json:"vector"`
	ReplicaID clock.ReplicaID     `json:"replica_id"`
}

// ErrUnknownDocument names the case of an operation on a document the
// hub has never created. No function in this package returns it:
// GetOrCreate always creates a document on first reference.
var ErrUnknownDocument = errors.New("session: unknown document")

// ─────────────────────────────────────────────────────────────
// Session
// ─────────────────────────────────────────────────────────────

// Sender is implemented by the WebSocket transport layer so Session can
// push messages without depending on the transport package.
type Sender interface {
	Send(msg Message) error
	Close() error
	RemoteAddr() string
}

// Session represents one connected client editing a document.
type Session struct {
	ID        string // unique session token (UUID)
	DocID     string
	ReplicaID clock.ReplicaID
	sender    Sender
	hub       *Hub
}

// NewSession creates a session with the given transport sender. The
// session token is always a freshly generated UUID, grounded in
// amaydixit11-acorde's use of uuid.New() for identity.
func NewSession(docID string, replicaID clock.ReplicaID, sender Sender, hub *Hub) *Session {
	return &Session{
		ID:        uuid.NewString(),
		DocID:     docID,
		ReplicaID: replicaID,
		sender:    sender,
		hub:       hub,
	}
}

// Push sends a message to this client.
func (s *Session) Push(msg Message) error {
	return s.sender.Send(msg)
}

// ─────────────────────────────────────────────────────────────
// Document — per-document CRDT state + sessions
// ─────────────────────────────────────────────────────────────

// Document holds the live CRDT state for one collaborative document:
// its RGA, its version vector (the causal knowledge this replica holds
// about the document), and the sessions currently editing it.
type Document struct {
	mu           sync.RWMutex
	ID           string
	ReplicaID    clock.ReplicaID // the replica id this document's RGA mints stamps as
	rga          *crdt.RGA
	vv           clock.Vector
	pending      []crdt.RGANode // ops buffered on ErrOutOfOrder
	sessions     map[string]*Session
	lastActivity time.Time
}

// NewDocument creates a new empty document whose host replica mints
// stamps as replicaID.
func NewDocument(id string, replicaID clock.ReplicaID) *Document {
	return &Document{
		ID:           id,
		ReplicaID:    replicaID,
		rga:          crdt.NewRGA(replicaID),
		vv:           clock.NewVector(),
		sessions:     make(map[string]*Session),
		lastActivity: time.Now(),
	}
}

// Text returns the current document text (read-only snapshot).
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rga.Text()
}

// snapshot returns the text and version vector under a single lock, for
// consistent hand-off to a newly joined session.
func (d *Document) snapshot() (string, clock.Vector) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rga.Text(), d.vv.Clone()
}

// applyInsert ticks the document's Lamport clock for a locally
// originated insert, observes the resulting stamp into the version
// vector, applies it to the RGA, and returns the fragment to broadcast.
func (d *Document) applyInsert(afterID clock.Lamport, char rune) crdt.RGANode {
	d.mu.Lock()
	defer d.mu.Unlock()
	node := d.rga.Insert(afterID, char)
	d.vv.Observe(clock.Local{ReplicaID: node.ID.ReplicaID, Value: node.ID.Value})
	d.lastActivity = time.Now()
	return node
}

// applyDelete marks id deleted locally and folds its stamp into the
// version vector.
func (d *Document) applyDelete(id clock.Lamport) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rga.Delete(id); err != nil {
		return err
	}
	d.vv.Observe(clock.Local{ReplicaID: id.ReplicaID, Value: id.Value})
	d.lastActivity = time.Now()
	return nil
}

// applyRemote applies an operation received from a peer, honoring the
// causal-readiness gate: an op whose dependency isn't yet observed is
// buffered in d.pending and retried whenever the vector advances.
func (d *Document) applyRemote(op crdt.RGANode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applyRemoteLocked(op)
}

func (d *Document) applyRemoteLocked(op crdt.RGANode) error {
	err := d.rga.Apply(op, d.vv)
	if errors.Is(err, crdt.ErrOutOfOrder) {
		d.pending = append(d.pending, op)
		return nil
	}
	if err != nil {
		return err
	}
	d.vv.Observe(clock.Local{ReplicaID: op.ID.ReplicaID, Value: op.ID.Value})
	d.lastActivity = time.Now()
	d.drainPendingLocked()
	return nil
}

// drainPendingLocked retries buffered operations now that the vector has
// advanced; it loops until a full pass makes no progress.
func (d *Document) drainPendingLocked() {
	for {
		progressed := false
		remaining := d.pending[:0]
		for _, op := range d.pending {
			err := d.rga.Apply(op, d.vv)
			switch {
			case err == nil:
				d.vv.Observe(clock.Local{ReplicaID: op.ID.ReplicaID, Value: op.ID.Value})
				progressed = true
			case errors.Is(err, crdt.ErrOutOfOrder):
				remaining = append(remaining, op)
			default:
				slog.Warn("dropping unapplicable buffered op", "err", err)
			}
		}
		d.pending = remaining
		if !progressed || len(d.pending) == 0 {
			return
		}
	}
}

// idleFor reports how long the document has had zero active sessions.
func (d *Document) idleFor(now time.Time) (time.Duration, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.sessions) > 0 {
		return 0, false
	}
	return now.Sub(d.lastActivity), true
}

// Broadcast sends msg to every session except excludeID.
func (d *Document) Broadcast(msg Message, excludeID string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for id, s := range d.sessions {
		if id == excludeID {
			continue
		}
		if err := s.Push(msg); err != nil {
			slog.Warn("broadcast failed", "session", id, "err", err)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Hub — registry of all documents and sessions
// ─────────────────────────────────────────────────────────────

// Hub is the central message router for all active documents and
// sessions.
type Hub struct {
	mu          sync.RWMutex
	docs        map[string]*Document
	nextReplica clock.ReplicaID
	idleTimeout time.Duration
}

// NewHub creates a new Hub. idleTimeout of zero disables idle-document
// eviction. startReplicaID seeds the per-document replica id counter
// (the coordinator-assigned starting point for this hub instance); pass
// 1 if the caller has no particular range to start from.
func NewHub(idleTimeout time.Duration, startReplicaID clock.ReplicaID) *Hub {
	if startReplicaID == 0 {
		startReplicaID = 1 // 0 is reserved for the session-coordinator.
	}
	return &Hub{
		docs:        make(map[string]*Document),
		nextReplica: startReplicaID,
		idleTimeout: idleTimeout,
	}
}

// Run sweeps for documents with zero active sessions that have been idle
// past the hub's idleTimeout and evicts them to reclaim memory. It
// blocks until ctx is canceled; call as `go hub.Run(ctx)`.
func (h *Hub) Run(ctx context.Context) {
	if h.idleTimeout <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(h.idleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.evictIdle(now)
		}
	}
}

func (h *Hub) evictIdle(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, doc := range h.docs {
		if idle, ok := doc.idleFor(now); ok && idle >= h.idleTimeout {
			delete(h.docs, id)
			slog.Info("evicted idle document", "doc", id, "idle", idle)
		}
	}
}

// GetOrCreate returns the document with the given id, creating it if
// needed. Each document is assigned a fresh host-local replica id from
// the hub's counter.
func (h *Hub) GetOrCreate(docID string) *Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.docs[docID]; ok {
		return d
	}
	replicaID := h.nextReplica
	h.nextReplica++
	d := NewDocument(docID, replicaID)
	h.docs[docID] = d
	return d
}

// Join registers a session with its document and sends the current
// snapshot (text plus version vector).
func (h *Hub) Join(sess *Session) {
	doc := h.GetOrCreate(sess.DocID)
	doc.mu.Lock()
	doc.sessions[sess.ID] = sess
	doc.lastActivity = time.Now()
	doc.mu.Unlock()

	text, vv := doc.snapshot()
	snap, _ := json.Marshal(SnapshotPayload{
		Text:      text,
		Vector:    vv.MarshalEntries(),
		ReplicaID: sess.ReplicaID,
	})
	_ = sess.Push(Message{
		DocID:   sess.DocID,
		Type:    MsgSnapshot,
		Payload: snap,
		Ts:      time.Now(),
	})
}

// Leave removes a session from its document.
func (h *Hub) Leave(sess *Session) {
	doc := h.GetOrCreate(sess.DocID)
	doc.mu.Lock()
	delete(doc.sessions, sess.ID)
	doc.lastActivity = time.Now()
	doc.mu.Unlock()

	slog.Info("session left", "session", sess.ID, "doc", sess.DocID)
}

// Dispatch handles an incoming message from a session: it applies the
// operation locally (minting a fresh stamp via the document's clocks),
// then broadcasts the resulting fragment to every other session on the
// document.
func (h *Hub) Dispatch(sess *Session, msg Message) {
	doc := h.GetOrCreate(msg.DocID)

	switch msg.Type {
	case MsgInsert:
		var p InsertPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			slog.Warn("bad insert payload", "err", err)
			return
		}
		if len(p.Char) == 0 {
			slog.Warn("empty insert char")
			return
		}
		char := []rune(p.Char)[0]
		node := doc.applyInsert(p.AfterID, char)

		out, _ := json.Marshal(InsertPayload{ID: node.ID, AfterID: node.InsertAfter, Char: string(node.Char)})
		doc.Broadcast(Message{DocID: msg.DocID, Type: MsgInsert, Payload: out, SenderID: sess.ID, Ts: time.Now()}, sess.ID)

	case MsgDelete:
		var p DeletePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			slog.Warn("bad delete payload", "err", err)
			return
		}
		if err := doc.applyDelete(p.ID); err != nil {
			slog.Warn("delete failed", "err", err)
			return
		}
		doc.Broadcast(msg, sess.ID)

	default:
		slog.Warn("unknown message type", "type", msg.Type)
	}
}

// DispatchRemote applies an operation that already carries its
// originating stamp (e.g. replayed from another hub instance during a
// federation sync) through the causal-readiness gate rather than
// minting a fresh local stamp.
func (h *Hub) DispatchRemote(docID string, op crdt.RGANode) error {
	doc := h.GetOrCreate(docID)
	return doc.applyRemote(op)
}
