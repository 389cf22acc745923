package reconciler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"campusnet/backend/internal/graph"

	"github.com/google/uuid"
)

// DedupWindow is how far apart in epoch time two records with identical
// sender, recipient, and content may sit and still count as the same
// logical message. The local echo and the durable copy of one send never
// share an id, so identity has to be recovered heuristically.
const DedupWindow = 2 * time.Second

// ItemKind distinguishes view entries
type ItemKind string

const (
	// ItemMessage is a chat message entry
	ItemMessage ItemKind = "message"
	// ItemDaySeparator marks a calendar-date change between messages
	ItemDaySeparator ItemKind = "day-separator"
)

// Item is one entry of the rendered conversation view
type Item struct {
	Kind    ItemKind
	Message graph.MessageRecord // set when Kind == ItemMessage
	Day     time.Time           // midnight of the day, set when Kind == ItemDaySeparator
}

// Reconciler merges three message sources for one client session: the
// optimistic local echo, the authoritative history fetch, and asynchronous
// push delivery. It holds at most one open conversation view at a time and
// tracks per-peer unread flags for the rest. Safe for concurrent use; push
// events arrive from the transport goroutine.
type Reconciler struct {
	mu          sync.Mutex
	selfID      string
	openPeer    string
	messages    []graph.MessageRecord
	provisional map[string]bool // local-echo ids not yet confirmed durable
	unread      map[string]bool
	loc         *time.Location
}

// New creates a reconciler for the given user's session. Day separators are
// derived in loc; pass nil for the local timezone.
func New(selfID string, loc *time.Location) *Reconciler {
	if loc == nil {
		loc = time.Local
	}
	return &Reconciler{
		selfID:      selfID,
		provisional: make(map[string]bool),
		unread:      make(map[string]bool),
		loc:         loc,
	}
}

// Open switches the view to the given peer. The peer's unread flag clears
// the instant its conversation opens, and any state from a previously open
// view is discarded.
func (r *Reconciler) Open(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.openPeer = peerID
	r.messages = nil
	r.provisional = make(map[string]bool)
	delete(r.unread, peerID)
}

// Close detaches the current view. Subsequent pushes for that peer set its
// unread flag instead of entering a view.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.openPeer = ""
	r.messages = nil
	r.provisional = make(map[string]bool)
}

// AppendLocalEcho inserts a provisional record for a message the user just
// sent, with a client-generated id and the best-known timestamp. The durable
// copy arriving later via history or push replaces it.
func (r *Reconciler) AppendLocalEcho(content string) (graph.MessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.openPeer == "" {
		return graph.MessageRecord{}, fmt.Errorf("no open conversation")
	}

	now := time.Now()
	echo := graph.MessageRecord{
		ID:          uuid.New().String(),
		SenderID:    r.selfID,
		RecipientID: r.openPeer,
		Content:     content,
		CreatedAt:   now,
		EpochMillis: now.UnixMilli(),
	}

	r.provisional[echo.ID] = true
	r.merge(echo)
	return echo, nil
}

// ApplyHistory merges a history fetch into the open view. History is
// authoritative for ordering. Duplicate writes inside the history itself are
// absorbed by bucketing epoch timestamps to whole seconds before grouping.
func (r *Reconciler) ApplyHistory(history []graph.MessageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.openPeer == "" {
		return
	}

	seen := make(map[string]bool, len(history))
	for _, msg := range history {
		key := fmt.Sprintf("%s|%s|%s|%d", msg.SenderID, msg.RecipientID, msg.Content, msg.EpochMillis/1000)
		if seen[key] {
			continue
		}
		seen[key] = true
		r.merge(msg)
	}
}

// ApplyPush handles one push-delivered message. A push for the open peer
// merges into the view; a push for any other peer flags that peer as having
// new messages.
func (r *Reconciler) ApplyPush(msg graph.MessageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.openPeer != "" && msg.SenderID == r.openPeer {
		r.merge(msg)
		return
	}
	if msg.SenderID != r.selfID {
		r.unread[msg.SenderID] = true
	}
}

// HasUnread reports whether the peer has messages not yet seen this session
func (r *Reconciler) HasUnread(peerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unread[peerID]
}

// UnreadPeers returns the peers currently flagged with new messages
func (r *Reconciler) UnreadPeers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers := make([]string, 0, len(r.unread))
	for id := range r.unread {
		peers = append(peers, id)
	}
	sort.Strings(peers)
	return peers
}

// View renders the open conversation: messages strictly ascending by epoch
// timestamp, with a day separator wherever the calendar date changes.
func (r *Reconciler) View() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]Item, 0, len(r.messages)+4)
	var lastDay time.Time
	for _, msg := range r.messages {
		day := dayOf(msg.EpochMillis, r.loc)
		if !day.Equal(lastDay) {
			items = append(items, Item{Kind: ItemDaySeparator, Day: day})
			lastDay = day
		}
		items = append(items, Item{Kind: ItemMessage, Message: msg})
	}
	return items
}

// merge inserts one record, collapsing it with an existing record of the
// same logical message. Caller holds the lock.
func (r *Reconciler) merge(msg graph.MessageRecord) {
	for i, existing := range r.messages {
		if existing.ID == msg.ID {
			return
		}
		if !sameLogical(existing, msg) {
			continue
		}
		if r.provisional[existing.ID] {
			// The durable record replaces the local echo.
			delete(r.provisional, existing.ID)
			r.messages[i] = msg
			r.sortLocked()
		}
		return
	}

	r.messages = append(r.messages, msg)
	r.sortLocked()
}

func (r *Reconciler) sortLocked() {
	sort.SliceStable(r.messages, func(i, j int) bool {
		return r.messages[i].EpochMillis < r.messages[j].EpochMillis
	})
}

// sameLogical applies the dedup heuristic: identical sender, recipient, and
// content with epoch timestamps inside the dedup window.
func sameLogical(a, b graph.MessageRecord) bool {
	if a.SenderID != b.SenderID || a.RecipientID != b.RecipientID || a.Content != b.Content {
		return false
	}
	delta := a.EpochMillis - b.EpochMillis
	if delta < 0 {
		delta = -delta
	}
	return delta < DedupWindow.Milliseconds()
}

func dayOf(epochMillis int64, loc *time.Location) time.Time {
	t := time.UnixMilli(epochMillis).In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
