package domain

import (
	"encoding/json"
	"time"
)

const (
	// MaxSnapshots bounds the per-document snapshot history; the oldest
	// entry is evicted when a new one would exceed the bound.
	MaxSnapshots = 50

	// SnapshotElementThreshold is the number of changed elements above
	// which a mutation triggers an automatic snapshot.
	SnapshotElementThreshold = 10
)

// Element is one drawable unit on the whiteboard. The synchronization engine
// treats everything except the ID as opaque: geometry and styling are carried
// through untouched.
type Element struct {
	ID      ElementID       `json:"id"`
	Type    string          `json:"type"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Width   float64         `json:"width"`
	Height  float64         `json:"height"`
	Angle   float64         `json:"angle,omitempty"`
	Style   json.RawMessage `json:"style,omitempty"`
	Version int             `json:"version,omitempty"`
	Text    string          `json:"text,omitempty"`
	BoundTo []ElementID     `json:"bound_to,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
	Extra   json.RawMessage `json:"extra,omitempty"`
}

// DocumentSnapshot is a point-in-time copy of the mutable document fields.
type DocumentSnapshot struct {
	Elements      []Element                  `json:"elements"`
	ViewState     map[string]json.RawMessage `json:"view_state,omitempty"`
	AttachedFiles map[string]json.RawMessage `json:"attached_files,omitempty"`
	Timestamp     time.Time                  `json:"timestamp"`
	AuthorID      IdentityID                 `json:"author_id"`
	Version       int64                      `json:"version"`
}

// WhiteboardDocument is the shared mutable document of a room. Version
// increases by exactly one per accepted mutation and never decreases.
type WhiteboardDocument struct {
	RoomID         RoomID                     `json:"room_id"`
	Elements       []Element                  `json:"elements"`
	ViewState      map[string]json.RawMessage `json:"view_state,omitempty"`
	AttachedFiles  map[string]json.RawMessage `json:"attached_files,omitempty"`
	Version        int64                      `json:"version"`
	LastModifiedBy IdentityID                 `json:"last_modified_by"`
	LastModifiedAt time.Time                  `json:"last_modified_at"`
	Snapshots      []DocumentSnapshot         `json:"snapshots,omitempty"`
}

// NewWhiteboardDocument returns the empty version-0 document for a room.
func NewWhiteboardDocument(roomID RoomID) *WhiteboardDocument {
	return &WhiteboardDocument{
		RoomID:   roomID,
		Elements: []Element{},
	}
}

// Bump stamps an accepted mutation: version +1 and modification metadata.
func (d *WhiteboardDocument) Bump(by IdentityID) {
	d.Version++
	d.LastModifiedBy = by
	d.LastModifiedAt = time.Now()
}

// Clone returns a copy whose slices and maps are detached from the receiver.
// Element payloads are treated as immutable and shared.
func (d *WhiteboardDocument) Clone() *WhiteboardDocument {
	out := *d
	out.Elements = append([]Element(nil), d.Elements...)
	out.Snapshots = append([]DocumentSnapshot(nil), d.Snapshots...)
	if d.ViewState != nil {
		out.ViewState = make(map[string]json.RawMessage, len(d.ViewState))
		for k, v := range d.ViewState {
			out.ViewState[k] = v
		}
	}
	if d.AttachedFiles != nil {
		out.AttachedFiles = make(map[string]json.RawMessage, len(d.AttachedFiles))
		for k, v := range d.AttachedFiles {
			out.AttachedFiles[k] = v
		}
	}
	return &out
}

// FindElement returns the index of the element with the given id, or -1.
func (d *WhiteboardDocument) FindElement(id ElementID) int {
	for i := range d.Elements {
		if d.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

// AppendSnapshot adds a snapshot of the current state, evicting the oldest
// entry once the history holds MaxSnapshots.
func (d *WhiteboardDocument) AppendSnapshot(author IdentityID) DocumentSnapshot {
	snap := DocumentSnapshot{
		Elements:      append([]Element(nil), d.Elements...),
		ViewState:     d.ViewState,
		AttachedFiles: d.AttachedFiles,
		Timestamp:     time.Now(),
		AuthorID:      author,
		Version:       d.Version,
	}

	d.Snapshots = append(d.Snapshots, snap)
	if len(d.Snapshots) > MaxSnapshots {
		d.Snapshots = d.Snapshots[len(d.Snapshots)-MaxSnapshots:]
	}
	return snap
}
