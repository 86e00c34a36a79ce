package entity

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ItemType names the kind of content a reaction targets.
type ItemType string

const (
	ItemPost     ItemType = "post"
	ItemComment  ItemType = "comment"
	ItemActivity ItemType = "activity"
	ItemTopic    ItemType = "topic"
)

var (
	itemTypesMu sync.RWMutex
	itemTypes   = map[ItemType]struct{}{
		ItemPost:     {},
		ItemComment:  {},
		ItemActivity: {},
		ItemTopic:    {},
	}
)

var (
	ErrUnknownItemType = errors.New("unknown item type")
	ErrUnknownState    = errors.New("unknown reaction state")
	ErrUnknownKind     = errors.New("unknown reaction kind")
	ErrInvalidReactor  = errors.New("invalid reactor identity")
	ErrInvalidSubject  = errors.New("invalid subject id")
)

// MaxSubjectID is the largest id the signed bigint item_id columns hold.
const MaxSubjectID uint64 = math.MaxInt64

// ParseSubjectID reads a decimal subject id within the storable range.
func ParseSubjectID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id > MaxSubjectID {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSubject, s)
	}
	return id, nil
}

// RegisterItemType makes an additional content type reactable.
func RegisterItemType(t ItemType) {
	itemTypesMu.Lock()
	defer itemTypesMu.Unlock()
	itemTypes[t] = struct{}{}
}

func (t ItemType) Valid() bool {
	itemTypesMu.RLock()
	defer itemTypesMu.RUnlock()
	_, ok := itemTypes[t]
	return ok
}

func ParseItemType(s string) (ItemType, error) {
	t := ItemType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownItemType, s)
	}
	return t, nil
}

// Subject identifies the content item being reacted to.
type Subject struct {
	Type ItemType `json:"type"`
	ID   uint64   `json:"id"`
}

func (s Subject) String() string {
	return fmt.Sprintf("%s:%d", s.Type, s.ID)
}

// ParseSubject reads the "type:id" form produced by String.
func ParseSubject(s string) (Subject, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok {
		return Subject{}, fmt.Errorf("%w: %q", ErrUnknownItemType, s)
	}
	itemType, err := ParseItemType(typ)
	if err != nil {
		return Subject{}, err
	}
	itemID, err := ParseSubjectID(id)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Type: itemType, ID: itemID}, nil
}

// State is the persisted reaction of one reactor on one subject.
type State string

const (
	StateNone     State = "none"
	StateLiked    State = "liked"
	StateDisliked State = "disliked"
)

func (s State) Valid() bool {
	switch s {
	case StateNone, StateLiked, StateDisliked:
		return true
	}
	return false
}

// Kind is the action carried by a toggle request.
type Kind string

const (
	KindLike    Kind = "like"
	KindDislike Kind = "dislike"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindLike, KindDislike:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// PresentationStatus is what the viewer sees before acting. It is derived
// from the record and the session on every read.
type PresentationStatus string

const (
	StatusLoggedOut                PresentationStatus = "logged_out"
	StatusNotYetReacted            PresentationStatus = "not_yet_reacted"
	StatusReacted                  PresentationStatus = "reacted"
	StatusReactedOppositeAvailable PresentationStatus = "reacted_opposite_available"
)

func (p PresentationStatus) Valid() bool {
	switch p {
	case StatusLoggedOut, StatusNotYetReacted, StatusReacted, StatusReactedOppositeAvailable:
		return true
	}
	return false
}

// PresentationFor maps a persisted state to the viewer status.
func PresentationFor(identified bool, state State) PresentationStatus {
	if !identified {
		return StatusLoggedOut
	}
	switch state {
	case StateLiked:
		return StatusReacted
	case StateDisliked:
		return StatusReactedOppositeAvailable
	default:
		return StatusNotYetReacted
	}
}

// StateForPresentation is the state a client assumed when it showed status.
func StateForPresentation(p PresentationStatus) (State, bool) {
	switch p {
	case StatusNotYetReacted:
		return StateNone, true
	case StatusReacted:
		return StateLiked, true
	case StatusReactedOppositeAvailable:
		return StateDisliked, true
	}
	return "", false
}

const (
	reactorUserPrefix = "user:"
	reactorAnonPrefix = "anon:"
)

// Reactor is either an authenticated user or an anonymous fingerprint.
type Reactor struct {
	UserID      *uuid.UUID
	Fingerprint string
}

func UserReactor(id uuid.UUID) Reactor {
	return Reactor{UserID: &id}
}

func AnonymousReactor(fingerprint string) Reactor {
	return Reactor{Fingerprint: fingerprint}
}

func (r Reactor) IsZero() bool {
	return (r.UserID == nil || *r.UserID == uuid.Nil) && r.Fingerprint == ""
}

func (r Reactor) IsAnonymous() bool {
	return r.UserID == nil && r.Fingerprint != ""
}

// Key is the canonical storage key of the reactor.
func (r Reactor) Key() string {
	if r.UserID != nil {
		return reactorUserPrefix + r.UserID.String()
	}
	return reactorAnonPrefix + r.Fingerprint
}

func ParseReactorKey(key string) (Reactor, error) {
	switch {
	case strings.HasPrefix(key, reactorUserPrefix):
		id, err := uuid.Parse(strings.TrimPrefix(key, reactorUserPrefix))
		if err != nil {
			return Reactor{}, fmt.Errorf("%w: %v", ErrInvalidReactor, err)
		}
		return UserReactor(id), nil
	case strings.HasPrefix(key, reactorAnonPrefix) && len(key) > len(reactorAnonPrefix):
		return AnonymousReactor(strings.TrimPrefix(key, reactorAnonPrefix)), nil
	}
	return Reactor{}, fmt.Errorf("%w: %q", ErrInvalidReactor, key)
}

// Reaction is the durable row for one (subject, reactor) pair. Rows are
// never deleted; a reversed reaction is a state change.
type Reaction struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ItemType   ItemType   `gorm:"size:20;not null;uniqueIndex:idx_reactions_subject_reactor,priority:1;index:idx_reactions_subject_state,priority:1" json:"item_type"`
	ItemID     uint64     `gorm:"not null;uniqueIndex:idx_reactions_subject_reactor,priority:2;index:idx_reactions_subject_state,priority:2" json:"item_id"`
	ReactorKey string     `gorm:"size:100;not null;uniqueIndex:idx_reactions_subject_reactor,priority:3" json:"reactor_key"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	State      State      `gorm:"size:10;not null;index:idx_reactions_subject_state,priority:3" json:"state"`
	Version    int64      `gorm:"not null" json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (r *Reaction) TableName() string {
	return "reactions"
}

func (r *Reaction) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID, err = uuid.NewV7()
	}
	return
}

func (r *Reaction) Subject() Subject {
	return Subject{Type: r.ItemType, ID: r.ItemID}
}

func (r *Reaction) Reactor() (Reactor, error) {
	return ParseReactorKey(r.ReactorKey)
}

// ReactionCounter holds the running totals of a subject.
type ReactionCounter struct {
	ItemType     ItemType  `gorm:"size:20;primaryKey" json:"item_type"`
	ItemID       uint64    `gorm:"primaryKey;autoIncrement:false" json:"item_id"`
	LikeCount    int64     `gorm:"not null" json:"like_count"`
	DislikeCount int64     `gorm:"not null" json:"dislike_count"`
	// Version grows on every write to the row.
	Version      int64     `gorm:"not null;default:0" json:"version"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *ReactionCounter) TableName() string {
	return "reaction_counters"
}

// CountFor returns the bucket shown next to a button of the given kind.
func (c *ReactionCounter) CountFor(kind Kind) int64 {
	if kind == KindDislike {
		return c.DislikeCount
	}
	return c.LikeCount
}

// FormatCount renders a counter the way the button shows it.
func FormatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}

// ReactionLog is the append-only audit trail of transitions.
type ReactionLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ItemType   ItemType  `gorm:"size:20;not null;index:idx_reaction_logs_subject,priority:1" json:"item_type"`
	ItemID     uint64    `gorm:"not null;index:idx_reaction_logs_subject,priority:2" json:"item_id"`
	ReactorKey string    `gorm:"size:100;not null;index" json:"reactor_key"`
	FromState  State     `gorm:"size:10;not null" json:"from_state"`
	ToState    State     `gorm:"size:10;not null" json:"to_state"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (l *ReactionLog) TableName() string {
	return "reaction_logs"
}
