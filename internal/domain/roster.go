package domain

import "time"

// RosterKind discriminates the two event variants.
type RosterKind int

const (
	// KindEvent is a standard scheduled event: player slots plus optional
	// sherpa slots carved out of the capacity.
	KindEvent RosterKind = iota
	// KindSherpaRequest is a sherpa-only meetup: every slot is a sherpa
	// slot, there are no ordinary participants.
	KindSherpaRequest
)

// List names the roster list a member sits in. Used for logging and for
// routing post-transition side effects.
type List string

const (
	ListNone          List = ""
	ListParticipants  List = "participants"
	ListBackups       List = "backups"
	ListSherpas       List = "sherpas"
	ListSherpaBackups List = "sherpa backups"
)

// Reminder flags, each fires at most once per roster.
type Reminder uint8

const (
	Remind2h Reminder = 1 << iota
	Remind30m
	RemindStart
)

func (s Reminder) Has(f Reminder) bool { return s&f != 0 }

// SurfaceRef points at the channel+message currently displaying a roster.
type SurfaceRef struct {
	ChannelID string
	MessageID string
}

func (s SurfaceRef) Zero() bool { return s.MessageID == "" }

// Roster is the mutable state of one scheduled event. All list mutations go
// through the transition methods below; they are synchronous and perform no
// I/O, so a caller can serialize them under one lock per roster and then act
// on the returned Outcome.
//
// Invariant, enforced by every transition: a member ID appears in at most one
// of Participants / Backups / Sherpas / SherpaBackups.
type Roster struct {
	Kind        RosterKind
	Activity    Activity
	Capacity    int
	SherpaSlots int
	HostID      string
	Note        string

	// StartTime zero means no time-based transition ever fires.
	StartTime   time.Time
	SignupsOpen bool
	Sent        Reminder

	Participants  []string
	Backups       []string
	Sherpas       []string
	SherpaBackups []string

	// Surface is the primary event card. SherpaSurface is the companion
	// "claim a sherpa slot" card, zero when the event carries no sherpa
	// slots. Both may be re-pointed after an external deletion.
	Surface       SurfaceRef
	SherpaSurface SurfaceRef
}

// NewEventRoster builds a standard event. capacity <= 0 falls back to the
// activity's category capacity.
func NewEventRoster(act Activity, hostID string, capacity, sherpaSlots int, start time.Time, note string) *Roster {
	if capacity <= 0 {
		capacity = act.Capacity()
	}
	if sherpaSlots < 0 {
		sherpaSlots = 0
	}
	return &Roster{
		Kind:        KindEvent,
		Activity:    act,
		Capacity:    capacity,
		SherpaSlots: sherpaSlots,
		HostID:      hostID,
		Note:        note,
		StartTime:   start,
	}
}

// NewSherpaRequest builds a sherpa-only roster: every slot is a sherpa slot.
func NewSherpaRequest(act Activity, hostID string, slots int, start time.Time, note string) *Roster {
	if slots <= 0 {
		slots = act.Capacity()
	}
	return &Roster{
		Kind:        KindSherpaRequest,
		Activity:    act,
		Capacity:    slots,
		SherpaSlots: slots,
		HostID:      hostID,
		Note:        note,
		StartTime:   start,
	}
}

// PlayerSlots is the capacity left for ordinary participants.
func (r *Roster) PlayerSlots() int {
	if r.Kind == KindSherpaRequest {
		return 0
	}
	n := r.Capacity - r.SherpaSlots
	if n < 0 {
		return 0
	}
	return n
}

// ListOf is the central cross-list membership check.
func (r *Roster) ListOf(memberID string) List {
	if contains(r.Participants, memberID) {
		return ListParticipants
	}
	if contains(r.Backups, memberID) {
		return ListBackups
	}
	if contains(r.Sherpas, memberID) {
		return ListSherpas
	}
	if contains(r.SherpaBackups, memberID) {
		return ListSherpaBackups
	}
	return ListNone
}

// Terminal reports whether the event is past its start with every reminder
// sent; after that no further transitions are processed.
func (r *Roster) Terminal(now time.Time) bool {
	if r.StartTime.IsZero() {
		return false
	}
	return now.After(r.StartTime) && r.Sent.Has(Remind2h) && r.Sent.Has(Remind30m) && r.Sent.Has(RemindStart)
}

// MarkSent sets a reminder flag. Returns false when it was already set, so
// each reminder fires at most once.
func (r *Roster) MarkSent(f Reminder) bool {
	if r.Sent.Has(f) {
		return false
	}
	r.Sent |= f
	return true
}

// Outcome reports what a transition changed so the caller can render and
// notify without re-deriving state.
type Outcome struct {
	Changed        bool
	Placed         List     // list the member ended up in
	Removed        List     // list the member left (Leave only)
	Promoted       []string // backups promoted into participant slots
	SherpaPromoted []string // sherpa backups promoted into sherpa slots
}

// AddBackup appends the member to the backup list. No-op when the member is
// already anywhere on the roster.
func (r *Roster) AddBackup(memberID string) Outcome {
	if r.ListOf(memberID) != ListNone {
		return Outcome{}
	}
	r.Backups = append(r.Backups, memberID)
	return Outcome{Changed: true, Placed: ListBackups}
}

// Join handles the "join" reaction. Before signups open it is a soft
// reservation and only ever lands on the backup list; once open it takes a
// player slot when one is free, else backs up. Idempotent.
func (r *Roster) Join(memberID string) Outcome {
	if !r.SignupsOpen {
		return r.AddBackup(memberID)
	}
	return r.ConfirmedJoin(memberID)
}

// ConfirmedJoin applies open-signups join semantics regardless of the current
// SignupsOpen value. This is the path for members pre-selected over DM: their
// Confirm bypasses the soft-reservation rule.
func (r *Roster) ConfirmedJoin(memberID string) Outcome {
	if r.ListOf(memberID) != ListNone {
		return Outcome{}
	}
	if len(r.Participants) < r.PlayerSlots() {
		r.Participants = append(r.Participants, memberID)
		return Outcome{Changed: true, Placed: ListParticipants}
	}
	r.Backups = append(r.Backups, memberID)
	return Outcome{Changed: true, Placed: ListBackups}
}

// ClaimSherpa takes a sherpa slot when one is free, else joins the sherpa
// backup list. The caller is responsible for the capability check.
func (r *Roster) ClaimSherpa(memberID string) Outcome {
	if r.ListOf(memberID) != ListNone {
		return Outcome{}
	}
	if len(r.Sherpas) < r.SherpaSlots {
		r.Sherpas = append(r.Sherpas, memberID)
		return Outcome{Changed: true, Placed: ListSherpas}
	}
	r.SherpaBackups = append(r.SherpaBackups, memberID)
	return Outcome{Changed: true, Placed: ListSherpaBackups}
}

// Leave removes the member from whichever list holds them. Freed player and
// sherpa slots are backfilled immediately, FIFO from the head of the matching
// backup list.
func (r *Roster) Leave(memberID string) Outcome {
	out := Outcome{}
	switch {
	case contains(r.Participants, memberID):
		r.Participants = remove(r.Participants, memberID)
		out = Outcome{Changed: true, Removed: ListParticipants, Promoted: r.Autofill()}
	case contains(r.Backups, memberID):
		r.Backups = remove(r.Backups, memberID)
		out = Outcome{Changed: true, Removed: ListBackups}
	case contains(r.Sherpas, memberID):
		r.Sherpas = remove(r.Sherpas, memberID)
		out = Outcome{Changed: true, Removed: ListSherpas, SherpaPromoted: r.SherpaAutofill()}
	case contains(r.SherpaBackups, memberID):
		r.SherpaBackups = remove(r.SherpaBackups, memberID)
		out = Outcome{Changed: true, Removed: ListSherpaBackups}
	}
	return out
}

// Autofill promotes backups into free player slots, head first. Safe to call
// at any time; calling it again without an intervening mutation is a no-op.
func (r *Roster) Autofill() []string {
	var promoted []string
	for len(r.Participants) < r.PlayerSlots() && len(r.Backups) > 0 {
		head := r.Backups[0]
		r.Backups = r.Backups[1:]
		r.Participants = append(r.Participants, head)
		promoted = append(promoted, head)
	}
	return promoted
}

// SherpaAutofill is Autofill over the sherpa lists.
func (r *Roster) SherpaAutofill() []string {
	var promoted []string
	for len(r.Sherpas) < r.SherpaSlots && len(r.SherpaBackups) > 0 {
		head := r.SherpaBackups[0]
		r.SherpaBackups = r.SherpaBackups[1:]
		r.Sherpas = append(r.Sherpas, head)
		promoted = append(promoted, head)
	}
	return promoted
}

// Open flips signups open and runs one autofill pass. already=true means the
// roster was open before the call and nothing changed.
func (r *Roster) Open() (promoted []string, already bool) {
	if r.SignupsOpen {
		return nil, true
	}
	r.SignupsOpen = true
	return r.Autofill(), false
}

// Resize recomputes the slot split. Shrinking below the current participant
// count does NOT evict anyone; the card simply shows over capacity and the
// host resolves it manually. Growing backfills from the backup lists.
func (r *Roster) Resize(capacity, sherpaSlots int) (promoted, sherpaPromoted []string) {
	if capacity > 0 {
		r.Capacity = capacity
	}
	if sherpaSlots >= 0 {
		r.SherpaSlots = sherpaSlots
	}
	if r.Kind == KindSherpaRequest {
		r.SherpaSlots = r.Capacity
	}
	return r.Autofill(), r.SherpaAutofill()
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func remove(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
