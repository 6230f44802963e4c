package value

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pklrun/pkl/internal/ast"
)

// ObjectKind tags the five polymorphic object shapes of §3.3. Dispatch is
// always on this tag, never on a virtual method — see the design note in
// spec §9.
type ObjectKind int

const (
	KindTyped ObjectKind = iota
	KindDynamic
	KindMapping
	KindListing
	KindModule
)

func (k ObjectKind) String() string {
	switch k {
	case KindTyped:
		return "Typed"
	case KindDynamic:
		return "Dynamic"
	case KindMapping:
		return "Mapping"
	case KindListing:
		return "Listing"
	case KindModule:
		return "Module"
	default:
		return "?"
	}
}

// MemberState is the lifecycle of a single lazy Member slot (spec §4.5,
// §9): Thunk -> InFlight -> Computed, or Deleted at any point before
// first access. The transition is guarded by mu; because a single
// Evaluator is single-threaded, mu only needs to prevent a member from
// observing its own in-flight recursion, not true concurrent writers.
type MemberState int

const (
	StateThunk MemberState = iota
	StateInFlight
	StateComputed
	StateDeleted
)

// Modifiers bundles the four member modifiers of §3.3.
type Modifiers struct {
	Hidden bool
	Local  bool
	Fixed  bool
	Const  bool
}

// Thunk is the unevaluated closure a Member holds before it is first
// forced. Env/Receiver are `any` to avoid an import cycle with eval;
// eval.Force does the type assertion back to its own types.
type Thunk struct {
	Eval func() (Value, error)
}

// Member is one property/element/entry slot on an Object. It is
// memoized per-owning-object, not per-thunk: amending an object clones
// the slots it doesn't touch, so a shared parent's own Member is forced
// at most once regardless of how many children read through to it.
type Member struct {
	mu    sync.Mutex
	state MemberState
	thunk Thunk
	value Value
	err   error
	mods  Modifiers
}

// NewThunkMember creates an unevaluated member.
func NewThunkMember(t Thunk, mods Modifiers) *Member {
	return &Member{state: StateThunk, thunk: t, mods: mods}
}

// NewComputedMember creates an already-materialized member (used for
// synthetic/builtin members and for for-generator/spread splices that
// are cheaper to precompute).
func NewComputedMember(v Value, mods Modifiers) *Member {
	return &Member{state: StateComputed, value: v, mods: mods}
}

// NewDeletedMember creates a tombstone: present in the slot map so a
// parent's member doesn't resurface, but invisible to iteration,
// rendering, and has_property (§4.5 rule 6).
func NewDeletedMember() *Member {
	return &Member{state: StateDeleted}
}

func (m *Member) Modifiers() Modifiers { return m.mods }
func (m *Member) IsDeleted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateDeleted
}

// CycleError is returned by Force when a member is re-entered while its
// own thunk is still in flight (§4.5, §7 CycleError, scenario 3).
type CycleError struct{}

func (CycleError) Error() string { return "A stack overflow occurred." }

// Force evaluates the member's thunk at most once, memoizing the result.
// Re-entrant calls while the thunk is in flight observe StateInFlight and
// return CycleError, per spec §4.5 and §9.
func (m *Member) Force() (Value, error) {
	m.mu.Lock()
	switch m.state {
	case StateComputed:
		v, err := m.value, m.err
		m.mu.Unlock()
		return v, err
	case StateInFlight:
		m.mu.Unlock()
		return Value{}, CycleError{}
	case StateDeleted:
		m.mu.Unlock()
		return Value{}, fmt.Errorf("member has been deleted")
	}
	m.state = StateInFlight
	thunk := m.thunk
	m.mu.Unlock()

	v, err := thunk.Eval()

	m.mu.Lock()
	m.state = StateComputed
	m.value, m.err = v, err
	m.mu.Unlock()
	return v, err
}

// Object is the runtime representation of every Pkl object shape (§3.3).
type Object struct {
	Kind      ObjectKind
	ClassName string

	propNames []string
	props     map[string]*Member

	elements []*Member

	entryKeys []Value
	entries   map[string]*Member // keyed by a stable encoding of the key value

	Parent *Object // the object this one amends, or nil

	// Receiver is the chain [this, outer1, outer2, ..., module] used to
	// resolve this/outer/module during lazy evaluation of this object's
	// own members (§4.4, §4.5 "late binding").
	Receiver []*Object

	// PropTypes records the declared type of a Typed class's own
	// properties (populated when a class's default instance is built).
	// It backs the amendment-engine's enforcement of spec §4.5 rule 2:
	// a Typed parent's property keeps its declared type across every
	// amendment unless the chain passes through toDynamic().
	PropTypes map[string]ast.Type
}

// SetDeclaredType records name's declared type on o directly (not
// inherited) — called once per property while building a class's
// default instance.
func (o *Object) SetDeclaredType(name string, t ast.Type) {
	if o.PropTypes == nil {
		o.PropTypes = make(map[string]ast.Type)
	}
	o.PropTypes[name] = t
}

// DeclaredType looks up name's declared type along o's amendment chain,
// own declarations first.
func (o *Object) DeclaredType(name string) (ast.Type, bool) {
	for cur := o; cur != nil; cur = cur.Parent {
		if t, ok := cur.PropTypes[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// NewObject creates an empty object of the given kind.
func NewObject(kind ObjectKind, className string) *Object {
	return &Object{
		Kind:      kind,
		ClassName: className,
		props:     make(map[string]*Member),
		entries:   make(map[string]*Member),
	}
}

// SetProperty installs or overwrites a named property slot, recording
// insertion order the first time the name appears.
func (o *Object) SetProperty(name string, m *Member) {
	if _, exists := o.props[name]; !exists {
		o.propNames = append(o.propNames, name)
	}
	o.props[name] = m
}

// HasOwnProperty reports whether name names a live (non-deleted) slot on
// o itself, not inherited from Parent.
func (o *Object) HasOwnProperty(name string) bool {
	m, ok := o.props[name]
	return ok && !m.IsDeleted()
}

// GetProperty resolves name against o, falling back to Parent, and
// forces the resulting member. A missing property produces the exact
// NameError wording of spec §4.4/§7.
func (o *Object) GetProperty(name string) (Value, error) {
	m := o.lookupProperty(name)
	if m == nil {
		return Value{}, fmt.Errorf(
			"does not have a property named `%s`. Available properties: %s",
			name, formatNameList(o.MaterializedNames()))
	}
	return m.Force()
}

// HasProperty reports whether name resolves to a live property anywhere
// along o's amendment chain (own or inherited).
func (o *Object) HasProperty(name string) bool {
	return o.lookupProperty(name) != nil
}

func (o *Object) lookupProperty(name string) *Member {
	for cur := o; cur != nil; cur = cur.Parent {
		if m, ok := cur.props[name]; ok {
			if m.IsDeleted() {
				return nil
			}
			return m
		}
	}
	return nil
}

// MaterializedNames returns the live property names visible on o,
// child-defined names first in the child's source order, then
// inherited names not shadowed or deleted, in the parent's order.
func (o *Object) MaterializedNames() []string {
	seen := make(map[string]bool)
	var out []string
	for cur := o; cur != nil; cur = cur.Parent {
		for _, name := range cur.propNames {
			if seen[name] {
				continue
			}
			seen[name] = true
			if m := cur.props[name]; !m.IsDeleted() {
				out = append(out, name)
			}
		}
	}
	return out
}

// AppendElement adds a new element after all of o's current elements
// (§4.5 rule 4).
func (o *Object) AppendElement(m *Member) {
	o.elements = append(o.elements, m)
}

// SetElement overwrites the element at renumbered index i (§4.5 rule 5):
// i refers to the position within MaterializedElements, i.e. after all
// earlier deletes on the chain have been applied.
func (o *Object) SetElement(i int, m *Member) error {
	live := o.liveElementMembers()
	if i < 0 || i >= len(live) {
		return fmt.Errorf("element index %d out of range (have %d)", i, len(live))
	}
	// Overriding a parent-owned element materializes an own shadow slot
	// rather than mutating the parent's shared Member.
	o.ensureOwnElementSlots(len(live))
	o.elements[o.ownIndexFor(live, i)] = m
	return nil
}

// DeleteElement tombstones renumbered index i.
func (o *Object) DeleteElement(i int) error {
	return o.SetElement(i, NewDeletedMember())
}

// PrepareOwnElementSlots materializes o's own copy-on-write element shadow
// sized to at least n, up front. Callers that need to apply several
// position-keyed mutations derived from a single snapshot of the parent's
// live sequence (e.g. a member predicate matching more than one element)
// must call this once before the loop and then mutate via
// SetElementAtSnapshotIndex — see its doc comment for why.
func (o *Object) PrepareOwnElementSlots(n int) {
	o.ensureOwnElementSlots(n)
}

// SetElementAtSnapshotIndex writes m at position i of the snapshot taken
// when PrepareOwnElementSlots was called, bypassing live renumbering.
//
// SetElement always re-renumbers against the *current* live sequence,
// which is correct for independent, one-at-a-time amendments but wrong
// for a predicate pass: matching two elements in the same
// MaterializedElements() snapshot and calling SetElement/DeleteElement
// for each would have the first mutation shrink (or shadow) the live
// sequence out from under the second mutation's index. Since
// PrepareOwnElementSlots copies the parent's live sequence 1:1 into
// o.elements before any mutation in the pass runs, snapshot index i
// still addresses o.elements[i] directly throughout the whole pass.
func (o *Object) SetElementAtSnapshotIndex(i int, m *Member) error {
	if i < 0 || i >= len(o.elements) {
		return fmt.Errorf("element index %d out of range (have %d)", i, len(o.elements))
	}
	o.elements[i] = m
	return nil
}

// liveElementMembers returns o's own element slots if it has any
// (populated as a full copy-on-write shadow of the parent's live
// sequence by ensureOwnElementSlots), otherwise it defers to Parent.
func (o *Object) liveElementMembers() []*Member {
	if o.Parent == nil {
		return filterDeleted(o.elements)
	}
	parentLive := o.Parent.liveElementMembers()
	if len(o.elements) == 0 {
		return parentLive
	}
	// o.elements, when non-empty on a child that also has a parent, is
	// always constructed (by ensureOwnElementSlots) as a full shadow copy
	// of parentLive plus any newly appended members, so we can just filter
	// deletes from it directly.
	return filterDeleted(o.elements)
}

func filterDeleted(members []*Member) []*Member {
	out := make([]*Member, 0, len(members))
	for _, m := range members {
		if !m.IsDeleted() {
			out = append(out, m)
		}
	}
	return out
}

// ensureOwnElementSlots copies the parent's live element sequence into
// o.elements (once) so that subsequent overrides/deletes operate on an
// independent copy-on-write slice, per the persistent-vector design note
// in spec §9 (a plain slice copy stands in for an RRB vector here; either
// gives O(1) amortized overrides without mutating the shared parent).
func (o *Object) ensureOwnElementSlots(minLen int) {
	if len(o.elements) == 0 && o.Parent != nil {
		o.elements = append([]*Member{}, o.Parent.liveElementMembers()...)
	}
	for len(o.elements) < minLen {
		o.elements = append(o.elements, NewDeletedMember())
	}
}

func (o *Object) ownIndexFor(live []*Member, i int) int {
	// Once ensureOwnElementSlots has run, o.elements IS the live sequence
	// (possibly with trailing appends), so the renumbered index maps
	// directly onto o.elements' own indices among its non-deleted slots.
	count := -1
	for idx, m := range o.elements {
		if !m.IsDeleted() {
			count++
			if count == i {
				return idx
			}
		}
	}
	return len(o.elements) - 1
}

// MaterializedElements forces and returns every live element in order.
func (o *Object) MaterializedElements() []Value {
	live := o.liveElementMembers()
	out := make([]Value, 0, len(live))
	for _, m := range live {
		v, err := m.Force()
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ElementAt returns the renumbered i-th live element (§4.5 rule 5,
// scenario 2).
func (o *Object) ElementAt(i int) (Value, error) {
	live := o.liveElementMembers()
	if i < 0 || i >= len(live) {
		return Value{}, fmt.Errorf("index %d out of range (have %d elements)", i, len(live))
	}
	return live[i].Force()
}

// ElementResult pairs a forced element's value with the error its thunk
// produced, if any — unlike MaterializedElements, which silently drops
// failing elements, this preserves per-element failures for callers that
// need to report them individually (e.g. a facts listing, §4.8).
type ElementResult struct {
	Value Value
	Err   error
}

// ForceElements forces every live element in order, keeping failures
// alongside their position instead of discarding them.
func (o *Object) ForceElements() []ElementResult {
	live := o.liveElementMembers()
	out := make([]ElementResult, len(live))
	for i, m := range live {
		v, err := m.Force()
		out[i] = ElementResult{Value: v, Err: err}
	}
	return out
}

// entryKeyString gives entries a stable map key; Pkl entry keys are
// typically strings or ints, which this covers exactly.
func entryKeyString(k Value) string {
	return fmt.Sprintf("%d:%s", k.Kind, k.String())
}

// SetEntry installs or overwrites the entry for key.
func (o *Object) SetEntry(key Value, m *Member) {
	ks := entryKeyString(key)
	if _, exists := o.entries[ks]; !exists {
		o.entryKeys = append(o.entryKeys, key)
	}
	o.entries[ks] = m
}

func (o *Object) lookupEntry(key Value) *Member {
	ks := entryKeyString(key)
	for cur := o; cur != nil; cur = cur.Parent {
		if m, ok := cur.entries[ks]; ok {
			if m.IsDeleted() {
				return nil
			}
			return m
		}
	}
	return nil
}

// GetEntry resolves key against o, falling back to Parent.
func (o *Object) GetEntry(key Value) (Value, error) {
	m := o.lookupEntry(key)
	if m == nil {
		return Value{}, fmt.Errorf("no entry found for key %s", key.String())
	}
	return m.Force()
}

// MaterializedEntryKeys returns the live entry keys across the amendment
// chain, child-defined keys first, in source order, deduplicated and
// filtered of deletes — mirroring MaterializedNames.
func (o *Object) MaterializedEntryKeys() []Value {
	seen := make(map[string]bool)
	var out []Value
	for cur := o; cur != nil; cur = cur.Parent {
		for _, k := range cur.entryKeys {
			ks := entryKeyString(k)
			if seen[ks] {
				continue
			}
			seen[ks] = true
			if m := cur.entries[ks]; !m.IsDeleted() {
				out = append(out, k)
			}
		}
	}
	return out
}

func formatNameList(names []string) string {
	sort.Strings(names)
	s := "["
	for i, n := range names {
		if i > 0 {
			s += ", "
		}
		s += n
	}
	return s + "]"
}
