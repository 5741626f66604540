// Package detector finds N+1 association access and unused eager loading
// within one unit of work, such as an HTTP request or a test case.
//
// The ORM hook layer reports materialized objects, eager load declarations
// and association reads; Checkpoint evaluates them; the predicates and
// Notices expose the findings after the whitelist and toggles of the
// process-wide Config have been applied.
package detector

import (
	"cmp"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/tphakala/preloadwatch/internal/logger"
)

// State is the lifecycle position of a unit of work.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateChecked
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateChecked:
		return "checked"
	default:
		return "unknown"
	}
}

// Detector is the per unit of work facade. Each concurrent unit of work
// needs its own Detector; the Config may be shared. All methods are safe on
// a nil receiver, so hook code can call them without checking whether
// detection is active.
type Detector struct {
	mu sync.Mutex

	id       string
	cfg      *Config
	log      logger.Logger
	registry *Registry
	state    State
	fetchSeq int

	// first call site per access and per eager load declaration
	accessSites map[accessKey]string
	eagerSites  map[classAssoc]string

	unpreloaded map[classAssoc]*finding
	unused      map[classAssoc]*finding
}

// Option configures a Detector.
type Option func(*Detector)

// WithConfig binds the detector to cfg instead of DefaultConfig.
func WithConfig(cfg *Config) Option {
	return func(d *Detector) {
		if cfg != nil {
			d.cfg = cfg
		}
	}
}

// WithUnitOfWorkID sets the identifier attached to notices.
func WithUnitOfWorkID(id string) Option {
	return func(d *Detector) {
		if id != "" {
			d.id = id
		}
	}
}

// WithLogger sets the logger for checkpoint summaries.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

// New starts an idle unit of work with a random ID.
func New(opts ...Option) *Detector {
	d := &Detector{
		id:  uuid.NewString(),
		cfg: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Global().Module("detector")
	}
	d.resetLocked()
	return d
}

// ID returns the unit of work identifier.
func (d *Detector) ID() string {
	if d == nil {
		return ""
	}
	return d.id
}

// Config returns the configuration the detector reads.
func (d *Detector) Config() *Config {
	if d == nil {
		return nil
	}
	return d.cfg
}

// State returns the current lifecycle state.
func (d *Detector) State() State {
	if d == nil {
		return StateIdle
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// NewFetchContext returns a fresh group token for one logical fetch.
func (d *Detector) NewFetchContext(label string) GroupToken {
	if d == nil {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetchSeq++
	return GroupToken(label + "#" + strconv.Itoa(d.fetchSeq))
}

// OnObjectsMaterialized registers ids as siblings of the fetch behind token.
func (d *Detector) OnObjectsMaterialized(token GroupToken, ids ...ObjectIdentity) {
	d.register(func(r *Registry) bool {
		return r.RegisterPossibleObjects(token, ids...)
	})
}

// OnSingleObjectMaterialized registers an object fetched on its own.
func (d *Detector) OnSingleObjectMaterialized(id ObjectIdentity) {
	d.register(func(r *Registry) bool {
		return r.RegisterSingleObject(id)
	})
}

// OnEagerLoadRequested declares that association is eagerly loaded on the
// owners in ids.
func (d *Detector) OnEagerLoadRequested(ownerClass, association string, ids ...ObjectIdentity) {
	site := d.callSite()
	d.register(func(r *Registry) bool {
		if !r.RegisterEagerLoad(ownerClass, association, ids...) {
			return false
		}
		key := classAssoc{class: ownerClass, association: association}
		if _, ok := d.eagerSites[key]; !ok && site != "" {
			d.eagerSites[key] = site
		}
		return true
	})
}

// OnAssociationRead records that association was read on id.
func (d *Detector) OnAssociationRead(id ObjectIdentity, association string) {
	site := d.callSite()
	d.register(func(r *Registry) bool {
		if !r.RegisterAccess(id, association) {
			return false
		}
		key := accessKey{id: id, association: association}
		if _, ok := d.accessSites[key]; !ok && site != "" {
			d.accessSites[key] = site
		}
		return true
	})
}

func (d *Detector) callSite() string {
	if d == nil || !d.cfg.Enabled() || !d.cfg.CallSitesEnabled() {
		return ""
	}
	return captureCallSite()
}

// register applies one registration. A registration after Checkpoint
// reopens the unit of work and discards the computed findings.
func (d *Detector) register(fn func(*Registry) bool) {
	if d == nil || !d.cfg.Enabled() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if !fn(d.registry) {
		return
	}
	if d.state == StateChecked {
		d.unpreloaded, d.unused = nil, nil
	}
	d.state = StateAccumulating
}

// Checkpoint runs both checkers. A disabled checker is skipped entirely.
func (d *Detector) Checkpoint() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.unpreloaded, d.unused = nil, nil
	if d.cfg.NPlusOneEnabled() {
		d.unpreloaded = checkUnpreloaded(d.registry)
	}
	if d.cfg.UnusedEagerLoadEnabled() {
		d.unused = checkUnusedEagerLoads(d.registry)
	}
	d.state = StateChecked

	d.log.Debug("checkpoint",
		logger.String("unit_of_work", d.id),
		logger.Int("unpreloaded", len(d.unpreloaded)),
		logger.Int("unused_preload", len(d.unused)),
		logger.Int("tracked_objects", d.registry.Stats().TrackedObjects))
}

// Reset discards all bookkeeping and returns to the idle state.
func (d *Detector) Reset() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

func (d *Detector) resetLocked() {
	d.registry = NewRegistry()
	d.accessSites = make(map[accessKey]string)
	d.eagerSites = make(map[classAssoc]string)
	d.unpreloaded, d.unused = nil, nil
	d.fetchSeq = 0
	d.state = StateIdle
}

// HasUnpreloaded reports whether any N+1 flag survives filtering.
func (d *Detector) HasUnpreloaded() bool {
	return len(d.Flags(KindUnpreloaded)) > 0
}

// HasUnusedPreload reports whether any unused eager load flag survives filtering.
func (d *Detector) HasUnusedPreload() bool {
	return len(d.Flags(KindUnusedPreload)) > 0
}

// IsUnpreloaded reports whether (class, association) is flagged as N+1.
func (d *Detector) IsUnpreloaded(class, association string) bool {
	return d.isFlagged(KindUnpreloaded, class, association)
}

// IsUnusedPreload reports whether (class, association) is flagged as an
// unused eager load.
func (d *Detector) IsUnusedPreload(class, association string) bool {
	return d.isFlagged(KindUnusedPreload, class, association)
}

// AllEagerLoadsUsed is true once checked and no unused eager load flag
// survives filtering.
func (d *Detector) AllEagerLoadsUsed() bool {
	return d.State() == StateChecked && !d.HasUnusedPreload()
}

// CompletelyPreloading is true once checked and no N+1 flag survives
// filtering.
func (d *Detector) CompletelyPreloading() bool {
	return d.State() == StateChecked && !d.HasUnpreloaded()
}

func (d *Detector) isFlagged(kind Kind, class, association string) bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateChecked || !d.cfg.reportable(class, association, kind) {
		return false
	}
	_, ok := d.findingsLocked(kind)[classAssoc{class: class, association: association}]
	return ok
}

func (d *Detector) findingsLocked(kind Kind) map[classAssoc]*finding {
	switch kind {
	case KindUnpreloaded:
		return d.unpreloaded
	case KindUnusedPreload:
		return d.unused
	default:
		return nil
	}
}

// Flags returns the filtered findings of kind ordered by class and
// association. It is empty before Checkpoint.
func (d *Detector) Flags(kind Kind) []Flag {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flagsLocked(kind)
}

func (d *Detector) flagsLocked(kind Kind) []Flag {
	if d.state != StateChecked {
		return nil
	}
	findings := d.findingsLocked(kind)
	keys := slices.SortedFunc(maps.Keys(findings), compareClassAssoc)

	var flags []Flag
	for _, key := range keys {
		if !d.cfg.reportable(key.class, key.association, kind) {
			continue
		}
		flags = append(flags, Flag{
			Kind:        kind,
			Class:       key.class,
			Association: key.association,
			Objects:     len(findings[key].objects),
		})
	}
	return flags
}

// UnpreloadedFlags returns the filtered N+1 flags.
func (d *Detector) UnpreloadedFlags() []Flag {
	return d.Flags(KindUnpreloaded)
}

// UnusedPreloadFlags returns the filtered unused eager load flags.
func (d *Detector) UnusedPreloadFlags() []Flag {
	return d.Flags(KindUnusedPreload)
}

// Notices groups the filtered flags by kind and class. N+1 notices come
// first; within a kind notices are ordered by class.
func (d *Detector) Notices() []Notice {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var notices []Notice
	for _, kind := range []Kind{KindUnpreloaded, KindUnusedPreload} {
		var current *Notice
		for _, f := range d.flagsLocked(kind) {
			if current == nil || current.Class != f.Class {
				if current != nil {
					notices = append(notices, *current)
				}
				current = &Notice{Kind: kind, Class: f.Class, UnitOfWork: d.id}
			}
			current.Associations = append(current.Associations, f.Association)
			if current.CallSite == "" {
				current.CallSite = d.callSiteLocked(kind, classAssoc{class: f.Class, association: f.Association})
			}
		}
		if current != nil {
			notices = append(notices, *current)
		}
	}
	return notices
}

// callSiteLocked picks the site of the eager load for unused flags and the
// site of the first offending access, by identity order, for N+1 flags.
func (d *Detector) callSiteLocked(kind Kind, key classAssoc) string {
	if kind == KindUnusedPreload {
		return d.eagerSites[key]
	}
	f := d.unpreloaded[key]
	if f == nil {
		return ""
	}
	for _, id := range f.objects {
		if site := d.accessSites[accessKey{id: id, association: key.association}]; site != "" {
			return site
		}
	}
	return ""
}

// Stats returns the size of the unit of work.
func (d *Detector) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.Stats()
}

// SortNotices orders notices by kind, class and call site. Useful when
// merging the notices of several units of work.
func SortNotices(notices []Notice) {
	slices.SortStableFunc(notices, func(a, b Notice) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Class, b.Class),
			cmp.Compare(a.CallSite, b.CallSite),
		)
	})
}
