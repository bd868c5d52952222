package solver

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"abt/config"
	"abt/pomdp"
)

// Budget bounds one Improve call. Zero fields fall back to the options
// record; a negative field means explicitly none, so a Budget with both
// fields negative makes Improve a no-op.
type Budget struct {
	MaxSimulations int64
	MaxDuration    time.Duration
}

// NoBudget is the explicit zero-work budget.
func NoBudget() Budget {
	return Budget{MaxSimulations: -1, MaxDuration: -1}
}

// Option customizes a solver at construction.
type Option func(s *Solver)

// WithEstimationStrategy overrides the default max-q belief estimator.
func WithEstimationStrategy(strategy EstimationStrategy) Option {
	return func(s *Solver) {
		if strategy != nil {
			s.estimate = strategy
		}
	}
}

// WithStepGenerator overrides the default UCB1 step generator.
func WithStepGenerator(gen StepGenerator) Option {
	return func(s *Solver) {
		if gen != nil {
			s.stepGen = gen
		}
	}
}

// WithSearchStrategy overrides the default search strategy.
func WithSearchStrategy(build func(s *Solver) SearchStrategy) Option {
	return func(s *Solver) {
		if build != nil {
			s.buildSearch = build
		}
	}
}

// WithReplenisher overrides the default particle replenisher.
func WithReplenisher(r Replenisher) Option {
	return func(s *Solver) {
		if r != nil {
			s.replenisher = r
		}
	}
}

// WithDepletionFallback makes Advance fill a depleted belief from the
// uniform state prior instead of surfacing the depletion error.
func WithDepletionFallback() Option {
	return func(s *Solver) {
		s.depletionFallback = true
	}
}

// Solver owns the belief tree and everything reachable from it: the state
// pool, the history store, the strategies and the random generator. It is
// single threaded; one simulation runs to completion before the next
// starts.
type Solver struct {
	model     pomdp.Model
	opts      config.Options
	rngSource rand.PCGSource
	rng       *rand.Rand

	pool      *StatePool
	histories *Histories
	root      *BeliefNode

	estimate    EstimationStrategy
	stepGen     StepGenerator
	buildSearch func(s *Solver) SearchStrategy
	search      SearchStrategy
	replenisher Replenisher
	corrector   HistoryCorrector

	nextNodeID        int64
	startTime         time.Time
	depletionFallback bool
}

// New builds a solver over the model and seeds the root belief with
// minParticleCount initial-state particles.
func New(model pomdp.Model, opts config.Options, options ...Option) (*Solver, error) {
	s, err := newShell(model, opts, options...)
	if err != nil {
		return nil, err
	}
	var rootData any
	if hm, ok := model.(pomdp.HistoricalModel); ok {
		rootData = hm.RootData()
	}
	s.root = s.newBeliefNode(nil, 0, rootData)
	if err := s.seedRoot(); err != nil {
		return nil, err
	}
	return s, nil
}

// newShell wires a solver's strategies and RNG without creating the root;
// New seeds a fresh root, the serializer reconstructs one.
func newShell(model pomdp.Model, opts config.Options, options ...Option) (*Solver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := &Solver{
		model:     model,
		opts:      opts,
		pool:      NewStatePool(model.NumStateVariables()),
		histories: NewHistories(),
		estimate:  MaxQEstimator,
		startTime: time.Now(),
	}
	s.rngSource.Seed(opts.RngSeed)
	s.rng = rand.New(&s.rngSource)
	if rm, ok := model.(pomdp.RandomizedModel); ok {
		rm.SetRNG(s.rng)
	}
	if em, ok := model.(pomdp.EstimatorModel); ok {
		if strategy := EstimatorForKind(em.Estimator()); strategy != nil {
			s.estimate = strategy
		} else {
			log.Warn().Msgf("model asked for unknown estimator %q; keeping the default", em.Estimator())
		}
	}

	// functional options take precedence over model capabilities
	for _, option := range options {
		option(s)
	}
	if s.stepGen == nil {
		s.stepGen = NewStepGeneratorFromOptions(model, opts)
	}
	if s.buildSearch == nil {
		s.buildSearch = func(s *Solver) SearchStrategy {
			return NewBasicSearch(s, s.stepGen)
		}
	}
	s.search = s.buildSearch(s)
	if s.replenisher == nil {
		s.replenisher = NewDefaultReplenisher(model, s.rng, opts.ReplenishAttempts())
	}
	s.corrector = NewDefaultCorrector(s)
	return s, nil
}

func (s *Solver) Model() pomdp.Model      { return s.model }
func (s *Solver) Options() config.Options { return s.opts }
func (s *Solver) Root() *BeliefNode       { return s.root }
func (s *Solver) Pool() *StatePool        { return s.pool }
func (s *Solver) Histories() *Histories   { return s.histories }
func (s *Solver) RNG() *rand.Rand         { return s.rng }

func (s *Solver) clock() time.Time { return time.Now() }

// newBeliefNode allocates a node with the next stable id and wires its
// mapping and estimator.
func (s *Solver) newBeliefNode(parent *ObsEntry, depth int, data any) *BeliefNode {
	b := &BeliefNode{
		owner:         s,
		id:            s.nextNodeID,
		depth:         depth,
		parentEntry:   parent,
		data:          data,
		particleIndex: make(map[*HistoryEntry]int),
		lastChange:    s.clock(),
	}
	s.nextNodeID++
	b.actionMap = newActionMapping(b, s.model.AllActions(), s.rng)
	b.estimator = s.estimate(b.actionMap)
	return b
}

// newBeliefNodeWithID reconstructs a node under an externally assigned id;
// used by the serializer, which restores the id counter separately.
func (s *Solver) newBeliefNodeWithID(id int64, depth int) *BeliefNode {
	b := &BeliefNode{
		owner:         s,
		id:            id,
		depth:         depth,
		particleIndex: make(map[*HistoryEntry]int),
		lastChange:    s.clock(),
	}
	b.actionMap = newActionMapping(b, s.model.AllActions(), s.rng)
	b.estimator = s.estimate(b.actionMap)
	return b
}

// seedRoot fills the root belief with single-entry sequences drawn from
// the initial state distribution.
func (s *Solver) seedRoot() error {
	for i := int64(0); i < s.opts.MinParticleCount; i++ {
		if err := s.addRootParticle(s.model.SampleAnInitState()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Solver) addRootParticle(state pomdp.State) error {
	info, err := s.pool.GetOrCanonicalize(state)
	if err != nil {
		return err
	}
	seq := s.histories.NewSequence()
	e := seq.Append(info)
	e.belief = s.root
	s.root.addParticle(e)
	return nil
}

// Improve runs simulations from the root until the budget is exhausted,
// checking wall clock and iteration count only between simulations.
// Returns the number of simulations actually run.
func (s *Solver) Improve(budget Budget) (int64, error) {
	maxSims := budget.MaxSimulations
	if maxSims == 0 {
		maxSims = s.opts.SearchBudgetIterations
	}
	maxDur := budget.MaxDuration
	if maxDur == 0 {
		maxDur = time.Duration(s.opts.SearchBudgetMs) * time.Millisecond
	}
	if maxSims <= 0 && maxDur <= 0 {
		return 0, nil
	}

	deadline := time.Time{}
	if maxDur > 0 {
		deadline = time.Now().Add(maxDur)
	}

	var count int64
	for {
		if maxSims > 0 && count >= maxSims {
			break
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			break
		}
		start := s.root.SampleParticle(s.rng)
		var info *StateInfo
		if start != nil {
			info = start.StateInfo()
		} else {
			var err error
			info, err = s.pool.GetOrCanonicalize(s.model.SampleAnInitState())
			if err != nil {
				return count, err
			}
		}
		if _, err := s.search.ExtendEpisode(s.root, info); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// RecommendedAction asks the root estimator for the action to execute. It
// never mutates the tree beyond the estimator's lazy recalculation.
func (s *Solver) RecommendedAction() (pomdp.Action, bool) {
	return s.root.RecommendedAction()
}

// Advance re-roots the tree at the belief reached by executing action and
// receiving obs, pruning the old root and every sibling subtree. Stable
// ids on the surviving subtree are preserved; depths are renumbered from
// the new root. Beliefs left under the minimum particle count are
// replenished first.
func (s *Solver) Advance(action pomdp.Action, obs pomdp.Observation) error {
	entry := s.root.actionMap.Entry(action)
	if entry == nil {
		return &ModelContractError{Reason: fmt.Sprintf("advance with unknown action %v", action)}
	}
	if entry.node == nil {
		log.Warn().Msgf("advancing through untried action %v; child belief starts empty", action)
	}
	oe, created := entry.EnsureNode().obsMap.GetOrCreate(obs)
	if created {
		log.Warn().Msgf("advance reached unvisited observation %v; replenishing from scratch", obs)
	}
	child := oe.child

	var depletion error
	if int64(child.ParticleCount()) < s.opts.MinParticleCount {
		depletion = s.replenishBelief(s.root, child, action, obs)
	}

	s.reroot(child)
	return depletion
}

// replenishBelief tops a belief up to minParticleCount using the
// replenisher, registering each produced state as a fresh single-entry
// sequence.
func (s *Solver) replenishBelief(parent, child *BeliefNode, action pomdp.Action, obs pomdp.Observation) error {
	target := int(s.opts.MinParticleCount) - child.ParticleCount()
	states, err := s.replenisher.Replenish(parent, action, obs, target)
	if err != nil {
		var depletion *ParticleDepletionError
		if errors.As(err, &depletion) && s.depletionFallback {
			log.Warn().Msgf("particle depletion at belief %d; falling back to uniform sampling", child.ID())
			for len(states) < target {
				states = append(states, s.model.SampleStateUniform())
			}
			err = nil
		}
	}
	for _, state := range states {
		info, cerr := s.pool.GetOrCanonicalize(state)
		if cerr != nil {
			return cerr
		}
		seq := s.histories.NewSequence()
		e := seq.Append(info)
		e.belief = child
		child.addParticle(e)
	}
	return err
}

// reroot makes child the new root: sequences entirely outside the
// surviving subtree are deleted, orphaned prefixes are detached, weak back
// references are cleared and depths renumbered.
func (s *Solver) reroot(child *BeliefNode) {
	surviving := make(map[*BeliefNode]struct{})
	collectSubtree(child, surviving)

	for _, id := range s.histories.SequenceIDs() {
		seq := s.histories.Sequence(id)
		keep := false
		for _, e := range seq.entries {
			if e.belief != nil {
				if _, ok := surviving[e.belief]; ok {
					keep = true
					break
				}
			}
		}
		if !keep {
			s.histories.DeleteSequence(seq)
			continue
		}
		for _, e := range seq.entries {
			if e.belief == nil {
				continue
			}
			if _, ok := surviving[e.belief]; !ok {
				e.belief.removeParticle(e)
				e.belief = nil
			}
		}
	}

	child.parentEntry = nil
	s.root = child
	renumberDepths(child, 0)
}

func collectSubtree(b *BeliefNode, into map[*BeliefNode]struct{}) {
	into[b] = struct{}{}
	for _, ae := range b.actionMap.Entries() {
		if ae.node == nil {
			continue
		}
		for _, oe := range ae.node.obsMap.Entries() {
			collectSubtree(oe.child, into)
		}
	}
}

func renumberDepths(b *BeliefNode, depth int) {
	b.depth = depth
	for _, ae := range b.actionMap.Entries() {
		if ae.node == nil {
			continue
		}
		for _, oe := range ae.node.obsMap.Entries() {
			renumberDepths(oe.child, depth+1)
		}
	}
}

// ApplyChanges propagates external model changes: the model updates its
// own dynamics, affected states are found through the state index,
// histories touching them are flagged and replayed, and every estimator
// cache is invalidated.
func (s *Solver) ApplyChanges(changes []pomdp.ModelChange) error {
	if mm, ok := s.model.(pomdp.MutableModel); ok {
		for _, c := range changes {
			mm.ApplyChange(c)
		}
	}

	touched := make(map[*HistorySequence]struct{})
	for _, c := range changes {
		for _, info := range s.pool.StatesWithin(c.Low(), c.High()) {
			for e := range info.entries {
				e.flagged = true
				touched[e.seq] = struct{}{}
				if e.id > 0 {
					prev := e.seq.entries[e.id-1]
					prev.flagged = true
					touched[prev.seq] = struct{}{}
				}
			}
		}
	}

	for _, id := range s.histories.SequenceIDs() {
		seq := s.histories.Sequence(id)
		if _, ok := touched[seq]; !ok {
			continue
		}
		if err := s.corrector.ReviseSequence(seq); err != nil {
			return err
		}
	}

	markSubtreeDirty(s.root)
	return nil
}

func markSubtreeDirty(b *BeliefNode) {
	b.estimator.MarkDirty()
	for _, ae := range b.actionMap.Entries() {
		if ae.node == nil {
			continue
		}
		for _, oe := range ae.node.obsMap.Entries() {
			markSubtreeDirty(oe.child)
		}
	}
}

// CheckInvariants verifies the cross-tree invariants and returns an
// InvariantError naming the first failed check. Intended for tests and
// debugging sweeps.
func (s *Solver) CheckInvariants() error {
	return checkBeliefInvariants(s.root)
}

func checkBeliefInvariants(b *BeliefNode) error {
	for _, e := range b.particles {
		if e.belief != b {
			return &InvariantError{Check: fmt.Sprintf(
				"belief %d holds a particle pointing at belief %v", b.id, e.belief)}
		}
	}
	for _, ae := range b.actionMap.Entries() {
		if ae.node == nil {
			continue
		}
		var sum int64
		for _, oe := range ae.node.obsMap.Entries() {
			sum += oe.visits
			if oe.child.parentEntry != oe {
				return &InvariantError{Check: fmt.Sprintf(
					"belief %d has a broken parent link", oe.child.id)}
			}
			if err := checkBeliefInvariants(oe.child); err != nil {
				return err
			}
		}
		if sum != ae.visits {
			return &InvariantError{Check: fmt.Sprintf(
				"action %v at belief %d has %d visits but children sum to %d",
				ae.action, b.id, ae.visits, sum)}
		}
	}
	return nil
}
