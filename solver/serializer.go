package solver

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"abt/config"
	"abt/pomdp"
)

// Serializer persists a solver's belief tree. The format must be
// reversible: loading a saved solver reproduces the stable ids, mappings,
// particle multisets and q-values of the original.
type Serializer interface {
	Save(s *Solver, w io.Writer) error
	Load(r io.Reader) (*Solver, error)
}

// TextSerializer writes one tagged record per line. Objects reference each
// other through stable ids; problem content goes through the model's
// codec, separated by ' | '. Null states and observations are written as
// "()", null actions as "NULL".
type TextSerializer struct {
	model   pomdp.Model
	opts    config.Options
	codec   pomdp.Codec
	options []Option
}

const textHeader = "ABT 1"

// NewTextSerializer builds a serializer for a model implementing
// CodecModel. The solver options passed to Load are the ones given here.
func NewTextSerializer(model pomdp.Model, opts config.Options, options ...Option) (*TextSerializer, error) {
	cm, ok := model.(pomdp.CodecModel)
	if !ok {
		return nil, &ModelContractError{Reason: "model does not provide a text codec"}
	}
	return &TextSerializer{model: model, opts: opts, codec: cm.Codec(), options: options}, nil
}

func (ts *TextSerializer) Save(s *Solver, w io.Writer) error {
	bw := bufio.NewWriter(w)

	rngState, err := s.rngSource.MarshalBinary()
	if err != nil {
		return fmt.Errorf("saving rng state: %w", err)
	}
	fmt.Fprintln(bw, textHeader)
	fmt.Fprintf(bw, "IDS %d\n", s.nextNodeID)
	fmt.Fprintf(bw, "RNG %s\n", hex.EncodeToString(rngState))

	fmt.Fprintf(bw, "STATES %d\n", s.pool.NumStates())
	for _, info := range s.pool.States() {
		fmt.Fprintf(bw, "STATE %d | %s\n", info.id, ts.codec.EncodeState(info.state))
	}

	beliefs := collectBeliefs(s.root)
	fmt.Fprintf(bw, "BELIEFS %d\n", len(beliefs))
	for _, b := range beliefs {
		fmt.Fprintf(bw, "BEL %d %d\n", b.id, b.depth)
	}
	for _, b := range beliefs {
		ts.saveMapping(bw, b)
	}

	ids := s.histories.SequenceIDs()
	fmt.Fprintf(bw, "SEQS %d %d\n", len(ids), s.histories.nextID)
	for _, id := range ids {
		seq := s.histories.Sequence(id)
		fmt.Fprintf(bw, "SEQ %d %d\n", seq.id, len(seq.entries))
		for _, e := range seq.entries {
			beliefID := int64(-1)
			if e.belief != nil {
				beliefID = e.belief.id
			}
			fmt.Fprintf(bw, "ENT %d %d %s %s %s %d | %s | %s\n",
				e.id, e.stateInfo.id,
				formatFloat(e.reward), formatFloat(e.discount), formatFloat(e.cumulative),
				beliefID, ts.encodeAction(e.action), ts.encodeObservation(e.observation))
		}
	}

	fmt.Fprintf(bw, "ROOT %d\n", s.root.id)
	fmt.Fprintln(bw, "END")
	return bw.Flush()
}

func (ts *TextSerializer) saveMapping(w io.Writer, b *BeliefNode) {
	touched := make([]*ActionEntry, 0)
	for _, e := range b.actionMap.Entries() {
		if e.visits != 0 || e.node != nil || e.status != ActionUntried {
			touched = append(touched, e)
		}
	}
	fmt.Fprintf(w, "AMAP %d %d\n", b.id, len(touched))
	for _, e := range touched {
		nObs := -1
		if e.node != nil {
			nObs = len(e.node.obsMap.order)
		}
		fmt.Fprintf(w, "AENT %d %s %d %d | %s\n",
			e.visits, formatFloat(e.totalQ), int(e.status), nObs, ts.codec.EncodeAction(e.action))
		if e.node == nil {
			continue
		}
		for _, oe := range e.node.obsMap.Entries() {
			fmt.Fprintf(w, "OENT %d %d | %s\n",
				oe.child.id, oe.visits, ts.codec.EncodeObservation(oe.obs))
		}
	}
}

func (ts *TextSerializer) encodeAction(a pomdp.Action) string {
	if a == nil {
		return "NULL"
	}
	return ts.codec.EncodeAction(a)
}

func (ts *TextSerializer) encodeObservation(o pomdp.Observation) string {
	if o == nil {
		return "()"
	}
	return ts.codec.EncodeObservation(o)
}

func (ts *TextSerializer) Load(r io.Reader) (*Solver, error) {
	s, err := newShell(ts.model, ts.opts, ts.options...)
	if err != nil {
		return nil, err
	}

	ld := &loader{ts: ts, s: s, sc: bufio.NewScanner(r), beliefs: make(map[int64]*BeliefNode)}
	ld.sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if err := ld.load(); err != nil {
		return nil, err
	}
	return s, nil
}

type loader struct {
	ts      *TextSerializer
	s       *Solver
	sc      *bufio.Scanner
	beliefs map[int64]*BeliefNode
	line    int
}

func (ld *loader) load() error {
	if err := ld.expectLine(textHeader); err != nil {
		return err
	}

	var nextNodeID int64
	if err := ld.scanLine("IDS %d", &nextNodeID); err != nil {
		return err
	}
	rngLine, err := ld.next()
	if err != nil {
		return err
	}
	rngHex, ok := strings.CutPrefix(rngLine, "RNG ")
	if !ok {
		return ld.fail("expected RNG record")
	}
	rngState, err := hex.DecodeString(rngHex)
	if err != nil {
		return ld.fail("bad rng state: %v", err)
	}
	if err := ld.s.rngSource.UnmarshalBinary(rngState); err != nil {
		return ld.fail("bad rng state: %v", err)
	}

	if err := ld.loadStates(); err != nil {
		return err
	}
	if err := ld.loadBeliefs(); err != nil {
		return err
	}
	if err := ld.loadSequences(); err != nil {
		return err
	}

	var rootID int64
	if err := ld.scanLine("ROOT %d", &rootID); err != nil {
		return err
	}
	root, ok := ld.beliefs[rootID]
	if !ok {
		return ld.fail("root belief %d not defined", rootID)
	}
	ld.s.root = root
	ld.s.nextNodeID = nextNodeID
	ld.restoreData(root, ld.rootData())

	return ld.expectLine("END")
}

func (ld *loader) rootData() any {
	if hm, ok := ld.ts.model.(pomdp.HistoricalModel); ok {
		return hm.RootData()
	}
	return nil
}

func (ld *loader) restoreData(b *BeliefNode, data any) {
	b.data = data
	hm, isHistorical := ld.ts.model.(pomdp.HistoricalModel)
	for _, ae := range b.actionMap.Entries() {
		if ae.node == nil {
			continue
		}
		for _, oe := range ae.node.obsMap.Entries() {
			var child any
			if isHistorical {
				child = hm.ChildData(data, ae.action, oe.obs)
			}
			ld.restoreData(oe.child, child)
		}
	}
}

func (ld *loader) loadStates() error {
	var n int
	if err := ld.scanLine("STATES %d", &n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		line, err := ld.next()
		if err != nil {
			return err
		}
		head, text, ok := strings.Cut(line, " | ")
		if !ok {
			return ld.fail("malformed STATE record")
		}
		var id int64
		if _, err := fmt.Sscanf(head, "STATE %d", &id); err != nil {
			return ld.fail("malformed STATE record: %v", err)
		}
		state, err := ld.ts.codec.DecodeState(text)
		if err != nil {
			return ld.fail("undecodable state %q: %v", text, err)
		}
		info, err := ld.s.pool.GetOrCanonicalize(state)
		if err != nil {
			return ld.fail("state rejected by pool: %v", err)
		}
		if info.id != id {
			return ld.fail("state id mismatch: stream says %d, pool assigned %d", id, info.id)
		}
	}
	return nil
}

func (ld *loader) loadBeliefs() error {
	var n int
	if err := ld.scanLine("BELIEFS %d", &n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		var id int64
		var depth int
		if err := ld.scanLine("BEL %d %d", &id, &depth); err != nil {
			return err
		}
		if _, dup := ld.beliefs[id]; dup {
			return ld.fail("belief %d defined twice", id)
		}
		ld.beliefs[id] = ld.s.newBeliefNodeWithID(id, depth)
	}
	for i := 0; i < n; i++ {
		if err := ld.loadMapping(); err != nil {
			return err
		}
	}
	return nil
}

func (ld *loader) loadMapping() error {
	var beliefID int64
	var nEntries int
	if err := ld.scanLine("AMAP %d %d", &beliefID, &nEntries); err != nil {
		return err
	}
	b, ok := ld.beliefs[beliefID]
	if !ok {
		return ld.fail("mapping for undefined belief %d", beliefID)
	}
	for i := 0; i < nEntries; i++ {
		line, err := ld.next()
		if err != nil {
			return err
		}
		head, text, ok := strings.Cut(line, " | ")
		if !ok {
			return ld.fail("malformed AENT record")
		}
		var visits int64
		var totalQ float64
		var status, nObs int
		if _, err := fmt.Sscanf(head, "AENT %d %g %d %d", &visits, &totalQ, &status, &nObs); err != nil {
			return ld.fail("malformed AENT record: %v", err)
		}
		action, err := ld.ts.codec.DecodeAction(text)
		if err != nil {
			return ld.fail("undecodable action %q: %v", text, err)
		}
		entry := b.actionMap.Entry(action)
		if entry == nil {
			return ld.fail("action %q outside the model's action space", text)
		}
		entry.visits = visits
		entry.totalQ = totalQ
		if visits > 0 {
			entry.meanQ = totalQ / float64(visits)
		}
		entry.status = ActionStatus(status)
		if entry.status != ActionUntried {
			b.actionMap.dropUntried(action.Bin())
		}
		b.actionMap.totalVisits += visits
		if nObs < 0 {
			continue
		}
		node := entry.EnsureNode()
		for j := 0; j < nObs; j++ {
			if err := ld.loadObsEntry(node); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ld *loader) loadObsEntry(node *ActionNode) error {
	line, err := ld.next()
	if err != nil {
		return err
	}
	head, text, ok := strings.Cut(line, " | ")
	if !ok {
		return ld.fail("malformed OENT record")
	}
	var childID, visits int64
	if _, err := fmt.Sscanf(head, "OENT %d %d", &childID, &visits); err != nil {
		return ld.fail("malformed OENT record: %v", err)
	}
	obs, err := ld.ts.codec.DecodeObservation(text)
	if err != nil {
		return ld.fail("undecodable observation %q: %v", text, err)
	}
	child, ok := ld.beliefs[childID]
	if !ok {
		return ld.fail("observation entry references undefined belief %d", childID)
	}
	oe := node.obsMap.attach(obs, child)
	oe.visits = visits
	node.obsMap.totalVisits += visits
	return nil
}

func (ld *loader) loadSequences() error {
	var n int
	var nextID int64
	if err := ld.scanLine("SEQS %d %d", &n, &nextID); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		var id int64
		var nEntries int
		if err := ld.scanLine("SEQ %d %d", &id, &nEntries); err != nil {
			return err
		}
		seq := ld.s.histories.newSequenceWithID(id)
		for j := 0; j < nEntries; j++ {
			if err := ld.loadEntry(seq); err != nil {
				return err
			}
		}
	}
	ld.s.histories.nextID = nextID
	return nil
}

func (ld *loader) loadEntry(seq *HistorySequence) error {
	line, err := ld.next()
	if err != nil {
		return err
	}
	parts := strings.SplitN(line, " | ", 3)
	if len(parts) != 3 {
		return ld.fail("malformed ENT record")
	}
	var idx int
	var stateID, beliefID int64
	var reward, discount, cumulative float64
	if _, err := fmt.Sscanf(parts[0], "ENT %d %d %g %g %g %d",
		&idx, &stateID, &reward, &discount, &cumulative, &beliefID); err != nil {
		return ld.fail("malformed ENT record: %v", err)
	}
	if idx != len(seq.entries) {
		return ld.fail("entry index %d out of order in sequence %d", idx, seq.id)
	}
	if stateID < 0 || stateID >= int64(ld.s.pool.NumStates()) {
		return ld.fail("entry references undefined state %d", stateID)
	}
	e := seq.Append(ld.s.pool.infos[stateID])
	e.reward = reward
	e.discount = discount
	e.cumulative = cumulative
	if parts[1] != "NULL" {
		action, err := ld.ts.codec.DecodeAction(parts[1])
		if err != nil {
			return ld.fail("undecodable action %q: %v", parts[1], err)
		}
		e.action = action
	}
	if parts[2] != "()" {
		obs, err := ld.ts.codec.DecodeObservation(parts[2])
		if err != nil {
			return ld.fail("undecodable observation %q: %v", parts[2], err)
		}
		e.observation = obs
	}
	if beliefID >= 0 {
		b, ok := ld.beliefs[beliefID]
		if !ok {
			return ld.fail("entry references undefined belief %d", beliefID)
		}
		e.belief = b
		b.addParticle(e)
	}
	return nil
}

func (ld *loader) next() (string, error) {
	if !ld.sc.Scan() {
		if err := ld.sc.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		return "", fmt.Errorf("%w: truncated at line %d", ErrSerialization, ld.line)
	}
	ld.line++
	return ld.sc.Text(), nil
}

func (ld *loader) expectLine(want string) error {
	line, err := ld.next()
	if err != nil {
		return err
	}
	if line != want {
		return ld.fail("expected %q, found %q", want, line)
	}
	return nil
}

func (ld *loader) scanLine(format string, args ...any) error {
	line, err := ld.next()
	if err != nil {
		return err
	}
	if _, err := fmt.Sscanf(line, format, args...); err != nil {
		return ld.fail("expected %q record: %v", format, err)
	}
	return nil
}

func (ld *loader) fail(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSerialization, ld.line, fmt.Sprintf(format, args...))
}

func collectBeliefs(root *BeliefNode) []*BeliefNode {
	var out []*BeliefNode
	var walk func(b *BeliefNode)
	walk = func(b *BeliefNode) {
		out = append(out, b)
		for _, ae := range b.actionMap.Entries() {
			if ae.node == nil {
				continue
			}
			for _, oe := range ae.node.obsMap.Entries() {
				walk(oe.child)
			}
		}
	}
	walk(root)
	slices.SortFunc(out, func(a, b *BeliefNode) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
