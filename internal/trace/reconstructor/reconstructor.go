package reconstructor

import (
	"errors"
	"fmt"
	"sort"
	"time"

	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/trace/model"
	"go.uber.org/zap"
)

var ErrTraceNotFound = errors.New("no events found for trace")

// maxLoggedParseErrors bounds per-reconstruction parse-error logging so a
// poisoned batch cannot flood the logs.
const maxLoggedParseErrors = 5

const syntheticRootName = "Trace"

// ReconstructorService turns the flat, possibly duplicated, possibly
// out-of-order canonical event stream of one trace into a deduplicated
// parent/child span tree with derived timing, cost and token rollups. It is
// a pure function of its input: no shared mutable state, same input, same
// output.
type ReconstructorService struct {
	logger *zap.Logger
}

func NewReconstructorService(logger *zap.Logger) *ReconstructorService {
	return &ReconstructorService{logger: logger}
}

type decodedEvent struct {
	event eventmodel.CanonicalEvent
	attrs eventmodel.Attributes
}

// spanNode is an arena entry. Parent and children are arena indices, never
// live pointers, which keeps the structure acyclic by construction.
type spanNode struct {
	id         string
	originalID string
	parentID   string
	parent     int
	children   []int
	events     []decodedEvent
}

type spanArena struct {
	nodes []spanNode
	index map[string]int
}

func newSpanArena() *spanArena {
	return &spanArena{index: make(map[string]int)}
}

// get returns the arena index for a span id, creating an empty node on first
// sight.
func (a *spanArena) get(id string) int {
	if idx, ok := a.index[id]; ok {
		return idx
	}
	a.nodes = append(a.nodes, spanNode{id: id, originalID: id, parent: -1})
	idx := len(a.nodes) - 1
	a.index[id] = idx
	return idx
}

func (rs *ReconstructorService) Reconstruct(
	events []eventmodel.CanonicalEvent,
	traceID string,
) (*model.TraceDetail, error) {
	// Upstream joins on shared correlation ids can leak cross-trace rows, so
	// trust nothing but an exact trace id match.
	filtered := make([]eventmodel.CanonicalEvent, 0, len(events))
	for _, event := range events {
		if event.TraceID == traceID {
			filtered = append(filtered, event)
		}
	}
	if len(filtered) == 0 {
		return nil, ErrTraceNotFound
	}

	deduped := rs.deduplicate(filtered)
	decoded, parseErrors := rs.decode(deduped)

	arena := newSpanArena()
	for _, d := range decoded {
		rs.placeEvent(arena, d)
	}

	rootIdx := rs.assembleTree(arena, traceID)
	for i := range arena.nodes {
		sortNodeEvents(&arena.nodes[i])
	}
	earliest := earliestTimestamp(decoded)

	return rs.buildDetail(arena, rootIdx, decoded, traceID, earliest, parseErrors), nil
}

// deduplicate collapses events sharing the natural key
// (trace_id, span_id, event_type, timestamp) into one observation.
func (rs *ReconstructorService) deduplicate(
	events []eventmodel.CanonicalEvent,
) []eventmodel.CanonicalEvent {
	seen := make(map[string]bool, len(events))
	deduped := make([]eventmodel.CanonicalEvent, 0, len(events))
	dropped := 0
	for _, event := range events {
		key := event.NaturalKey()
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		deduped = append(deduped, event)
	}
	if dropped > 0 {
		rs.logger.Info("Dropped duplicate events during reconstruction", zap.Int("count", dropped))
	}
	return deduped
}

// decode parses attribute payloads defensively: a malformed payload degrades
// that single event to empty attributes instead of aborting reconstruction.
func (rs *ReconstructorService) decode(
	events []eventmodel.CanonicalEvent,
) ([]decodedEvent, int) {
	decoded := make([]decodedEvent, len(events))
	parseErrors := 0
	for i, event := range events {
		attrs, err := eventmodel.DecodeAttributes(event)
		if err != nil {
			parseErrors++
			if parseErrors <= maxLoggedParseErrors {
				rs.logger.Warn(
					"Degrading event with malformed attributes",
					zap.String("span_id", event.SpanID),
					zap.Error(err),
				)
			}
			attrs = eventmodel.Attributes{}
		}
		decoded[i] = decodedEvent{event: event, attrs: attrs}
	}
	if parseErrors > maxLoggedParseErrors {
		rs.logger.Warn(
			"Suppressed further attribute parse errors",
			zap.Int("total", parseErrors),
		)
	}
	return decoded, parseErrors
}

// placeEvent resolves which span an event belongs to. A root-level event that
// is itself a rich observation is promoted into its own synthetic span
// "{span_id}-{event_type}", re-parented under the original span id, so each
// observation type stays independently addressable.
func (rs *ReconstructorService) placeEvent(arena *spanArena, d decodedEvent) {
	event := d.event
	resolvedID := event.SpanID
	parentID := event.ParentSpanID

	if event.IsRoot() && eventmodel.RichObservationTypes[event.EventType] {
		resolvedID = fmt.Sprintf("%s-%s", event.SpanID, event.EventType)
		parentID = event.SpanID
		// The original span id must exist as the promotion target even if it
		// never carries an event of its own.
		originalIdx := arena.get(event.SpanID)
		arena.nodes[originalIdx].parentID = ""
	}

	idx := arena.get(resolvedID)
	node := &arena.nodes[idx]
	node.originalID = event.SpanID
	if node.parentID == "" && parentID != "" {
		node.parentID = parentID
	}
	node.events = append(node.events, d)
}

// assembleTree links spans to parents by declared parent id. A span whose
// parent is missing from the arena is demoted to root, never dropped. The
// result always has exactly one root: multiple top-level spans get gathered
// under a synthesized trace root.
func (rs *ReconstructorService) assembleTree(arena *spanArena, traceID string) int {
	var tops []int
	for i := range arena.nodes {
		node := &arena.nodes[i]
		if node.parentID == "" {
			tops = append(tops, i)
			continue
		}
		parentIdx, ok := arena.index[node.parentID]
		if !ok || parentIdx == i {
			rs.logger.Info(
				"Demoting span with missing parent to root",
				zap.String("span_id", node.id),
				zap.String("declared_parent", node.parentID),
			)
			node.parentID = ""
			tops = append(tops, i)
			continue
		}
		node.parent = parentIdx
		arena.nodes[parentIdx].children = append(arena.nodes[parentIdx].children, i)
	}

	if len(tops) == 1 {
		return tops[0]
	}

	// The trace-id slot may already be held by an ordinary span that is
	// parented elsewhere; the gathered root must never simultaneously be a
	// child, so synthesize a fresh node in that case.
	rootIdx, ok := arena.index[traceID]
	if !ok || arena.nodes[rootIdx].parent != -1 {
		arena.nodes = append(arena.nodes, spanNode{id: traceID, originalID: traceID, parent: -1})
		rootIdx = len(arena.nodes) - 1
		if !ok {
			arena.index[traceID] = rootIdx
		}
	}
	for _, topIdx := range tops {
		if topIdx == rootIdx {
			continue
		}
		arena.nodes[topIdx].parent = rootIdx
		arena.nodes[topIdx].parentID = traceID
		arena.nodes[rootIdx].children = append(arena.nodes[rootIdx].children, topIdx)
	}
	return rootIdx
}

func earliestTimestamp(decoded []decodedEvent) time.Time {
	earliest := decoded[0].event.Timestamp
	for _, d := range decoded[1:] {
		if d.event.Timestamp.Before(earliest) {
			earliest = d.event.Timestamp
		}
	}
	return earliest
}

// sortNodeEvents orders a span's events by timestamp. Ordering is imposed
// here, at reconstruction time, because arrival order is not trusted.
func sortNodeEvents(node *spanNode) {
	sort.SliceStable(node.events, func(i, j int) bool {
		return node.events[i].event.Timestamp.Before(node.events[j].event.Timestamp)
	})
}
