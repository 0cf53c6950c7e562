package ratelimit

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Result is the outcome of mining a rate-limit payload for a single model.
type Result struct {
	Known     bool
	Remaining *int64
	ResetAt   *int64 // epoch milliseconds
}

const maxDepth = 8

// candidate is one scored guess at a field's value, found somewhere in the
// payload tree.
type candidate struct {
	score int
	value gjson.Result
}

// Extract walks payload according to strategy and returns the
// highest-scored remaining/reset candidates found. now anchors the
// relative reset interpretations (retry-after seconds, millis-from-now);
// it is supplied by the caller so tests stay deterministic.
func Extract(payload []byte, strategy Strategy, now time.Time) Result {
	if !gjson.ValidBytes(payload) {
		return Result{}
	}

	root := gjson.ParseBytes(payload)

	w := &walker{
		strategy: strategy,
		visited:  map[string]bool{},
	}
	w.walk(root, 0, 0)

	res := Result{}

	if w.bestRemaining != nil {
		if n, ok := asInt(w.bestRemaining.value); ok {
			res.Remaining = &n
		}
	}

	if w.bestReset != nil {
		if ms, ok := resolveResetAt(w.bestResetKey, w.bestReset.value, now); ok {
			res.ResetAt = &ms
		}
	}

	res.Known = res.Remaining != nil || res.ResetAt != nil

	return res
}

type walker struct {
	strategy Strategy
	visited  map[string]bool

	bestRemaining *candidate
	bestReset     *candidate
	bestResetKey  string
}

// walk performs a bounded, cycle-guarded DFS: object
// keys are matched against the strategy's priority lists, and the resulting
// score determines whether a candidate value replaces the current best.
func (w *walker) walk(v gjson.Result, depth, inherited int) {
	if depth > maxDepth {
		return
	}

	switch {
	case v.IsObject():
		ptr := v.Raw
		if w.visited[ptr] {
			return
		}

		w.visited[ptr] = true

		hint := w.hintFactor(v)

		v.ForEach(func(key, val gjson.Result) bool {
			w.considerKey(key.String(), val, depth, inherited, hint)
			w.walk(val, depth+1, inherited)

			return true
		})
	case v.IsArray():
		v.ForEach(func(_, val gjson.Result) bool {
			w.walk(val, depth+1, inherited)

			return true
		})
	}
}

// hintFactor doubles match bonuses when the object self-identifies as the
// target model, e.g. {"model": "grok-4", "remaining": 10}.
func (w *walker) hintFactor(obj gjson.Result) int {
	factor := 1

	obj.ForEach(func(key, val gjson.Result) bool {
		if !hintKeys[normalize(key.String())] || val.Type != gjson.String {
			return true
		}

		normVal := normalize(val.String())

		for _, a := range w.strategy.Aliases {
			if a != "" && normVal == a {
				factor = 2
				return false
			}
		}

		return true
	})

	return factor
}

// considerKey scores a single object key against both priority lists and
// records it as a new best candidate if it outscores the current one.
func (w *walker) considerKey(key string, val gjson.Result, depth, inherited, hint int) {
	normKey := normalize(key)

	if rank, ok := indexOf(w.strategy.RemainingKeys, normKey); ok {
		score := w.scoreFor(normKey, rank, depth, inherited, hint)
		w.considerRemaining(val, score, depth)
	}

	if rank, ok := indexOf(w.strategy.ResetKeys, normKey); ok {
		score := w.scoreFor(normKey, rank, depth, inherited, hint)
		w.considerReset(key, val, score, depth)
	}
}

func (w *walker) considerRemaining(val gjson.Result, score, depth int) {
	if val.IsObject() || val.IsArray() {
		w.walkNested(val, depth, score, true)
		return
	}

	if !isNumeric(val) {
		return
	}

	if w.bestRemaining == nil || score > w.bestRemaining.score {
		w.bestRemaining = &candidate{score: score, value: val}
	}
}

func (w *walker) considerReset(key string, val gjson.Result, score, depth int) {
	if val.IsObject() || val.IsArray() {
		w.walkNestedReset(key, val, depth, score)
		return
	}

	if val.Type != gjson.String && !isNumeric(val) {
		return
	}

	if w.bestReset == nil || score > w.bestReset.score {
		w.bestReset = &candidate{score: score, value: val}
		w.bestResetKey = key
	}
}

// walkNested recurses one level into an object/array matched value, adding
// nested priority hits weighted ×4 and decaying depth.
func (w *walker) walkNested(val gjson.Result, depth, parentScore int, remaining bool) {
	val.ForEach(func(key, nested gjson.Result) bool {
		normKey := normalize(key.String())
		if rank, ok := indexOf(w.strategy.RemainingKeys, normKey); ok && remaining {
			score := parentScore + w.scoreFor(normKey, rank, depth+1, 0, 1)*4
			w.considerRemaining(nested, score, depth+1)
		}

		return true
	})
}

func (w *walker) walkNestedReset(parentKey string, val gjson.Result, depth, parentScore int) {
	val.ForEach(func(key, nested gjson.Result) bool {
		normKey := normalize(key.String())
		if rank, ok := indexOf(w.strategy.ResetKeys, normKey); ok {
			score := parentScore + w.scoreFor(normKey, rank, depth+1, 0, 1)*4
			w.considerReset(key.String(), nested, score, depth+1)
		}

		return true
	})
}

// scoreFor computes a key's match score: exact alias/token matches score
// higher than substring matches (doubled under a model-name hint), priority
// rank and depth separate ties.
func (w *walker) scoreFor(normKey string, rank, depth, inherited, hint int) int {
	return inherited - depth*2 - rank*5 + w.strategy.keyBonus(normKey)*hint
}

func indexOf(list []string, key string) (int, bool) {
	for i, candidate := range list {
		if candidate == key {
			return i, true
		}
	}

	for i, candidate := range list {
		if strings.Contains(key, candidate) {
			return i, true
		}
	}

	return 0, false
}

func isNumeric(v gjson.Result) bool {
	if v.Type == gjson.Number {
		return true
	}

	if v.Type == gjson.String {
		_, err := strconv.ParseFloat(v.String(), 64)
		return err == nil
	}

	return false
}

func asInt(v gjson.Result) (int64, bool) {
	switch v.Type {
	case gjson.Number:
		return int64(v.Num), true
	case gjson.String:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, false
		}

		return int64(f), true
	default:
		return 0, false
	}
}

// resolveResetAt interprets a matched reset-field value as an absolute
// epoch-millisecond timestamp, using key-hinted interpretation rules.
func resolveResetAt(key string, v gjson.Result, now time.Time) (int64, bool) {
	if v.Type == gjson.String {
		if t, err := time.Parse(time.RFC3339, v.String()); err == nil {
			return t.UnixMilli(), true
		}

		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, false
		}

		return interpretNumericReset(key, f, now), true
	}

	if v.Type == gjson.Number {
		return interpretNumericReset(key, v.Num, now), true
	}

	return 0, false
}

func interpretNumericReset(key string, n float64, now time.Time) int64 {
	normKey := normalize(key)

	switch {
	case strings.Contains(normKey, "retryafter"), strings.Contains(normKey, "untilreset"), strings.Contains(normKey, "seconds"):
		if n > 1e9 {
			return int64(n)
		}

		return now.Add(time.Duration(n) * time.Second).UnixMilli()
	case strings.HasSuffix(normKey, "millis"), strings.HasSuffix(normKey, "ms"):
		return now.Add(time.Duration(n) * time.Millisecond).UnixMilli()
	case n >= 1e12:
		return int64(n)
	case n >= 1e9:
		return int64(n * 1000)
	default:
		return now.Add(time.Duration(n) * time.Second).UnixMilli()
	}
}
