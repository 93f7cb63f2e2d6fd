// Package router selects one prompt variant per request under four
// layered policies: tag match, phased rollout, weighted distribution,
// and the hard default. Selection is a pure function of its inputs when
// a userId is present, so repeated requests from the same user land on
// the same variant.
package router

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/promptroute/promptroute/config"
	"github.com/promptroute/promptroute/types"
)

// Routing reasons reported in telemetry.
const (
	ReasonTagMatch           = "tag-match"
	ReasonPhasedRollout      = "phased-rollout"
	ReasonWeightDistribution = "weight-distribution"
	ReasonDefault            = "default"
)

// Bucketing salts keep the three weighted layers independent: a user near
// a boundary in one layer is not near it in the others.
const (
	saltTag    = "tag"
	saltPhase  = "phase"
	saltWeight = "weight"
)

// Selection is the outcome of routing one request.
type Selection struct {
	VariantID string
	Variant   config.Variant
	Reason    string
	// Weight is the selected entry's weight when a weighted layer fired.
	Weight   float64
	Weighted bool
	// Tags are the request tags that matched a tag rule, nil otherwise.
	Tags []string
}

// Router picks variants. The zero value is not usable; call New.
type Router struct {
	// randFloat supplies the bucket when no userId is available.
	// Swappable for tests.
	randFloat func() float64
}

// New returns a Router using math/rand for anonymous requests.
func New() *Router {
	return &Router{randFloat: rand.Float64}
}

// Select routes one request. now is epoch seconds; tags may be nil.
func (r *Router) Select(prompt *config.Prompt, promptID, userID string, tags []string, now int64) (*Selection, error) {
	// Layer 1: tag match.
	if len(tags) > 0 {
		var matched []config.Rule
		var matchedTags []string
		for _, rule := range prompt.Routing.Rules {
			if overlap := intersect(rule.Tags, tags); len(overlap) > 0 {
				matched = append(matched, rule)
				matchedTags = appendMissing(matchedTags, overlap)
			}
		}
		if len(matched) > 0 {
			id, weight := r.pickRules(matched, promptID, userID, saltTag)
			return r.resolve(prompt, id, &Selection{
				Reason: ReasonTagMatch, Weight: weight, Weighted: true, Tags: matchedTags,
			})
		}
	}

	// Layer 2: phased rollout. Greatest start wins; ties keep the
	// earliest-declared entry.
	if phased := activePhase(prompt.Routing.Phased, now); phased != nil {
		id, weight := r.pickWeightMap(phased.Weights, promptID, userID, saltPhase)
		return r.resolve(prompt, id, &Selection{
			Reason: ReasonPhasedRollout, Weight: weight, Weighted: true,
		})
	}

	// Layer 3: untagged rules.
	var untagged []config.Rule
	for _, rule := range prompt.Routing.Rules {
		if len(rule.Tags) == 0 {
			untagged = append(untagged, rule)
		}
	}
	if len(untagged) > 0 {
		id, weight := r.pickRules(untagged, promptID, userID, saltWeight)
		return r.resolve(prompt, id, &Selection{
			Reason: ReasonWeightDistribution, Weight: weight, Weighted: true,
		})
	}

	// Layer 4: hard default.
	return r.resolve(prompt, prompt.DefaultVariantID(), &Selection{Reason: ReasonDefault})
}

func (r *Router) resolve(prompt *config.Prompt, id string, sel *Selection) (*Selection, error) {
	variant, ok := prompt.Variants[id]
	if !ok {
		return nil, types.NewError(types.KindExecution, "unknown-variant",
			fmt.Sprintf("routing selected variant %q which does not exist", id)).
			WithDetail("variant", id)
	}
	sel.VariantID = id
	sel.Variant = variant
	return sel, nil
}

// pickRules runs the weighted pick over an ordered rule list. Later
// duplicate targets fold their weight into the first occurrence.
func (r *Router) pickRules(rules []config.Rule, promptID, userID, salt string) (string, float64) {
	keys := make([]string, 0, len(rules))
	weights := make(map[string]float64, len(rules))
	for _, rule := range rules {
		if _, seen := weights[rule.Target]; !seen {
			keys = append(keys, rule.Target)
		}
		weights[rule.Target] += rule.EffectiveWeight()
	}
	return r.pick(keys, weights, promptID, userID, salt)
}

func (r *Router) pickWeightMap(m config.WeightMap, promptID, userID, salt string) (string, float64) {
	keys := m.Keys()
	weights := make(map[string]float64, len(keys))
	for _, k := range keys {
		weights[k] = m.Get(k)
	}
	return r.pick(keys, weights, promptID, userID, salt)
}

// pick implements the deterministic weighted draw: scale the bucket by the
// total weight and walk entries in declaration order until the cumulative
// weight crosses it.
func (r *Router) pick(keys []string, weights map[string]float64, promptID, userID, salt string) (string, float64) {
	var total float64
	for _, k := range keys {
		total += weights[k]
	}
	if total <= 0 {
		return keys[0], weights[keys[0]]
	}

	var frac float64
	if userID != "" {
		frac = Bucket(userID, promptID, salt)
	} else {
		frac = r.randFloat()
	}

	target := frac * total
	for _, k := range keys {
		target -= weights[k]
		if target < 0 {
			return k, weights[k]
		}
	}
	// Floating-point residue; the draw belongs to the last positive entry,
	// but the contract says first entry when nothing crossed.
	return keys[0], weights[keys[0]]
}

// Bucket maps (userId, promptId, salt) to a stable fraction in [0, 1):
// the first 32 bits of SHA-256("{userId}:{promptId}:{salt}") read as an
// unsigned big-endian integer, divided by 2^32.
func Bucket(userID, promptID, salt string) float64 {
	sum := sha256.Sum256([]byte(userID + ":" + promptID + ":" + salt))
	return float64(binary.BigEndian.Uint32(sum[:4])) / (1 << 32)
}

// activePhase returns the covering phased entry with the greatest start.
// Strict > keeps the earliest-declared entry on equal starts.
func activePhase(phased []config.PhasedRule, now int64) *config.PhasedRule {
	var best *config.PhasedRule
	for i := range phased {
		p := &phased[i]
		if !p.Active(now) {
			continue
		}
		if best == nil || p.Start > best.Start {
			best = p
		}
	}
	return best
}

func intersect(a, b []string) []string {
	var out []string
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
				break
			}
		}
	}
	return out
}

func appendMissing(dst, src []string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}
