// Package consolidate merges several recognizers' output for one page into
// a single canonical text by line-level weighted voting.
package consolidate

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"

	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

const scoreEpsilon = 1e-9

// Consolidator is stateless apart from its configuration.
type Consolidator struct {
	cfg    common.ConsolidationConfig
	logger *slog.Logger
}

func New(cfg common.ConsolidationConfig, logger *slog.Logger) *Consolidator {
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = 0.5
	}
	if cfg.TextSimilarity <= 0 {
		cfg.TextSimilarity = 0.6
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consolidator{cfg: cfg, logger: logger}
}

type member struct {
	rank int // engine position in canonical order; 0 is highest priority
	line entity.Span
	vote float64 // weight × confidence
}

type group struct {
	anchor  entity.Region
	key     string // folded text of the first member, for region-less alignment
	created int
	rank    int // rank of the engine that created the group
	members []member
}

func (g *group) has(rank int) bool {
	for _, m := range g.members {
		if m.rank == rank {
			return true
		}
	}
	return false
}

// Consolidate merges results into one ConsolidatedText. The result does not
// depend on the order of results. Empty results are ignored; if none remain
// the call fails with ErrAllEnginesFailed.
func (c *Consolidator) Consolidate(results []entity.EngineResult) (entity.ConsolidatedText, error) {
	rs := canonical(results)
	if len(rs) == 0 {
		return entity.ConsolidatedText{}, common.NewAppError("ALL_ENGINES_FAILED", "nothing to consolidate", common.ErrAllEnginesFailed)
	}

	var totalWeight float64
	for _, r := range rs {
		totalWeight += r.Weight
	}

	groups := c.align(rs)

	lines := make([]entity.ConsolidatedLine, 0, len(groups))
	kept := make([]*group, 0, len(groups))
	for _, g := range groups {
		cl := vote(g, rs, totalWeight)
		if cl.Text == "" {
			continue
		}
		lines = append(lines, cl)
		kept = append(kept, g)
	}

	if c.cfg.MinVoteScore > 0 {
		lines, kept = dropWeak(lines, kept, c.cfg.MinVoteScore)
	}
	lines = order(lines, kept)

	out := entity.ConsolidatedText{Lines: lines}
	texts := make([]string, len(lines))
	var sum float64
	for i, l := range lines {
		texts[i] = l.Text
		sum += l.Score
	}
	out.Text = strings.Join(texts, "\n")
	if len(lines) > 0 {
		out.Confidence = sum / float64(len(lines))
	}

	c.logger.Debug("consolidate.ok",
		"engines", len(rs),
		"groups", len(groups),
		"lines", len(lines),
		"confidence", out.Confidence,
	)
	return out, nil
}

// canonical drops empty results and sorts by weight desc, engine name, text.
func canonical(results []entity.EngineResult) []entity.EngineResult {
	rs := make([]entity.EngineResult, 0, len(results))
	for _, r := range results {
		if len(r.Lines) > 0 {
			rs = append(rs, r)
		}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Weight != rs[j].Weight {
			return rs[i].Weight > rs[j].Weight
		}
		if rs[i].Engine != rs[j].Engine {
			return rs[i].Engine < rs[j].Engine
		}
		return rs[i].Text() < rs[j].Text()
	})
	return rs
}

// align groups lines across engines. Each group holds at most one line per
// engine. Lines with geometry join the unmatched group with the highest IoU
// at or above the threshold; lines without geometry join the most similar
// region-less group by folded text.
func (c *Consolidator) align(rs []entity.EngineResult) []*group {
	var groups []*group
	for rank, r := range rs {
		for _, ln := range r.Lines {
			m := member{rank: rank, line: ln, vote: r.Weight * ln.Confidence}
			if g := c.match(groups, rank, ln); g != nil {
				g.members = append(g.members, m)
				continue
			}
			groups = append(groups, &group{
				anchor:  ln.Region,
				key:     fold(ln.Text),
				created: len(groups),
				rank:    rank,
				members: []member{m},
			})
		}
	}
	return groups
}

func (c *Consolidator) match(groups []*group, rank int, ln entity.Span) *group {
	var best *group
	bestScore := 0.0
	if !ln.Region.Empty() {
		for _, g := range groups {
			if g.anchor.Empty() || g.has(rank) {
				continue
			}
			if iou := g.anchor.IoU(ln.Region); iou >= c.cfg.IoUThreshold && iou > bestScore+scoreEpsilon {
				best, bestScore = g, iou
			}
		}
		return best
	}
	key := fold(ln.Text)
	for _, g := range groups {
		if !g.anchor.Empty() || g.has(rank) {
			continue
		}
		sim := 1.0
		if g.key != key {
			sim = levenshtein.Match(g.key, key, nil)
		}
		if sim >= c.cfg.TextSimilarity && sim > bestScore+scoreEpsilon {
			best, bestScore = g, sim
		}
	}
	return best
}

type candidate struct {
	text  string
	score float64
	rank  int // best (lowest) engine rank voting for this text
}

// tally sums votes per distinct text, optionally after mapping each text.
func tally(members []member, mapText func(string) string) []candidate {
	idx := map[string]int{}
	var cs []candidate
	for _, m := range members {
		t := m.line.Text
		if mapText != nil {
			t = mapText(t)
		}
		if i, ok := idx[t]; ok {
			cs[i].score += m.vote
			cs[i].rank = min(cs[i].rank, m.rank)
			continue
		}
		idx[t] = len(cs)
		cs = append(cs, candidate{text: t, score: m.vote, rank: m.rank})
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if d := cs[i].score - cs[j].score; d > scoreEpsilon || d < -scoreEpsilon {
			return d > 0
		}
		if cs[i].rank != cs[j].rank {
			return cs[i].rank < cs[j].rank
		}
		return cs[i].text < cs[j].text
	})
	return cs
}

// vote picks the group's representative text. Corrections are kept only if
// re-tallying the corrected candidates still elects the corrected winner.
func vote(g *group, rs []entity.EngineResult, totalWeight float64) entity.ConsolidatedLine {
	raw := tally(g.members, nil)
	winner := raw[0]

	text, score, corrected := winner.text, winner.score, false
	if fixed := Correct(winner.text); fixed != winner.text {
		ct := tally(g.members, Correct)
		if ct[0].text == fixed {
			text, score, corrected = fixed, ct[0].score, true
		}
	}
	if text == "" {
		return entity.ConsolidatedLine{}
	}

	var engines []string
	region := entity.Region{}
	for _, m := range g.members {
		t := m.line.Text
		if corrected {
			t = Correct(t)
		}
		if t == text {
			engines = append(engines, rs[m.rank].Engine)
			if region.Empty() {
				region = m.line.Region
			}
		}
	}
	if region.Empty() {
		region = g.anchor
	}

	norm := 0.0
	if totalWeight > 0 {
		norm = score / totalWeight
	}
	return entity.ConsolidatedLine{
		Text:      text,
		Region:    region,
		Score:     min(norm, 1),
		Engines:   engines,
		Corrected: corrected,
	}
}

func dropWeak(lines []entity.ConsolidatedLine, groups []*group, minScore float64) ([]entity.ConsolidatedLine, []*group) {
	var ls []entity.ConsolidatedLine
	var gs []*group
	for i, l := range lines {
		if l.Score+scoreEpsilon >= minScore {
			ls = append(ls, l)
			gs = append(gs, groups[i])
		}
	}
	if len(ls) == 0 {
		return lines, groups
	}
	return ls, gs
}

// order keeps the reading order of the highest-priority engine and slots
// lines found only by other engines after the nearest line above them.
// Lines without geometry that no top-engine line matched go last.
func order(lines []entity.ConsolidatedLine, groups []*group) []entity.ConsolidatedLine {
	type item struct {
		line entity.ConsolidatedLine
		g    *group
	}
	var out, rest []item
	for i, g := range groups {
		if g.rank == 0 {
			out = append(out, item{lines[i], g})
		} else {
			rest = append(rest, item{lines[i], g})
		}
	}
	for _, it := range rest {
		if it.g.anchor.Empty() {
			out = append(out, it)
			continue
		}
		pos := 0
		for j, o := range out {
			if !o.g.anchor.Empty() && o.g.anchor.Y <= it.g.anchor.Y {
				pos = j + 1
			}
		}
		out = append(out, item{})
		copy(out[pos+1:], out[pos:])
		out[pos] = it
	}
	res := make([]entity.ConsolidatedLine, len(out))
	for i, it := range out {
		res[i] = it.line
	}
	return res
}

// fold lowercases and collapses look-alike characters so that disagreeing
// engines still align on the same physical line.
func fold(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '0':
			b.WriteRune('o')
		case r == '1' || r == 'i' || r == '|' || r == '!':
			b.WriteRune('l')
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
