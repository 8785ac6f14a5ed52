// Package cluster merges citation records that denote the same judicial
// opinion, by canonical URL once known or by case-name plus context
// similarity before verification.
package cluster

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/lexcite/citecheck/internal/citeparse"
)

// Thresholds for "same case" grouping. Name similarity alone is not enough:
// the surrounding context must also agree, so unrelated cases with similar
// names are never merged.
const (
	DefaultNameThreshold    = 0.95
	DefaultContextThreshold = 0.7
)

// statutoryRe recognizes statutory citations, which are never grouped with
// case citations.
var statutoryRe = regexp.MustCompile(`\b\d+\s+U\.?S\.?C\.?\s*§|\b\d+\s+C\.?F\.?R\.?\s*§?|\bRCW\s+\d|\bWAC\s+\d|\bU\.S\.C\.|\bC\.F\.R\.`)

// IsStatutory reports whether text cites a statute or regulation rather than
// an opinion.
func IsStatutory(text string) bool {
	return statutoryRe.MatchString(text)
}

// Cluster is the set of citation records determined to refer to one opinion.
// Canonical fields are set once per document-processing pass and treated as
// immutable afterwards.
type Cluster struct {
	// Indexes into the input slice; the first entry is the cluster primary.
	MemberIdx []int
	Citations []*citeparse.ParsedCitation

	CanonicalURL    string
	CanonicalName   string
	CanonicalDate   string
	CanonicalCourt  string
	CanonicalDocket string
}

// CanonicalMeta is the verified metadata one member contributes when
// canonical fields are propagated across a cluster.
type CanonicalMeta struct {
	Name        string
	Date        string
	Court       string
	Docket      string
	URL         string
	FromService bool
}

// fieldCount is how many canonical fields are populated.
func (m CanonicalMeta) fieldCount() int {
	n := 0
	for _, f := range []string{m.Name, m.Date, m.Court, m.Docket, m.URL} {
		if f != "" {
			n++
		}
	}
	return n
}

// BestCanonical picks the member metadata with the most non-empty canonical
// fields, preferring metadata already confirmed by the lookup service.
func BestCanonical(metas []CanonicalMeta) CanonicalMeta {
	var best CanonicalMeta
	bestScore := -1
	for _, m := range metas {
		score := m.fieldCount() * 2
		if m.FromService {
			score++
		}
		if score > bestScore {
			best = m
			bestScore = score
		}
	}
	return best
}

// Clusterer groups parsed citations.
type Clusterer struct {
	nameThreshold    float64
	contextThreshold float64
	logger           *zap.Logger
}

// New returns a Clusterer. Zero thresholds select the defaults.
func New(nameThreshold, contextThreshold float64, logger *zap.Logger) *Clusterer {
	if nameThreshold <= 0 {
		nameThreshold = DefaultNameThreshold
	}
	if contextThreshold <= 0 {
		contextThreshold = DefaultContextThreshold
	}
	return &Clusterer{nameThreshold: nameThreshold, contextThreshold: contextThreshold, logger: logger}
}

// Cluster groups the given citations. Statutory citations are dropped
// entirely. urls, when non-nil, supplies an already-known canonical URL per
// input index (post-verification pass); members sharing a URL always merge.
func (c *Clusterer) Cluster(cites []*citeparse.ParsedCitation, urls map[int]string) []*Cluster {
	var clusters []*Cluster
	byURL := make(map[string]*Cluster)

	for i, pc := range cites {
		// Screen on the primary citation, not the full block text: the block
		// tail may quote a nearby statute without the citation being one.
		if pc == nil || pc.Primary == "" || IsStatutory(pc.Primary) {
			continue
		}

		if url := urls[i]; url != "" {
			if cl, ok := byURL[url]; ok {
				cl.MemberIdx = append(cl.MemberIdx, i)
				cl.Citations = append(cl.Citations, pc)
				continue
			}
			cl := &Cluster{MemberIdx: []int{i}, Citations: []*citeparse.ParsedCitation{pc}, CanonicalURL: url}
			byURL[url] = cl
			clusters = append(clusters, cl)
			continue
		}

		if cl := c.matchByName(clusters, pc); cl != nil {
			cl.MemberIdx = append(cl.MemberIdx, i)
			cl.Citations = append(cl.Citations, pc)
			continue
		}
		clusters = append(clusters, &Cluster{MemberIdx: []int{i}, Citations: []*citeparse.ParsedCitation{pc}})
	}

	c.logger.Debug("Clustering complete",
		zap.Int("citations", len(cites)),
		zap.Int("clusters", len(clusters)))
	return clusters
}

func (c *Clusterer) matchByName(clusters []*Cluster, pc *citeparse.ParsedCitation) *Cluster {
	if pc.CaseName == "" {
		return nil
	}
	for _, cl := range clusters {
		// URL-less candidates may still join a URL-keyed cluster by name;
		// candidates that carry a URL never reach this path.
		lead := cl.Citations[0]
		if lead.CaseName == "" {
			continue
		}
		if NameSimilarity(pc.CaseName, lead.CaseName) >= c.nameThreshold &&
			ContextSimilarity(pc.Context, lead.Context) > c.contextThreshold {
			return cl
		}
	}
	return nil
}

// Propagate sets the cluster's canonical fields from the best member
// metadata. A cluster's canonical fields are only ever set once.
func (cl *Cluster) Propagate(metas []CanonicalMeta) {
	best := BestCanonical(metas)
	if cl.CanonicalName == "" {
		cl.CanonicalName = best.Name
	}
	if cl.CanonicalDate == "" {
		cl.CanonicalDate = best.Date
	}
	if cl.CanonicalCourt == "" {
		cl.CanonicalCourt = best.Court
	}
	if cl.CanonicalDocket == "" {
		cl.CanonicalDocket = best.Docket
	}
	if cl.CanonicalURL == "" {
		cl.CanonicalURL = best.URL
	}
}
