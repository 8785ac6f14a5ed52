package reporter

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Reporter describes one known reporter series: how to recognize it in raw
// text and how to print it canonically.
type Reporter struct {
	// Key is the stable lookup key, e.g. "wn2d", "f3d", "us".
	Key string
	// Display is the canonical printed form, e.g. "Wn.2d", "F.3d", "U.S.".
	Display string
	// NamePattern matches the reporter name between volume and page,
	// tolerating spacing and period variants ("Wn. 2d", "Wn.2d", "Wash.2d").
	NamePattern string

	// citation matches "volume <name> page" with two capture groups.
	citation *regexp.Regexp
	// name matches the reporter name alone, anchored, for canonical rebuild.
	name *regexp.Regexp
}

// Citation returns the compiled volume/page-capturing pattern.
func (r *Reporter) Citation() *regexp.Regexp { return r.citation }

// MatchesName reports whether s is a recognized spelling of this reporter.
func (r *Reporter) MatchesName(s string) bool { return r.name.MatchString(s) }

// Library is the read-only table of known reporter formats. Extended by
// adding entries, never by branching extractor logic per jurisdiction.
type Library struct {
	reporters []*Reporter
	byKey     map[string]*Reporter
}

// overrideEntry is the YAML shape for a reporter definition override.
type overrideEntry struct {
	Key         string `yaml:"key"`
	Display     string `yaml:"display"`
	NamePattern string `yaml:"name_pattern"`
}

type overrideFile struct {
	Reporters []overrideEntry `yaml:"reporters"`
}

var (
	defaultLibrary     *Library
	defaultLibraryOnce sync.Once
)

// builtinReporters covers the federal reporters plus the regional and state
// series the extractor is exercised against. NamePattern spellings accept the
// spacing/period drift seen in real briefs; Display is the canonical form.
func builtinReporters() []overrideEntry {
	return []overrideEntry{
		{Key: "us", Display: "U.S.", NamePattern: `U\.?\s?S\.?`},
		{Key: "sct", Display: "S. Ct.", NamePattern: `S\.?\s?Ct\.?`},
		{Key: "led", Display: "L. Ed.", NamePattern: `L\.?\s?Ed\.?`},
		{Key: "led2d", Display: "L. Ed. 2d", NamePattern: `L\.?\s?Ed\.?\s?2d`},
		{Key: "f", Display: "F.", NamePattern: `F\.`},
		{Key: "f2d", Display: "F.2d", NamePattern: `F\.?\s?2d`},
		{Key: "f3d", Display: "F.3d", NamePattern: `F\.?\s?3d`},
		{Key: "f4th", Display: "F.4th", NamePattern: `F\.?\s?4th`},
		{Key: "fsupp", Display: "F. Supp.", NamePattern: `F\.?\s?Supp\.?`},
		{Key: "fsupp2d", Display: "F. Supp. 2d", NamePattern: `F\.?\s?Supp\.?\s?2d`},
		{Key: "fsupp3d", Display: "F. Supp. 3d", NamePattern: `F\.?\s?Supp\.?\s?3d`},
		{Key: "frd", Display: "F.R.D.", NamePattern: `F\.?\s?R\.?\s?D\.?`},
		{Key: "wn", Display: "Wash.", NamePattern: `(?:Wn|Wash)\.?`},
		{Key: "wn2d", Display: "Wn.2d", NamePattern: `(?:Wn|Wash)\.?\s?2d`},
		{Key: "wnapp", Display: "Wn. App.", NamePattern: `(?:Wn|Wash)\.?\s?App\.?`},
		{Key: "wnapp2d", Display: "Wn. App. 2d", NamePattern: `(?:Wn|Wash)\.?\s?App\.?\s?2d`},
		{Key: "p2d", Display: "P.2d", NamePattern: `P\.?\s?2d`},
		{Key: "p3d", Display: "P.3d", NamePattern: `P\.?\s?3d`},
		{Key: "a2d", Display: "A.2d", NamePattern: `A\.?\s?2d`},
		{Key: "a3d", Display: "A.3d", NamePattern: `A\.?\s?3d`},
		{Key: "ne2d", Display: "N.E.2d", NamePattern: `N\.?\s?E\.?\s?2d`},
		{Key: "ne3d", Display: "N.E.3d", NamePattern: `N\.?\s?E\.?\s?3d`},
		{Key: "nw2d", Display: "N.W.2d", NamePattern: `N\.?\s?W\.?\s?2d`},
		{Key: "se2d", Display: "S.E.2d", NamePattern: `S\.?\s?E\.?\s?2d`},
		{Key: "so2d", Display: "So. 2d", NamePattern: `So\.?\s?2d`},
		{Key: "so3d", Display: "So. 3d", NamePattern: `So\.?\s?3d`},
		{Key: "sw3d", Display: "S.W.3d", NamePattern: `S\.?\s?W\.?\s?3d`},
		{Key: "cal4th", Display: "Cal. 4th", NamePattern: `Cal\.?\s?4th`},
		{Key: "ny2d", Display: "N.Y.2d", NamePattern: `N\.?\s?Y\.?\s?2d`},
	}
}

// ConfigPathEnv points the loader at a YAML file of additional reporters.
const ConfigPathEnv = "CITECHECK_REPORTERS_CONFIG"

// Load returns the process-wide reporter library, reading overrides from
// CITECHECK_REPORTERS_CONFIG when set. Falls back to the built-in table on
// any load or compile error.
func Load(logger *zap.Logger) *Library {
	defaultLibraryOnce.Do(func() {
		entries := builtinReporters()

		if path := os.Getenv(ConfigPathEnv); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				logger.Warn("Failed to read reporter overrides, using built-ins",
					zap.String("path", path), zap.Error(err))
			} else {
				var of overrideFile
				if err := yaml.Unmarshal(data, &of); err != nil {
					logger.Warn("Failed to parse reporter overrides, using built-ins",
						zap.String("path", path), zap.Error(err))
				} else {
					entries = mergeEntries(entries, of.Reporters)
				}
			}
		}

		lib, err := build(entries)
		if err != nil {
			logger.Error("Reporter table failed to compile, using built-ins only", zap.Error(err))
			lib, _ = build(builtinReporters())
		}
		defaultLibrary = lib
	})
	return defaultLibrary
}

// ResetForTest clears the singleton so tests can exercise override loading.
func ResetForTest() {
	defaultLibraryOnce = sync.Once{}
	defaultLibrary = nil
}

// mergeEntries replaces built-ins by key and appends unknown keys.
func mergeEntries(base []overrideEntry, overrides []overrideEntry) []overrideEntry {
	index := make(map[string]int, len(base))
	for i, e := range base {
		index[e.Key] = i
	}
	for _, o := range overrides {
		if o.Key == "" || o.Display == "" || o.NamePattern == "" {
			continue
		}
		if i, ok := index[o.Key]; ok {
			base[i] = o
		} else {
			index[o.Key] = len(base)
			base = append(base, o)
		}
	}
	return base
}

func build(entries []overrideEntry) (*Library, error) {
	lib := &Library{byKey: make(map[string]*Reporter, len(entries))}
	for _, e := range entries {
		citation, err := regexp.Compile(`\b(\d{1,4})\s+` + e.NamePattern + `\s+(\d{1,5})\b`)
		if err != nil {
			return nil, fmt.Errorf("reporter %q: %w", e.Key, err)
		}
		name, err := regexp.Compile(`^(?:` + e.NamePattern + `)$`)
		if err != nil {
			return nil, fmt.Errorf("reporter %q: %w", e.Key, err)
		}
		r := &Reporter{
			Key:         e.Key,
			Display:     e.Display,
			NamePattern: e.NamePattern,
			citation:    citation,
			name:        name,
		}
		lib.reporters = append(lib.reporters, r)
		lib.byKey[r.Key] = r
	}
	return lib, nil
}

// All returns every reporter, longest display first so that series variants
// (e.g. "F. Supp. 2d") win over their prefixes ("F. Supp.", "F.") when the
// caller scans patterns in order.
func (l *Library) All() []*Reporter {
	out := make([]*Reporter, len(l.reporters))
	copy(out, l.reporters)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j].Display) > len(out[j-1].Display); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Get looks up a reporter by key.
func (l *Library) Get(key string) (*Reporter, bool) {
	r, ok := l.byKey[key]
	return r, ok
}

// ResolveName returns the reporter whose name matches s, preferring the most
// specific (longest-display) spelling. Used by the normalizer to rebuild a
// canonical "{volume} {reporter} {page}".
func (l *Library) ResolveName(s string) (*Reporter, bool) {
	s = strings.TrimSpace(s)
	var best *Reporter
	for _, r := range l.reporters {
		if r.MatchesName(s) {
			if best == nil || len(r.Display) > len(best.Display) {
				best = r
			}
		}
	}
	return best, best != nil
}
