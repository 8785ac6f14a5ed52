package verify

import (
	"regexp"
)

// landmark is one entry in the built-in table used when the lookup service
// is unreachable or the breaker is open.
type landmark struct {
	name  string
	date  string
	court string
	url   string
}

// landmarkCases is a small offline table of well-known opinions keyed by
// canonical citation text.
var landmarkCases = map[string]landmark{
	"5 U.S. 137": {
		name: "Marbury v. Madison", date: "1803-02-24", court: "scotus",
		url: "https://www.courtlistener.com/opinion/84759/marbury-v-madison/",
	},
	"163 U.S. 537": {
		name: "Plessy v. Ferguson", date: "1896-05-18", court: "scotus",
		url: "https://www.courtlistener.com/opinion/94508/plessy-v-ferguson/",
	},
	"304 U.S. 64": {
		name: "Erie Railroad Co. v. Tompkins", date: "1938-04-25", court: "scotus",
		url: "https://www.courtlistener.com/opinion/103012/erie-r-co-v-tompkins/",
	},
	"347 U.S. 483": {
		name: "Brown v. Board of Education", date: "1954-05-17", court: "scotus",
		url: "https://www.courtlistener.com/opinion/105221/brown-v-board-of-education/",
	},
	"369 U.S. 186": {
		name: "Baker v. Carr", date: "1962-03-26", court: "scotus",
		url: "https://www.courtlistener.com/opinion/106366/baker-v-carr/",
	},
	"372 U.S. 335": {
		name: "Gideon v. Wainwright", date: "1963-03-18", court: "scotus",
		url: "https://www.courtlistener.com/opinion/106545/gideon-v-wainwright/",
	},
	"384 U.S. 436": {
		name: "Miranda v. Arizona", date: "1966-06-13", court: "scotus",
		url: "https://www.courtlistener.com/opinion/107252/miranda-v-arizona/",
	},
	"403 U.S. 713": {
		name: "New York Times Co. v. United States", date: "1971-06-30", court: "scotus",
		url: "https://www.courtlistener.com/opinion/108590/new-york-times-co-v-united-states/",
	},
	"410 U.S. 113": {
		name: "Roe v. Wade", date: "1973-01-22", court: "scotus",
		url: "https://www.courtlistener.com/opinion/108713/roe-v-wade/",
	},
	"418 U.S. 683": {
		name: "United States v. Nixon", date: "1974-07-24", court: "scotus",
		url: "https://www.courtlistener.com/opinion/109101/united-states-v-nixon/",
	},
}

var singleCitationRe = regexp.MustCompile(`^(\d{1,4}) (.+) (\d{1,5})$`)

// localFallback validates a citation without the network: landmark table
// first, then a pattern-based format heuristic. kind records why the network
// was skipped.
func (c *Client) localFallback(raw, normalized string, kind ErrorKind) Result {
	if lm, ok := landmarkCases[normalized]; ok {
		return Result{
			Citation:      raw,
			Verdict:       VerdictVerified,
			CanonicalName: lm.name,
			CanonicalDate: lm.date,
			Court:         lm.court,
			URL:           lm.url,
			Source:        SourceLocalFallback,
			Confidence:    0.85,
		}
	}

	confidence := 0.1
	reason := "lookup service unavailable; citation format not recognized"
	if m := singleCitationRe.FindStringSubmatch(normalized); m != nil {
		if _, ok := c.lib.ResolveName(m[2]); ok {
			confidence = 0.4
			reason = "lookup service unavailable; citation format is valid"
		}
	}

	return Result{
		Citation:   raw,
		Verdict:    VerdictUnverified,
		Source:     SourceLocalFallback,
		Confidence: confidence,
		ErrorKind:  kind,
		Error:      reason,
	}
}
