package verify

// Verdict is the outcome of verifying one citation.
type Verdict string

const (
	VerdictVerified   Verdict = "verified"
	VerdictUnverified Verdict = "unverified"
	// VerdictByParallel marks a citation proven through a verified parallel
	// citation in the same cluster.
	VerdictByParallel Verdict = "verified_by_parallel"
)

// ErrorKind classifies a verification failure. Callers branch on the kind
// instead of inspecting error strings.
type ErrorKind string

const (
	ErrKindNone          ErrorKind = ""
	ErrKindNormalization ErrorKind = "normalization"
	ErrKindTimeout       ErrorKind = "timeout"
	ErrKindAuth          ErrorKind = "auth"
	ErrKindRateLimited   ErrorKind = "rate_limited"
	ErrKindCircuitOpen   ErrorKind = "circuit_open"
	ErrKindNotFound      ErrorKind = "not_found"
	ErrKindTransport     ErrorKind = "transport"
	ErrKindInternal      ErrorKind = "internal"
)

// Result sources.
const (
	SourceLookupService = "lookup_service"
	SourceLocalFallback = "local_fallback"
	SourceCache         = "cache"
	SourceParallel      = "parallel"
)

// Result is the verification outcome for one citation text.
type Result struct {
	Citation      string    `json:"citation"`
	Verdict       Verdict   `json:"verdict"`
	CanonicalName string    `json:"canonical_name,omitempty"`
	CanonicalDate string    `json:"canonical_date,omitempty"`
	URL           string    `json:"url,omitempty"`
	Court         string    `json:"court,omitempty"`
	DocketNumber  string    `json:"docket_number,omitempty"`
	Source        string    `json:"source,omitempty"`
	Confidence    float64   `json:"confidence"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
	Error         string    `json:"error,omitempty"`
	// VerifiedBy names the parallel citation that supplied the proof when
	// Verdict is VerdictByParallel.
	VerifiedBy string `json:"verified_by,omitempty"`
}

// Verified reports whether the citation was confirmed directly.
func (r *Result) Verified() bool { return r.Verdict == VerdictVerified }

// lookup service wire format: a 200 response is a JSON array; each element
// carries clusters of matched opinions. Absent or empty clusters means the
// citation was not found.
type lookupEntry struct {
	Citation string          `json:"citation,omitempty"`
	Clusters []lookupCluster `json:"clusters"`
}

type lookupCluster struct {
	CaseName     string           `json:"case_name"`
	Court        string           `json:"court"`
	DateFiled    string           `json:"date_filed"`
	DocketNumber string           `json:"docket_number"`
	DocketID     any              `json:"docket_id"`
	AbsoluteURL  string           `json:"absolute_url"`
	Citations    []lookupCitation `json:"citations"`
}

type lookupCitation struct {
	Volume   any    `json:"volume"`
	Reporter string `json:"reporter"`
	Page     any    `json:"page"`
}

// docket returns the docket identifier, whichever field the service filled.
func (c *lookupCluster) docket() string {
	if c.DocketNumber != "" {
		return c.DocketNumber
	}
	return anyToString(c.DocketID)
}
