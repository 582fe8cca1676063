package dialogue

import "encoding/json"

// Stage labels describe where a session is in the conversation. They are
// surfaced to callers on every reply and stored in each checkpoint.
const (
	StageMenu             = "MENU"
	StageAskTermination   = "ASK_TERMINATION"
	StageAskKnowsProvider = "ASK_KNOWS_PROVIDER"
	StageAskProviderID    = "ASK_PROVIDER_ID"
	StageAskFilters       = "ASK_FILTERS"
	StageSelectProvider   = "SELECT_PROVIDER"
	StageCompleted        = "COMPLETED"
	StageError            = "ERROR"
)

// Candidate is a normalized provider-directory result.
type Candidate struct {
	ProviderID          string  `json:"provider_id"`
	Name                string  `json:"name"`
	Address1            string  `json:"address1,omitempty"`
	Address2            string  `json:"address2,omitempty"`
	City                string  `json:"city,omitempty"`
	State               string  `json:"state,omitempty"`
	Zip                 string  `json:"zip,omitempty"`
	County              string  `json:"county,omitempty"`
	Phone               string  `json:"phone,omitempty"`
	NetworkStatus       string  `json:"network_status,omitempty"`
	AcceptingNewMembers bool    `json:"accepting_new_members,omitempty"`
	PCPAssignable       bool    `json:"pcp_assignable,omitempty"`
	DistanceMiles       float64 `json:"distance_miles,omitempty"`
}

// Record is the session state threaded through every step. Fields are
// optional and write-once per session unless a step explicitly clears them:
// a step that finds its field already populated must treat it as final input
// and continue without re-prompting.
type Record struct {
	SessionID    string `json:"session_id,omitempty"`
	MemberID     string `json:"member_id,omitempty"`
	GroupID      string `json:"group_id,omitempty"`
	SubscriberID string `json:"subscriber_id,omitempty"`

	// LastUtterance holds the most recent free-form user reply.
	LastUtterance string `json:"last_utterance,omitempty"`

	// Stage is the current stage label, set by steps as the session advances.
	Stage string `json:"stage,omitempty"`

	MenuChoice        string `json:"menu_choice,omitempty"`
	TerminationReason string `json:"termination_reason,omitempty"`
	KnowsProvider     *bool  `json:"knows_provider,omitempty"`

	ProviderID    string `json:"provider_id,omitempty"`
	ProviderName  string `json:"provider_name,omitempty"`
	ProviderCity  string `json:"provider_city,omitempty"`
	ProviderState string `json:"provider_state,omitempty"`

	Specialty string `json:"specialty,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Language  string `json:"language,omitempty"`
	ZipCode   string `json:"zip_code,omitempty"`

	Candidates          []Candidate `json:"candidates,omitempty"`
	SelectedCandidateID string      `json:"selected_candidate_id,omitempty"`
	Confirmation        string      `json:"confirmation,omitempty"`
	ErrorMessage        string      `json:"error_message,omitempty"`
}

// Clone returns a deep copy of the record. The engine passes copies between
// steps so that a failed call never leaves partial mutations behind.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.KnowsProvider != nil {
		v := *r.KnowsProvider
		clone.KnowsProvider = &v
	}
	if r.Candidates != nil {
		clone.Candidates = make([]Candidate, len(r.Candidates))
		copy(clone.Candidates, r.Candidates)
	}
	return &clone
}

// AsMap returns the record as a plain map keyed by JSON field names. Routers
// evaluated as scripts see the record in this form.
func (r *Record) AsMap() map[string]any {
	data, err := json.Marshal(r)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}
