// Package pcp implements the primary-care-provider assignment dialogue on
// top of the dialogue engine: the step topology, the extraction oracle
// boundary, and the provider-directory boundary.
package pcp

import (
	"context"
	"strings"

	"github.com/deepnoodle-ai/dialogue"
)

// Schema tags passed to the extraction oracle.
const (
	SchemaProviderIdentity = "provider_identity"
	SchemaFilters          = "filters"
	SchemaSelection        = "selection"
)

// Fragment is the structured record fragment an oracle extracts from free
// text. Which fields are populated depends on the schema tag.
type Fragment struct {
	Action       string `json:"action,omitempty"`
	CandidateID  string `json:"candidateId,omitempty"`
	RawID        string `json:"rawId,omitempty"`
	ProviderID   string `json:"providerId,omitempty"`
	ProviderName string `json:"providerName,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Specialty    string `json:"specialty,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Language     string `json:"language,omitempty"`
	ZipCode      string `json:"zipCode,omitempty"`
}

// FailClosedFragment is the well-defined default an oracle falls back to on
// malformed or unparsable output: the entire input becomes a raw identifier.
func FailClosedFragment(freeText string) *Fragment {
	return &Fragment{RawID: strings.TrimSpace(freeText)}
}

// Oracle turns free text into a structured fragment. Implementations must
// fail closed: on malformed output they return FailClosedFragment rather
// than an error, so extraction problems never abort a turn.
type Oracle interface {
	Extract(ctx context.Context, schemaTag, freeText string) (*Fragment, error)
}

// Filters are the search criteria collected when the member does not know a
// specific provider.
type Filters struct {
	Specialty string `json:"specialty,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Language  string `json:"language,omitempty"`
	ZipCode   string `json:"zip_code,omitempty"`
}

// Empty reports whether no criteria are set.
func (f Filters) Empty() bool {
	return f.Specialty == "" && f.Gender == "" && f.Language == "" && f.ZipCode == ""
}

// Directory is the downstream provider-directory and membership-update
// boundary. Each call has its own error and retry contract; the steps treat
// failures as ordinary step failures.
type Directory interface {
	LookupByIdentity(ctx context.Context, id string) ([]dialogue.Candidate, error)
	LookupByNameLocation(ctx context.Context, name, city, state string) ([]dialogue.Candidate, error)
	LookupByFilters(ctx context.Context, filters Filters) ([]dialogue.Candidate, error)
	ApplyAssignment(ctx context.Context, subjectID, candidateID, reason string) (string, error)
}
