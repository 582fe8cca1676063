package pcp

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/deepnoodle-ai/dialogue"
)

// StubDirectory is an in-memory Directory for tests and local development.
type StubDirectory struct {
	mutex       sync.Mutex
	providers   []dialogue.Candidate
	assignments map[string]string
	assignErr   error
}

// NewStubDirectory creates a stub directory with a small fixed roster.
func NewStubDirectory() *StubDirectory {
	return &StubDirectory{
		providers: []dialogue.Candidate{
			{
				ProviderID:          "P1",
				Name:                "Dr. Maya Chen",
				City:                "Newark",
				State:               "NJ",
				Zip:                 "07101",
				NetworkStatus:       "in-network",
				AcceptingNewMembers: true,
				PCPAssignable:       true,
				DistanceMiles:       1.2,
			},
			{
				ProviderID:          "P2",
				Name:                "Dr. Luis Ortega",
				City:                "Jersey City",
				State:               "NJ",
				Zip:                 "07302",
				NetworkStatus:       "in-network",
				AcceptingNewMembers: true,
				PCPAssignable:       true,
				DistanceMiles:       6.8,
			},
			{
				ProviderID:          "P3",
				Name:                "Dr. Amara Okafor",
				City:                "Hoboken",
				State:               "NJ",
				Zip:                 "07030",
				NetworkStatus:       "in-network",
				AcceptingNewMembers: false,
				PCPAssignable:       true,
				DistanceMiles:       8.1,
			},
		},
		assignments: map[string]string{},
	}
}

// SetProviders replaces the roster.
func (d *StubDirectory) SetProviders(providers []dialogue.Candidate) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.providers = providers
}

// FailAssignments makes ApplyAssignment return the given error.
func (d *StubDirectory) FailAssignments(err error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.assignErr = err
}

// Assignments returns the applied assignments keyed by subject id.
func (d *StubDirectory) Assignments() map[string]string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	out := make(map[string]string, len(d.assignments))
	for k, v := range d.assignments {
		out[k] = v
	}
	return out
}

func (d *StubDirectory) LookupByIdentity(ctx context.Context, id string) ([]dialogue.Candidate, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	var results []dialogue.Candidate
	for _, p := range d.providers {
		if strings.EqualFold(p.ProviderID, id) {
			results = append(results, p)
		}
	}
	return results, nil
}

func (d *StubDirectory) LookupByNameLocation(ctx context.Context, name, city, state string) ([]dialogue.Candidate, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	var results []dialogue.Candidate
	for _, p := range d.providers {
		if name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
			continue
		}
		if city != "" && !strings.EqualFold(p.City, city) {
			continue
		}
		if state != "" && !strings.EqualFold(p.State, state) {
			continue
		}
		results = append(results, p)
	}
	return results, nil
}

func (d *StubDirectory) LookupByFilters(ctx context.Context, filters Filters) ([]dialogue.Candidate, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	var results []dialogue.Candidate
	for _, p := range d.providers {
		if filters.ZipCode != "" && p.Zip != filters.ZipCode {
			continue
		}
		results = append(results, p)
	}
	return results, nil
}

func (d *StubDirectory) ApplyAssignment(ctx context.Context, subjectID, candidateID, reason string) (string, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.assignErr != nil {
		return "", d.assignErr
	}
	name := candidateID
	for _, p := range d.providers {
		if p.ProviderID == candidateID {
			name = p.Name
		}
	}
	d.assignments[subjectID] = candidateID
	return fmt.Sprintf("You're all set! Your new primary care provider is %s (%s).", name, candidateID), nil
}

// StaticOracle returns canned fragments per schema tag, falling back to the
// fail-closed default for tags it has no answer for. Useful in tests.
type StaticOracle struct {
	Fragments map[string]*Fragment
}

func (o *StaticOracle) Extract(ctx context.Context, schemaTag, freeText string) (*Fragment, error) {
	if fragment, ok := o.Fragments[schemaTag]; ok && fragment != nil {
		copy := *fragment
		return &copy, nil
	}
	return FailClosedFragment(freeText), nil
}

var zipPattern = regexp.MustCompile(`\b\d{5}\b`)

// HeuristicOracle is a rule-based oracle used when no language model is
// configured. It extracts what it can and otherwise behaves exactly like the
// fail-closed default.
type HeuristicOracle struct{}

func (o *HeuristicOracle) Extract(ctx context.Context, schemaTag, freeText string) (*Fragment, error) {
	text := strings.TrimSpace(freeText)
	switch schemaTag {
	case SchemaProviderIdentity:
		// A single token is most likely an identifier; anything longer is
		// treated as a name.
		if !strings.ContainsAny(text, " \t") {
			return &Fragment{ProviderID: text, RawID: text}, nil
		}
		return &Fragment{ProviderName: text, RawID: text}, nil
	case SchemaFilters:
		fragment := &Fragment{RawID: text}
		if zip := zipPattern.FindString(text); zip != "" {
			fragment.ZipCode = zip
		}
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "female"):
			fragment.Gender = "female"
		case strings.Contains(lower, "male"):
			fragment.Gender = "male"
		}
		if fragment.ZipCode == "" && fragment.Gender == "" {
			fragment.Specialty = text
		}
		return fragment, nil
	case SchemaSelection:
		fragment := FailClosedFragment(text)
		if strings.Contains(strings.ToLower(text), "assign") {
			fragment.Action = "assign_pcp"
		}
		return fragment, nil
	default:
		return FailClosedFragment(text), nil
	}
}
