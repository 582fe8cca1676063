package pcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/dialogue"
)

// MenuSuggestedReplies is the menu shown when a session starts.
var MenuSuggestedReplies = []string{
	"Assign PCP",
	"Search for specialist",
	"Need something else",
}

// Steps holds the step implementations of the PCP assignment flow, bound to
// their external collaborators.
type Steps struct {
	oracle    Oracle
	directory Directory
}

// NewSteps binds the flow's steps to an oracle and a directory.
func NewSteps(oracle Oracle, directory Directory) *Steps {
	return &Steps{oracle: oracle, directory: directory}
}

// BuildGraph assembles the PCP assignment topology. The menu intentionally
// only follows through on the assignment branch; every other choice ends the
// session with a referral message.
func BuildGraph(oracle Oracle, directory Directory) (*dialogue.Graph, error) {
	s := NewSteps(oracle, directory)
	return dialogue.NewGraph(dialogue.GraphOptions{
		Name:  "pcp-assignment",
		Start: "menu",
		Steps: []dialogue.Step{
			dialogue.NewStepFunc("menu", s.Menu),
			dialogue.NewStepFunc("decline", s.Decline),
			dialogue.NewStepFunc("ask_termination", s.AskTermination),
			dialogue.NewStepFunc("ask_knows_provider", s.AskKnowsProvider),
			dialogue.NewStepFunc("ask_provider_id", s.AskProviderIdentity),
			dialogue.NewStepFunc("ask_filters", s.AskFilters),
			dialogue.NewStepFunc("select_provider", s.SelectProvider),
		},
		Edges: map[string]dialogue.Edge{
			"menu": dialogue.Route(dialogue.RouterFunc(MenuRouter), map[string]string{
				"assign_pcp": "ask_termination",
				"other":      "decline",
			}),
			"ask_termination": dialogue.To("ask_knows_provider"),
			"ask_knows_provider": dialogue.Route(dialogue.RouterFunc(KnowsProviderRouter), map[string]string{
				"yes": "ask_provider_id",
				"no":  "ask_filters",
			}),
			"ask_provider_id": dialogue.To("select_provider"),
			"ask_filters":     dialogue.To("select_provider"),
		},
	})
}

// MenuRouter selects the assignment branch for any reply mentioning
// assignment and dead-ends everything else.
func MenuRouter(ctx context.Context, record *dialogue.Record) (string, error) {
	if strings.Contains(strings.ToLower(record.MenuChoice), "assign") {
		return "assign_pcp", nil
	}
	return "other", nil
}

// KnowsProviderRouter branches on whether the member already knows the
// provider they want.
func KnowsProviderRouter(ctx context.Context, record *dialogue.Record) (string, error) {
	if record.KnowsProvider != nil && *record.KnowsProvider {
		return "yes", nil
	}
	return "no", nil
}

// Menu greets the member and asks what they need.
func (s *Steps) Menu(ctx context.Context, record *dialogue.Record, resume string) (dialogue.Outcome, error) {
	if resume != "" {
		record.LastUtterance = resume
		record.MenuChoice = strings.TrimSpace(resume)
	}
	if record.MenuChoice != "" {
		return dialogue.Continue(), nil
	}
	return dialogue.Suspend(&dialogue.Suspension{
		Prompt:           "Hi! I can help you manage your primary care provider. What would you like to do today?",
		Title:            "How can I help?",
		SuggestedReplies: MenuSuggestedReplies,
		Stage:            dialogue.StageMenu,
	}), nil
}

// Decline ends the session for menu choices the flow does not handle.
func (s *Steps) Decline(ctx context.Context, record *dialogue.Record, resume string) (dialogue.Outcome, error) {
	record.Stage = dialogue.StageCompleted
	record.Confirmation = "I can only help with assigning a new primary care provider right now. " +
		"For anything else, please contact member services."
	return dialogue.Terminate(), nil
}

// AskTermination collects the reason for leaving the current provider.
func (s *Steps) AskTermination(ctx context.Context, record *dialogue.Record, resume string) (dialogue.Outcome, error) {
	if resume != "" {
		record.LastUtterance = resume
		record.TerminationReason = strings.TrimSpace(resume)
	}
	if record.TerminationReason != "" {
		return dialogue.Continue(), nil
	}
	return dialogue.Suspend(&dialogue.Suspension{
		Prompt: "Why would you like to change your current primary care provider?",
		Title:  "Reason for change",
		SuggestedReplies: []string{
			"Moving to a new area",
			"Unhappy with current provider",
			"Provider no longer available",
			"Other",
		},
		Stage: dialogue.StageAskTermination,
	}), nil
}

// AskKnowsProvider asks whether the member already has a provider in mind.
func (s *Steps) AskKnowsProvider(ctx context.Context, record *dialogue.Record, resume string) (dialogue.Outcome, error) {
	if resume != "" {
		record.LastUtterance = resume
		switch answer := strings.ToLower(strings.TrimSpace(resume)); {
		case strings.HasPrefix(answer, "y"):
			yes := true
			record.KnowsProvider = &yes
		case strings.HasPrefix(answer, "n"):
			no := false
			record.KnowsProvider = &no
		}
	}
	if record.KnowsProvider != nil {
		return dialogue.Continue(), nil
	}
	return dialogue.Suspend(&dialogue.Suspension{
		Prompt:           "Do you already know the provider you'd like to switch to?",
		Title:            "Know your provider?",
		SuggestedReplies: []string{"Yes", "No"},
		Stage:            dialogue.StageAskKnowsProvider,
	}), nil
}

// AskProviderIdentity collects a provider id or name and looks the provider
// up in the directory.
func (s *Steps) AskProviderIdentity(ctx context.Context, record *dialogue.Record, resume string) (dialogue.Outcome, error) {
	if resume != "" {
		record.LastUtterance = resume
		fragment := s.extract(ctx, SchemaProviderIdentity, resume)
		if fragment.ProviderID != "" {
			record.ProviderID = fragment.ProviderID
		}
		if fragment.ProviderName != "" {
			record.ProviderName = fragment.ProviderName
			record.ProviderCity = fragment.City
			record.ProviderState = fragment.State
		}
		if record.ProviderID == "" && record.ProviderName == "" && fragment.RawID != "" {
			record.ProviderID = fragment.RawID
		}
	}

	if record.ProviderID == "" && record.ProviderName == "" {
		return dialogue.Suspend(&dialogue.Suspension{
			Prompt: "Great. Tell me the provider's ID, or their name along with city and state.",
			Title:  "Which provider?",
			Stage:  dialogue.StageAskProviderID,
		}), nil
	}

	if len(record.Candidates) == 0 {
		var candidates []dialogue.Candidate
		var err error
		if record.ProviderID != "" {
			candidates, err = s.directory.LookupByIdentity(ctx, record.ProviderID)
		} else {
			candidates, err = s.directory.LookupByNameLocation(ctx,
				record.ProviderName, record.ProviderCity, record.ProviderState)
		}
		if err != nil {
			return dialogue.Outcome{}, fmt.Errorf("provider lookup failed: %w", err)
		}
		if len(candidates) == 0 {
			// Clear the identity so the next reply is treated as a fresh
			// attempt rather than final input.
			record.ProviderID = ""
			record.ProviderName = ""
			record.ProviderCity = ""
			record.ProviderState = ""
			return dialogue.Suspend(&dialogue.Suspension{
				Prompt: "I couldn't find a matching provider. Could you double-check the ID or name and try again?",
				Title:  "No match found",
				Stage:  dialogue.StageAskProviderID,
			}), nil
		}
		record.Candidates = candidates
	}
	return dialogue.Continue(), nil
}

// AskFilters collects search criteria and runs a filtered directory search.
func (s *Steps) AskFilters(ctx context.Context, record *dialogue.Record, resume string) (dialogue.Outcome, error) {
	if resume != "" {
		record.LastUtterance = resume
		fragment := s.extract(ctx, SchemaFilters, resume)
		if fragment.Specialty != "" {
			record.Specialty = fragment.Specialty
		}
		if fragment.Gender != "" {
			record.Gender = fragment.Gender
		}
		if fragment.Language != "" {
			record.Language = fragment.Language
		}
		if fragment.ZipCode != "" {
			record.ZipCode = fragment.ZipCode
		}
	}

	filters := Filters{
		Specialty: record.Specialty,
		Gender:    record.Gender,
		Language:  record.Language,
		ZipCode:   record.ZipCode,
	}
	if filters.Empty() {
		return dialogue.Suspend(&dialogue.Suspension{
			Prompt: "No problem, I can search for you. What matters most: a specialty, provider gender, language, or a ZIP code near you?",
			Title:  "Search criteria",
			Stage:  dialogue.StageAskFilters,
		}), nil
	}

	if len(record.Candidates) == 0 {
		candidates, err := s.directory.LookupByFilters(ctx, filters)
		if err != nil {
			return dialogue.Outcome{}, fmt.Errorf("provider search failed: %w", err)
		}
		if len(candidates) == 0 {
			record.Specialty = ""
			record.Gender = ""
			record.Language = ""
			record.ZipCode = ""
			return dialogue.Suspend(&dialogue.Suspension{
				Prompt: "I didn't find any providers matching those criteria. Want to try different ones?",
				Title:  "No match found",
				Stage:  dialogue.StageAskFilters,
			}), nil
		}
		record.Candidates = candidates
	}
	return dialogue.Continue(), nil
}

// SelectProvider presents the candidate list, resolves the member's pick via
// the oracle, and applies the assignment.
func (s *Steps) SelectProvider(ctx context.Context, record *dialogue.Record, resume string) (dialogue.Outcome, error) {
	if len(record.Candidates) == 0 {
		return dialogue.Outcome{}, fmt.Errorf("no provider candidates available for selection")
	}

	if record.SelectedCandidateID == "" {
		if resume == "" {
			return dialogue.Suspend(&dialogue.Suspension{
				Prompt:           formatCandidates(record.Candidates),
				Title:            "Choose your provider",
				SuggestedReplies: candidateNames(record.Candidates),
				Stage:            dialogue.StageSelectProvider,
			}), nil
		}
		record.LastUtterance = resume
		fragment := s.extract(ctx, SchemaSelection, resume)
		candidateID := fragment.CandidateID
		if candidateID == "" {
			candidateID = matchCandidate(record.Candidates, fragment.RawID)
		}
		if candidateID == "" || !containsCandidate(record.Candidates, candidateID) {
			return dialogue.Suspend(&dialogue.Suspension{
				Prompt:           "I didn't catch which provider you'd like. Could you pick one from the list?",
				Title:            "Choose your provider",
				SuggestedReplies: candidateNames(record.Candidates),
				Stage:            dialogue.StageSelectProvider,
			}), nil
		}
		record.SelectedCandidateID = candidateID
	}

	confirmation, err := s.directory.ApplyAssignment(ctx,
		record.MemberID, record.SelectedCandidateID, record.TerminationReason)
	if err != nil {
		return dialogue.Outcome{}, fmt.Errorf("assignment failed: %w", err)
	}
	record.Confirmation = confirmation
	record.Stage = dialogue.StageCompleted
	return dialogue.Terminate(), nil
}

// extract calls the oracle and falls back to the fail-closed default on any
// error or nil fragment, so extraction never aborts a turn.
func (s *Steps) extract(ctx context.Context, schemaTag, freeText string) *Fragment {
	fragment, err := s.oracle.Extract(ctx, schemaTag, freeText)
	if err != nil || fragment == nil {
		if logger, ok := dialogue.GetLoggerFromContext(ctx); ok && err != nil {
			logger.Warn("extraction failed, using fail-closed fragment",
				"schema", schemaTag, "error", err)
		}
		return FailClosedFragment(freeText)
	}
	return fragment
}

func formatCandidates(candidates []dialogue.Candidate) string {
	var b strings.Builder
	b.WriteString("Here's who I found:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, c.Name, c.ProviderID)
		if c.City != "" {
			fmt.Fprintf(&b, " in %s, %s", c.City, c.State)
		}
		if c.DistanceMiles > 0 {
			fmt.Fprintf(&b, ", %.1f mi", c.DistanceMiles)
		}
		b.WriteString("\n")
	}
	b.WriteString("Who would you like as your new primary care provider?")
	return b.String()
}

func candidateNames(candidates []dialogue.Candidate) []string {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}
	return names
}

// matchCandidate resolves a raw reply to a candidate id: exact id match
// first, then case-insensitive name match, then a 1-based list position.
func matchCandidate(candidates []dialogue.Candidate, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, c := range candidates {
		if strings.EqualFold(c.ProviderID, raw) {
			return c.ProviderID
		}
	}
	lower := strings.ToLower(raw)
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c.Name), lower) {
			return c.ProviderID
		}
	}
	var position int
	if _, err := fmt.Sscanf(raw, "%d", &position); err == nil {
		if position >= 1 && position <= len(candidates) {
			return candidates[position-1].ProviderID
		}
	}
	return ""
}

func containsCandidate(candidates []dialogue.Candidate, id string) bool {
	for _, c := range candidates {
		if c.ProviderID == id {
			return true
		}
	}
	return false
}
