package pcp

import (
	"fmt"
	"os"

	"github.com/deepnoodle-ai/dialogue"
	"gopkg.in/yaml.v3"
)

// rosterProvider is the YAML shape of one roster entry.
type rosterProvider struct {
	ProviderID          string  `yaml:"provider_id"`
	Name                string  `yaml:"name"`
	Address1            string  `yaml:"address1,omitempty"`
	Address2            string  `yaml:"address2,omitempty"`
	City                string  `yaml:"city,omitempty"`
	State               string  `yaml:"state,omitempty"`
	Zip                 string  `yaml:"zip,omitempty"`
	County              string  `yaml:"county,omitempty"`
	Phone               string  `yaml:"phone,omitempty"`
	NetworkStatus       string  `yaml:"network_status,omitempty"`
	AcceptingNewMembers bool    `yaml:"accepting_new_members,omitempty"`
	PCPAssignable       bool    `yaml:"pcp_assignable,omitempty"`
	DistanceMiles       float64 `yaml:"distance_miles,omitempty"`
}

type rosterFile struct {
	Providers []rosterProvider `yaml:"providers"`
}

// LoadRosterFile loads a YAML provider roster for the stub directory.
func LoadRosterFile(path string) ([]dialogue.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}
	return LoadRosterString(string(data))
}

// LoadRosterString loads a provider roster from a YAML string.
func LoadRosterString(data string) ([]dialogue.Candidate, error) {
	var file rosterFile
	if err := yaml.Unmarshal([]byte(data), &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roster: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("roster has no providers")
	}
	candidates := make([]dialogue.Candidate, 0, len(file.Providers))
	for i, p := range file.Providers {
		if p.ProviderID == "" || p.Name == "" {
			return nil, fmt.Errorf("roster provider %d: provider_id and name required", i)
		}
		candidates = append(candidates, dialogue.Candidate{
			ProviderID:          p.ProviderID,
			Name:                p.Name,
			Address1:            p.Address1,
			Address2:            p.Address2,
			City:                p.City,
			State:               p.State,
			Zip:                 p.Zip,
			County:              p.County,
			Phone:               p.Phone,
			NetworkStatus:       p.NetworkStatus,
			AcceptingNewMembers: p.AcceptingNewMembers,
			PCPAssignable:       p.PCPAssignable,
			DistanceMiles:       p.DistanceMiles,
		})
	}
	return candidates, nil
}
