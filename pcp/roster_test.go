package pcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleRoster = `
providers:
  - provider_id: P10
    name: Dr. Sam Rivera
    city: Trenton
    state: NJ
    zip: "08608"
    accepting_new_members: true
    pcp_assignable: true
    distance_miles: 3.4
  - provider_id: P11
    name: Dr. Iris Kim
    city: Princeton
    state: NJ
`

func TestLoadRosterString(t *testing.T) {
	candidates, err := LoadRosterString(sampleRoster)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, "P10", candidates[0].ProviderID)
	require.Equal(t, "Dr. Sam Rivera", candidates[0].Name)
	require.Equal(t, "08608", candidates[0].Zip)
	require.True(t, candidates[0].AcceptingNewMembers)
	require.Equal(t, 3.4, candidates[0].DistanceMiles)
	require.Equal(t, "Princeton", candidates[1].City)
}

func TestLoadRosterStringErrors(t *testing.T) {
	_, err := LoadRosterString("providers: []")
	require.ErrorContains(t, err, "no providers")

	_, err = LoadRosterString("providers:\n  - name: No ID")
	require.ErrorContains(t, err, "provider_id and name required")

	_, err = LoadRosterString("not: [valid: roster")
	require.Error(t, err)
}

func TestLoadRosterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRoster), 0644))

	candidates, err := LoadRosterFile(path)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	_, err = LoadRosterFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "failed to read roster file")
}
