package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deepnoodle-ai/dialogue/pcp"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{
		BaseURL:             server.URL,
		StartingLocationZip: "07101",
		GroupID:             "G1",
		SubscriberID:        "SUB1",
		RetryDelay:          time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func providerDetail(id, name string) map[string]any {
	return map[string]any{
		"providerInfo": map[string]any{
			"providerId":            id,
			"providerName":          name,
			"networkStatus":         "in-network",
			"isAcceptingNewMembers": true,
			"pcpAssnInd":            "Y",
			"distanceInMiles":       2.5,
		},
		"providerContact": map[string]any{
			"addressLine1": "1 Main St",
			"city":         "Newark",
			"state":        "NJ",
			"zip":          "07101",
			"phone":        "555-0100",
		},
	}
}

func TestClientValidation(t *testing.T) {
	_, err := NewClient(ClientOptions{})
	require.ErrorContains(t, err, "base url")
}

func TestLookupByIdentity(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]any{
			"providerDetails": []any{providerDetail("P1", "Dr. Maya Chen")},
		})
	})

	candidates, err := client.LookupByIdentity(context.Background(), "P1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	candidate := candidates[0]
	require.Equal(t, "P1", candidate.ProviderID)
	require.Equal(t, "Dr. Maya Chen", candidate.Name)
	require.Equal(t, "Newark", candidate.City)
	require.Equal(t, "NJ", candidate.State)
	require.Equal(t, "555-0100", candidate.Phone)
	require.True(t, candidate.AcceptingNewMembers)
	require.True(t, candidate.PCPAssignable)
	require.Equal(t, 2.5, candidate.DistanceMiles)

	require.Equal(t, "/providers/search/by-id", gotPath)
	require.Equal(t, "P1", gotPayload["id"])
	require.Equal(t, "07101", gotPayload["startingLocationZip"])
	require.Equal(t, "G1", gotPayload["groupId"])
	require.Equal(t, "SUB1", gotPayload["subscriberId"])
	require.Equal(t, "10", gotPayload["limit"])
	require.Len(t, gotPayload["asOfDate"], 8)
}

func TestLookupSingleObjectResponse(t *testing.T) {
	// A single-result search returns an object instead of a list
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"providerDetails": providerDetail("P1", "Dr. Maya Chen"),
		})
	})

	candidates, err := client.LookupByIdentity(context.Background(), "P1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "P1", candidates[0].ProviderID)
}

func TestLookupSkipsMalformedEntries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"providerDetails": []any{
				providerDetail("P1", "Dr. Maya Chen"),
				map[string]any{"providerContact": map[string]any{"city": "Newark"}},
				map[string]any{"providerInfo": map[string]any{"providerName": "No ID"}},
			},
		})
	})

	candidates, err := client.LookupByIdentity(context.Background(), "P1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
}

func TestLookupEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	})

	candidates, err := client.LookupByIdentity(context.Background(), "NOPE")
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestLookupByFilters(t *testing.T) {
	var gotPayload map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]any{"providerDetails": []any{}})
	})

	_, err := client.LookupByFilters(context.Background(), pcp.Filters{
		Specialty: "cardiology",
		Gender:    "female",
		ZipCode:   "07302",
	})
	require.NoError(t, err)
	require.Equal(t, "cardiology", gotPayload["specialty"])
	require.Equal(t, "female", gotPayload["gender"])
	// An explicit zip filter overrides the configured starting location
	require.Equal(t, "07302", gotPayload["startingLocationZip"])
}

func TestApplyAssignment(t *testing.T) {
	var gotPayload map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/members/pcp-assignments", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]any{
			"confirmation": "Assignment of P1 confirmed",
		})
	})

	confirmation, err := client.ApplyAssignment(context.Background(), "M1", "P1", "moving")
	require.NoError(t, err)
	require.Equal(t, "Assignment of P1 confirmed", confirmation)
	require.Equal(t, "M1", gotPayload["subjectId"])
	require.Equal(t, "P1", gotPayload["providerId"])
	require.Equal(t, "moving", gotPayload["reason"])
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"providerDetails": []any{providerDetail("P1", "Dr. Maya Chen")},
		})
	})

	candidates, err := client.LookupByIdentity(context.Background(), "P1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, int32(2), calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := client.LookupByIdentity(context.Background(), "P1")
	require.ErrorContains(t, err, "status 422")
	require.Equal(t, int32(1), calls.Load())
}

func TestFormatAsOfDate(t *testing.T) {
	require.Equal(t, "20240115", formatAsOfDate("20240115"))
	require.Equal(t, time.Now().Format("20060102"), formatAsOfDate(""))
}

// Client must satisfy the flow's directory boundary.
var _ pcp.Directory = (*Client)(nil)
