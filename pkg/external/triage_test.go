package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

func newTriageTestClient(endpoint string) *TriageClient {
	return NewTriageClient(domain.TriageConfig{
		Endpoint: endpoint,
		Timeout:  5 * time.Second,
	})
}

func TestTriageClient_CheckMRN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "12345", body["mrn"])

		fmt.Fprint(w, `{
			"patient_info": {"mrn": "🏥 12345", "name": "👤 Jordan Smith", "dob": "📅 1961-04-12", "gender": "⚧ Female"},
			"mri_safety_assessment": {
				"status": "CONDITIONAL",
				"risk": "Moderate",
				"summary": "Pacemaker requires device interrogation",
				"concerns": ["Cardiac pacemaker present"],
				"recommendations": ["Verify device MR conditional labeling"]
			},
			"analysis_details": {
				"individual_findings": [{
					"has_concern": true,
					"description": "Implanted cardiac device",
					"concern_level": "high",
					"item_data": {"resource": {"deviceName": [{"name": "Medtronic Azure"}], "modelNumber": "W1DR01"}}
				}]
			},
			"timestamp": "2026-03-01T12:00:00Z"
		}`)
	}))
	defer server.Close()

	resp := newTriageTestClient(server.URL).CheckMRN(context.Background(), " 12345 ")
	require.NotNil(t, resp)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "🏥 12345", resp.PatientInfo.MRN)
	assert.Equal(t, "CONDITIONAL", resp.Assessment.Status)
	assert.Equal(t, "Moderate", resp.Assessment.Risk)
	require.Len(t, resp.Details.IndividualFindings, 1)
	assert.Equal(t, "Medtronic Azure", resp.Details.IndividualFindings[0].ItemData.Resource.DeviceName[0].Name)
	assert.Equal(t, "2026-03-01T12:00:00Z", resp.Timestamp)
}

func TestTriageClient_CheckMRN_BackfillsMRN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"mri_safety_assessment": {"status": "SAFE"}}`)
	}))
	defer server.Close()

	resp := newTriageTestClient(server.URL).CheckMRN(context.Background(), "12345")
	assert.Equal(t, "12345", resp.PatientInfo.MRN)
}

func TestTriageClient_CheckMRN_Failures(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		errContains string
	}{
		{
			name: "endpoint error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				fmt.Fprint(w, "upstream unavailable")
			},
			errContains: "status 502",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "not json at all")
			},
			errContains: "failed to decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			resp := newTriageTestClient(server.URL).CheckMRN(context.Background(), "12345")
			require.NotNil(t, resp)
			assert.Contains(t, resp.Error, tt.errContains)
			assert.Equal(t, "12345", resp.PatientInfo.MRN)
		})
	}
}

func TestTriageClient_CheckMRN_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // force a connection error

	resp := newTriageTestClient(server.URL).CheckMRN(context.Background(), "12345")
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, "12345", resp.PatientInfo.MRN)
}
