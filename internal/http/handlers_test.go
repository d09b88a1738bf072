package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"casework/internal/applications"
	"casework/internal/assessments"
	"casework/internal/authz"
	"casework/internal/events"
	"casework/internal/locks"
	"casework/internal/person"
	"casework/internal/reports"
	"casework/pkg/domain"
	"casework/pkg/requestcontext"
	"casework/pkg/testutil"
)

// =============================================================================
// HTTP Transport Test Suite
// =============================================================================
// Justification for unit tests: the transport contract is the mapping from
// result variants to status codes and the lifting of gateway identity
// headers; both only show up when a request crosses the full router.

type passthroughSubjects struct{}

func (passthroughSubjects) ResolveOne(_ context.Context, crn domain.CRN, _ person.AccessStrategy) (person.SummaryInfoResult, error) {
	return person.Full(person.CaseSummary{CRN: crn, FirstName: "Sam", Surname: "Subject"}), nil
}

func (passthroughSubjects) ResolveManyInBatches(_ context.Context, crns []domain.CRN, _ person.AccessStrategy, _ int) ([]person.SummaryInfoResult, error) {
	out := make([]person.SummaryInfoResult, 0, len(crns))
	for _, crn := range crns {
		out = append(out, person.Full(person.CaseSummary{CRN: crn, FirstName: "Sam", Surname: "Subject"}))
	}
	return out, nil
}

type HandlersSuite struct {
	suite.Suite
	appStore    *applications.InMemoryStore
	assessStore *assessments.InMemoryStore
	server      *httptest.Server

	referrer requestcontext.ActorInfo
	assessor requestcontext.ActorInfo
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	s.appStore = applications.NewInMemoryStore()
	s.assessStore = assessments.NewInMemoryStore()
	eventStore := events.NewInMemoryStore()
	s.referrer = testutil.ActorWithRoles("Casey Worker", authz.RoleReferrer)
	s.assessor = testutil.ActorWithRoles("Ana Assessor", authz.RoleAssessor)
	// The assessor works the referrer's region so submissions show up in
	// their summary listing.
	s.assessor.RegionID = s.referrer.RegionID

	assessSvc, err := assessments.NewService(
		s.assessStore,
		assessments.NewInMemoryRejectionReasonStore(),
		locks.NewKeyedMutex(),
		authz.NewChecker(),
		passthroughSubjects{},
		events.NewPublisher(eventStore),
		10,
	)
	s.Require().NoError(err)

	appSvc, err := applications.NewService(
		s.appStore,
		applications.NewInMemoryDeliveryUnitStore(),
		locks.NewKeyedMutex(),
		assessSvc,
		events.NewPublisher(eventStore),
		authz.NewChecker(),
	)
	s.Require().NoError(err)

	reportSvc, err := reports.NewService(assessSvc, passthroughSubjects{}, 500)
	s.Require().NoError(err)

	s.server = httptest.NewServer(NewRouter(NewHandler(appSvc, assessSvc, reportSvc, nil)))
	s.T().Cleanup(s.server.Close)
}

func (s *HandlersSuite) do(actor requestcontext.ActorInfo, method, path string, body any) *http.Response {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("X-User-Id", actor.ID.String())
	req.Header.Set("X-User-Name", actor.Name)
	req.Header.Set("X-User-Region", actor.RegionID.String())
	req.Header.Set("X-User-Roles", strings.Join(actor.Roles, ","))

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *HandlersSuite) decode(resp *http.Response, into any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(into))
}

func (s *HandlersSuite) seedDraft() *applications.Application {
	app := &applications.Application{
		ID:                domain.NewApplicationID(),
		CRN:               "X320741",
		CreatedByUserID:   s.referrer.ID,
		ProbationRegionID: s.referrer.RegionID,
		Document:          `{"draft":true}`,
		CreatedAt:         time.Now().UTC(),
	}
	_, err := s.appStore.Save(context.Background(), app)
	s.Require().NoError(err)
	return app
}

func (s *HandlersSuite) TestApplicationLifecycleOverHTTP() {
	app := s.seedDraft()

	resp := s.do(s.referrer, http.MethodPut, "/applications/"+app.ID.String(),
		map[string]any{"document": map[string]any{"updated": true}})
	s.Equal(http.StatusOK, resp.StatusCode)
	var updated applicationBody
	s.decode(resp, &updated)
	s.JSONEq(`{"updated":true}`, updated.Document)

	resp = s.do(s.referrer, http.MethodPost, "/applications/"+app.ID.String()+"/submission",
		map[string]any{
			"arrivalDate": "2024-04-01",
			"summaryData": map[string]any{"summary": "ok"},
		})
	s.Equal(http.StatusCreated, resp.StatusCode)
	var submitted applicationBody
	s.decode(resp, &submitted)
	s.NotNil(submitted.SubmittedAt)

	// Second submission trips the already-submitted rule.
	resp = s.do(s.referrer, http.MethodPost, "/applications/"+app.ID.String()+"/submission",
		map[string]any{"arrivalDate": "2024-04-01", "summaryData": map[string]any{}})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	var failure errorBody
	s.decode(resp, &failure)
	s.Equal("This application has already been submitted", failure.Message)
}

func (s *HandlersSuite) TestStatusCodeMapping() {
	s.Run("unknown application maps to 404 with entity envelope", func() {
		missing := domain.NewApplicationID()
		resp := s.do(s.referrer, http.MethodPut, "/applications/"+missing.String(),
			map[string]any{"document": map[string]any{}})
		s.Equal(http.StatusNotFound, resp.StatusCode)
		var body errorBody
		s.decode(resp, &body)
		s.Equal("Application", body.EntityType)
		s.Equal(missing.String(), body.EntityID)
	})

	s.Run("foreign draft maps to 403", func() {
		app := s.seedDraft()
		stranger := testutil.ActorWithRoles("Other Referrer", authz.RoleReferrer)
		resp := s.do(stranger, http.MethodPut, "/applications/"+app.ID.String(),
			map[string]any{"document": map[string]any{}})
		s.Equal(http.StatusForbidden, resp.StatusCode)
	})

	s.Run("malformed id maps to 400", func() {
		resp := s.do(s.referrer, http.MethodPut, "/applications/not-a-uuid",
			map[string]any{"document": map[string]any{}})
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func (s *HandlersSuite) TestAssessmentSummariesListing() {
	app := s.seedDraft()
	resp := s.do(s.referrer, http.MethodPost, "/applications/"+app.ID.String()+"/submission",
		map[string]any{"arrivalDate": "2024-04-01", "summaryData": map[string]any{}})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(s.assessor, http.MethodGet, "/assessments?page=1", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var page summaryPageBody
	s.decode(resp, &page)
	s.Require().Len(page.Results, 1)
	s.Equal(app.CRN.String(), page.Results[0].CRN)
	s.Equal("Sam Subject", page.Results[0].Name)
	s.Equal("unallocated", page.Results[0].Status)
	s.Equal(1, page.TotalCount)
}

func (s *HandlersSuite) TestAssessmentRejectionOverHTTP() {
	app := s.seedDraft()
	resp := s.do(s.referrer, http.MethodPost, "/applications/"+app.ID.String()+"/submission",
		map[string]any{"arrivalDate": "2024-04-01", "summaryData": map[string]any{}})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var listing summaryPageBody
	resp = s.do(s.assessor, http.MethodGet, "/assessments", nil)
	s.decode(resp, &listing)
	s.Require().Len(listing.Results, 1)
	assessmentID := listing.Results[0].ID

	resp = s.do(s.assessor, http.MethodPost, fmt.Sprintf("/assessments/%s/rejection", assessmentID),
		map[string]any{
			"document":           map[string]any{},
			"rejectionRationale": "insufficient information",
		})
	s.Equal(http.StatusOK, resp.StatusCode)
	var rejected assessmentBody
	s.decode(resp, &rejected)
	s.Equal("rejected", rejected.Status)
	s.Equal("insufficient information", rejected.RejectionRationale)
}
