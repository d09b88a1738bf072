package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"casework/internal/applications"
	"casework/internal/assessments"
	"casework/internal/reports"
	"casework/pkg/domain"
)

// dateOnly accepts the wire format "2006-01-02".
type dateOnly struct{ time.Time }

func (d *dateOnly) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return err
	}
	d.Time = parsed
	return nil
}

func (h *Handler) fault(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), op+" failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, nil)
}

// ====== Applications ======

func applicationID(w http.ResponseWriter, r *http.Request) (domain.ApplicationID, bool) {
	id, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid application id"})
		return domain.ApplicationID{}, false
	}
	return id, true
}

type applicationBody struct {
	ID          string     `json:"id"`
	CRN         string     `json:"crn"`
	Document    string     `json:"document"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	ArrivalDate *time.Time `json:"arrivalDate,omitempty"`
}

func applicationResponse(app *applications.Application) any {
	return applicationBody{
		ID:          app.ID.String(),
		CRN:         app.CRN.String(),
		Document:    app.Document,
		SubmittedAt: app.SubmittedAt,
		DeletedAt:   app.DeletedAt,
		ArrivalDate: app.ArrivalDate,
	}
}

func (h *Handler) updateApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	var req struct {
		Document json.RawMessage `json:"document"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "malformed request body"})
		return
	}

	res, err := h.applications.UpdateApplication(r.Context(), id, string(req.Document))
	if err != nil {
		h.fault(w, r, "update application", err)
		return
	}
	writeResult(w, res, http.StatusOK, applicationResponse)
}

func (h *Handler) submitApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	var req struct {
		ArrivalDate               dateOnly        `json:"arrivalDate"`
		SummaryData               json.RawMessage `json:"summaryData"`
		NeedsAccessibleProperty   bool            `json:"needsAccessibleProperty"`
		HasHistoryOfArson         bool            `json:"hasHistoryOfArson"`
		IsRegisteredSexOffender   bool            `json:"isRegisteredSexOffender"`
		DutyToReferSubmissionDate *dateOnly       `json:"dutyToReferSubmissionDate"`
		DutyToReferOutcome        string          `json:"dutyToReferOutcome"`
		DutyToReferLocalAuthority string          `json:"dutyToReferLocalAuthorityAreaName"`
		PersonReleaseDate         *dateOnly       `json:"personReleaseDate"`
		ReleaseTypes              []string        `json:"summaryDataReleaseTypes"`
		ProbationDeliveryUnitID   *uuid.UUID      `json:"probationDeliveryUnitId"`
		PreviousRegionID          *uuid.UUID      `json:"previousProbationRegionId"`
		PreviousDeliveryUnitID    *uuid.UUID      `json:"previousProbationDeliveryUnitId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "malformed request body"})
		return
	}

	submission := applications.Submission{
		ArrivalDate:               req.ArrivalDate.Time,
		SummaryData:               string(req.SummaryData),
		NeedsAccessibleProperty:   req.NeedsAccessibleProperty,
		HasHistoryOfArson:         req.HasHistoryOfArson,
		IsRegisteredSexOffender:   req.IsRegisteredSexOffender,
		DutyToReferOutcome:        req.DutyToReferOutcome,
		DutyToReferLocalAuthority: req.DutyToReferLocalAuthority,
		ReleaseTypes:              req.ReleaseTypes,
	}
	if req.DutyToReferSubmissionDate != nil {
		submission.DutyToReferSubmissionDate = &req.DutyToReferSubmissionDate.Time
	}
	if req.PersonReleaseDate != nil {
		submission.PersonReleaseDate = &req.PersonReleaseDate.Time
	}
	if req.ProbationDeliveryUnitID != nil {
		unitID := domain.DeliveryUnitID(*req.ProbationDeliveryUnitID)
		submission.ProbationDeliveryUnitID = &unitID
	}
	if req.PreviousRegionID != nil {
		regionID := domain.RegionID(*req.PreviousRegionID)
		submission.PreviousRegionID = &regionID
	}
	if req.PreviousDeliveryUnitID != nil {
		unitID := domain.DeliveryUnitID(*req.PreviousDeliveryUnitID)
		submission.PreviousDeliveryUnitID = &unitID
	}

	res, err := h.applications.SubmitApplication(r.Context(), id, submission)
	if err != nil {
		h.fault(w, r, "submit application", err)
		return
	}
	writeResult(w, res, http.StatusCreated, applicationResponse)
}

func (h *Handler) deleteApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	res, err := h.applications.MarkAsDeleted(r.Context(), id)
	if err != nil {
		h.fault(w, r, "delete application", err)
		return
	}
	writeResult(w, res, http.StatusOK, applicationResponse)
}

// ====== Assessments ======

func assessmentID(w http.ResponseWriter, r *http.Request) (domain.AssessmentID, bool) {
	id, err := domain.ParseAssessmentID(chi.URLParam(r, "assessmentID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid assessment id"})
		return domain.AssessmentID{}, false
	}
	return id, true
}

type assessmentBody struct {
	ID                            string     `json:"id"`
	ApplicationID                 string     `json:"applicationId"`
	CRN                           string     `json:"crn"`
	Status                        string     `json:"status"`
	AllocatedToUserID             *string    `json:"allocatedToUserId,omitempty"`
	AllocatedAt                   *time.Time `json:"allocatedAt,omitempty"`
	Decision                      *string    `json:"decision,omitempty"`
	ReleaseDate                   *string    `json:"releaseDate,omitempty"`
	AccommodationRequiredFromDate *string    `json:"accommodationRequiredFromDate,omitempty"`
	RejectionRationale            string     `json:"rejectionRationale,omitempty"`
}

func assessmentResponse(assessment *assessments.Assessment) any {
	body := assessmentBody{
		ID:                 assessment.ID.String(),
		ApplicationID:      assessment.ApplicationID.String(),
		CRN:                assessment.CRN.String(),
		Status:             string(assessment.CurrentStatus()),
		AllocatedAt:        assessment.AllocatedAt,
		RejectionRationale: assessment.RejectionRationale,
	}
	if assessment.AllocatedToUserID != nil {
		id := assessment.AllocatedToUserID.String()
		body.AllocatedToUserID = &id
	}
	if assessment.Decision != nil {
		decision := string(*assessment.Decision)
		body.Decision = &decision
	}
	if assessment.ReleaseDate != nil {
		date := assessment.ReleaseDate.Format(time.DateOnly)
		body.ReleaseDate = &date
	}
	if assessment.AccommodationRequiredFromDate != nil {
		date := assessment.AccommodationRequiredFromDate.Format(time.DateOnly)
		body.AccommodationRequiredFromDate = &date
	}
	return body
}

func (h *Handler) getAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := assessmentID(w, r)
	if !ok {
		return
	}
	res, err := h.assessments.GetAssessment(r.Context(), id)
	if err != nil {
		h.fault(w, r, "get assessment", err)
		return
	}
	writeResult(w, res, http.StatusOK, assessmentResponse)
}

func (h *Handler) updateAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := assessmentID(w, r)
	if !ok {
		return
	}
	var req struct {
		ReleaseDate                   *dateOnly `json:"releaseDate"`
		AccommodationRequiredFromDate *dateOnly `json:"accommodationRequiredFromDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "malformed request body"})
		return
	}

	var release, accommodation *time.Time
	if req.ReleaseDate != nil {
		release = &req.ReleaseDate.Time
	}
	if req.AccommodationRequiredFromDate != nil {
		accommodation = &req.AccommodationRequiredFromDate.Time
	}

	res, err := h.assessments.UpdateAssessment(r.Context(), id, release, accommodation)
	if err != nil {
		h.fault(w, r, "update assessment", err)
		return
	}
	writeResult(w, res, http.StatusOK, assessmentResponse)
}

func (h *Handler) rejectAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := assessmentID(w, r)
	if !ok {
		return
	}
	var req struct {
		Document          json.RawMessage `json:"document"`
		Rationale         string          `json:"rejectionRationale"`
		RejectionReasonID *uuid.UUID      `json:"referralRejectionReasonId"`
		RejectionDetail   string          `json:"referralRejectionReasonDetail"`
		IsWithdrawn       bool            `json:"isWithdrawn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "malformed request body"})
		return
	}

	res, err := h.assessments.RejectAssessment(r.Context(), id, assessments.RejectionRequest{
		Document:          string(req.Document),
		Rationale:         req.Rationale,
		RejectionReasonID: req.RejectionReasonID,
		RejectionDetail:   req.RejectionDetail,
		IsWithdrawn:       req.IsWithdrawn,
	})
	if err != nil {
		h.fault(w, r, "reject assessment", err)
		return
	}
	writeResult(w, res, http.StatusOK, assessmentResponse)
}

func (h *Handler) deallocateAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := assessmentID(w, r)
	if !ok {
		return
	}
	res, err := h.assessments.DeallocateAssessment(r.Context(), id)
	if err != nil {
		h.fault(w, r, "deallocate assessment", err)
		return
	}
	writeResult(w, res, http.StatusOK, assessmentResponse)
}

func (h *Handler) reallocateAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := assessmentID(w, r)
	if !ok {
		return
	}
	res, err := h.assessments.ReallocateAssessmentToMe(r.Context(), id)
	if err != nil {
		h.fault(w, r, "reallocate assessment", err)
		return
	}
	writeResult(w, res, http.StatusCreated, assessmentResponse)
}

// ====== Summaries and reports ======

type summaryBody struct {
	ID            string  `json:"id"`
	ApplicationID string  `json:"applicationId"`
	CRN           string  `json:"crn"`
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"createdAt"`
	ArrivalDate   *string `json:"arrivalDate,omitempty"`
}

type summaryPageBody struct {
	Results    []summaryBody `json:"results"`
	TotalPages int           `json:"totalPages"`
	TotalCount int           `json:"totalResults"`
	Page       int           `json:"pageNumber"`
	PerPage    int           `json:"pageSize"`
}

func summaryQuery(r *http.Request) reports.Query {
	q := r.URL.Query()
	query := reports.Query{
		SortBy:   q.Get("sortBy"),
		SortDesc: q.Get("sortDirection") == "desc",
		Page:     1,
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		query.Page = page
	}
	if crn := domain.CRN(q.Get("crn")); crn != "" {
		query.CRN = &crn
	}
	for _, status := range q["status"] {
		query.Statuses = append(query.Statuses, assessments.Status(status))
	}
	return query
}

func (h *Handler) listAssessmentSummaries(w http.ResponseWriter, r *http.Request) {
	rows, pageInfo, err := h.reports.ListSummaries(r.Context(), summaryQuery(r))
	if err != nil {
		h.fault(w, r, "list assessment summaries", err)
		return
	}

	body := summaryPageBody{
		Results:    make([]summaryBody, 0, len(rows)),
		TotalPages: pageInfo.TotalPages,
		TotalCount: pageInfo.TotalResults,
		Page:       pageInfo.Page,
		PerPage:    pageInfo.PerPage,
	}
	for _, row := range rows {
		item := summaryBody{
			ID:            row.ID.String(),
			ApplicationID: row.ApplicationID.String(),
			CRN:           row.CRN.String(),
			Name:          row.Name,
			Status:        string(row.Status),
			CreatedAt:     row.CreatedAt.Format(time.RFC3339),
		}
		if row.ArrivalDate != nil {
			date := row.ArrivalDate.Format(time.DateOnly)
			item.ArrivalDate = &date
		}
		body.Results = append(body.Results, item)
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) assessmentsReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="referral-assessments.xlsx"`)
	if err := h.reports.WriteSpreadsheet(r.Context(), w, summaryQuery(r)); err != nil {
		h.logger.ErrorContext(r.Context(), "assessments report failed", "error", err)
	}
}
