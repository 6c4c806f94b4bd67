/*
handlers.go - HTTP API handlers for the leave management engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, input validation, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                    List all employees
    POST   /api/employees                    Create employee
    GET    /api/employees/{id}               Get employee details
    GET    /api/employees/{id}/requests      Request history
    GET    /api/employees/{id}/balances      Balance buckets for a year

  Requests:
    POST   /api/requests                     Create (or draft) a leave request
    GET    /api/requests/{id}                Request with its step set
    POST   /api/requests/{id}/submit         Submit a draft
    POST   /api/requests/{id}/resubmit       Revise and resubmit after a return
    POST   /api/requests/{id}/cancel         Cancel
    POST   /api/requests/{id}/steps/{stepID} Record an approver's decision

  Configuration:
    Leave types, offices, workflow configs, holidays (CRUD)

  Admin:
    POST   /api/admin/balances               Open a balance bucket
    POST   /api/admin/adjustments            Manual adjustment (reason required)
    POST   /api/admin/carryover              Year-end carryover

  Calculator:
    GET    /api/working-days                 Preview working-day count

REQUEST FLOW:
  1. Decode and validate the body (go-playground/validator)
  2. Resolve configuration facts (type, workflow, calendar) from the store
  3. Call domain logic (service, engine, ledger)
  4. Map domain errors to HTTP status
  5. Serialize response

ERROR HANDLING:
  Domain errors map to status codes through the leave error helpers:
  - 400: validation, invalid range, insufficient balance,
         double decision, terminal status
  - 403: actor not entitled to the operation
  - 404: missing record
  - 409: overlap or duplicate-balance conflict
  - 503: optimistic concurrency retries exhausted
  - 500: everything else

SECURITY NOTE:
  The actor is taken from the request body; there is no authentication
  layer. Deployments put this behind a gateway that injects the
  authenticated principal.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *leave.Service
	Engine  *leave.Engine
	Ledger  *leave.Ledger
	Access  leave.AccessPolicy

	logger   *zap.Logger
	validate *validator.Validate
}

// NewHandler wires the handler over the store and domain services.
func NewHandler(store *sqlite.Store, svc *leave.Service, engine *leave.Engine, access leave.AccessPolicy, logger *zap.Logger) *Handler {
	return &Handler{
		Store:    store,
		Service:  svc,
		Engine:   engine,
		Ledger:   leave.NewLedger(store),
		Access:   access,
		logger:   logger,
		validate: validator.New(),
	}
}

// requireAdmin gates the manual balance mutations behind the admin
// capability. Returns false after writing the 403 response.
func (h *Handler) requireAdmin(w http.ResponseWriter, actor leave.ActorID) bool {
	if h.Access.Can(actor, leave.ActionAdjustBalance, nil, nil) {
		return true
	}
	writeDomainError(w, "Balance administration denied", &leave.AuthorizationError{
		Actor:  actor,
		Action: leave.ActionAdjustBalance,
		Detail: "actor is not a balance administrator",
	})
	return false
}

// decode unmarshals and validates a request body.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	office, err := h.Store.GetOffice(r.Context(), req.OfficeID)
	if err != nil {
		writeDomainError(w, "Unknown office", err)
		return
	}

	hireDate, _ := time.Parse("2006-01-02", req.HireDate)
	emp := sqlite.Employee{
		ID:       req.ID,
		Name:     req.Name,
		Email:    req.Email,
		OfficeID: req.OfficeID,
		HireDate: hireDate,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}

	if err := h.provisionBalances(r.Context(), emp, office); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to provision balances", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// provisionBalances opens the current-year accounts an employee from this
// office will draw on: one per balance type its deducting leave types use.
// The paid account starts at the office default allowance; other buckets
// start empty and are topped up through manual adjustments.
func (h *Handler) provisionBalances(ctx context.Context, emp sqlite.Employee, office *sqlite.Office) error {
	types, err := h.Store.ListLeaveTypes(ctx)
	if err != nil {
		return err
	}

	year := time.Now().UTC().Year()
	seen := make(map[string]bool)
	for _, lt := range types {
		if string(lt.Office) != office.ID || !lt.Deducts() || seen[lt.BalanceType] {
			continue
		}
		seen[lt.BalanceType] = true

		total := decimal.Zero
		if lt.BalanceType == "paid" {
			total = office.DefaultAllowance
		}
		b := leave.NewBalance(leave.BalanceKey{
			EmployeeID:  leave.EmployeeID(emp.ID),
			Year:        year,
			BalanceType: lt.BalanceType,
		}, total, decimal.Zero)
		if err := h.Store.CreateBalance(ctx, b); err != nil && !errors.Is(err, leave.ErrBalanceExists) {
			return err
		}
	}
	return nil
}

// ListEmployeeRequests returns an employee's request history.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))
	requests, err := h.Store.RequestsByEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}

	dtos := make([]LeaveRequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployeeBalances returns an employee's balance buckets for a year.
// Defaults to the current year.
func (h *Handler) GetEmployeeBalances(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))
	year := time.Now().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := time.Parse("2006", y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = parsed.Year()
	}

	balances, err := h.Store.BalancesByEmployee(r.Context(), id, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get balances", err)
		return
	}

	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBalanceMutations returns the audit trail for one balance bucket.
func (h *Handler) GetBalanceMutations(w http.ResponseWriter, r *http.Request) {
	year, err := time.Parse("2006", chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	key := leave.BalanceKey{
		EmployeeID:  leave.EmployeeID(chi.URLParam(r, "id")),
		Year:        year.Year(),
		BalanceType: chi.URLParam(r, "balanceType"),
	}

	mutations, err := h.Store.Mutations(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get mutations", err)
		return
	}

	dtos := make([]MutationDTO, len(mutations))
	for i, m := range mutations {
		dtos[i] = toMutationDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// CreateRequest validates and creates a leave request (or a draft).
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitLeaveRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	in, err := h.buildCreateInput(r, body)
	if err != nil {
		writeDomainError(w, "Failed to resolve configuration", err)
		return
	}

	req, err := h.Service.Create(ctx, *in)
	if err != nil {
		writeDomainError(w, "Failed to create request", err)
		return
	}

	steps, _ := h.Store.StepsByRequest(ctx, req.ID, req.Attempt)
	writeJSON(w, http.StatusCreated, toRequestDTO(req, steps))
}

// buildCreateInput resolves the configuration facts the core consumes:
// leave type, the office's workflow, working week and holiday calendar.
func (h *Handler) buildCreateInput(r *http.Request, body SubmitLeaveRequest) (*leave.CreateInput, error) {
	ctx := r.Context()

	lt, err := h.Store.LeaveType(ctx, leave.LeaveTypeID(body.LeaveTypeID))
	if err != nil {
		return nil, err
	}
	emp, err := h.Store.GetEmployee(ctx, body.EmployeeID)
	if err != nil {
		return nil, err
	}
	wf, err := h.Store.WorkflowConfigForOffice(ctx, emp.OfficeID)
	if err != nil {
		return nil, err
	}
	week, err := h.Store.WorkingWeekFor(ctx, emp.OfficeID)
	if err != nil {
		return nil, err
	}
	holidays, err := h.Store.HolidaySetFor(ctx, emp.OfficeID)
	if err != nil {
		return nil, err
	}

	start, err := leave.ParseDate(body.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := leave.ParseDate(body.EndDate)
	if err != nil {
		return nil, err
	}

	return &leave.CreateInput{
		EmployeeID:        leave.EmployeeID(body.EmployeeID),
		LeaveType:         lt,
		Start:             start,
		End:               end,
		StartHalf:         halfDayOrFull(body.StartHalf),
		EndHalf:           halfDayOrFull(body.EndHalf),
		Reason:            body.Reason,
		ExceptionalReason: body.ExceptionalReason,
		AttachmentRef:     body.AttachmentRef,
		AsDraft:           body.AsDraft,
		Workflow:          *wf,
		Week:              week,
		Holidays:          holidays,
	}, nil
}

// GetRequest returns a request with the step set of its current attempt.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := leave.RequestID(chi.URLParam(r, "id"))

	req, err := h.Store.GetRequest(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get request", err)
		return
	}
	steps, err := h.Store.StepsByRequest(ctx, id, req.Attempt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get steps", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req, steps))
}

// SubmitRequest moves a draft into the approval pipeline.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body ActorRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Service.Submit(r.Context(), leave.RequestID(chi.URLParam(r, "id")), leave.ActorID(body.ActorID))
	if err != nil {
		writeDomainError(w, "Failed to submit request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req, nil))
}

// ResubmitRequest revises a returned request and submits it under a fresh
// attempt.
func (h *Handler) ResubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body ReviseLeaveRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	id := leave.RequestID(chi.URLParam(r, "id"))

	existing, err := h.Store.GetRequest(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get request", err)
		return
	}
	lt, err := h.Store.LeaveType(ctx, existing.LeaveTypeID)
	if err != nil {
		writeDomainError(w, "Failed to resolve leave type", err)
		return
	}
	emp, err := h.Store.GetEmployee(ctx, string(existing.EmployeeID))
	if err != nil {
		writeDomainError(w, "Failed to resolve employee", err)
		return
	}
	wf, err := h.Store.WorkflowConfigForOffice(ctx, emp.OfficeID)
	if err != nil {
		writeDomainError(w, "Failed to resolve workflow", err)
		return
	}
	week, err := h.Store.WorkingWeekFor(ctx, emp.OfficeID)
	if err != nil {
		writeDomainError(w, "Failed to resolve working week", err)
		return
	}
	holidays, err := h.Store.HolidaySetFor(ctx, emp.OfficeID)
	if err != nil {
		writeDomainError(w, "Failed to resolve holidays", err)
		return
	}

	start, err := leave.ParseDate(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	end, err := leave.ParseDate(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}

	req, err := h.Service.Resubmit(ctx, id, leave.ActorID(body.ActorID), lt, leave.RevisionInput{
		Start:         start,
		End:           end,
		StartHalf:     halfDayOrFull(body.StartHalf),
		EndHalf:       halfDayOrFull(body.EndHalf),
		Reason:        body.Reason,
		AttachmentRef: body.AttachmentRef,
		Workflow:      *wf,
		Week:          week,
		Holidays:      holidays,
	})
	if err != nil {
		writeDomainError(w, "Failed to resubmit request", err)
		return
	}

	steps, _ := h.Store.StepsByRequest(ctx, req.ID, req.Attempt)
	writeJSON(w, http.StatusOK, toRequestDTO(req, steps))
}

// CancelRequest cancels a request; the requester only, and never after a
// terminal status.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	var body ActorRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Engine.Cancel(r.Context(), leave.RequestID(chi.URLParam(r, "id")), leave.ActorID(body.ActorID))
	if err != nil {
		writeDomainError(w, "Failed to cancel request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req, nil))
}

// DecideStep records an approver's decision on one approval step.
func (h *Handler) DecideStep(w http.ResponseWriter, r *http.Request) {
	var body DecideStepRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	requestID := leave.RequestID(chi.URLParam(r, "id"))
	stepID := leave.StepID(chi.URLParam(r, "stepID"))

	req, err := h.Engine.DecideStep(ctx, requestID, stepID,
		leave.ActorID(body.ActorID), leave.StepAction(body.Action), body.Comment)
	if err != nil {
		writeDomainError(w, "Failed to record decision", err)
		return
	}

	steps, _ := h.Store.StepsByRequest(ctx, req.ID, req.Attempt)
	writeJSON(w, http.StatusOK, toRequestDTO(req, steps))
}

// ListPendingRequests returns all requests awaiting a decision.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Store.PendingRequests(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pending requests", err)
		return
	}

	dtos := make([]LeaveRequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// OpenBalance creates a balance bucket, typically at onboarding or at the
// turn of the year.
func (h *Handler) OpenBalance(w http.ResponseWriter, r *http.Request) {
	var body OpenBalanceRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if !h.requireAdmin(w, leave.ActorID(body.ActorID)) {
		return
	}

	total, err := decimal.NewFromString(body.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total", err)
		return
	}
	carried := decimal.Zero
	if body.CarriedOver != "" {
		if carried, err = decimal.NewFromString(body.CarriedOver); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid carried_over", err)
			return
		}
	}

	key := leave.BalanceKey{
		EmployeeID:  leave.EmployeeID(body.EmployeeID),
		Year:        body.Year,
		BalanceType: body.BalanceType,
	}
	b := leave.NewBalance(key, total, carried)
	if err := h.Store.CreateBalance(r.Context(), b); err != nil {
		writeDomainError(w, "Failed to open balance", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBalanceDTO(&b))
}

// AdjustBalance applies a manual HR adjustment. The reason is part of the
// audit trail and is mandatory.
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var body AdjustBalanceRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if !h.requireAdmin(w, leave.ActorID(body.ActorID)) {
		return
	}

	delta, err := decimal.NewFromString(body.Delta)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid delta", err)
		return
	}

	key := leave.BalanceKey{
		EmployeeID:  leave.EmployeeID(body.EmployeeID),
		Year:        body.Year,
		BalanceType: body.BalanceType,
	}
	newTotal, _, err := h.Ledger.Adjust(r.Context(), key, delta, body.Reason, leave.ActorID(body.ActorID))
	if err != nil {
		writeDomainError(w, "Failed to adjust balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"total": newTotal.String()})
}

// Carryover moves unused days from one year's bucket into the next,
// capped by the office's carryover policy.
func (h *Handler) Carryover(w http.ResponseWriter, r *http.Request) {
	var body CarryoverRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if !h.requireAdmin(w, leave.ActorID(body.ActorID)) {
		return
	}

	days, err := decimal.NewFromString(body.Days)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid days", err)
		return
	}

	ctx := r.Context()
	emp, err := h.Store.GetEmployee(ctx, body.EmployeeID)
	if err != nil {
		writeDomainError(w, "Failed to resolve employee", err)
		return
	}
	office, err := h.Store.GetOffice(ctx, emp.OfficeID)
	if err != nil {
		writeDomainError(w, "Failed to resolve office", err)
		return
	}

	key := leave.BalanceKey{
		EmployeeID:  leave.EmployeeID(body.EmployeeID),
		Year:        body.Year,
		BalanceType: body.BalanceType,
	}
	mutation, err := h.Ledger.Carryover(ctx, key, days, office.CarryoverCap, leave.ActorID(body.ActorID))
	if err != nil {
		writeDomainError(w, "Failed to carry over", err)
		return
	}
	if mutation == nil {
		// Nothing to carry: zero or negative effective days.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toMutationDTO(*mutation))
}

// =============================================================================
// CONFIGURATION HANDLERS
// =============================================================================

// ListLeaveTypes returns all leave types.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListLeaveTypes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leave types", err)
		return
	}

	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = toLeaveTypeDTO(lt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveLeaveType creates or updates a leave type.
func (h *Handler) SaveLeaveType(w http.ResponseWriter, r *http.Request) {
	var body CreateLeaveTypeRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	threshold := decimal.Zero
	if body.AttachmentFromDays != "" {
		var err error
		if threshold, err = decimal.NewFromString(body.AttachmentFromDays); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid attachment_from_days", err)
			return
		}
	}

	lt := leave.LeaveTypeConfig{
		ID:                 leave.LeaveTypeID(body.ID),
		Code:               body.Code,
		Labels:             body.Labels,
		Color:              body.Color,
		Office:             leave.OfficeID(body.OfficeID),
		Active:             body.Active,
		DeductsFromBalance: body.DeductsFromBalance,
		BalanceType:        body.BalanceType,
		BalanceExempt:      body.BalanceExempt,
		RequiresAttachment: body.RequiresAttachment,
		AttachmentFromDays: threshold,
	}
	if err := h.Store.SaveLeaveType(r.Context(), lt); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save leave type", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveTypeDTO(&lt))
}

// SaveOffice creates or updates an office.
func (h *Handler) SaveOffice(w http.ResponseWriter, r *http.Request) {
	var body CreateOfficeRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cap := decimal.Zero
	if body.CarryoverCap != "" {
		var err error
		if cap, err = decimal.NewFromString(body.CarryoverCap); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid carryover_cap", err)
			return
		}
	}
	allowance := decimal.Zero
	if body.DefaultAllowance != "" {
		var err error
		if allowance, err = decimal.NewFromString(body.DefaultAllowance); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid default_allowance", err)
			return
		}
	}

	office := sqlite.Office{
		ID:               body.ID,
		Name:             body.Name,
		Country:          body.Country,
		CarryoverCap:     cap,
		DefaultAllowance: allowance,
	}
	for _, d := range body.WorkingWeek {
		office.WorkingWeek = append(office.WorkingWeek, time.Weekday(d))
	}

	if err := h.Store.SaveOffice(r.Context(), office); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save office", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOfficeDTO(office))
}

// GetOffice returns one office.
func (h *Handler) GetOffice(w http.ResponseWriter, r *http.Request) {
	office, err := h.Store.GetOffice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get office", err)
		return
	}
	writeJSON(w, http.StatusOK, toOfficeDTO(*office))
}

// SaveWorkflowConfig creates or replaces an office's approval workflow.
func (h *Handler) SaveWorkflowConfig(w http.ResponseWriter, r *http.Request) {
	var body SaveWorkflowConfigRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	wf := leave.WorkflowConfig{
		ID:     body.ID,
		Office: leave.OfficeID(body.OfficeID),
		Mode:   leave.WorkflowMode(body.Mode),
	}
	for _, s := range body.Steps {
		wf.Steps = append(wf.Steps, leave.WorkflowStepConfig{
			StepOrder: s.StepOrder,
			StepType:  leave.StepType(s.StepType),
			Approver:  leave.ActorID(s.Approver),
			Required:  s.Required,
		})
	}

	if err := h.Store.SaveWorkflowConfig(r.Context(), wf); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save workflow", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkflowDTO(&wf))
}

// GetWorkflowConfig returns the workflow for an office.
func (h *Handler) GetWorkflowConfig(w http.ResponseWriter, r *http.Request) {
	wf, err := h.Store.WorkflowConfigForOffice(r.Context(), chi.URLParam(r, "officeID"))
	if err != nil {
		writeDomainError(w, "Failed to get workflow", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkflowDTO(wf))
}

// ListHolidays returns the holidays visible to an office.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	officeID := r.URL.Query().Get("office_id")
	holidays, err := h.Store.Holidays(r.Context(), officeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}

	dtos := make([]HolidayDTO, len(holidays))
	for i, hd := range holidays {
		dtos[i] = HolidayDTO{
			ID:       hd.ID,
			OfficeID: string(hd.Office),
			Date:     hd.Date.String(),
			Name:     hd.Name,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var body CreateHolidayRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, _ := leave.ParseDate(body.Date)
	hd := leave.Holiday{
		ID:     body.ID,
		Office: leave.OfficeID(body.OfficeID),
		Date:   date,
		Name:   body.Name,
	}
	if err := h.Store.SaveHoliday(r.Context(), hd); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, HolidayDTO{
		ID: hd.ID, OfficeID: body.OfficeID, Date: hd.Date.String(), Name: hd.Name,
	})
}

// DeleteHoliday removes a holiday.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CALCULATOR
// =============================================================================

// PreviewWorkingDays answers "how many days would this range cost" without
// creating anything.
// GET /api/working-days?office_id=&start=&end=&start_half=&end_half=
func (h *Handler) PreviewWorkingDays(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	start, err := leave.ParseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (use YYYY-MM-DD)", err)
		return
	}
	end, err := leave.ParseDate(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end (use YYYY-MM-DD)", err)
		return
	}

	week := leave.DefaultWorkingWeek()
	holidays := leave.HolidaySet{}
	if officeID := q.Get("office_id"); officeID != "" {
		if week, err = h.Store.WorkingWeekFor(ctx, officeID); err != nil {
			writeDomainError(w, "Failed to resolve office", err)
			return
		}
		if holidays, err = h.Store.HolidaySetFor(ctx, officeID); err != nil {
			writeDomainError(w, "Failed to resolve holidays", err)
			return
		}
	}

	days, err := leave.WorkingDays(start, end,
		halfDayOrFull(q.Get("start_half")), halfDayOrFull(q.Get("end_half")), week, holidays)
	if err != nil {
		writeDomainError(w, "Failed to compute working days", err)
		return
	}

	writeJSON(w, http.StatusOK, WorkingDaysResponse{
		StartDate: start.String(),
		EndDate:   end.String(),
		Days:      days.String(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func toEmployeeDTO(e sqlite.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:       e.ID,
		Name:     e.Name,
		Email:    e.Email,
		OfficeID: e.OfficeID,
		HireDate: e.HireDate.Format("2006-01-02"),
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toOfficeDTO(o sqlite.Office) OfficeDTO {
	dto := OfficeDTO{
		ID:               o.ID,
		Name:             o.Name,
		Country:          o.Country,
		CarryoverCap:     o.CarryoverCap.String(),
		DefaultAllowance: o.DefaultAllowance.String(),
	}
	for _, d := range o.WorkingWeek {
		dto.WorkingWeek = append(dto.WorkingWeek, int(d))
	}
	return dto
}

func toWorkflowDTO(wf *leave.WorkflowConfig) WorkflowConfigDTO {
	dto := WorkflowConfigDTO{
		ID:       wf.ID,
		OfficeID: string(wf.Office),
		Mode:     string(wf.Mode),
	}
	for _, s := range wf.Steps {
		dto.Steps = append(dto.Steps, WorkflowStepDTO{
			StepOrder: s.StepOrder,
			StepType:  string(s.StepType),
			Approver:  string(s.Approver),
			Required:  s.Required,
		})
	}
	return dto
}

func halfDayOrFull(s string) leave.HalfDay {
	if s == "" {
		return leave.FullDay
	}
	return leave.HalfDay(s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case leave.IsForbidden(err):
		writeError(w, http.StatusForbidden, message, err)
	case leave.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case leave.IsRetryable(err):
		writeError(w, http.StatusServiceUnavailable, message, err)
	case leave.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
