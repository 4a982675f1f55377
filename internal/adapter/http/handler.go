package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/workflowiq/internal/app"
	"github.com/neomorfeo/workflowiq/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// BackfillEnqueuer schedules async repair passes. Implemented by the river
// publisher; abstracted here so the handler does not depend on the queue.
type BackfillEnqueuer interface {
	EnqueueBackfill(ctx context.Context, tenantCode, workflowCode string) error
}

// ScopeHeaders carries the tenant and actor identity on every request.
// An absent tenant header scopes the request to the system database.
type ScopeHeaders struct {
	TenantCode string `header:"X-Tenant-Code" required:"false" doc:"Tenant code; omit for system scope"`
	Operator   string `header:"X-Operator" required:"false" doc:"Acting user name"`
	Roles      string `header:"X-Roles" required:"false" doc:"Acting user roles, comma separated"`
}

func (h ScopeHeaders) scope(ctx context.Context) context.Context {
	ctx = domain.WithTenant(ctx, h.TenantCode)
	if h.Operator != "" || h.Roles != "" {
		var roles []string
		for _, r := range strings.Split(h.Roles, ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}
		ctx = domain.WithActor(ctx, domain.Actor{Name: h.Operator, Roles: roles})
	}
	return ctx
}

// HistoryEntryResponse is the API representation of one history entry.
type HistoryEntryResponse struct {
	FromState string         `json:"from_state" doc:"State before the transition; empty for the init entry"`
	ToState   string         `json:"to_state" doc:"State after the transition"`
	Event     string         `json:"event" doc:"Event that caused the transition"`
	Operator  string         `json:"operator" doc:"Who fired the event"`
	Reason    string         `json:"reason,omitempty" doc:"Free-form reason"`
	Timestamp string         `json:"timestamp" doc:"Transition time (ISO 8601)"`
	Metadata  map[string]any `json:"metadata,omitempty" doc:"Request variables recorded with the transition"`
}

// InstanceResponse is the API representation of a workflow instance.
type InstanceResponse struct {
	ID           string                 `json:"id" doc:"Instance identifier (hex)"`
	WorkflowID   string                 `json:"workflow_id" doc:"Definition identifier (hex)"`
	EntityType   string                 `json:"entity_type" doc:"Kind of entity the workflow tracks"`
	EntityID     string                 `json:"entity_id" doc:"Entity identifier"`
	CurrentState string                 `json:"current_state" doc:"Current state code"`
	Version      int64                  `json:"version" doc:"Optimistic concurrency version"`
	Variables    map[string]any         `json:"variables,omitempty" doc:"Accumulated instance variables"`
	History      []HistoryEntryResponse `json:"history" doc:"Ordered transition history"`
	CreatedAt    string                 `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt    string                 `json:"updated_at" doc:"Last transition timestamp (ISO 8601)"`
}

func toInstanceResponse(inst *domain.Instance) InstanceResponse {
	history := make([]HistoryEntryResponse, len(inst.History))
	for i, e := range inst.History {
		history[i] = HistoryEntryResponse{
			FromState: e.FromState,
			ToState:   e.ToState,
			Event:     e.Event,
			Operator:  e.Operator,
			Reason:    e.Reason,
			Timestamp: e.Timestamp.Format(timeFormat),
			Metadata:  e.Metadata,
		}
	}
	return InstanceResponse{
		ID:           inst.ID.Hex(),
		WorkflowID:   inst.WorkflowID.Hex(),
		EntityType:   inst.EntityType,
		EntityID:     inst.EntityID,
		CurrentState: inst.CurrentState,
		Version:      inst.Version,
		Variables:    inst.Variables,
		History:      history,
		CreatedAt:    inst.CreatedAt.Format(timeFormat),
		UpdatedAt:    inst.UpdatedAt.Format(timeFormat),
	}
}

// TransitionResponse is the API representation of an available transition.
type TransitionResponse struct {
	ID           string `json:"id" doc:"Transition identifier within the definition"`
	Name         string `json:"name" doc:"Display name"`
	ToState      string `json:"to_state" doc:"Target state code"`
	Event        string `json:"event" doc:"Event that triggers this transition"`
	RequiredRole string `json:"required_role,omitempty" doc:"Role needed to fire this transition"`
}

// --- Init workflow ---

type InitWorkflowInput struct {
	ScopeHeaders
	ID   string `path:"id" doc:"Order ID (hex)"`
	Body struct {
		WorkflowCode string `json:"workflow_code" minLength:"1" maxLength:"100" doc:"Definition code to attach"`
	}
}

type InitWorkflowOutput struct {
	Body InstanceResponse
}

// --- Fire event ---

type FireEventInput struct {
	ScopeHeaders
	ID   string `path:"id" doc:"Order ID (hex)"`
	Body struct {
		Event     string         `json:"event" minLength:"1" doc:"Event to fire"`
		Reason    string         `json:"reason,omitempty" doc:"Free-form reason recorded in history"`
		Variables map[string]any `json:"variables,omitempty" doc:"Request variables, visible to guards and stored with the entry"`
	}
}

type FireEventOutput struct {
	Body InstanceResponse
}

// --- Get instance ---

type GetInstanceInput struct {
	ScopeHeaders
	ID string `path:"id" doc:"Order ID (hex)"`
}

type GetInstanceOutput struct {
	Body InstanceResponse
}

// --- Available transitions ---

type AvailableTransitionsInput struct {
	ScopeHeaders
	ID string `path:"id" doc:"Order ID (hex)"`
}

type AvailableTransitionsOutput struct {
	Body []TransitionResponse
}

// --- Backfill ---

type BackfillInput struct {
	ScopeHeaders
	Body struct {
		WorkflowCode string `json:"workflow_code,omitempty" doc:"Definition code to repair against; defaults to the built-in order workflow"`
		Async        bool   `json:"async,omitempty" doc:"Enqueue the repair instead of running it inline"`
	}
}

type BackfillOutput struct {
	Status int
	Body   app.BackfillReport
}

// Register adds all workflow API routes to the Huma API.
func Register(api huma.API, svc *app.WorkflowService, enqueuer BackfillEnqueuer) {
	huma.Register(api, huma.Operation{
		OperationID: "init-workflow",
		Method:      http.MethodPost,
		Path:        "/api/v1/orders/{id}/workflow",
		Summary:     "Attach a workflow instance to an order",
		Tags:        []string{"Workflows"},
	}, func(ctx context.Context, input *InitWorkflowInput) (*InitWorkflowOutput, error) {
		ctx = input.scope(ctx)
		orderID, err := domain.ParseID(input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		inst, err := svc.InitWorkflow(ctx, orderID, input.Body.WorkflowCode)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &InitWorkflowOutput{Body: toInstanceResponse(inst)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "fire-event",
		Method:      http.MethodPost,
		Path:        "/api/v1/orders/{id}/events",
		Summary:     "Fire a workflow event for an order",
		Tags:        []string{"Workflows"},
	}, func(ctx context.Context, input *FireEventInput) (*FireEventOutput, error) {
		ctx = input.scope(ctx)
		orderID, err := domain.ParseID(input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		inst, err := svc.FireEvent(ctx, orderID, input.Body.Event, input.Body.Reason, input.Body.Variables)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &FireEventOutput{Body: toInstanceResponse(inst)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workflow-instance",
		Method:      http.MethodGet,
		Path:        "/api/v1/orders/{id}/workflow",
		Summary:     "Get the order's workflow instance",
		Tags:        []string{"Workflows"},
	}, func(ctx context.Context, input *GetInstanceInput) (*GetInstanceOutput, error) {
		ctx = input.scope(ctx)
		orderID, err := domain.ParseID(input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		inst, err := svc.GetInstance(ctx, orderID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetInstanceOutput{Body: toInstanceResponse(inst)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "available-transitions",
		Method:      http.MethodGet,
		Path:        "/api/v1/orders/{id}/transitions",
		Summary:     "List transitions available from the current state",
		Tags:        []string{"Workflows"},
	}, func(ctx context.Context, input *AvailableTransitionsInput) (*AvailableTransitionsOutput, error) {
		ctx = input.scope(ctx)
		orderID, err := domain.ParseID(input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		transitions, err := svc.AvailableTransitions(ctx, orderID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]TransitionResponse, len(transitions))
		for i, tr := range transitions {
			resp[i] = TransitionResponse{
				ID:           tr.ID,
				Name:         tr.Name,
				ToState:      tr.ToState,
				Event:        tr.Event,
				RequiredRole: tr.RequiredRole,
			}
		}
		return &AvailableTransitionsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "backfill-workflows",
		Method:      http.MethodPost,
		Path:        "/api/v1/workflows/backfill",
		Summary:     "Repair orders with missing or inconsistent workflow instances",
		Tags:        []string{"Workflows"},
	}, func(ctx context.Context, input *BackfillInput) (*BackfillOutput, error) {
		ctx = input.scope(ctx)
		if input.Body.Async {
			if enqueuer == nil {
				return nil, huma.Error501NotImplemented("async backfill is not configured")
			}
			if err := enqueuer.EnqueueBackfill(ctx, input.TenantCode, input.Body.WorkflowCode); err != nil {
				return nil, toHumaError(err)
			}
			return &BackfillOutput{Status: http.StatusAccepted}, nil
		}
		report, err := svc.Backfill(ctx, input.Body.WorkflowCode)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &BackfillOutput{Status: http.StatusOK, Body: *report}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	var malformed *domain.MalformedIdentifierError
	if errors.As(err, &malformed) {
		return huma.Error400BadRequest(malformed.Error())
	}

	var unknownTenant *domain.UnknownTenantError
	if errors.As(err, &unknownTenant) {
		return huma.Error404NotFound(unknownTenant.Error())
	}

	if errors.Is(err, domain.ErrEntityNotFound) ||
		errors.Is(err, domain.ErrInstanceNotFound) ||
		errors.Is(err, domain.ErrDefinitionNotFound) {
		return huma.Error404NotFound(err.Error())
	}

	var noActive *domain.NoActiveDefinitionError
	if errors.As(err, &noActive) {
		return huma.Error404NotFound(noActive.Error())
	}

	var forbidden *domain.ForbiddenError
	if errors.As(err, &forbidden) {
		return huma.Error403Forbidden(forbidden.Error())
	}

	if errors.Is(err, domain.ErrConcurrentModification) {
		return huma.Error409Conflict("instance was modified concurrently, retry the request")
	}

	if domain.IsRejection(err) {
		return huma.Error422UnprocessableEntity(err.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
