package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"trayline/internal/engine"
	"trayline/internal/engine/auth"
	"trayline/internal/repo"
)

func taskFilters(prep, delivery string) repo.TaskFilters {
	return repo.TaskFilters{
		PreparationStatus: prep,
		DeliveryStatus:    delivery,
	}
}

func registerMealTasks(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-meal-task",
		Method:        http.MethodPost,
		Path:          "/meal-tasks",
		Summary:       "Create meal task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateMealTaskRequest `json:"body"`
	}) (*struct {
		Body MealTaskResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTaskCreate); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateMealTask(ctx, engine.CreateMealTaskInput{
			PatientID:   input.Body.PatientID,
			MealType:    input.Body.MealType,
			AssignedTo:  input.Body.AssignedTo,
			FoodChartID: input.Body.FoodChartID,
		}, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MealTaskResponse `json:"body"`
		}{Body: mealTaskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-meal-tasks",
		Method:      http.MethodGet,
		Path:        "/meal-tasks-all",
		Summary:     "List all meal tasks",
	}, func(ctx context.Context, input *struct {
		PreparationStatus string `query:"preparation_status" enum:",pending,in_progress,prepared"`
		DeliveryStatus    string `query:"delivery_status" enum:",pending,out_for_delivery,delivered"`
	}) (*struct {
		Body []MealTaskResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		tasks, err := e.ListMealTasks(ctx, taskFilters(input.PreparationStatus, input.DeliveryStatus))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MealTaskResponse `json:"body"`
		}{Body: mapMealTasks(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-meal-task",
		Method:      http.MethodGet,
		Path:        "/meal-tasks/{id}",
		Summary:     "Get meal task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body MealTaskResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		t, err := e.GetMealTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MealTaskResponse `json:"body"`
		}{Body: mealTaskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assigned-meal-tasks",
		Method:      http.MethodGet,
		Path:        "/assigned-meal-tasks/{user_id}",
		Summary:     "List tasks assigned to a pantry user",
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct {
		Body []MealTaskResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		tasks, err := e.AssignedMealTasks(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MealTaskResponse `json:"body"`
		}{Body: mapMealTasks(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "prepared-meal-tasks",
		Method:      http.MethodGet,
		Path:        "/prepared-meal-tasks",
		Summary:     "List tasks whose preparation is done",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []MealTaskResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		tasks, err := e.PreparedMealTasks(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MealTaskResponse `json:"body"`
		}{Body: mapMealTasks(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-preparation-status",
		Method:      http.MethodPut,
		Path:        "/meal-tasks/{id}/status",
		Summary:     "Set preparation status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                      `path:"id"`
		Body SetPreparationStatusRequest `json:"body"`
	}) (*struct {
		Body MealTaskResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTaskPrepare); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.SetPreparationStatus(ctx, input.ID, input.Body.PreparationStatus, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MealTaskResponse `json:"body"`
		}{Body: mealTaskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-delivery-personnel",
		Method:      http.MethodPut,
		Path:        "/assign-delivery-personnel/{task_id}",
		Summary:     "Assign delivery personnel",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string                         `path:"task_id"`
		Body   AssignDeliveryPersonnelRequest `json:"body"`
	}) (*struct {
		Body MealTaskResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTaskAssign); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.AssignDeliveryPersonnel(ctx, input.TaskID, input.Body.DeliveryPersonnelID, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MealTaskResponse `json:"body"`
		}{Body: mealTaskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-as-delivered",
		Method:      http.MethodPut,
		Path:        "/meal-tasks/{id}/mark-as-delivered",
		Summary:     "Mark meal task delivered",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body MarkDeliveredRequest `json:"body"`
	}) (*struct {
		Body MealTaskResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTaskDeliver); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.MarkDelivered(ctx, input.ID, input.Body.DeliveryNotes, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MealTaskResponse `json:"body"`
		}{Body: mealTaskResponse(t)}, nil
	})
}
