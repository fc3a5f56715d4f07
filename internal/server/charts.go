package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"trayline/internal/dietchart"
	"trayline/internal/engine"
	"trayline/internal/engine/auth"
)

func registerFoodCharts(api huma.API, e *engine.Engine, gen dietchart.Generator) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-food-chart",
		Method:        http.MethodPost,
		Path:          "/food-charts",
		Summary:       "Create food chart",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateFoodChartRequest `json:"body"`
	}) (*struct {
		Body FoodChartResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapChartsManage); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateFoodChart(ctx, engine.FoodChartInput{
			PatientID: input.Body.PatientID,
			Morning:   mealFromRequest(input.Body.Morning),
			Evening:   mealFromRequest(input.Body.Evening),
			Night:     mealFromRequest(input.Body.Night),
		}, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FoodChartResponse `json:"body"`
		}{Body: foodChartResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-food-charts",
		Method:      http.MethodGet,
		Path:        "/food-charts",
		Summary:     "List food charts",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []FoodChartResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		charts, err := e.ListFoodCharts(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []FoodChartResponse `json:"body"`
		}{Body: mapFoodCharts(charts)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-food-chart",
		Method:      http.MethodGet,
		Path:        "/food-charts/{id}",
		Summary:     "Get food chart",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body FoodChartResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		c, err := e.GetFoodChart(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FoodChartResponse `json:"body"`
		}{Body: foodChartResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-patient-food-chart",
		Method:      http.MethodGet,
		Path:        "/patients/{id}/food-chart",
		Summary:     "Get a patient's food chart",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body FoodChartResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		c, err := e.GetFoodChartByPatient(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FoodChartResponse `json:"body"`
		}{Body: foodChartResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-food-chart",
		Method:      http.MethodPatch,
		Path:        "/food-charts/{id}",
		Summary:     "Update food chart meals",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body UpdateFoodChartRequest `json:"body"`
	}) (*struct {
		Body FoodChartResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapChartsManage); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateFoodChart(ctx, input.ID,
			mealFromRequest(input.Body.Morning),
			mealFromRequest(input.Body.Evening),
			mealFromRequest(input.Body.Night),
			principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FoodChartResponse `json:"body"`
		}{Body: foodChartResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-food-chart",
		Method:      http.MethodDelete,
		Path:        "/food-charts/{id}",
		Summary:     "Delete food chart",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapChartsManage); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteFoodChart(ctx, input.ID, principal.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "deleted"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "generate-diet-chart",
		Method:      http.MethodPost,
		Path:        "/patients/{id}/generate-diet-chart",
		Summary:     "Draft a diet chart for a patient",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body struct {
			Draft   string            `json:"draft"`
			Morning MealResponse      `json:"morningMeal"`
			Evening MealResponse      `json:"eveningMeal"`
			Night   MealResponse      `json:"nightMeal"`
			Patient map[string]string `json:"patient"`
		} `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapChartsManage); err != nil {
			return nil, handleError(err)
		}
		p, err := e.GetPatient(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if gen == nil {
			return nil, newAPIError(http.StatusBadGateway, "generator_unavailable", "diet chart generator is not configured", nil)
		}
		draft, err := gen.Generate(ctx, dietchart.Prompt(p))
		if err != nil {
			return nil, newAPIError(http.StatusBadGateway, "generator_unavailable", err.Error(), nil)
		}
		chart := dietchart.Parse(draft)
		out := &struct {
			Body struct {
				Draft   string            `json:"draft"`
				Morning MealResponse      `json:"morningMeal"`
				Evening MealResponse      `json:"eveningMeal"`
				Night   MealResponse      `json:"nightMeal"`
				Patient map[string]string `json:"patient"`
			} `json:"body"`
		}{}
		out.Body.Draft = draft
		out.Body.Morning = mealResponse(chart.Morning)
		out.Body.Evening = mealResponse(chart.Evening)
		out.Body.Night = mealResponse(chart.Night)
		out.Body.Patient = map[string]string{"id": p.ID, "name": p.Name}
		return out, nil
	})
}
