package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"trayline/internal/alerts"
	"trayline/internal/engine"
	"trayline/internal/engine/auth"
)

func registerAlerts(api huma.API, e *engine.Engine, det *alerts.Detector) {
	huma.Register(api, huma.Operation{
		OperationID: "list-alerts",
		Method:      http.MethodGet,
		Path:        "/alerts",
		Summary:     "Derive delay alerts from current task state",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []AlertResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapAlertsRead); err != nil {
			return nil, handleError(err)
		}
		items, err := det.Scan(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []AlertResponse `json:"body"`
		}{Body: mapAlerts(items)}, nil
	})
}

func registerEvents(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List latest audit events",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapEventsRead); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.LatestEvents(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}
