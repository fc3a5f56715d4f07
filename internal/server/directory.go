package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"trayline/internal/domain"
	"trayline/internal/engine"
	"trayline/internal/engine/auth"
	"trayline/internal/repo"
)

func registerPatients(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-patient",
		Method:        http.MethodPost,
		Path:          "/patients",
		Summary:       "Create patient",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body CreatePatientRequest `json:"body"`
	}) (*struct {
		Body PatientResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapPatientsManage); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreatePatient(ctx, engine.CreatePatientInput{
			Name:             input.Body.Name,
			Age:              input.Body.Age,
			Gender:           input.Body.Gender,
			Diseases:         input.Body.Diseases,
			Allergies:        input.Body.Allergies,
			RoomNumber:       input.Body.RoomNumber,
			BedNumber:        input.Body.BedNumber,
			FloorNumber:      input.Body.FloorNumber,
			ContactInfo:      input.Body.ContactInfo,
			EmergencyContact: input.Body.EmergencyContact,
		}, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PatientResponse `json:"body"`
		}{Body: patientResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-patients",
		Method:      http.MethodGet,
		Path:        "/patients",
		Summary:     "List patients",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []PatientResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		patients, err := e.ListPatients(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []PatientResponse `json:"body"`
		}{Body: mapPatients(patients)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-patient",
		Method:      http.MethodGet,
		Path:        "/patients/{id}",
		Summary:     "Get patient",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body PatientResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		p, err := e.GetPatient(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PatientResponse `json:"body"`
		}{Body: patientResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-patient",
		Method:      http.MethodPatch,
		Path:        "/patients/{id}",
		Summary:     "Update patient",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdatePatientRequest `json:"body"`
	}) (*struct {
		Body PatientResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapPatientsManage); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdatePatient(ctx, input.ID, repo.PatientUpdate{
			Name:             input.Body.Name,
			Age:              input.Body.Age,
			Gender:           input.Body.Gender,
			Diseases:         input.Body.Diseases,
			Allergies:        input.Body.Allergies,
			RoomNumber:       input.Body.RoomNumber,
			BedNumber:        input.Body.BedNumber,
			FloorNumber:      input.Body.FloorNumber,
			ContactInfo:      input.Body.ContactInfo,
			EmergencyContact: input.Body.EmergencyContact,
		}, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PatientResponse `json:"body"`
		}{Body: patientResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-patient",
		Method:      http.MethodDelete,
		Path:        "/patients/{id}",
		Summary:     "Delete patient",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapPatientsManage); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeletePatient(ctx, input.ID, principal.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "deleted"}}, nil
	})
}

func registerUsers(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapUsersManage); err != nil {
			return nil, handleError(err)
		}
		users, err := e.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: mapUsers(users)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		u, err := e.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPatch,
		Path:        "/users/{id}",
		Summary:     "Update user",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateUserRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapUsersManage); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		upd := repo.UserUpdate{
			Name:  input.Body.Name,
			Email: input.Body.Email,
		}
		if input.Body.Role != nil {
			role := domain.Role(*input.Body.Role)
			upd.Role = &role
		}
		u, err := e.UpdateUser(ctx, input.ID, upd, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-delivery-personnel",
		Method:      http.MethodGet,
		Path:        "/delivery-personnel",
		Summary:     "List delivery personnel",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		users, err := e.ListDeliveryPersonnel(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: mapUsers(users)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pantry-staff",
		Method:      http.MethodGet,
		Path:        "/pantry-staff",
		Summary:     "List pantry staff",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		users, err := e.ListPantryStaff(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: mapUsers(users)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "notify-user",
		Method:      http.MethodPost,
		Path:        "/users/{id}/notify",
		Summary:     "Send a notification to a user",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body NotifyRequest `json:"body"`
	}) (*struct {
		Body NotificationResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapUsersManage); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.NotifyUser(ctx, input.ID, input.Body.Message, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NotificationResponse `json:"body"`
		}{Body: notificationResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/users/{id}/notifications",
		Summary:     "List a user's notifications",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []NotificationResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListNotifications(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []NotificationResponse `json:"body"`
		}{Body: mapNotifications(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notification-read",
		Method:      http.MethodPost,
		Path:        "/users/{id}/notifications/{notification_id}/read",
		Summary:     "Mark a notification read",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID             string `path:"id"`
		NotificationID string `path:"notification_id"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapTasksRead); err != nil {
			return nil, handleError(err)
		}
		if err := e.MarkNotificationRead(ctx, input.ID, input.NotificationID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "read"}}, nil
	})
}

func registerAuthRoutes(api huma.API, e *engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Register a user",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body RegisterRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, auth.CapUsersManage); err != nil {
			return nil, handleError(err)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.RegisterUser(ctx, engine.RegisterUserInput{
			Name:     input.Body.Name,
			Email:    input.Body.Email,
			Password: input.Body.Password,
			Role:     domain.Role(input.Body.Role),
		}, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		u, err := e.Authenticate(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		token, err := IssueToken(authCfg.JWTSecret, u.ID, u.Role, authCfg.tokenTTL(), e.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token, User: userResponse(u)}}, nil
	})
}
