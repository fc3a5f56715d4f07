package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trayline/internal/alerts"
	"trayline/internal/app"
	"trayline/internal/config"
	"trayline/internal/db"
	"trayline/internal/dietchart"
	"trayline/internal/domain"
	"trayline/internal/engine"
	"trayline/internal/migrate"
	"trayline/internal/repo"
	"trayline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Trayline CLI",
	Long: `Trayline coordinates hospital food service: patients, food charts,
meal tasks, and the people who prepare and deliver them.
- Workspace: your .trayline directory holding the database; trayline.yml holds thresholds.
- Patients: who eats, where they are, what they must not eat.
- Food charts: the three daily meals planned per patient.
- Meal tasks: one tray for one patient and slot; preparation and delivery move on separate axes.
- Alerts: derived on demand when a task sits too long; nothing is stored.
- Event log: diary of changes, view with 'tl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TRAYLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-admin", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(patientCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(chartCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var facility string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default trayline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(facility)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&facility, "facility", "default-facility", "facility id")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func patientCmd() *cobra.Command {
	p := &cobra.Command{Use: "patient", Short: "Manage patients"}
	p.AddCommand(patientCreateCmd())
	p.AddCommand(patientListCmd())
	p.AddCommand(patientShowCmd())
	p.AddCommand(patientUpdateCmd())
	p.AddCommand(patientDeleteCmd())
	return p
}

func patientCreateCmd() *cobra.Command {
	var in engine.CreatePatientInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				p, err := e.CreatePatient(ctx, in, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "patient name")
	cmd.Flags().IntVar(&in.Age, "age", 0, "age")
	cmd.Flags().StringVar(&in.Gender, "gender", "", "gender")
	cmd.Flags().StringArrayVar(&in.Diseases, "disease", nil, "disease (repeatable)")
	cmd.Flags().StringArrayVar(&in.Allergies, "allergy", nil, "allergy (repeatable)")
	cmd.Flags().StringVar(&in.RoomNumber, "room", "", "room number")
	cmd.Flags().StringVar(&in.BedNumber, "bed", "", "bed number")
	cmd.Flags().StringVar(&in.FloorNumber, "floor", "", "floor number")
	cmd.Flags().StringVar(&in.ContactInfo, "contact", "", "contact info")
	cmd.Flags().StringVar(&in.EmergencyContact, "emergency-contact", "", "emergency contact")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("age")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("bed")
	_ = cmd.MarkFlagRequired("floor")
	return cmd
}

func patientListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				patients, err := e.ListPatients(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(patients)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Age", "Room", "Bed", "Floor", "Allergies"})
				for _, p := range patients {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Age, p.RoomNumber, p.BedNumber, p.FloorNumber, strings.Join(p.Allergies, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func patientShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <patient-id>",
		Short: "Show a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				p, err := e.GetPatient(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func patientUpdateCmd() *cobra.Command {
	var name, gender, room, bed, floor, contact, emergency string
	var age int
	var diseases, allergies []string
	cmd := &cobra.Command{
		Use:   "update <patient-id>",
		Short: "Update a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upd := repo.PatientUpdate{Diseases: diseases, Allergies: allergies}
			if cmd.Flags().Changed("name") {
				upd.Name = &name
			}
			if cmd.Flags().Changed("age") {
				upd.Age = &age
			}
			if cmd.Flags().Changed("gender") {
				upd.Gender = &gender
			}
			if cmd.Flags().Changed("room") {
				upd.RoomNumber = &room
			}
			if cmd.Flags().Changed("bed") {
				upd.BedNumber = &bed
			}
			if cmd.Flags().Changed("floor") {
				upd.FloorNumber = &floor
			}
			if cmd.Flags().Changed("contact") {
				upd.ContactInfo = &contact
			}
			if cmd.Flags().Changed("emergency-contact") {
				upd.EmergencyContact = &emergency
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				p, err := e.UpdatePatient(ctx, args[0], upd, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "patient name")
	cmd.Flags().IntVar(&age, "age", 0, "age")
	cmd.Flags().StringVar(&gender, "gender", "", "gender")
	cmd.Flags().StringArrayVar(&diseases, "disease", nil, "disease (repeatable, replaces list)")
	cmd.Flags().StringArrayVar(&allergies, "allergy", nil, "allergy (repeatable, replaces list)")
	cmd.Flags().StringVar(&room, "room", "", "room number")
	cmd.Flags().StringVar(&bed, "bed", "", "bed number")
	cmd.Flags().StringVar(&floor, "floor", "", "floor number")
	cmd.Flags().StringVar(&contact, "contact", "", "contact info")
	cmd.Flags().StringVar(&emergency, "emergency-contact", "", "emergency contact")
	return cmd
}

func patientDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <patient-id>",
		Short: "Delete a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.DeletePatient(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "Manage staff accounts"}
	u.AddCommand(userRegisterCmd())
	u.AddCommand(userListCmd())
	u.AddCommand(userShowCmd())
	u.AddCommand(userUpdateCmd())
	u.AddCommand(userByRoleCmd("delivery-personnel", "List delivery personnel", domain.RoleDeliveryPersonnel))
	u.AddCommand(userByRoleCmd("pantry-staff", "List pantry staff", domain.RolePantryStaff))
	return u
}

func userRegisterCmd() *cobra.Command {
	var in engine.RegisterUserInput
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Role = domain.Role(role)
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				u, err := e.RegisterUser(ctx, in, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (min 8 chars)")
	cmd.Flags().StringVar(&role, "role", "", "admin | pantry_staff | delivery_personnel")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List staff accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				users, err := e.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func userShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a staff account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				u, err := e.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	return cmd
}

func userUpdateCmd() *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Update a staff account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upd := repo.UserUpdate{}
			if cmd.Flags().Changed("name") {
				upd.Name = &name
			}
			if cmd.Flags().Changed("email") {
				upd.Email = &email
			}
			if cmd.Flags().Changed("role") {
				r := domain.Role(role)
				upd.Role = &r
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				u, err := e.UpdateUser(ctx, args[0], upd, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&role, "role", "", "admin | pantry_staff | delivery_personnel")
	return cmd
}

func userByRoleCmd(use, short string, role domain.Role) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				users, err := e.Repo.ListUsersByRole(ctx, role)
				if err != nil {
					return err
				}
				return printJSONOrTable(users)
			})
		},
	}
	return cmd
}

func chartCmd() *cobra.Command {
	c := &cobra.Command{Use: "chart", Short: "Manage food charts"}
	c.AddCommand(chartCreateCmd())
	c.AddCommand(chartListCmd())
	c.AddCommand(chartShowCmd())
	c.AddCommand(chartForPatientCmd())
	c.AddCommand(chartUpdateCmd())
	c.AddCommand(chartDeleteCmd())
	c.AddCommand(chartDraftCmd())
	return c
}

func parseMealFlag(raw string) (domain.Meal, error) {
	var m domain.Meal
	if raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, fmt.Errorf("invalid meal JSON %q: %w", raw, err)
	}
	return m, nil
}

func chartCreateCmd() *cobra.Command {
	var patientID, morning, evening, night string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a food chart",
		Long:  `Meals are JSON objects like '{"ingredients":["rice","dal"],"instructions":"low salt"}'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMealFlag(morning)
			if err != nil {
				return err
			}
			ev, err := parseMealFlag(evening)
			if err != nil {
				return err
			}
			n, err := parseMealFlag(night)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				chart, err := e.CreateFoodChart(ctx, engine.FoodChartInput{
					PatientID: patientID,
					Morning:   m,
					Evening:   ev,
					Night:     n,
				}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(chart)
			})
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id")
	cmd.Flags().StringVar(&morning, "morning", "", "morning meal JSON")
	cmd.Flags().StringVar(&evening, "evening", "", "evening meal JSON")
	cmd.Flags().StringVar(&night, "night", "", "night meal JSON")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

func chartListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List food charts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				charts, err := e.ListFoodCharts(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(charts)
			})
		},
	}
	return cmd
}

func chartShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <chart-id>",
		Short: "Show a food chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				chart, err := e.GetFoodChart(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(chart)
			})
		},
	}
	return cmd
}

func chartForPatientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "for-patient <patient-id>",
		Short: "Show the chart for a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				chart, err := e.GetFoodChartByPatient(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(chart)
			})
		},
	}
	return cmd
}

func chartUpdateCmd() *cobra.Command {
	var morning, evening, night string
	cmd := &cobra.Command{
		Use:   "update <chart-id>",
		Short: "Replace the meals of a chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMealFlag(morning)
			if err != nil {
				return err
			}
			ev, err := parseMealFlag(evening)
			if err != nil {
				return err
			}
			n, err := parseMealFlag(night)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				chart, err := e.UpdateFoodChart(ctx, args[0], m, ev, n, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(chart)
			})
		},
	}
	cmd.Flags().StringVar(&morning, "morning", "", "morning meal JSON")
	cmd.Flags().StringVar(&evening, "evening", "", "evening meal JSON")
	cmd.Flags().StringVar(&night, "night", "", "night meal JSON")
	return cmd
}

func chartDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <chart-id>",
		Short: "Delete a food chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.DeleteFoodChart(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func chartDraftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft <patient-id>",
		Short: "Draft a diet chart for a patient via the configured generator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				p, err := e.GetPatient(ctx, args[0])
				if err != nil {
					return err
				}
				gen := &dietchart.HTTPGenerator{
					URL:   e.Config.DietChart.GeneratorURL,
					Model: e.Config.DietChart.Model,
				}
				draft, err := gen.Generate(ctx, dietchart.Prompt(p))
				if err != nil {
					return err
				}
				chart := dietchart.Parse(draft)
				return printJSONOrTable(map[string]any{
					"draft":        draft,
					"morning_meal": chart.Morning,
					"evening_meal": chart.Evening,
					"night_meal":   chart.Night,
				})
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage meal tasks"}
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskListCmd())
	t.AddCommand(taskShowCmd())
	t.AddCommand(taskAssignedCmd())
	t.AddCommand(taskPreparedCmd())
	t.AddCommand(taskStatusCmd())
	t.AddCommand(taskAssignDeliveryCmd())
	t.AddCommand(taskDeliverCmd())
	return t
}

func taskCreateCmd() *cobra.Command {
	var patientID, mealType, assignedTo, chartID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a meal task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.CreateMealTask(ctx, engine.CreateMealTaskInput{
					PatientID:   patientID,
					MealType:    mealType,
					AssignedTo:  assignedTo,
					FoodChartID: optionalString(chartID),
				}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id")
	cmd.Flags().StringVar(&mealType, "meal", "", "morning | evening | night")
	cmd.Flags().StringVar(&assignedTo, "assign", "", "pantry staff user id")
	cmd.Flags().StringVar(&chartID, "chart", "", "food chart id")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("meal")
	_ = cmd.MarkFlagRequired("assign")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meal tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				tasks, err := e.ListMealTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTaskTable(tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.AssignedTo, "assigned-to", "", "pantry assignee filter")
	cmd.Flags().StringVar(&f.PreparationStatus, "prep", "", "preparation status filter")
	cmd.Flags().StringVar(&f.DeliveryStatus, "delivery", "", "delivery status filter")
	return cmd
}

func renderTaskTable(tasks []domain.MealTask) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Patient", "Meal", "Assigned", "Prep", "Delivery", "Courier"})
	for _, t := range tasks {
		courier := ""
		if t.DeliveryPersonnelID != nil {
			courier = *t.DeliveryPersonnelID
		}
		tw.AppendRow(table.Row{t.ID, t.PatientID, t.MealType, t.AssignedTo, t.PreparationStatus, t.DeliveryStatus, courier})
	}
	tw.Render()
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a meal task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.GetMealTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskAssignedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assigned <user-id>",
		Short: "List tasks assigned to a pantry user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				tasks, err := e.AssignedMealTasks(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTaskTable(tasks)
				return nil
			})
		},
	}
	return cmd
}

func taskPreparedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepared",
		Short: "List tasks whose preparation is done",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				tasks, err := e.PreparedMealTasks(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTaskTable(tasks)
				return nil
			})
		},
	}
	return cmd
}

func taskStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Set preparation status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.SetPreparationStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "set", "", "pending | in_progress | prepared")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

func taskAssignDeliveryCmd() *cobra.Command {
	var personnelID string
	cmd := &cobra.Command{
		Use:   "assign-delivery <task-id>",
		Short: "Assign delivery personnel to a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.AssignDeliveryPersonnel(ctx, args[0], personnelID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&personnelID, "personnel", "", "delivery personnel user id")
	_ = cmd.MarkFlagRequired("personnel")
	return cmd
}

func taskDeliverCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "deliver <task-id>",
		Short: "Mark a task delivered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var notesPtr *string
			if cmd.Flags().Changed("notes") {
				notesPtr = &notes
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.MarkDelivered(ctx, args[0], notesPtr, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "delivery notes")
	return cmd
}

func alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Derive delay alerts from current task state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				det := alerts.New(e.Repo, alerts.Config{
					PantryThreshold:   e.Config.PantryThreshold(),
					DeliveryThreshold: e.Config.DeliveryThreshold(),
				})
				items, err := det.Scan(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Kind", "Task", "Patient", "Assigned", "Minutes"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.Kind, a.TaskID, a.PatientName, a.AssignedName, a.ElapsedMinutes})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func notifyCmd() *cobra.Command {
	n := &cobra.Command{Use: "notify", Short: "Staff notifications"}
	n.AddCommand(notifySendCmd())
	n.AddCommand(notifyListCmd())
	n.AddCommand(notifyReadCmd())
	return n
}

func notifySendCmd() *cobra.Command {
	var userID, message string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a notification to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				n, err := e.NotifyUser(ctx, userID, message, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(n)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "target user id")
	cmd.Flags().StringVar(&message, "message", "", "message text")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func notifyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.ListNotifications(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func notifyReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <user-id> <notification-id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.MarkNotificationRead(ctx, args[0], args[1])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	l := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: tasks, charts, assignments, deliveries.",
	}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			cfg, err := app.Bootstrap(cmd.Context(), workspace, viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("TRAYLINE_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacy,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("TRAYLINE_JWT_SECRET is required for bearer auth")
			}
			det := alerts.New(e.Repo, alerts.Config{
				PantryThreshold:   cfg.PantryThreshold(),
				DeliveryThreshold: cfg.DeliveryThreshold(),
			})
			var gen dietchart.Generator
			if cfg.DietChart.GeneratorURL != "" {
				gen = &dietchart.HTTPGenerator{URL: cfg.DietChart.GeneratorURL, Model: cfg.DietChart.Model}
			}
			handler, err := server.New(server.Config{
				Engine:    e,
				Alerts:    det,
				Generator: gen,
				BasePath:  basePath,
				Auth:      authCfg,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Trayline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-actor", false, "accept X-Actor-Id header without auth")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	cfg, err := app.Bootstrap(ctx, workspace, viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
