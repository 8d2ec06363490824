// Command fleetctl administers the dispatch database: it creates dispatcher
// and driver accounts, registers cars and evaluates daily check compliance
// offline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ukydev/fleet-dispatch/internal/accounts"
	"github.com/ukydev/fleet-dispatch/internal/auth"
	"github.com/ukydev/fleet-dispatch/internal/compliance"
	"github.com/ukydev/fleet-dispatch/internal/config"
	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/export"
	"github.com/ukydev/fleet-dispatch/internal/logging"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// cli holds the flags shared by every command.
type cli struct {
	dbDriver string
	sqlDSN   string
	mongoURI string
}

// env is what a command runs against.
type env struct {
	cfg   *config.Config
	store *db.Store
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "fleetctl",
		Short:        "Administer the fleet dispatch service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.dbDriver, "db-driver", "", "Database driver (overrides DB_DRIVER)")
	root.PersistentFlags().StringVar(&c.sqlDSN, "sql-dsn", "", "SQL data source name (overrides SQL_DSN)")
	root.PersistentFlags().StringVar(&c.mongoURI, "mongo-uri", "", "MongoDB connection URI (overrides MONGO_URI)")

	root.AddCommand(c.createUserCmd(), c.createDriverCmd(), c.createCarCmd(), c.listCarsCmd(), c.complianceCmd())
	return root
}

// run opens the store for the duration of fn.
func (c *cli) run(fn func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if c.dbDriver != "" {
			cfg.DBDriver = c.dbDriver
		}
		if c.sqlDSN != "" {
			cfg.SQLDSN = c.sqlDSN
		}
		if c.mongoURI != "" {
			cfg.MongoURI = c.mongoURI
		}
		logging.Setup(cfg.LogLevel, cfg.LogFormat)

		store, err := db.Open(cmd.Context(), cfg.DBDriver, cfg.MongoURI, cfg.MongoDB, cfg.SQLDSN)
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", cfg.DBDriver, err)
		}
		defer store.Close(context.Background())

		return fn(cmd, &env{cfg: cfg, store: store}, args)
	}
}

func (e *env) accounts() *accounts.Service {
	return accounts.NewService(auth.NewService(e.cfg.JWTSecret, e.cfg.JWTExpiry), e.store.Users, e.store.Drivers)
}

func (c *cli) createUserCmd() *cobra.Command {
	var req models.RegisterRequest
	var role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a dispatcher account",
		Long: `Create an active dispatcher account for the dashboard.

Roles: admin, manager, operator, viewer.`,
		RunE: c.run(func(cmd *cobra.Command, e *env, _ []string) error {
			req.Role = models.Role(role)
			if err := validate.Struct(req); err != nil {
				return err
			}
			user, err := e.accounts().CreateUser(cmd.Context(), req)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{"user_id": user.ID, "role": user.Role}).Info("User created")
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s, %s)\n", user.ID, user.Username, user.Role)
			return nil
		}),
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "Login name (required)")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Initial password, at least 8 characters (required)")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&role, "role", string(models.RoleOperator), "Role")
	for _, name := range []string{"username", "email", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (c *cli) createDriverCmd() *cobra.Command {
	var req models.CreateDriverRequest
	cmd := &cobra.Command{
		Use:   "create-driver",
		Short: "Create a driver account for the mobile app",
		RunE: c.run(func(cmd *cobra.Command, e *env, _ []string) error {
			if err := validate.Struct(req); err != nil {
				return err
			}
			driver, err := e.accounts().CreateDriver(cmd.Context(), req)
			if err != nil {
				return err
			}
			log.WithField("driver_id", driver.ID).Info("Driver created")
			fmt.Fprintf(cmd.OutOrStdout(), "created driver %d (%s, %s)\n", driver.ID, driver.Name, driver.Phone)
			return nil
		}),
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Driver name (required)")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number used to log in (required)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Initial password, at least 8 characters (required)")
	for _, name := range []string{"name", "phone", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (c *cli) createCarCmd() *cobra.Command {
	var req models.CreateCarRequest
	cmd := &cobra.Command{
		Use:   "create-car",
		Short: "Register a car that missions and daily checks can refer to",
		RunE: c.run(func(cmd *cobra.Command, e *env, _ []string) error {
			req.PlateNumber = strings.TrimSpace(req.PlateNumber)
			if err := validate.Struct(req); err != nil {
				return err
			}
			car := &models.Car{
				PlateNumber: req.PlateNumber,
				Make:        req.Make,
				Model:       req.Model,
				Year:        req.Year,
				IsActive:    true,
				CreatedAt:   time.Now().UTC(),
			}
			if err := e.store.Cars.InsertCar(cmd.Context(), car); err != nil {
				return fmt.Errorf("failed to insert car: %w", err)
			}
			log.WithField("car_id", car.ID).Info("Car created")
			fmt.Fprintf(cmd.OutOrStdout(), "created car %d (%s)\n", car.ID, car.PlateNumber)
			return nil
		}),
	}
	cmd.Flags().StringVar(&req.PlateNumber, "plate", "", "Plate number (required)")
	cmd.Flags().StringVar(&req.Make, "make", "", "Manufacturer")
	cmd.Flags().StringVar(&req.Model, "model", "", "Model")
	cmd.Flags().IntVar(&req.Year, "year", 0, "Model year")
	_ = cmd.MarkFlagRequired("plate")
	return cmd
}

func (c *cli) listCarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-cars",
		Short: "List registered cars",
		RunE: c.run(func(cmd *cobra.Command, e *env, _ []string) error {
			cars, err := e.store.Cars.FindCars(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPLATE\tMAKE\tMODEL\tYEAR\tACTIVE")
			for _, car := range cars {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%t\n", car.ID, car.PlateNumber, car.Make, car.Model, car.Year, car.IsActive)
			}
			return w.Flush()
		}),
	}
}

func (c *cli) complianceCmd() *cobra.Command {
	var date, xlsxPath string
	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Show which active drivers completed their daily check",
		Long: `Evaluate the daily vehicle check of every active driver.

The day is taken in TIMEZONE and defaults to today. With --xlsx the
summary is also written as a spreadsheet.`,
		RunE: c.run(func(cmd *cobra.Command, e *env, _ []string) error {
			day, err := compliance.ParseDate(date, e.cfg.Location)
			if err != nil {
				return err
			}
			evaluator := compliance.NewEvaluator(e.store.Inspections, e.store.Drivers, e.cfg.Location,
				compliance.WithConcurrency(e.cfg.ComplianceConcurrency))
			summary, err := evaluator.EvaluateActive(cmd.Context(), day)
			if err != nil {
				return err
			}
			printSummary(cmd, summary)

			if xlsxPath == "" {
				return nil
			}
			buf, err := export.ComplianceWorkbook(summary, e.cfg.Location)
			if err != nil {
				return err
			}
			if err := os.WriteFile(xlsxPath, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", xlsxPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", xlsxPath)
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to evaluate as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the summary to this .xlsx file")
	return cmd
}

func printSummary(cmd *cobra.Command, s compliance.Summary) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DRIVER\tNAME\tCHECKED\tVEHICLE\tSTATUS")
	for _, d := range s.Drivers {
		checked, vehicle, status := "no", "", ""
		if d.HasCompletedTodaysCheck {
			checked = "yes"
		}
		if d.LatestCheck != nil {
			if d.LatestCheck.VehicleNumber != nil {
				vehicle = *d.LatestCheck.VehicleNumber
			}
			if d.LatestCheck.Status != nil {
				status = *d.LatestCheck.Status
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", d.DriverID, d.DriverName, checked, vehicle, status)
	}
	w.Flush()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s: %d/%d completed (%d%%)", s.Date, s.Completed, s.Total, s.CompletionRate)
	if s.Failed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d not evaluated", s.Failed)
	}
	fmt.Fprintln(cmd.OutOrStdout())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
