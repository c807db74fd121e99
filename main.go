package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/CrowderSoup/microjobs/dashboard"
	"github.com/CrowderSoup/microjobs/database"
	"github.com/CrowderSoup/microjobs/handlers"
	"github.com/CrowderSoup/microjobs/httpmw"
	"github.com/CrowderSoup/microjobs/services"
	"github.com/CrowderSoup/microjobs/taskapi"
	"github.com/CrowderSoup/microjobs/tui"
)

var (
	configPath string
	envFile    string
	cfg        Config
)

var rootCmd = &cobra.Command{
	Use:   "microjobs",
	Short: "Micro-jobs marketplace dashboard",
	Long:  `MicroJobs serves the buyer and worker dashboard, the tasks API behind it, and a terminal view of a buyer's tasks.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load environment variables from .env file
		if err := LoadEnv(envFile); err != nil {
			return fmt.Errorf("error loading %s: %w", envFile, err)
		}
		var err error
		cfg, err = LoadConfig(configPath)
		return err
	},
	SilenceUsage: true,
}

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the dashboard",
	RunE:  runWeb,
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the tasks API",
	RunE:  runAPI,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a user and sample tasks",
	RunE:  runSeed,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a session token for a user",
	RunE:  runToken,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Manage your tasks from the terminal",
	RunE:  runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file")

	webCmd.Flags().String("port", "", "listen port (overrides PORT)")
	apiCmd.Flags().String("port", "", "listen port (overrides API_PORT)")

	seedCmd.Flags().String("email", "", "user email")
	seedCmd.Flags().String("role", database.RoleBuyer, "worker, buyer or admin")
	seedCmd.Flags().Int("tasks", 0, "number of sample tasks to create for a buyer")
	_ = seedCmd.MarkFlagRequired("email")

	tokenCmd.Flags().String("email", "", "user email")
	_ = tokenCmd.MarkFlagRequired("email")

	tuiCmd.Flags().String("email", "", "your email")
	tuiCmd.Flags().String("token", "", "session token (minted from JWT_SECRET when empty)")
	_ = tuiCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(webCmd, apiCmd, seedCmd, tokenCmd, tuiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newAuthService() *services.AuthService {
	return services.NewAuthService(cfg.JWTSecret, services.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

func runWeb(cmd *cobra.Command, args []string) error {
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		cfg.Port = p
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services
	authService := newAuthService()
	apiClient := taskapi.NewClient(cfg.APIURL, cfg.RequestTimeout)
	roleCache := services.NewRoleCache(func(ctx context.Context, token, email string) (string, error) {
		return apiClient.WithToken(token).UserRole(ctx, email)
	}, cfg.RoleTTL, cfg.RequestTimeout)

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run(ctx)
	notes := services.NewNotifications(hub)
	store := dashboard.NewStore()

	renderer, err := handlers.NewRenderer()
	if err != nil {
		return err
	}

	// Initialize handlers
	backend := func(token string) handlers.TaskBackend { return apiClient.WithToken(token) }
	dash := handlers.NewDashboardHandler(roleCache, store, notes, backend, renderer)
	authHandler := handlers.NewAuthHandler(authService, notes, store, roleCache, renderer)
	router := handlers.NewWebRouter(dash, authHandler, handlers.NewWebSocketHandler(hub), handlers.NewAuthMiddleware(authService))

	logger := log.New(os.Stdout, "", 0)
	h := httpmw.Chain(router,
		httpmw.WithRequestID,
		httpmw.WithRecover(logger, ""),
		httpmw.WithAccessLog(logger),
	)

	log.Printf("Dashboard using tasks API at %s", cfg.APIURL)
	return serve(ctx, cfg.Port, h)
}

func runAPI(cmd *cobra.Command, args []string) error {
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		cfg.APIPort = p
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	authService := newAuthService()
	dataService := database.NewDataService(db)

	router := handlers.NewAPIRouter(
		handlers.NewDataHandler(dataService),
		handlers.NewAuthHandler(authService, nil, nil, nil, nil),
		handlers.NewAuthMiddleware(authService),
		cfg.AllowedOrigins,
	)

	logger := log.New(os.Stdout, "", 0)
	h := httpmw.Chain(router,
		httpmw.WithRequestID,
		httpmw.WithRecover(logger, "/"),
		httpmw.WithAccessLog(logger),
	)
	return serve(ctx, cfg.APIPort, h)
}

// serve runs the server until ctx is done, then drains open requests.
func serve(ctx context.Context, port string, h http.Handler) error {
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("Shutting down server on port %s", port)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runSeed(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	role, _ := cmd.Flags().GetString("role")
	n, _ := cmd.Flags().GetInt("tasks")

	if !database.ValidRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}
	if n > 0 && role != database.RoleBuyer {
		return fmt.Errorf("only buyers own tasks")
	}

	db, err := database.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	ds := database.NewDataService(db)
	ctx := cmd.Context()
	if err := ds.SaveUser(ctx, email, role); err != nil {
		return err
	}

	for i := 1; i <= n; i++ {
		_, err := ds.CreateTask(ctx, sampleTask(email, i))
		if err != nil {
			return err
		}
	}

	fmt.Printf("Seeded %s as %s with %d tasks\n", email, role, n)
	return nil
}

func sampleTask(buyer string, i int) database.Task {
	return database.Task{
		Title:           fmt.Sprintf("Sample task %d", i),
		Details:         "Follow the instructions and **submit proof** of completion.",
		RequiredWorkers: 1 + i%5,
		PayableAmount:   float64(5 * (1 + i%4)),
		CompletionDate:  time.Now().AddDate(0, 0, 7+i).Format("2006-01-02"),
		SubmissionInfo:  "Screenshot",
		BuyerEmail:      buyer,
	}
}

func runToken(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	token, err := newAuthService().CreateJWT(email)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		var err error
		if token, err = newAuthService().CreateJWT(email); err != nil {
			return err
		}
	}

	client := taskapi.NewClient(cfg.APIURL, cfg.RequestTimeout).WithToken(token)
	return tui.Run(cmd.Context(), email, client)
}
