package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	internal_http "github.com/procurehq/potrack/internal/http"
	"github.com/procurehq/potrack/internal/log"
	internal_storage "github.com/procurehq/potrack/internal/storage"
	"github.com/procurehq/potrack/pkg/events"
	"github.com/procurehq/potrack/pkg/service"
)

func SetupCLI(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the potrack API server",
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(cmd)
			defer store.Close()
			port, _ := cmd.Flags().GetString("port")
			bus := events.NewBus(log.GetLogger())
			if err := internal_http.StartServer(port, store, bus, log.GetLogger()); err != nil {
				log.GetLogger().Errorf("Server stopped: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "8080", "Port to listen on")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Reset the database and load demo purchase orders and invoices",
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(cmd)
			defer store.Close()
			svc := service.NewSeedService(store, log.GetLogger())
			if err := svc.Seed(); err != nil {
				log.GetLogger().Errorf("Failed to seed database: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to seed database: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Database seeded")
		},
	}

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Periodically advance a random purchase order's status",
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(cmd)
			defer store.Close()
			interval, _ := cmd.Flags().GetDuration("interval")
			bus := events.NewBus(log.GetLogger())
			svc := service.NewSimulatorService(store, bus, log.GetLogger())
			runSimulator(svc, interval)
		},
	}
	simulateCmd.Flags().Duration("interval", 10*time.Second, "Time between advances")

	rootCmd.AddCommand(serveCmd, seedCmd, simulateCmd)
}

func runSimulator(svc *service.SimulatorService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Simulator running every %s, Ctrl-C to stop\n", interval)
	for {
		select {
		case <-ticker.C:
			result, err := svc.Advance()
			if err != nil {
				log.GetLogger().Errorf("Simulator tick failed: %v", err)
				continue
			}
			if result.PurchaseOrder != nil {
				fmt.Printf("%s: %s %s -> %s\n", result.Message, result.PurchaseOrder.Vendor, result.From, result.To)
			} else {
				fmt.Println(result.Message)
			}
		case <-stop:
			fmt.Println("Simulator stopped")
			return
		}
	}
}

func initStore(cmd *cobra.Command) *internal_storage.PostgresStore {
	if err := godotenv.Load(); err != nil {
		log.GetLogger().Debugf("No .env file found: %v", err)
	}
	connStr, err := cmd.Flags().GetString("db")
	if err != nil {
		log.GetLogger().Errorf("Error retrieving db flag: %v", err)
		os.Exit(1)
	}
	if connStr == "" {
		connStr = connStrFromEnv()
	}
	if connStr == "" {
		fmt.Println("Error: --db flag or complete DB_* env vars (DB_USERNAME, DB_PASSWORD, DB_HOST, DB_PORT, DB_NAME) required")
		os.Exit(1)
	}
	store, err := internal_storage.NewPostgresStore(connStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}

func connStrFromEnv() string {
	dbUsername := os.Getenv("DB_USERNAME")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")
	if dbUsername == "" || dbPassword == "" || dbHost == "" || dbPort == "" || dbName == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUsername, dbPassword, dbHost, dbPort, dbName)
}
