package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ride-tracker/cmd/migrator"
	"ride-tracker/cmd/simulate"
	trackerservice "ride-tracker/cmd/tracker_service"
	"ride-tracker/internal/cli"
	"ride-tracker/internal/general/config"
	"ride-tracker/internal/general/postgres"
	"ride-tracker/internal/tracking"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	mode, args, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fs := flag.NewFlagSet(mode, flag.ContinueOnError)
	cli.AttachUsage(fs, mode)

	switch mode {
	case cli.ModeTracker:
		configPath := fs.String("config", defaultConfigPath, "Path to the YAML config file")
		maxConc := fs.Int("max-concurrent", 100, "Maximum number of concurrent HTTP requests to process")
		parseFlags(fs, args)
		if *maxConc < 1 {
			usageError(fs, "--max-concurrent must be >= 1")
		}
		exitOnError(trackerservice.Run(ctx, *configPath, *maxConc))

	case cli.ModeMigrate:
		configPath := fs.String("config", defaultConfigPath, "Path to the YAML config file")
		direction := fs.String("direction", postgres.MigrateUp, "Migration direction: up | down")
		parseFlags(fs, args)
		exitOnError(migrator.Run(ctx, *configPath, *direction))

	case cli.ModeSimulate:
		configPath := fs.String("config", "", "Optional YAML config file for the tracking timings")
		rideID := fs.String("ride-id", "", "Ride id to track (default: the placeholder ride)")
		virtual := fs.Bool("virtual", false, "Run on a virtual clock instead of wall time")
		sosAt := fs.Duration("sos-at", 0, "Raise an SOS this long after start (0 disables)")
		lat := fs.Float64("lat", 40.7128, "Device latitude reported for the SOS")
		lng := fs.Float64("lng", -74.006, "Device longitude reported for the SOS")
		parseFlags(fs, args)

		trackingCfg := tracking.DefaultConfig()
		if *configPath != "" {
			cfg, err := config.LoadFromFile(*configPath)
			exitOnError(err)
			trackingCfg = trackerservice.TrackingConfig(cfg)
		}
		exitOnError(simulate.Run(ctx, os.Stdout, simulate.Options{
			RideID:    *rideID,
			Config:    trackingCfg,
			Virtual:   *virtual,
			SOSAt:     *sosAt,
			Latitude:  *lat,
			Longitude: *lng,
		}))

	case cli.ModeToken:
		userID := fs.String("user-id", "", "Id of the user (subject)")
		role := fs.String("role", "PASSENGER", "User role: PASSENGER | SUPPORT | ADMIN")
		secret := fs.String("secret", os.Getenv("JWT_SECRET"), "JWT HMAC secret (HS256), defaults to $JWT_SECRET")
		ttl := fs.Duration("ttl", 2*time.Hour, "Token lifetime")
		parseFlags(fs, args)
		if *userID == "" || *secret == "" {
			usageError(fs, "--user-id and --secret are required")
		}

		token, claims, err := cli.GenerateUserToken(*secret, *ttl, *userID, *role)
		exitOnError(err)
		fmt.Println("TOKEN:")
		fmt.Println(token)
		fmt.Println("\nCLAIMS:")
		fmt.Printf("  sub:  %s\n", claims.Subject)
		fmt.Printf("  role: %s\n", claims.Role)
		fmt.Printf("  iat:  %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
		fmt.Printf("  exp:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}

func parseFlags(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}

func usageError(fs *flag.FlagSet, msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	fs.Usage()
	os.Exit(2)
}

func exitOnError(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
