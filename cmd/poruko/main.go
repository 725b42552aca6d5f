package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/bdobrica/poruko/common/environment"
	"github.com/bdobrica/poruko/common/version"
	"github.com/bdobrica/poruko/internal/poruko/app"
	"github.com/bdobrica/poruko/internal/poruko/matrix"
	"github.com/bdobrica/poruko/internal/poruko/summary"
	"github.com/bdobrica/poruko/internal/poruko/weather"
)

func main() {
	fmt.Printf("Poruko\n")
	fmt.Printf("Version: %s\n", version.Info())
	fmt.Println()

	// A local .env is a convenience for development; absence is not an error.
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded configuration from .env")
	}

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	poruko, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Poruko: %v\n", err)
		os.Exit(1)
	}
	defer poruko.Stop()

	if err := poruko.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Poruko: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig assembles the application config from environment variables.
// Matrix credentials and at least one game room are mandatory; everything
// else has a working default.
func loadConfig() (*app.Config, error) {
	homeserver, err := environment.RequiredString("MATRIX_HOMESERVER")
	if err != nil {
		return nil, err
	}
	userID, err := environment.RequiredString("MATRIX_USER_ID")
	if err != nil {
		return nil, err
	}
	accessToken, err := environment.RequiredString("MATRIX_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}
	gameRooms := environment.StringSliceOr("MATRIX_ROOMS", nil)
	if len(gameRooms) == 0 {
		return nil, fmt.Errorf("required environment variable %q is not set", "MATRIX_ROOMS")
	}

	tzName := environment.StringOr("TIMEZONE", "Europe/Madrid")
	location, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}

	dataDir := environment.StringOr("DATA_DIR", ".")

	return &app.Config{
		DatabasePath: environment.StringOr("DATABASE_PATH", filepath.Join(dataDir, "poruko.db")),
		ScorePath:    filepath.Join(dataDir, "pole.json"),
		HistoryPath:  filepath.Join(dataDir, "history.json"),
		GifsPath:     filepath.Join(dataDir, "gifs.json"),
		MessagesPath: environment.StringOr("MESSAGES_PATH", ""),
		Matrix: matrix.Config{
			Homeserver:  homeserver,
			UserID:      userID,
			AccessToken: accessToken,
			GameRooms:   gameRooms,
		},
		Weather: weather.Config{
			APIKey: environment.StringOr("OPENWEATHER_KEY", ""),
		},
		Summary: summary.Config{
			BaseURL: environment.StringOr("SUMMARY_ENDPOINT", ""),
			Model:   environment.StringOr("SUMMARY_MODEL", ""),
			APIKey:  environment.StringOr("SUMMARY_API_KEY", ""),
		},
		AdminUser:       environment.StringOr("ADMIN_USER", ""),
		Location:        location,
		Retention:       time.Duration(environment.IntOr("RETENTION_HOURS", 3)) * time.Hour,
		SummaryWindow:   time.Duration(environment.IntOr("SUMMARY_WINDOW_HOURS", 2)) * time.Hour,
		SummaryCooldown: environment.DurationOr("SUMMARY_COOLDOWN", 2*time.Hour),
	}, nil
}
