// Package farepilot assembles the application: configuration, journal,
// notifications and the live engine session.
package farepilot

import (
	"github.com/colonyops/farepilot/internal/core/config"
	"github.com/colonyops/farepilot/internal/data/db"
	"github.com/colonyops/farepilot/internal/data/stores"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// App is the central entry point for all farepilot operations.
// Commands and the dashboard consume App instead of cherry-picking raw
// dependencies.
type App struct {
	Config        *config.Config
	DB            *db.DB
	Journal       *stores.JournalStore
	Notifications *stores.NotifyStore
	Doctor        *DoctorService
	Build         BuildInfo
}

// NewApp constructs an App from explicit dependencies. database may be nil
// for commands that never touch the journal.
func NewApp(cfg *config.Config, database *db.DB, build BuildInfo) *App {
	app := &App{
		Config: cfg,
		DB:     database,
		Doctor: NewDoctorService(cfg, database),
		Build:  build,
	}
	if database != nil {
		app.Journal = stores.NewJournalStore(database)
		app.Notifications = stores.NewNotifyStore(database)
	}
	return app
}
