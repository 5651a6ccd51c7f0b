package farepilot

import (
	"context"

	"github.com/colonyops/farepilot/internal/core/config"
	"github.com/colonyops/farepilot/internal/core/doctor"
	"github.com/colonyops/farepilot/internal/data/db"
)

// DoctorService runs health checks on the farepilot setup.
type DoctorService struct {
	config   *config.Config
	database *db.DB
}

// NewDoctorService creates a new DoctorService. database may be nil.
func NewDoctorService(cfg *config.Config, database *db.DB) *DoctorService {
	return &DoctorService{config: cfg, database: database}
}

// RunChecks executes all doctor checks and returns results.
func (d *DoctorService) RunChecks(ctx context.Context, configPath string) []doctor.Result {
	checks := []doctor.Check{
		doctor.NewConfigCheck(d.config, configPath),
		doctor.NewFiltersCheck(d.config.FiltersPath()),
		doctor.NewDataDirCheck(d.config.DataDir),
		doctor.NewJournalCheck(d.config.DatabaseFile(), d.database),
		doctor.NewBrowserCheck(d.config.Browser.RemoteURL, d.config.Target.URL),
	}
	return doctor.RunAll(ctx, checks)
}
