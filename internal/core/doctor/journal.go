package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/colonyops/farepilot/internal/data/db"
)

// JournalCheck inspects the journal database file and its schema.
type JournalCheck struct {
	path     string
	database *db.DB
}

// NewJournalCheck checks the journal at path. database may be nil when it
// could not be opened.
func NewJournalCheck(path string, database *db.DB) *JournalCheck {
	return &JournalCheck{path: path, database: database}
}

func (c *JournalCheck) Name() string { return "Journal" }

func (c *JournalCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	info, err := os.Stat(c.path)
	switch {
	case os.IsNotExist(err):
		result.Items = append(result.Items, CheckItem{Label: c.path, Status: StatusWarn, Detail: "not created yet"})
		return result
	case err != nil:
		result.Items = append(result.Items, CheckItem{Label: c.path, Status: StatusFail, Detail: err.Error()})
		return result
	}
	result.Items = append(result.Items, CheckItem{
		Label:  c.path,
		Status: StatusPass,
		Detail: fmt.Sprintf("%d KiB", (info.Size()+1023)/1024),
	})

	if c.database == nil {
		result.Items = append(result.Items, CheckItem{Label: "Schema", Status: StatusFail, Detail: "database is not open"})
		return result
	}

	statuses, err := db.MigrationStatuses(ctx, c.database.Conn())
	if err != nil {
		result.Items = append(result.Items, CheckItem{Label: "Schema", Status: StatusFail, Detail: err.Error()})
		return result
	}

	var applied, pending int
	for _, s := range statuses {
		if s.Applied {
			applied = s.Version
		} else {
			pending++
		}
	}
	item := CheckItem{Label: "Schema", Status: StatusPass, Detail: fmt.Sprintf("version %d", applied)}
	if pending > 0 {
		item.Status = StatusWarn
		item.Detail = fmt.Sprintf("version %d, %d migration(s) pending", applied, pending)
	}
	result.Items = append(result.Items, item)
	return result
}
