package doctor

import (
	"context"
	"fmt"
	"os"
)

// DataDirCheck verifies the data directory can hold the journal and logs.
type DataDirCheck struct {
	dir string
}

// NewDataDirCheck creates a new data directory check.
func NewDataDirCheck(dir string) *DataDirCheck {
	return &DataDirCheck{dir: dir}
}

func (c *DataDirCheck) Name() string {
	return "Data Directory"
}

func (c *DataDirCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	info, err := os.Stat(c.dir)
	switch {
	case os.IsNotExist(err):
		result.Items = append(result.Items, CheckItem{
			Label:  c.dir,
			Status: StatusWarn,
			Detail: "directory does not exist (created on first run)",
		})
		return result
	case err != nil:
		result.Items = append(result.Items, CheckItem{
			Label:  c.dir,
			Status: StatusFail,
			Detail: fmt.Sprintf("inaccessible: %v", err),
		})
		return result
	case !info.IsDir():
		result.Items = append(result.Items, CheckItem{
			Label:  c.dir,
			Status: StatusFail,
			Detail: "path is not a directory",
		})
		return result
	}

	f, err := os.CreateTemp(c.dir, ".doctor-*")
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.dir,
			Status: StatusFail,
			Detail: fmt.Sprintf("not writable: %v", err),
		})
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Items = append(result.Items, CheckItem{
		Label:  c.dir,
		Status: StatusPass,
	})
	return result
}
