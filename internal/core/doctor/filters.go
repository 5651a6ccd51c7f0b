package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/colonyops/farepilot/internal/settings"
)

// FiltersCheck loads the acceptance rules the engine would run with.
type FiltersCheck struct {
	path string
}

// NewFiltersCheck creates a check for the filters file at path.
func NewFiltersCheck(path string) *FiltersCheck {
	return &FiltersCheck{path: path}
}

func (c *FiltersCheck) Name() string {
	return "Filters"
}

func (c *FiltersCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		result.Items = append(result.Items, CheckItem{
			Label:  "filters_file",
			Status: StatusWarn,
			Detail: fmt.Sprintf("%s not found, defaults in use (run 'farepilot filters init')", c.path),
		})
	}

	rules, err := settings.LoadFile(c.path)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "rules",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}
	if err := rules.Validate(); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "rules",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  "mode",
		Status: StatusPass,
		Detail: string(rules.Mode),
	})

	if len(rules.Keywords) == 0 && len(rules.OriginAllowList) == 0 && rules.MinAmount == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "rules",
			Status: StatusWarn,
			Detail: "no amount, keyword or origin rule set; every record is accepted",
		})
	} else {
		result.Items = append(result.Items, CheckItem{
			Label:  "rules",
			Status: StatusPass,
			Detail: describe(rules.Keywords, rules.OriginAllowList),
		})
	}

	return result
}

func describe(keywords, origins []string) string {
	var parts []string
	if len(keywords) > 0 {
		parts = append(parts, "keywords: "+strings.Join(keywords, ", "))
	}
	if len(origins) > 0 {
		parts = append(parts, "origins: "+strings.Join(origins, ", "))
	}
	return strings.Join(parts, "; ")
}
