package doctor

import (
	"context"
	"fmt"

	"github.com/go-rod/rod/lib/launcher"
)

// Package-level variables to allow test overrides.
var (
	lookBrowserFunc = launcher.LookPath
	resolveURLFunc  = launcher.ResolveURL
)

// BrowserCheck verifies that a browser can be driven: either the configured
// remote debugging endpoint answers or a local browser binary is installed.
type BrowserCheck struct {
	remoteURL string
	targetURL string
}

// NewBrowserCheck creates a new browser check.
func NewBrowserCheck(remoteURL, targetURL string) *BrowserCheck {
	return &BrowserCheck{remoteURL: remoteURL, targetURL: targetURL}
}

func (c *BrowserCheck) Name() string {
	return "Browser"
}

func (c *BrowserCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.remoteURL != "" {
		if ctx.Err() != nil {
			return result
		}
		if ws, err := resolveURLFunc(c.remoteURL); err != nil {
			result.Items = append(result.Items, CheckItem{
				Label:  "remote",
				Status: StatusFail,
				Detail: fmt.Sprintf("%s unreachable: %v", c.remoteURL, err),
			})
		} else {
			result.Items = append(result.Items, CheckItem{
				Label:  "remote",
				Status: StatusPass,
				Detail: ws,
			})
		}
	} else if path, ok := lookBrowserFunc(); ok {
		result.Items = append(result.Items, CheckItem{
			Label:  "chrome",
			Status: StatusPass,
			Detail: path,
		})
	} else {
		result.Items = append(result.Items, CheckItem{
			Label:  "chrome",
			Status: StatusWarn,
			Detail: "no local browser found; one will be downloaded on first run",
		})
	}

	if c.targetURL == "" {
		result.Items = append(result.Items, CheckItem{
			Label:  "target",
			Status: StatusWarn,
			Detail: "target.url is not set; only replay will work",
		})
	} else {
		result.Items = append(result.Items, CheckItem{
			Label:  "target",
			Status: StatusPass,
			Detail: c.targetURL,
		})
	}

	return result
}
