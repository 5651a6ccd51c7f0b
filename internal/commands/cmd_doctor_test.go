package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorJSON(t *testing.T) {
	app := journalApp(t)

	out, _, _ := runRoot(t, NewDoctorCmd(&Flags{}, app).Register, "doctor", "--format", "json")

	var report doctorReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	names := make([]string, 0, len(report.Checks))
	for _, c := range report.Checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Configuration", "Filters", "Data Directory", "Journal", "Browser"}, names)

	journal := report.Checks[3]
	assert.Equal(t, "pass", string(journal.Worst()))
	assert.Equal(t, report.Summary.Failed == 0, report.Healthy)
}

func TestDoctorText(t *testing.T) {
	_, errOut, _ := runRoot(t, NewDoctorCmd(&Flags{}, journalApp(t)).Register, "doctor")

	assert.Contains(t, errOut, "farepilot doctor")
	assert.Contains(t, errOut, "Journal")
	assert.Contains(t, errOut, "passed")
}
