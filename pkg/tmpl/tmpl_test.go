package tmpl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	type hook struct {
		Origin string
		Price  int
		Tags   []string
		At     time.Time
	}
	data := hook{
		Origin: "Seoul Station",
		Price:  42000,
		Tags:   []string{"airport", "night"},
		At:     time.Date(2026, 10, 17, 23, 5, 0, 0, time.UTC),
	}

	tests := []struct {
		name    string
		tmpl    string
		data    any
		want    string
		wantErr bool
	}{
		{name: "field", tmpl: "from {{ .Origin }}", data: data, want: "from Seoul Station"},
		{name: "money", tmpl: "{{ money .Price }}", data: data, want: "42,000"},
		{name: "clock", tmpl: "{{ clock .At }}", data: data, want: "23:05:00"},
		{name: "join", tmpl: `{{ join .Tags "," }}`, data: data, want: "airport,night"},
		{name: "shq", tmpl: "notify-send {{ shq .Origin }}", data: data, want: "notify-send 'Seoul Station'"},
		{name: "static", tmpl: "static string", data: nil, want: "static string"},
		{name: "missing field", tmpl: "{{ .Missing }}", data: data, wantErr: true},
		{name: "missing map key", tmpl: "{{ .Missing }}", data: map[string]string{}, wantErr: true},
		{name: "bad syntax", tmpl: "{{ .Origin }", data: data, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"plain", "'plain'"},
		{"it's", `'it'\''s'`},
		{"$(rm -rf /)", "'$(rm -rf /)'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shellQuote(tt.in), tt.in)
	}
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{42000, "42,000"},
		{1234567, "1,234,567"},
		{-15000, "-15,000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, money(tt.in))
	}
}

func TestParseOnceExecuteMany(t *testing.T) {
	tpl, err := Parse("{{ .Origin }}:{{ money .Price }}")
	require.NoError(t, err)

	a, err := tpl.Execute(map[string]any{"Origin": "A", "Price": 1000})
	require.NoError(t, err)
	b, err := tpl.Execute(map[string]any{"Origin": "B", "Price": 2000})
	require.NoError(t, err)
	assert.Equal(t, "A:1,000", a)
	assert.Equal(t, "B:2,000", b)
}
