package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taxiledger/internal/core"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"date": "2024-03-10", "total": 250, "card": "169,5", "note": " noche "}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if got := parser.Get("total"); got != "250" {
		t.Errorf("Get('total') = %q, want '250'", got)
	}
	if got := parser.Get("card"); got != "169,5" {
		t.Errorf("Get('card') = %q, want '169,5'", got)
	}
	if got := parser.Get("note"); got != "noche" {
		t.Errorf("Get('note') = %q, want 'noche'", got)
	}
	if got := parser.GetRaw("note"); got != " noche " {
		t.Errorf("GetRaw('note') = %q, want ' noche '", got)
	}
	if parser.Has("km") {
		t.Error("Has('km') = true for a missing field")
	}
}

func TestRequestBodyParser_JSONNumbersKeepPrecision(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"total": 0.1, "big": 12345678901234567890}`))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parser.Get("total"); got != "0.1" {
		t.Errorf("Get('total') = %q, want '0.1'", got)
	}
	if got := parser.Get("big"); got != "12345678901234567890" {
		t.Errorf("Get('big') = %q", got)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "license=TAXI123&password=demo&note=turno+noche&empty="
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if got := parser.Get("license"); got != "TAXI123" {
		t.Errorf("Get('license') = %q, want 'TAXI123'", got)
	}
	if got := parser.Get("note"); got != "turno noche" {
		t.Errorf("Get('note') = %q, want 'turno noche'", got)
	}
	if !parser.Has("empty") {
		t.Error("Has('empty') = false for a sent empty field")
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"total": `},
		{"too large", "note=" + strings.Repeat("x", maxBodyBytes)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			parser := NewRequestBodyParser(req)
			if err := parser.Parse(); err == nil {
				t.Error("Parse() error = nil, want error")
			}
		})
	}
}

func TestRequestBodyParser_StripsControlCharacters(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"note": "a\u0000b\u0007c\td"}`))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parser.Get("note"); got != "abc\td" {
		t.Errorf("Get('note') = %q, want %q", got, "abc\td")
	}
}

func TestRequestBodyParser_EntryInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want core.EntryInput
	}{
		{
			name: "json with numbers",
			body: `{"date":"2024-03-10","total":250,"card":169,"expCash":5,"expCard":0,"driverPct":40,"km":90,"note":"Turno día"}`,
			want: core.EntryInput{Date: "2024-03-10", Total: "250", Card: "169", ExpCash: "5", ExpCard: "0", DriverPct: "40", Km: "90", Note: "Turno día"},
		},
		{
			name: "form with pct alias",
			body: "total=100&card=60&pct=35",
			want: core.EntryInput{Total: "100", Card: "60", DriverPct: "35"},
		},
		{
			name: "driverPct wins over pct",
			body: "total=100&driverPct=50&pct=35",
			want: core.EntryInput{Total: "100", DriverPct: "50"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			parser := NewRequestBodyParser(req)
			if err := parser.Parse(); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := parser.EntryInput(); got != tt.want {
				t.Errorf("EntryInput() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestQueryFlag(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"confirm=true", true},
		{"confirm=1", true},
		{"confirm=false", false},
		{"confirm=yes", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/entries/1?"+tt.query, nil)
			if got := queryFlag(req.URL.Query(), "confirm"); got != tt.want {
				t.Errorf("queryFlag(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}
