package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateAgent(t *testing.T) {
	tests := []struct {
		name    string
		agent   AgentConfig
		wantErr bool
	}{
		{"valid", AgentConfig{Name: "Ravi", CompanyId: "company1", Phone: "+919876543210"}, false},
		{"no phone", AgentConfig{Name: "Ravi", CompanyId: "company1"}, false},
		{"short name", AgentConfig{Name: "R", CompanyId: "company1"}, true},
		{"missing company", AgentConfig{Name: "Ravi"}, true},
		{"local phone", AgentConfig{Name: "Ravi", CompanyId: "company1", Phone: "09876543210"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAgent(tt.agent)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAgent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseAgentRoster(t *testing.T) {
	data := []byte(`
agents:
  - id: pickup1
    name: Asha Pickup
    phone: "+919800000001"
    company_id: company1
  - name: Dev Driver
    company_id: company1
`)
	agents, err := ParseAgentRoster(data)
	if err != nil {
		t.Fatalf("ParseAgentRoster failed: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("Expected 2 agents, got %d", len(agents))
	}
	if agents[0].Id != "pickup1" || agents[0].Phone != "+919800000001" {
		t.Errorf("Unexpected first agent: %+v", agents[0])
	}
	if agents[1].Id != "" {
		t.Errorf("Expected second agent without id, got %q", agents[1].Id)
	}

	if _, err := ParseAgentRoster([]byte("agents:\n  - name: X\n    company_id: c\n")); err == nil {
		t.Error("Expected error for invalid agent")
	}
	if _, err := ParseAgentRoster([]byte("agents:\n  - name: Asha\n    company: c\n")); err == nil {
		t.Error("Expected error for unknown field")
	}
}

func TestLoadAgentRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte("agents:\n  - name: Asha\n    company_id: company1\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	agents, err := LoadAgentRoster(path)
	if err != nil {
		t.Fatalf("LoadAgentRoster failed: %v", err)
	}
	if len(agents) != 1 || agents[0].Name != "Asha" {
		t.Errorf("Unexpected roster: %+v", agents)
	}

	if _, err := LoadAgentRoster(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing roster")
	}
}
