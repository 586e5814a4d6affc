package common

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"
)

var phoneRegex = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

type AgentConfig struct {
	Id        string `yaml:"id"`
	Name      string `yaml:"name"`
	Phone     string `yaml:"phone"`
	CompanyId string `yaml:"company_id"`
}

type AgentsConfig struct {
	Agents []AgentConfig `yaml:"agents"`
}

// ValidateAgent checks the fields an agent needs before it is registered.
// Phone is optional but must be E.164 when present.
func ValidateAgent(agent AgentConfig) error {
	if len(strings.TrimSpace(agent.Name)) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	if strings.TrimSpace(agent.CompanyId) == "" {
		return fmt.Errorf("company id cannot be empty")
	}
	if agent.Phone != "" && !phoneRegex.MatchString(agent.Phone) {
		return fmt.Errorf("invalid phone number, expected E.164 format: %s", agent.Phone)
	}
	return nil
}

// LoadAgentRoster reads a YAML roster of agents to register in bulk.
func LoadAgentRoster(rosterFile string) ([]AgentConfig, error) {
	rosterPath := rosterFile
	if !filepath.IsAbs(rosterFile) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		rosterPath = filepath.Join(wd, rosterFile)
	}

	data, err := os.ReadFile(rosterPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", rosterFile, err)
	}
	return ParseAgentRoster(data)
}

func ParseAgentRoster(data []byte) ([]AgentConfig, error) {
	var config AgentsConfig
	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse agent roster: %w", err)
	}

	for i, agent := range config.Agents {
		if err := ValidateAgent(agent); err != nil {
			return nil, fmt.Errorf("agent at index %d: %w", i, err)
		}
	}
	return config.Agents, nil
}
