package agent

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// AgentConfig is a persona loaded from YAML
type AgentConfig struct {
	Role      string `yaml:"role"`
	Goal      string `yaml:"goal"`
	Backstory string `yaml:"backstory"`
}

// AgentConfigs maps agent observation names to personas
type AgentConfigs map[string]AgentConfig

//go:embed personas.yaml
var defaultPersonas []byte

// DefaultAgentConfigs returns the personas shipped with the repository
func DefaultAgentConfigs() (AgentConfigs, error) {
	return ParseAgentConfigs(defaultPersonas)
}

// ParseAgentConfigs decodes personas from YAML. ${VAR} and ${VAR:-default}
// references are expanded from the environment first.
func ParseAgentConfigs(data []byte) (AgentConfigs, error) {
	var configs AgentConfigs
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &configs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent configs: %w", err)
	}
	return configs, nil
}

func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		if hasFallback {
			return fallback
		}
		return ""
	})
}

// LoadAgentConfigsFromFile loads agent configurations from a YAML file
func LoadAgentConfigsFromFile(filePath string) (AgentConfigs, error) {
	if !isValidFilePath(filePath) {
		return nil, fmt.Errorf("invalid file path")
	}

	data, err := os.ReadFile(filePath) // #nosec G304 - Path is validated with isValidFilePath() before use
	if err != nil {
		return nil, fmt.Errorf("failed to read agent config file: %w", err)
	}

	return ParseAgentConfigs(data)
}

// isValidFilePath rejects traversal, pseudo filesystems and non-regular files
func isValidFilePath(filePath string) bool {
	if filePath == "" {
		return false
	}

	cleanPath := filepath.Clean(filePath)
	if strings.Contains(cleanPath, "..") {
		return false
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return false
	}
	if strings.HasPrefix(absPath, "/proc") ||
		strings.HasPrefix(absPath, "/sys") ||
		strings.HasPrefix(absPath, "/dev") {
		return false
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return false
	}
	return fileInfo.Mode().IsRegular()
}

// LoadAgentConfigsFromDir merges every *.yaml / *.yml file in a directory.
// Files are read in name order, so later files override earlier ones.
func LoadAgentConfigsFromDir(dirPath string) (AgentConfigs, error) {
	dirInfo, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !dirInfo.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	files, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent config directory: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	configs := make(AgentConfigs)
	for _, file := range files {
		if file.IsDir() || (!strings.HasSuffix(file.Name(), ".yaml") && !strings.HasSuffix(file.Name(), ".yml")) {
			continue
		}

		filePath := filepath.Join(dirPath, file.Name())
		if !isValidFilePath(filePath) {
			continue
		}

		fileConfigs, err := LoadAgentConfigsFromFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load agent configs from %s: %w", filePath, err)
		}
		for name, persona := range fileConfigs {
			configs[name] = persona
		}
	}

	return configs, nil
}

// FormatSystemPromptFromConfig renders a persona as a system message,
// substituting {name} placeholders from variables
func FormatSystemPromptFromConfig(persona AgentConfig, variables map[string]string) string {
	role := strings.TrimSpace(persona.Role)
	goal := strings.TrimSpace(persona.Goal)
	backstory := strings.TrimSpace(persona.Backstory)

	for key, value := range variables {
		placeholder := fmt.Sprintf("{%s}", key)
		role = strings.ReplaceAll(role, placeholder, value)
		goal = strings.ReplaceAll(goal, placeholder, value)
		backstory = strings.ReplaceAll(backstory, placeholder, value)
	}

	return fmt.Sprintf("# Role\n%s\n\n# Goal\n%s\n\n# Backstory\n%s", role, goal, backstory)
}

// SaveAgentConfigs writes personas as YAML
func SaveAgentConfigs(configs AgentConfigs, w io.Writer) error {
	data, err := yaml.Marshal(configs)
	if err != nil {
		return fmt.Errorf("failed to marshal agent configs: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write agent configs: %w", err)
	}

	return nil
}
