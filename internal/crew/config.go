package crew

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type RoleConfig struct {
	Role      string `yaml:"role"`
	Goal      string `yaml:"goal"`
	Backstory string `yaml:"backstory"`
}

type TaskConfig struct {
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
}

type Config struct {
	Roles map[string]RoleConfig `yaml:"roles"`
	Tasks map[string]TaskConfig `yaml:"tasks"`
}

// Role ids the runtime depends on; LoadConfig fails fast if any is missing
// so a broken YAML edit surfaces at boot, not mid-request.
var requiredRoles = []string{
	"router",
	"image_specialist",
	"document_specialist",
	"audio_specialist",
	"video_specialist",
	"synthesis",
}

var requiredTasks = []string{"route", "analyze", "synthesize", "enhance"}

func LoadConfig(dir string) (*Config, error) {
	cfg := &Config{}

	agentsRaw, err := os.ReadFile(filepath.Join(dir, "agents.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read agents.yaml: %w", err)
	}
	if err := yaml.Unmarshal(agentsRaw, cfg); err != nil {
		return nil, fmt.Errorf("parse agents.yaml: %w", err)
	}

	var tasks Config
	tasksRaw, err := os.ReadFile(filepath.Join(dir, "tasks.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read tasks.yaml: %w", err)
	}
	if err := yaml.Unmarshal(tasksRaw, &tasks); err != nil {
		return nil, fmt.Errorf("parse tasks.yaml: %w", err)
	}
	cfg.Tasks = tasks.Tasks

	for _, id := range requiredRoles {
		if _, ok := cfg.Roles[id]; !ok {
			return nil, fmt.Errorf("agents.yaml missing role %q", id)
		}
	}
	for _, id := range requiredTasks {
		if _, ok := cfg.Tasks[id]; !ok {
			return nil, fmt.Errorf("tasks.yaml missing task %q", id)
		}
	}
	return cfg, nil
}

// renderTemplate fills {placeholder} slots. Unknown placeholders are left
// intact so a template typo is visible in the prompt rather than silent.
func renderTemplate(tpl string, vars map[string]string) string {
	out := tpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

func (rc RoleConfig) SystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(strings.TrimSpace(rc.Role))
	b.WriteString(". ")
	if g := strings.TrimSpace(rc.Goal); g != "" {
		b.WriteString("Your goal: ")
		b.WriteString(g)
		b.WriteString(" ")
	}
	if bs := strings.TrimSpace(rc.Backstory); bs != "" {
		b.WriteString(bs)
	}
	return strings.TrimSpace(b.String())
}
