// Package customize rewrites this template into a freshly named project.
package customize

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// TemplateModule is the module path the template ships with
	TemplateModule = "github.com/run-bigpig/observable-agent"
	// TemplateCommand is the CLI the template ships with
	TemplateCommand = "observable-agent"
	// TemplateService is the package name used in docs and the HTTP API
	TemplateService = "observable-agent-starter"
	// TemplateRepo is the repository slug referenced by README badges
	TemplateRepo = "run-bigpig/observable-agent"

	// InitialVersion is the version a customized project starts at
	InitialVersion = "0.1.0"
)

// ErrInvalidName is returned for project names that are not lower snake case
var ErrInvalidName = errors.New("project name must be lowercase, start with a letter, and contain only letters, numbers, and underscores")

var projectNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateProjectName checks that name is lower snake case
func ValidateProjectName(name string) error {
	if !projectNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Options describe the new project
type Options struct {
	Name        string
	Author      string
	Email       string
	Description string
}

// Module returns the new module path
func (o Options) Module() string {
	return "github.com/" + o.Author + "/" + o.Name
}

// Title returns the project name as a heading, e.g. "my_agent" -> "My Agent"
func (o Options) Title() string {
	words := strings.Split(o.Name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// DescriptionOrDefault returns the description, defaulting to one naming the project
func (o Options) DescriptionOrDefault() string {
	if o.Description != "" {
		return o.Description
	}
	return o.Name + " - Built with Observable Agent Starter"
}

// Customizer applies the rename steps to a checkout
type Customizer struct {
	root string
	opts Options
	out  io.Writer
}

// New validates opts and returns a Customizer for the checkout at root.
// Progress is written to out.
func New(root string, opts Options, out io.Writer) (*Customizer, error) {
	if err := ValidateProjectName(opts.Name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.Author) == "" {
		return nil, errors.New("author is required")
	}
	if out == nil {
		out = io.Discard
	}
	return &Customizer{root: root, opts: opts, out: out}, nil
}

// Run performs every step in order and stops at the first failure
func (c *Customizer) Run() error {
	steps := []struct {
		title string
		fn    func() error
	}{
		{"Updating module path and imports...", c.updateModule},
		{"Renaming command directory...", c.renameCommand},
		{"Updating CLI name and version...", c.updateCLI},
		{"Updating README.md...", c.updateReadme},
		{"Updating Makefile...", c.updateMakefile},
		{"Updating CI workflow...", c.updateCI},
		{"Checking .env.example...", c.createEnvExample},
	}
	for _, step := range steps {
		fmt.Fprintf(c.out, "\n%s\n", step.title)
		if err := step.fn(); err != nil {
			return err
		}
	}
	return nil
}

// NextSteps is printed after a successful run
func (c *Customizer) NextSteps() string {
	return strings.Join([]string{
		"Next steps:",
		"  1. Review changes: git diff",
		"  2. Update README.md with your project description",
		"  3. Copy .env.example to .env and add your API keys",
		"  4. Tidy modules: go mod tidy",
		"  5. Test: make test",
		fmt.Sprintf("  6. Verify CLI works: go run ./cmd/%s --version", c.opts.Name),
		"  7. Commit: git add . && git commit -m 'chore: customize template'",
	}, "\n")
}

func (c *Customizer) updateModule() error {
	if err := c.rewrite("go.mod", func(s string) string {
		return strings.Replace(s, "module "+TemplateModule, "module "+c.opts.Module(), 1)
	}); err != nil {
		return err
	}

	return filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != c.root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		changed, err := c.apply(rel, func(s string) string {
			return strings.ReplaceAll(s, `"`+TemplateModule, `"`+c.opts.Module())
		})
		if changed {
			fmt.Fprintf(c.out, "  Updated: %s\n", filepath.ToSlash(rel))
		}
		return err
	})
}

func skipDir(name string) bool {
	switch name {
	case ".git", "vendor", "node_modules", "testdata":
		return true
	}
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

func (c *Customizer) renameCommand() error {
	oldPath := filepath.Join(c.root, "cmd", TemplateCommand)
	newPath := filepath.Join(c.root, "cmd", c.opts.Name)
	if _, err := os.Stat(oldPath); err != nil {
		c.warnMissing(filepath.Join("cmd", TemplateCommand))
		return nil
	}
	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("target directory %s already exists", filepath.Join("cmd", c.opts.Name))
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("failed to rename command directory: %w", err)
	}
	fmt.Fprintf(c.out, "  Renamed: cmd/%s -> cmd/%s\n", TemplateCommand, c.opts.Name)
	return nil
}

var (
	useLine     = regexp.MustCompile(`Use:(\s+)"` + regexp.QuoteMeta(TemplateCommand) + `"`)
	versionLine = regexp.MustCompile(`version(\s*)= "[^"]+"`)
)

func (c *Customizer) updateCLI() error {
	return c.rewrite(filepath.Join("cmd", c.opts.Name, "main.go"), func(s string) string {
		s = useLine.ReplaceAllString(s, `Use:${1}"`+c.opts.Name+`"`)
		return versionLine.ReplaceAllString(s, `version${1}= "`+InitialVersion+`"`)
	})
}

func (c *Customizer) updateReadme() error {
	return c.rewrite("README.md", func(s string) string {
		s = strings.Replace(s, "# Observable Agent Starter", "# "+c.opts.Title(), 1)
		s = strings.ReplaceAll(s, TemplateModule, c.opts.Module())
		s = strings.ReplaceAll(s, TemplateRepo, c.opts.Author+"/"+c.opts.Name)
		s = strings.ReplaceAll(s, TemplateService, c.opts.Name)
		return replaceCommand(s, c.opts.Name)
	})
}

func (c *Customizer) updateMakefile() error {
	return c.rewrite("Makefile", func(s string) string {
		return replaceCommand(s, c.opts.Name)
	})
}

func (c *Customizer) updateCI() error {
	return c.rewrite(filepath.Join(".github", "workflows", "ci.yml"), func(s string) string {
		return replaceCommand(s, c.opts.Name)
	})
}

// replaceCommand renames the CLI wherever it appears as a whole name, leaving
// longer names such as observable-agent-starter alone
func replaceCommand(s, name string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, TemplateCommand)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := i + len(TemplateCommand)
		b.WriteString(s[:i])
		if (i > 0 && isNameByte(s[i-1])) || (end < len(s) && isNameByte(s[end])) {
			b.WriteString(TemplateCommand)
		} else {
			b.WriteString(name)
		}
		s = s[end:]
	}
}

func isNameByte(c byte) bool {
	return c == '-' || c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

const envExample = `# OpenAI Configuration
OPENAI_API_KEY=your-api-key-here
OPENAI_BASE_URL=https://api.openai.com/v1
OPENAI_MODEL=openai/gpt-4o-mini
OPENAI_TEMPERATURE=0.7

# Langfuse Configuration (Optional - comment out to disable)
LANGFUSE_PUBLIC_KEY=your-public-key
LANGFUSE_SECRET_KEY=your-secret-key
LANGFUSE_HOST=https://cloud.langfuse.com
`

func (c *Customizer) createEnvExample() error {
	path := filepath.Join(c.root, ".env.example")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(envExample), 0o644); err != nil { // #nosec G306 - example config holds no secrets
		return fmt.Errorf("failed to create .env.example: %w", err)
	}
	fmt.Fprintln(c.out, "  Created: .env.example")
	return nil
}

// rewrite applies fn to a file relative to the root and reports the outcome
func (c *Customizer) rewrite(rel string, fn func(string) string) error {
	path := filepath.Join(c.root, rel)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		c.warnMissing(rel)
		return nil
	}
	if _, err := c.apply(rel, fn); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "  Updated: %s\n", filepath.ToSlash(rel))
	return nil
}

// apply rewrites a file in place and reports whether its content changed
func (c *Customizer) apply(rel string, fn func(string) string) (bool, error) {
	path := filepath.Join(c.root, rel)
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", rel, err)
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is inside the checkout being customized
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	updated := fn(string(data))
	if updated == string(data) {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return true, nil
}

func (c *Customizer) warnMissing(rel string) {
	fmt.Fprintf(c.out, "  Warning: %s not found, skipping\n", filepath.ToSlash(rel))
}
