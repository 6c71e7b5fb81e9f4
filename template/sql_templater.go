package template

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"text/template"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidIdentifier reports whether name can be spliced into SQL as a (schema-qualified) table name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// RenderSqlTemplate executes a SQL template held in memory.
// Missing keys are an error so a half-rendered statement never reaches the database.
func RenderSqlTemplate(name, content string, params map[string]any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}

// ExecuteSqlTemplate reads a SQL template file and renders it with params.
func ExecuteSqlTemplate(templatePath string, params map[string]any) (string, error) {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template file: %w", err)
	}

	return RenderSqlTemplate(templatePath, string(content), params)
}
