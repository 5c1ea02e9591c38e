package graph

import (
	"fmt"
	"strings"
	"unicode"
)

// validateNodeTypeName enforces TitleCase node type names, e.g.
// "Company" or "ResearchPaper".
func validateNodeTypeName(name string) error {
	if name == "" {
		return fmt.Errorf("node type name is required")
	}
	if !unicode.IsUpper(rune(name[0])) {
		return fmt.Errorf("node type name must be title-case (e.g. %q): got %q", titleCase(name), name)
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("node type name must contain only letters and digits: got %q", name)
		}
	}
	return nil
}

// validateEdgeTypeName enforces lower_snake_case edge type names, e.g.
// "works_at".
func validateEdgeTypeName(name string) error {
	if name == "" {
		return fmt.Errorf("edge type name is required")
	}
	for _, r := range name {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) && r != '_' {
			return fmt.Errorf("edge type name must be lower_snake_case (e.g. %q): got %q", snakeCase(name), name)
		}
	}
	if strings.HasPrefix(name, "_") || strings.HasSuffix(name, "_") {
		return fmt.Errorf("edge type name must not start or end with underscore: got %q", name)
	}
	return nil
}

func titleCase(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)
	if cleaned == "" {
		return "Example"
	}
	return strings.ToUpper(cleaned[:1]) + cleaned[1:]
}

func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLower(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "example_edge"
	}
	return b.String()
}
