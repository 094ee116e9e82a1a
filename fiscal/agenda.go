package fiscal

import (
	"context"
	"fmt"

	"github.com/warp/pi-engine/generic"
)

// Agenda placeholders.
const (
	PlaceholderCurrentPI  = "{{Current PI}}"
	PlaceholderAdjustedPI = "{{Adjusted PI}}"
	PlaceholderDate       = "{{Date}}"
)

// AgendaGenerator copies an agenda template and fills in the PI labels.
type AgendaGenerator struct {
	Engine    *Engine
	Templates generic.TemplateStore
}

// Generate copies templateID and replaces its placeholders. {{Current PI}}
// gets today's label, {{Adjusted PI}} the label of the first of next month.
func (g *AgendaGenerator) Generate(ctx context.Context, templateID generic.TemplateID) (generic.DocumentID, error) {
	current, err := g.Engine.Current()
	if err != nil {
		return "", err
	}
	adjusted, err := g.Engine.Upcoming()
	if err != nil {
		return "", err
	}

	doc, err := g.Templates.CopyTemplate(ctx, templateID)
	if err != nil {
		return "", fmt.Errorf("copy template %s: %w", templateID, err)
	}

	replacements := []struct{ placeholder, value string }{
		{PlaceholderCurrentPI, current.String()},
		{PlaceholderAdjustedPI, adjusted.String()},
		{PlaceholderDate, g.Engine.Today().String()},
	}
	for _, r := range replacements {
		if err := g.Templates.FindAndReplace(ctx, doc, r.placeholder, r.value); err != nil {
			return doc, fmt.Errorf("fill %s: %w", r.placeholder, err)
		}
	}
	return doc, nil
}
