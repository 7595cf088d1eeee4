package research

import (
	"context"

	model "github.com/hakoke/impostor/internal/model/game"
)

// Researcher looks a person up from their social handles. Findings are an
// opaque enrichment blob; the game core forwards them without interpreting.
type Researcher interface {
	Research(ctx context.Context, name string, handles map[string]string) (model.WebFindings, error)
}

// Disabled is the default researcher when no scraping backend is configured.
type Disabled struct{}

// Research returns empty findings.
func (Disabled) Research(_ context.Context, _ string, _ map[string]string) (model.WebFindings, error) {
	return model.WebFindings{}, nil
}
