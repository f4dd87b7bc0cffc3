package parse

import (
	"strings"

	"github.com/vbonduro/nutriai/internal/domain"
)

// Plan wraps the generated text unchanged apart from trimming. Blank text is
// an error rather than an empty plan.
func Plan(req domain.PlanRequest, text string) (domain.Plan, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return domain.Plan{}, &domain.PlanParseError{Reason: "response is blank"}
	}
	return domain.Plan{Request: req, Content: content}, nil
}
