// Package parse turns free-form model output into typed domain values.
package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vbonduro/nutriai/internal/domain"
)

var (
	headingRe  = regexp.MustCompile(`^(#{1,4})\s+(.+?)\s*#*$`)
	listItemRe = regexp.MustCompile(`^(?:[-*•+]|\d+[.)])\s+(.*)$`)
	orderedRe  = regexp.MustCompile(`^\d+[.)]\s`)
	// Leading "1." or "Recipe 2:" on titles.
	titlePrefixRe = regexp.MustCompile(`(?i)^(?:\d+[.)]\s*|(?:recipe|rezept)\s*\d*\s*[:.\-]\s*)`)
	recipeKcalRe  = regexp.MustCompile(`(?i)(?:calories|kalorien|kcal)\s*[:=]?\s*(?:~|ca\.?|approx\.?)?\s*(\d{2,5})|(\d{2,5})\s*kcal`)
)

type block int

const (
	blockNone block = iota
	blockIngredients
	blockSteps
	blockOther
)

var blockLabels = map[string]block{
	"ingredients":  blockIngredients,
	"zutaten":      blockIngredients,
	"steps":        blockSteps,
	"instructions": blockSteps,
	"directions":   blockSteps,
	"method":       blockSteps,
	"preparation":  blockSteps,
	"zubereitung":  blockSteps,
	"schritte":     blockSteps,
	"anleitung":    blockSteps,
}

type section struct {
	level       int
	title       string
	lines       []string
	ingredients []string
	steps       []string
	current     block
	// listed is set once the current block has produced a list item.
	listed bool
}

func (s *section) switchTo(b block) {
	s.current = b
	s.listed = false
}

func (s *section) hasContent() bool {
	return len(s.ingredients) > 0 || len(s.steps) > 0
}

// Recipes splits markdown into recipe sections. A section needs a title, at
// least one ingredient and at least one step to be kept. newID supplies the
// ID for each kept recipe.
func Recipes(text string, newID func() string) ([]domain.Recipe, error) {
	var (
		sections []*section
		cur      *section
	)

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)

		if m := headingRe.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			heading := cleanInline(m[2])

			if b, ok := labelBlock(heading); ok && cur != nil {
				cur.switchTo(b)
				cur.lines = append(cur.lines, raw)
				continue
			}
			// Deeper headings inside a recipe that already has content are
			// sub-headings such as "Tips" or "Nutrition".
			if cur != nil && level > cur.level && cur.hasContent() {
				cur.switchTo(blockOther)
				cur.lines = append(cur.lines, raw)
				continue
			}

			cur = &section{level: level, title: cleanTitle(heading)}
			sections = append(sections, cur)
			cur.lines = append(cur.lines, raw)
			continue
		}

		if cur == nil {
			continue
		}
		cur.lines = append(cur.lines, raw)
		if line == "" {
			continue
		}

		if b, ok := labelBlock(cleanInline(line)); ok {
			cur.switchTo(b)
			continue
		}

		addLine(cur, line)
	}

	recipes := make([]domain.Recipe, 0, len(sections))
	for _, s := range sections {
		if s.title == "" || len(s.ingredients) == 0 || len(s.steps) == 0 {
			continue
		}
		markdown := strings.TrimSpace(strings.Join(s.lines, "\n"))
		recipes = append(recipes, domain.Recipe{
			ID:          newID(),
			Title:       s.title,
			Ingredients: s.ingredients,
			Steps:       s.steps,
			Calories:    recipeCalories(markdown),
			Markdown:    markdown,
		})
	}

	if len(recipes) == 0 {
		return nil, domain.ErrNoRecipesParsed
	}
	return recipes, nil
}

func addLine(s *section, line string) {
	m := listItemRe.FindStringSubmatch(line)
	if m == nil {
		// Prose counts as a step only before the steps list starts, so
		// trailing notes like "Calories: 420" are not steps.
		if s.current == blockSteps && !s.listed {
			s.steps = append(s.steps, line)
		}
		return
	}

	item := strings.TrimSpace(m[1])
	if item == "" {
		return
	}
	s.listed = true

	switch s.current {
	case blockIngredients:
		s.ingredients = append(s.ingredients, item)
	case blockSteps:
		s.steps = append(s.steps, item)
	case blockNone:
		// Without labels, numbered lists are steps and bullets are ingredients.
		if orderedRe.MatchString(line) {
			s.steps = append(s.steps, item)
		} else {
			s.ingredients = append(s.ingredients, item)
		}
	}
}

// labelBlock recognises "Ingredients", "**Zutaten:**", "Steps (4)" and similar.
func labelBlock(s string) (block, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(s, ":"); i >= 0 {
		// "Preparation: 10 minutes" is content, not a label.
		if strings.TrimSpace(strings.Trim(s[i+1:], "*_")) != "" {
			return blockNone, false
		}
		s = s[:i]
	}
	if i := strings.Index(s, "("); i > 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(strings.Trim(s, "*_ "))
	b, ok := blockLabels[s]
	return b, ok
}

// cleanInline strips emphasis markers around a whole line.
func cleanInline(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_")
	return strings.TrimSpace(s)
}

func cleanTitle(s string) string {
	s = titlePrefixRe.ReplaceAllString(s, "")
	return strings.TrimSpace(strings.Trim(s, "*_ "))
}

func recipeCalories(markdown string) *int {
	m := recipeKcalRe.FindStringSubmatch(markdown)
	if m == nil {
		return nil
	}
	digits := m[1]
	if digits == "" {
		digits = m[2]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}
