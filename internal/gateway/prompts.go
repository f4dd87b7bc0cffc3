package gateway

import (
	"fmt"
	"strings"

	"github.com/vbonduro/nutriai/internal/domain"
)

const recipeSystemPrompt = `You are a nutrition-aware chef. Answer in markdown.
Start every recipe with a "## " heading containing only the recipe title.
Under each recipe write an "Ingredients:" line followed by a bulleted list,
then a "Steps:" line followed by a numbered list, then "Calories: N" for one serving.
Do not add any text before the first recipe.`

const calorieSystemPrompt = `You are a nutritionist estimating the energy content of meals.
Respond with a single JSON object and nothing else:
{"estimated_calories": <integer kcal>, "confidence": "high"|"medium"|"low",
 "food_items": [{"name": "<item>", "kcal": <integer>}], "description": "<one sentence>"}`

const planSystemPrompt = `You are a certified strength and conditioning coach.
Write a clear week-by-week training plan in markdown. Include warm-up,
main exercises with sets and repetitions, and cool-down for each session.`

func recipeUserPrompt(prompt string, count int) string {
	return fmt.Sprintf("Suggest %d recipes for: %s", count, strings.TrimSpace(prompt))
}

const photoInstruction = "Estimate the calories of the meal in this photo."

// photoPrompt carries the JSON schema inline because vision requests have no
// system message.
func photoPrompt() string {
	return calorieSystemPrompt + "\n\n" + photoInstruction
}

func calorieTextPrompt(description string) string {
	return "Estimate the calories of this meal: " + strings.TrimSpace(description)
}

func planUserPrompt(req domain.PlanRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", strings.TrimSpace(req.Goal))
	fmt.Fprintf(&b, "Duration: %d weeks\n", req.Weeks)
	fmt.Fprintf(&b, "Sessions per week: %d\n", req.SessionsPerWeek)
	fmt.Fprintf(&b, "Minutes per session: %d\n", req.MinutesPerSession)
	if len(req.Equipment) > 0 {
		fmt.Fprintf(&b, "Available equipment: %s\n", strings.Join(req.Equipment, ", "))
	} else {
		b.WriteString("Available equipment: bodyweight only\n")
	}
	return b.String()
}
