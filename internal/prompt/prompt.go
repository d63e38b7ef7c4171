// Package prompt builds the instruction text sent to the image provider.
//
// Both entry points are pure: the same inputs always yield the same text.
package prompt

import (
	"fmt"
	"math"
	"strings"

	"github.com/cuongbtq/trendrider/internal/domain"
)

const (
	preamble = "You are an expert photo editor. Edit the attached image by applying the following effect."

	faceClause    = "Preserve natural facial features and skin texture."
	qualityClause = "Maintain high image quality, sharp details, and proper exposure. Ensure the result looks professional and natural."

	specializedPreamble = "Edit the attached photo exactly as described below. Return a single edited image."
	specializedClosing  = "Keep the subject recognizable. Do not add text, logos, or watermarks."
)

// Compose renders the standard instruction for an effect template.
// Strength is clamped to [0, 1] and rendered as a rounded percentage.
func Compose(template string, strength float64, preserveFaces bool) string {
	var b strings.Builder

	b.WriteString(preamble)
	b.WriteString("\n\nEFFECT TO APPLY:\n")
	b.WriteString(template)
	b.WriteString("\n\nTECHNICAL REQUIREMENTS:\n")
	fmt.Fprintf(&b, "- Apply the effect with %d%% intensity.\n", StrengthPercent(strength))
	if preserveFaces {
		b.WriteString("- " + faceClause + "\n")
	}
	b.WriteString("- " + qualityClause)

	return b.String()
}

// ComposeSpecialized wraps the template in a fixed frame. It takes no
// strength or face parameters; the template carries its own requirements.
func ComposeSpecialized(template string) string {
	return specializedPreamble + "\n\n" + template + "\n\n" + specializedClosing
}

// ForEffect picks the composer path from the effect's identifier.
func ForEffect(effect *domain.Effect) string {
	if effect.IsSpecialized() {
		return ComposeSpecialized(effect.HiddenPrompt)
	}
	return Compose(effect.HiddenPrompt, effect.Strength, effect.PreserveFaces)
}

// StrengthPercent converts a strength in [0, 1] to an integer percentage.
func StrengthPercent(strength float64) int {
	if math.IsNaN(strength) || strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}
	return int(math.Round(strength * 100))
}
