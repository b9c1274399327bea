package generation

import (
	"fmt"
	"strings"

	"menuvision/internal/menu"
)

// BuildPrompt composes the image prompt for one dish from whatever fields
// structuring managed to fill in.
func BuildPrompt(dish menu.Dish) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A professional food photograph of %s", dish.OriginalName)
	if dish.TranslatedName != nil && *dish.TranslatedName != dish.OriginalName {
		fmt.Fprintf(&sb, " (%s)", *dish.TranslatedName)
	}
	if dish.Description != nil {
		fmt.Fprintf(&sb, ". %s", *dish.Description)
	}
	if len(dish.Ingredients) > 0 {
		fmt.Fprintf(&sb, ". Made with %s", strings.Join(dish.Ingredients, ", "))
	}
	sb.WriteString(". Served on a plate, restaurant presentation, natural lighting, appetizing, high detail.")
	return sb.String()
}
