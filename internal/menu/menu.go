// Package menu defines the structured dish entries a job produces.
package menu

import "strings"

// PlaceholderImageRef is the sentinel stored for a dish whose image generation
// failed or was skipped. Distinct from any real image reference.
const PlaceholderImageRef = "placeholder://no-image"

// Dish is one structured, translatable menu entry. Optional fields are
// pointers: nil means the upstream service could not determine the value, and
// the absence is preserved rather than papered over with a default.
type Dish struct {
	OriginalName   string   `json:"original_name"`
	TranslatedName *string  `json:"translated_name"`
	Description    *string  `json:"description"`
	Ingredients    []string `json:"ingredients"`
	Price          *string  `json:"price"`
	ImageRef       *string  `json:"image_ref"`
}

// DisplayName returns the translated name when present, the original otherwise.
func (d Dish) DisplayName() string {
	if d.TranslatedName != nil && strings.TrimSpace(*d.TranslatedName) != "" {
		return *d.TranslatedName
	}
	return d.OriginalName
}

// HasImage reports whether the dish carries a real generated image reference.
func (d Dish) HasImage() bool {
	return d.ImageRef != nil && *d.ImageRef != "" && *d.ImageRef != PlaceholderImageRef
}

// SetImageRef records the generated image reference.
func (d *Dish) SetImageRef(ref string) {
	d.ImageRef = &ref
}

// SetPlaceholder marks the dish as having no generated image.
func (d *Dish) SetPlaceholder() {
	ref := PlaceholderImageRef
	d.ImageRef = &ref
}

// OptionalString normalizes a raw value into an explicit optional: nil for
// empty or whitespace-only input, a pointer to the trimmed value otherwise.
func OptionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
