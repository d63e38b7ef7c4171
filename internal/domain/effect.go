package domain

import "time"

// CenterStageSlug identifies the built-in effect that uses the fixed
// specialized prompt wrapper instead of the strength/face-aware template.
const CenterStageSlug = "center-stage"

// Category groups effects in the catalog.
type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Effect is the full catalog record. It carries the hidden prompt and must
// never be serialized to callers; use PublicEffect for that.
type Effect struct {
	ID              string    `db:"id" json:"-"`
	Name            string    `db:"name" json:"-"`
	Slug            string    `db:"slug" json:"-"`
	CategoryID      string    `db:"category_id" json:"-"`
	CategoryName    string    `db:"category_name" json:"-"`
	UserDescription string    `db:"user_description" json:"-"`
	HiddenPrompt    string    `db:"hidden_prompt" json:"-"`
	ThumbnailURL    string    `db:"thumbnail_url" json:"-"`
	Strength        float64   `db:"strength" json:"-"`
	PreserveFaces   bool      `db:"preserve_faces" json:"-"`
	MaxResolution   string    `db:"max_resolution" json:"-"`
	OutputFormat    string    `db:"output_format" json:"-"`
	IsActive        bool      `db:"is_active" json:"-"`
	IsPremium       bool      `db:"is_premium" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"-"`
	UpdatedAt       time.Time `db:"updated_at" json:"-"`
}

// PublicEffect is the only shape of an effect that leaves the service.
// It has no field for the hidden prompt.
type PublicEffect struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	CategoryName    string `json:"category_name"`
	UserDescription string `json:"user_description"`
	ThumbnailURL    string `json:"thumbnail_url"`
	IsPremium       bool   `json:"is_premium"`
}

// Public projects the effect onto its caller-visible view.
func (e *Effect) Public() PublicEffect {
	return PublicEffect{
		ID:              e.ID,
		Name:            e.Name,
		Slug:            e.Slug,
		CategoryName:    e.CategoryName,
		UserDescription: e.UserDescription,
		ThumbnailURL:    e.ThumbnailURL,
		IsPremium:       e.IsPremium,
	}
}

// IsSpecialized reports whether the effect is composed with the fixed wrapper.
func (e *Effect) IsSpecialized() bool {
	return e.Slug == CenterStageSlug
}

// TypeTag labels result metadata with the composer path that produced the prompt.
func (e *Effect) TypeTag() string {
	if e.IsSpecialized() {
		return "specialized"
	}
	return "standard"
}
