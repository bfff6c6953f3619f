package models

// SelectorKind identifies the strategy used to locate a DOM element.
type SelectorKind string

const (
	SelectorCSS             SelectorKind = "css"
	SelectorXPath           SelectorKind = "xpath"
	SelectorID              SelectorKind = "id"
	SelectorName            SelectorKind = "name"
	SelectorClassName       SelectorKind = "class_name"
	SelectorTagName         SelectorKind = "tag_name"
	SelectorLinkText        SelectorKind = "link_text"
	SelectorPartialLinkText SelectorKind = "partial_link_text"
	SelectorPlaceholder     SelectorKind = "placeholder"
	SelectorLabel           SelectorKind = "label"
	SelectorAriaLabel       SelectorKind = "aria_label"
	SelectorTestID          SelectorKind = "test_id"
	SelectorRole            SelectorKind = "role"
	SelectorText            SelectorKind = "text"
	SelectorVisual          SelectorKind = "visual"
	SelectorSmart           SelectorKind = "smart"
)

// AllSelectorKinds lists every supported selector kind.
var AllSelectorKinds = []SelectorKind{
	SelectorCSS, SelectorXPath, SelectorID, SelectorName, SelectorClassName,
	SelectorTagName, SelectorLinkText, SelectorPartialLinkText,
	SelectorPlaceholder, SelectorLabel, SelectorAriaLabel, SelectorTestID,
	SelectorRole, SelectorText, SelectorVisual, SelectorSmart,
}

// Valid reports whether k is a known selector kind.
func (k SelectorKind) Valid() bool {
	for _, known := range AllSelectorKinds {
		if k == known {
			return true
		}
	}

	return false
}

// Semantic reports whether the kind matches by human-visible text and must be
// retried case-insensitively before being declared not found.
func (k SelectorKind) Semantic() bool {
	switch k {
	case SelectorText, SelectorPlaceholder, SelectorLabel, SelectorAriaLabel, SelectorLinkText:
		return true
	default:
		return false
	}
}

// Pluggable reports whether resolution of this kind is delegated to an
// external matcher strategy instead of a structural page query.
func (k SelectorKind) Pluggable() bool {
	return k == SelectorVisual || k == SelectorSmart
}

// Rect is a bounding box captured when an element was recorded, in CSS pixels
// relative to the page viewport.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementSelector describes how to locate a DOM element: a strategy plus the
// strategy-specific value, and optional auxiliary hints captured at recording
// time that self-healing uses when the primary value stops matching.
type ElementSelector struct {
	Kind          SelectorKind      `json:"kind"                     validate:"required"`
	Value         string            `json:"value"`
	Text          string            `json:"text,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	Position      *Rect             `json:"position,omitempty"`
	Parent        *ElementSelector  `json:"parent,omitempty"`
	VisualHash    string            `json:"visual_hash,omitempty"`
	AIDescription string            `json:"ai_description,omitempty"`
	Confidence    float64           `json:"confidence,omitempty"     validate:"min=0,max=1"`

	// AutoRecovered marks an alternative added by self-healing rather than
	// recorded during teaching.
	AutoRecovered bool `json:"auto_recovered,omitempty"`
}
