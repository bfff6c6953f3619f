package models

// ConditionKind identifies a post-condition evaluated after a step's action.
type ConditionKind string

const (
	ConditionElementVisible    ConditionKind = "element_visible"
	ConditionElementNotVisible ConditionKind = "element_not_visible"
	ConditionTextContains      ConditionKind = "text_contains"
	ConditionTextEquals        ConditionKind = "text_equals"
	ConditionURLContains       ConditionKind = "url_contains"
	ConditionURLEquals         ConditionKind = "url_equals"
	ConditionAttributeEquals   ConditionKind = "attribute_equals"
	ConditionElementCount      ConditionKind = "element_count"
	ConditionCustom            ConditionKind = "custom"
)

// AllConditionKinds lists every supported success-condition kind.
var AllConditionKinds = []ConditionKind{
	ConditionElementVisible, ConditionElementNotVisible,
	ConditionTextContains, ConditionTextEquals,
	ConditionURLContains, ConditionURLEquals,
	ConditionAttributeEquals, ConditionElementCount, ConditionCustom,
}

// Valid reports whether k is a known condition kind.
func (k ConditionKind) Valid() bool {
	for _, known := range AllConditionKinds {
		if k == known {
			return true
		}
	}

	return false
}

// SuccessCondition is an optional post-condition attached to a step. A step
// without one is deemed successful once its action completes without error
// and, for element-targeting actions, the element was found.
type SuccessCondition struct {
	Kind      ConditionKind    `json:"kind"                validate:"required"`
	Selector  *ElementSelector `json:"selector,omitempty"`
	Attribute string           `json:"attribute,omitempty"`
	Expected  string           `json:"expected,omitempty"`
	Count     int              `json:"count,omitempty"`
	Script    string           `json:"script,omitempty"`
}
