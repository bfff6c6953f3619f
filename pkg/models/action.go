// Package models defines the core domain models for browser workflow automation.
package models

// ActionKind identifies one kind of browser interaction a step performs.
// The set is closed: execution dispatches exhaustively over these values
// instead of a string-keyed handler table.
type ActionKind string

const (
	ActionNavigate          ActionKind = "navigate"
	ActionClick             ActionKind = "click"
	ActionDoubleClick       ActionKind = "double_click"
	ActionRightClick        ActionKind = "right_click"
	ActionType              ActionKind = "type"
	ActionClear             ActionKind = "clear"
	ActionSelect            ActionKind = "select"
	ActionUpload            ActionKind = "upload"
	ActionDragDrop          ActionKind = "drag_drop"
	ActionScroll            ActionKind = "scroll"
	ActionHover             ActionKind = "hover"
	ActionWait              ActionKind = "wait"
	ActionWaitForElement    ActionKind = "wait_for_element"
	ActionWaitForNavigation ActionKind = "wait_for_navigation"
	ActionScreenshot        ActionKind = "screenshot"
	ActionExtractText       ActionKind = "extract_text"
	ActionExtractAttribute  ActionKind = "extract_attribute"
	ActionAssertVisible     ActionKind = "assert_visible"
	ActionAssertText        ActionKind = "assert_text"
	ActionExecuteScript     ActionKind = "execute_script"
	ActionPressKey          ActionKind = "press_key"
	ActionLogin             ActionKind = "login"
)

// AllActionKinds lists every supported action kind, used for document
// validation and for the API's kind discovery endpoint.
var AllActionKinds = []ActionKind{
	ActionNavigate, ActionClick, ActionDoubleClick, ActionRightClick,
	ActionType, ActionClear, ActionSelect, ActionUpload, ActionDragDrop,
	ActionScroll, ActionHover, ActionWait, ActionWaitForElement,
	ActionWaitForNavigation, ActionScreenshot, ActionExtractText,
	ActionExtractAttribute, ActionAssertVisible, ActionAssertText,
	ActionExecuteScript, ActionPressKey, ActionLogin,
}

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	for _, known := range AllActionKinds {
		if k == known {
			return true
		}
	}

	return false
}

// RequiresElement reports whether the action operates on a resolved DOM
// element. Actions like navigate, wait and press_key act on the page itself.
func (k ActionKind) RequiresElement() bool {
	switch k {
	case ActionClick, ActionDoubleClick, ActionRightClick, ActionType,
		ActionClear, ActionSelect, ActionUpload, ActionDragDrop,
		ActionScroll, ActionHover, ActionWaitForElement,
		ActionExtractText, ActionExtractAttribute,
		ActionAssertVisible, ActionAssertText:
		return true
	case ActionNavigate, ActionWait, ActionWaitForNavigation,
		ActionScreenshot, ActionExecuteScript, ActionPressKey, ActionLogin:
		return false
	}

	return false
}

// IsAssertion reports whether a failure of this action is an assertion
// failure rather than a recoverable interaction failure.
func (k ActionKind) IsAssertion() bool {
	return k == ActionAssertVisible || k == ActionAssertText
}

// Provenance records how a step came to exist on a workflow.
type Provenance string

const (
	ProvenanceManual        Provenance = "manual"
	ProvenanceAIObserved    Provenance = "ai_observed"
	ProvenanceAIGenerated   Provenance = "ai_generated"
	ProvenanceImported      Provenance = "imported"
	ProvenanceAutoRecovered Provenance = "auto_recovered"
)
