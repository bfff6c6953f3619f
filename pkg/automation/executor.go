package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xjanova/postxagent/pkg/browser"
	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/selector"
	"github.com/xjanova/postxagent/pkg/template"
)

const (
	// DefaultStepTimeout bounds the resolve+act sequence when a step does
	// not set its own timeout.
	DefaultStepTimeout = 10 * time.Second

	// DefaultWait is the sleep applied by a bare wait action without input.
	DefaultWait = time.Second

	pollInterval = 100 * time.Millisecond
)

// Executor runs one workflow step against a page. It is stateless with
// respect to any given run and is shared across concurrent runs.
type Executor struct {
	resolver       *selector.Resolver
	defaultTimeout time.Duration
	logger         *slog.Logger
}

func NewExecutor(resolver *selector.Resolver, logger *slog.Logger) *Executor {
	return &Executor{
		resolver:       resolver,
		defaultTimeout: DefaultStepTimeout,
		logger:         logger.With("module", "step_executor"),
	}
}

// Execute runs the step: settle-time wait, bounded resolve+act attempts with
// retries, success-condition evaluation, settle-time wait again. The returned
// error is the terminal typed failure (nil on success); the StepResult always
// carries the recorded outcome either way.
func (e *Executor) Execute(
	ctx context.Context,
	page browser.Page,
	step *models.Step,
	vars models.Variables,
) (models.StepResult, error) {
	started := time.Now()
	result := models.StepResult{
		StepID:  step.ID,
		Order:   step.Order,
		Action:  step.Action,
		Outputs: models.Variables{},
	}

	if !step.Action.Valid() {
		return e.finish(result, started, fmt.Errorf("%w: %s", ErrUnsupportedAction, step.Action))
	}

	if err := sleepCtx(ctx, step.WaitBefore()); err != nil {
		return e.finish(result, started, err)
	}

	input, err := e.stepInput(step, vars)
	if err != nil {
		return e.finish(result, started, err)
	}

	var lastErr error

	for attempt := 0; attempt <= step.RetryCount; attempt++ {
		result.Attempts = attempt + 1

		if attempt > 0 {
			e.logger.DebugContext(ctx, "Retrying step",
				"step_id", step.ID, "attempt", attempt+1, "error", lastErr)
		}

		lastErr = e.attempt(ctx, page, step, input, vars, &result)
		if lastErr == nil {
			break
		}

		if !IsRecoverable(lastErr) {
			break
		}
	}

	// The settle buffer applies to failed attempts too; a skipped optional
	// step must not bleed unsettled page state into the next step.
	if err := sleepCtx(ctx, step.WaitAfter()); err != nil && lastErr == nil {
		return e.finish(result, started, err)
	}

	if lastErr != nil {
		return e.finish(result, started, lastErr)
	}

	result.Success = true

	return e.finish(result, started, nil)
}

func (e *Executor) finish(result models.StepResult, started time.Time, err error) (models.StepResult, error) {
	result.Elapsed = time.Since(started)

	if err != nil {
		result.Error = err.Error()
	}

	return result, err
}

// attempt performs one resolve+act pass bounded by the step timeout, then
// evaluates the success condition fresh.
func (e *Executor) attempt(
	ctx context.Context,
	page browser.Page,
	step *models.Step,
	input string,
	vars models.Variables,
	result *models.StepResult,
) error {
	attemptCtx, cancel := context.WithTimeout(ctx, step.Timeout(e.defaultTimeout))
	defer cancel()

	err := e.act(attemptCtx, page, step, input, vars, result)
	if err != nil {
		// Distinguish exceeding the step budget from the caller's own
		// cancellation.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("step %s: %w", step.ID, ErrActionTimeout)
		}

		return err
	}

	if step.Condition != nil {
		if err := e.evaluateCondition(attemptCtx, page, step.Condition); err != nil {
			return err
		}
	}

	return nil
}

func (e *Executor) act(
	ctx context.Context,
	page browser.Page,
	step *models.Step,
	input string,
	vars models.Variables,
	result *models.StepResult,
) error {
	var el browser.Element

	if step.Action.RequiresElement() {
		res, err := e.resolver.Resolve(ctx, page, step.Selector, step.Alternatives, requiresActionable(step.Action))
		if err != nil {
			if selector.IsNotFound(err) && step.Action == models.ActionWaitForElement {
				return e.waitForElement(ctx, page, step)
			}

			return err
		}

		el = res.Element
	}

	switch step.Action {
	case models.ActionNavigate:
		return page.Navigate(ctx, input)
	case models.ActionClick:
		return el.Click(ctx)
	case models.ActionDoubleClick:
		return el.DoubleClick(ctx)
	case models.ActionRightClick:
		return el.RightClick(ctx)
	case models.ActionType:
		return el.Type(ctx, input)
	case models.ActionClear:
		return el.Clear(ctx)
	case models.ActionSelect:
		return el.SelectOption(ctx, input)
	case models.ActionUpload:
		return e.upload(ctx, el, step, vars)
	case models.ActionDragDrop:
		return e.dragDrop(ctx, page, el, input)
	case models.ActionScroll:
		return el.ScrollIntoView(ctx)
	case models.ActionHover:
		return el.Hover(ctx)
	case models.ActionWait:
		return sleepCtx(ctx, waitDuration(input))
	case models.ActionWaitForElement:
		return nil // already resolved above
	case models.ActionWaitForNavigation:
		return page.WaitNavigation(ctx)
	case models.ActionScreenshot:
		return e.screenshot(ctx, page, step, result)
	case models.ActionExtractText:
		return e.extractText(ctx, el, step, result)
	case models.ActionExtractAttribute:
		return e.extractAttribute(ctx, el, step, input, result)
	case models.ActionAssertVisible:
		return e.assertVisible(ctx, el)
	case models.ActionAssertText:
		return e.assertText(ctx, el, input)
	case models.ActionExecuteScript:
		return e.executeScript(ctx, page, step, input, result)
	case models.ActionPressKey:
		return page.PressKey(ctx, input)
	case models.ActionLogin:
		return e.login(ctx, page, step, vars)
	}

	return fmt.Errorf("%w: %s", ErrUnsupportedAction, step.Action)
}

// requiresActionable reports whether resolution must yield a visible and
// enabled element. Extraction and assertions only need the element found.
func requiresActionable(kind models.ActionKind) bool {
	switch kind {
	case models.ActionClick, models.ActionDoubleClick, models.ActionRightClick,
		models.ActionType, models.ActionClear, models.ActionSelect,
		models.ActionUpload, models.ActionDragDrop, models.ActionHover,
		models.ActionScroll:
		return true
	default:
		return false
	}
}

func (e *Executor) waitForElement(ctx context.Context, page browser.Page, step *models.Step) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, err := e.resolver.Resolve(ctx, page, step.Selector, step.Alternatives, false)
			if err == nil {
				return nil
			}

			if !selector.IsNotFound(err) {
				return err
			}
		}
	}
}

func (e *Executor) upload(ctx context.Context, el browser.Element, step *models.Step, vars models.Variables) error {
	if step.InputVariable == "" {
		return fmt.Errorf("%w: upload step %s has no input variable", ErrInvalidInput, step.ID)
	}

	value, ok := vars.Lookup(step.InputVariable)
	if !ok {
		return fmt.Errorf("%w: variable %q is unbound", ErrInvalidInput, step.InputVariable)
	}

	if value.Kind != models.ValueBytes {
		return fmt.Errorf("%w: variable %q is not a bytes value", ErrInvalidInput, step.InputVariable)
	}

	filename := step.InputValue
	if filename == "" {
		filename = "upload.bin"
	}

	return el.Upload(ctx, filename, value.Bytes)
}

// dragDrop resolves its drop target from the step input, a CSS selector.
func (e *Executor) dragDrop(ctx context.Context, page browser.Page, el browser.Element, input string) error {
	if input == "" {
		return fmt.Errorf("%w: drag_drop step has no drop target selector", ErrInvalidInput)
	}

	target := models.ElementSelector{Kind: models.SelectorCSS, Value: input}

	res, err := e.resolver.Resolve(ctx, page, &target, nil, true)
	if err != nil {
		return err
	}

	return el.DragTo(ctx, res.Element)
}

func (e *Executor) screenshot(ctx context.Context, page browser.Page, step *models.Step, result *models.StepResult) error {
	data, err := page.Screenshot(ctx)
	if err != nil {
		return err
	}

	result.Outputs[outputKey(step, "screenshot")] = models.BytesValue(data)

	return nil
}

func (e *Executor) extractText(ctx context.Context, el browser.Element, step *models.Step, result *models.StepResult) error {
	text, err := el.Text(ctx)
	if err != nil {
		return err
	}

	result.Outputs[outputKey(step, "text")] = models.StringValue(text)

	return nil
}

func (e *Executor) extractAttribute(
	ctx context.Context,
	el browser.Element,
	step *models.Step,
	attr string,
	result *models.StepResult,
) error {
	if attr == "" {
		return fmt.Errorf("%w: extract_attribute step %s has no attribute name", ErrInvalidInput, step.ID)
	}

	value, _, err := el.Attribute(ctx, attr)
	if err != nil {
		return err
	}

	result.Outputs[outputKey(step, attr)] = models.StringValue(value)

	return nil
}

func (e *Executor) assertVisible(ctx context.Context, el browser.Element) error {
	visible, err := el.Visible(ctx)
	if err != nil {
		return err
	}

	if !visible {
		return &AssertionError{Kind: models.ConditionElementVisible, Detail: "element is not visible"}
	}

	return nil
}

func (e *Executor) assertText(ctx context.Context, el browser.Element, expected string) error {
	text, err := el.Text(ctx)
	if err != nil {
		return err
	}

	if !strings.Contains(text, expected) {
		return &AssertionError{
			Kind:   models.ConditionTextContains,
			Detail: fmt.Sprintf("text %q does not contain %q", text, expected),
		}
	}

	return nil
}

func (e *Executor) executeScript(
	ctx context.Context,
	page browser.Page,
	step *models.Step,
	script string,
	result *models.StepResult,
) error {
	out, err := page.RunScript(ctx, script)
	if err != nil {
		return err
	}

	if step.OutputKey != "" {
		result.Outputs[step.OutputKey] = models.StringValue(out)
	}

	return nil
}

// login types the caller-supplied credential variables into the username and
// password fields and submits. Field layout: the step selector locates the
// username field, the first alternative the password field, the second (when
// present) the submit control. Credential values are never logged.
func (e *Executor) login(ctx context.Context, page browser.Page, step *models.Step, vars models.Variables) error {
	username, ok := vars.Lookup("credentials.username")
	if !ok {
		return fmt.Errorf("%w: credentials.username is unbound", ErrInvalidInput)
	}

	password, ok := vars.Lookup("credentials.password")
	if !ok {
		return fmt.Errorf("%w: credentials.password is unbound", ErrInvalidInput)
	}

	if step.Selector == nil || len(step.Alternatives) < 1 {
		return fmt.Errorf("%w: login step %s needs username and password selectors", ErrInvalidInput, step.ID)
	}

	userField, err := e.resolver.Resolve(ctx, page, step.Selector, nil, true)
	if err != nil {
		return err
	}

	if err := userField.Element.Type(ctx, username.AsString()); err != nil {
		return err
	}

	passField, err := e.resolver.Resolve(ctx, page, &step.Alternatives[0], nil, true)
	if err != nil {
		return err
	}

	if err := passField.Element.Type(ctx, password.AsString()); err != nil {
		return err
	}

	if len(step.Alternatives) > 1 {
		submit, err := e.resolver.Resolve(ctx, page, &step.Alternatives[1], nil, true)
		if err != nil {
			return err
		}

		return submit.Element.Click(ctx)
	}

	return page.PressKey(ctx, "Enter")
}

func (e *Executor) evaluateCondition(ctx context.Context, page browser.Page, cond *models.SuccessCondition) error {
	fail := func(detail string) error {
		return &AssertionError{Kind: cond.Kind, Detail: detail}
	}

	switch cond.Kind {
	case models.ConditionElementVisible, models.ConditionElementNotVisible,
		models.ConditionTextContains, models.ConditionTextEquals,
		models.ConditionAttributeEquals, models.ConditionElementCount:
		return e.evaluateElementCondition(ctx, page, cond, fail)
	case models.ConditionURLContains, models.ConditionURLEquals:
		// The action may have navigated; cached drivers only learn the new
		// URL from an explicit refresh.
		if err := page.Refresh(ctx); err != nil {
			return err
		}

		if cond.Kind == models.ConditionURLEquals {
			if page.URL() != cond.Expected {
				return fail(fmt.Sprintf("url %q != %q", page.URL(), cond.Expected))
			}

			return nil
		}

		if !strings.Contains(page.URL(), cond.Expected) {
			return fail(fmt.Sprintf("url %q does not contain %q", page.URL(), cond.Expected))
		}

		return nil
	case models.ConditionCustom:
		out, err := page.RunScript(ctx, cond.Script)
		if err != nil {
			return err
		}

		if out != "true" {
			return fail(fmt.Sprintf("custom script returned %q", out))
		}

		return nil
	}

	return fmt.Errorf("unsupported condition kind: %s", cond.Kind)
}

func (e *Executor) evaluateElementCondition(
	ctx context.Context,
	page browser.Page,
	cond *models.SuccessCondition,
	fail func(string) error,
) error {
	if cond.Selector == nil {
		return fail("condition has no selector")
	}

	res, err := e.resolver.Resolve(ctx, page, cond.Selector, nil, false)

	if cond.Kind == models.ConditionElementNotVisible {
		if err != nil {
			if selector.IsNotFound(err) {
				return nil // absent is as good as hidden
			}

			return err
		}

		visible, verr := res.Element.Visible(ctx)
		if verr != nil {
			return verr
		}

		if visible {
			return fail("element is still visible")
		}

		return nil
	}

	if err != nil {
		if selector.IsNotFound(err) {
			return fail("element not found")
		}

		return err
	}

	switch cond.Kind {
	case models.ConditionElementVisible:
		visible, err := res.Element.Visible(ctx)
		if err != nil {
			return err
		}

		if !visible {
			return fail("element is not visible")
		}
	case models.ConditionTextContains:
		text, err := res.Element.Text(ctx)
		if err != nil {
			return err
		}

		if !strings.Contains(text, cond.Expected) {
			return fail(fmt.Sprintf("text %q does not contain %q", text, cond.Expected))
		}
	case models.ConditionTextEquals:
		text, err := res.Element.Text(ctx)
		if err != nil {
			return err
		}

		if text != cond.Expected {
			return fail(fmt.Sprintf("text %q != %q", text, cond.Expected))
		}
	case models.ConditionAttributeEquals:
		value, _, err := res.Element.Attribute(ctx, cond.Attribute)
		if err != nil {
			return err
		}

		if value != cond.Expected {
			return fail(fmt.Sprintf("attribute %s=%q != %q", cond.Attribute, value, cond.Expected))
		}
	case models.ConditionElementCount:
		found, err := page.Find(ctx, browser.Locator{Strategy: browser.ByCSS, Value: cond.Selector.Value})
		if err != nil {
			return err
		}

		if len(found) != cond.Count {
			return fail(fmt.Sprintf("found %d elements, want %d", len(found), cond.Count))
		}
	}

	return nil
}

// stepInput resolves the step's effective input. A bound variable reference
// wins over the literal value; literals may themselves carry placeholders.
func (e *Executor) stepInput(step *models.Step, vars models.Variables) (string, error) {
	if step.InputVariable != "" {
		value, ok := vars.Lookup(step.InputVariable)
		if !ok {
			return "", fmt.Errorf("%w: variable %q is unbound", ErrInvalidInput, step.InputVariable)
		}

		return value.AsString(), nil
	}

	if step.InputValue == "" {
		return "", nil
	}

	rendered, err := template.Render(step.InputValue, vars)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return rendered, nil
}

func outputKey(step *models.Step, fallback string) string {
	if step.OutputKey != "" {
		return step.OutputKey
	}

	return fallback
}

func waitDuration(input string) time.Duration {
	if input == "" {
		return DefaultWait
	}

	ms, err := strconv.Atoi(input)
	if err != nil || ms < 0 {
		return DefaultWait
	}

	return time.Duration(ms) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
