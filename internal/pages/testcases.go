package pages

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/interact"
)

// Field names one input of the test case template form.
type Field string

const (
	FieldTestCaseID       Field = "Test Case ID"
	FieldTitle            Field = "Title"
	FieldTestPhase        Field = "Test Phase"
	FieldTestEnvironment  Field = "Test Environment"
	FieldFunctionalArea   Field = "Functional Area"
	FieldScriptReference  Field = "Script Reference"
	FieldCreatedBy        Field = "Created By"
	FieldRequirementID    Field = "Requirement ID"
	FieldUserStory        Field = "User Story"
	FieldPriority         Field = "Priority"
	FieldTestType         Field = "Test Type"
	FieldTestLevel        Field = "Test Level"
	FieldAutomationStatus Field = "Automation Status"
	FieldDescription      Field = "Description"
	FieldPreconditions    Field = "Preconditions"
	FieldTestData         Field = "Test Data"
	FieldCreationDate     Field = "Creation Date"
	FieldLastUpdated      Field = "Last Updated"
)

// PredefinedTags are the tags the form offers out of the box.
var PredefinedTags = []string{"Smoke", "Regression", "Sanity", "Critical"}

type formField struct {
	target browser.Target
	choice bool
}

var (
	formInputs    = browser.Sel("main input")
	formSelects   = browser.Sel("main select")
	formTextareas = browser.Sel("main textarea")
	formDates     = browser.Sel(`main input[type="date"]`)

	formFields = map[Field]formField{
		FieldTestCaseID:       {target: formInputs.Nth(0)},
		FieldTitle:            {target: formInputs.Nth(1)},
		FieldTestPhase:        {target: formInputs.Nth(2)},
		FieldTestEnvironment:  {target: formInputs.Nth(3)},
		FieldFunctionalArea:   {target: formInputs.Nth(4)},
		FieldScriptReference:  {target: formInputs.Nth(5)},
		FieldCreatedBy:        {target: formInputs.Nth(6)},
		FieldRequirementID:    {target: formInputs.Nth(9)},
		FieldUserStory:        {target: formInputs.Nth(10)},
		FieldPriority:         {target: formSelects.Nth(0), choice: true},
		FieldTestType:         {target: formSelects.Nth(1), choice: true},
		FieldTestLevel:        {target: formSelects.Nth(2), choice: true},
		FieldAutomationStatus: {target: formSelects.Nth(3), choice: true},
		FieldDescription:      {target: formTextareas.Nth(0)},
		FieldPreconditions:    {target: formTextareas.Nth(1)},
		FieldTestData:         {target: formTextareas.Nth(2)},
		FieldCreationDate:     {target: formDates.Nth(0)},
		FieldLastUpdated:      {target: formDates.Nth(1)},
	}

	addStepBtn    = browser.Sel("button").WithText("Add Step")
	removeStepBtn = browser.Sel("button").WithText("Remove Step")
	stepTextareas = browser.Sel("textarea")
	tagInput      = browser.Sel(`input[placeholder="Add Tag"]`)
	addTagBtn     = browser.Sel("button").WithText("Add Tag")
	tagRemoveBtn  = browser.Sel("span > button")
	tagSpans      = browser.Sel("span")
	exportDocBtn  = browser.Sel("button").WithText("Export to DOC")
	exportXlsBtn  = browser.Sel("button").WithText("Export to Excel")
)

// TestCase is the content of one filled template.
type TestCase struct {
	Fields map[Field]string
	Steps  []Step
	Tags   []string
}

type Step struct {
	Description string
	Expected    string
}

type TestCasesPage struct {
	*Base
}

func NewTestCasesPage(ix *interact.Interactor, baseURL string) *TestCasesPage {
	return &TestCasesPage{Base: newBase(ix, baseURL)}
}

func (p *TestCasesPage) Navigate(ctx context.Context) error {
	if err := p.open(ctx, "/templates/test-cases", browser.LoadStateDOMContentLoaded); err != nil {
		return err
	}
	return p.WaitForPageLoad(ctx)
}

func (p *TestCasesPage) WaitForPageLoad(ctx context.Context) error {
	return p.settle(ctx, browser.LoadStateDOMContentLoaded, formInputs, loadMarkerTimeout)
}

func lookupField(f Field) (formField, error) {
	ff, ok := formFields[f]
	if !ok {
		return formField{}, fmt.Errorf("unknown field %q", f)
	}
	return ff, nil
}

// Set writes value into f, selecting for dropdowns and filling otherwise.
func (p *TestCasesPage) Set(ctx context.Context, f Field, value string) error {
	ff, err := lookupField(f)
	if err != nil {
		return err
	}
	if ff.choice {
		return p.ix.SafeSelect(ctx, ff.target, value)
	}
	return p.ix.SafeFill(ctx, ff.target, value)
}

func (p *TestCasesPage) Get(ctx context.Context, f Field) (string, error) {
	ff, err := lookupField(f)
	if err != nil {
		return "", err
	}
	return p.value(ctx, ff.target)
}

func stepDescription(i int) browser.Target { return stepTextareas.Nth(i*2 + 3) }

func stepExpected(i int) browser.Target { return stepTextareas.Nth(i*2 + 4) }

func (p *TestCasesPage) AddStep(ctx context.Context) error {
	return p.ix.SafeClick(ctx, addStepBtn)
}

func (p *TestCasesPage) RemoveStep(ctx context.Context, i int) error {
	return p.ix.SafeClick(ctx, removeStepBtn.Nth(i))
}

func (p *TestCasesPage) NumberOfSteps(ctx context.Context) (int, error) {
	return p.count(ctx, removeStepBtn)
}

// SetStep fills step i, adding steps until it exists.
func (p *TestCasesPage) SetStep(ctx context.Context, i int, s Step) error {
	n, err := p.NumberOfSteps(ctx)
	if err != nil {
		return err
	}
	for ; n <= i; n++ {
		if err := p.AddStep(ctx); err != nil {
			return err
		}
	}
	if err := p.ix.SafeFill(ctx, stepDescription(i), s.Description); err != nil {
		return err
	}
	return p.ix.SafeFill(ctx, stepExpected(i), s.Expected)
}

func (p *TestCasesPage) Step(ctx context.Context, i int) (Step, error) {
	desc, err := p.value(ctx, stepDescription(i))
	if err != nil {
		return Step{}, err
	}
	exp, err := p.value(ctx, stepExpected(i))
	if err != nil {
		return Step{}, err
	}
	return Step{Description: desc, Expected: exp}, nil
}

func (p *TestCasesPage) AddTag(ctx context.Context, tag string) error {
	if err := p.ix.SafeFill(ctx, tagInput, tag); err != nil {
		return err
	}
	return p.ix.SafeClick(ctx, addTagBtn)
}

func (p *TestCasesPage) RemoveTag(ctx context.Context, i int) error {
	return p.ix.SafeClick(ctx, tagRemoveBtn.Nth(i))
}

// Tags returns the predefined tags currently attached.
func (p *TestCasesPage) Tags(ctx context.Context) ([]string, error) {
	texts, err := p.allTexts(ctx, tagSpans)
	if err != nil {
		return nil, err
	}
	return CleanTags(texts), nil
}

// CleanTags strips the remove marker from tag chip texts and keeps the
// predefined ones.
func CleanTags(texts []string) []string {
	var tags []string
	for _, t := range texts {
		t = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "x"))
		if slices.Contains(PredefinedTags, t) && !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	return tags
}

func (p *TestCasesPage) ExportToDoc(ctx context.Context) error {
	return p.ix.SafeClick(ctx, exportDocBtn)
}

func (p *TestCasesPage) ExportToExcel(ctx context.Context) error {
	return p.ix.SafeClick(ctx, exportXlsBtn)
}

// Fill writes every field, step and tag of tc.
func (p *TestCasesPage) Fill(ctx context.Context, tc TestCase) error {
	for _, f := range fieldOrder {
		v, ok := tc.Fields[f]
		if !ok {
			continue
		}
		if err := p.Set(ctx, f, v); err != nil {
			return err
		}
	}
	for i, s := range tc.Steps {
		if err := p.SetStep(ctx, i, s); err != nil {
			return err
		}
	}
	for _, t := range tc.Tags {
		if err := p.AddTag(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

var fieldOrder = []Field{
	FieldTestCaseID, FieldTitle, FieldDescription, FieldPriority, FieldTestType,
	FieldTestLevel, FieldAutomationStatus, FieldTestPhase, FieldTestEnvironment,
	FieldFunctionalArea, FieldScriptReference, FieldCreatedBy, FieldRequirementID,
	FieldUserStory, FieldPreconditions, FieldTestData, FieldCreationDate, FieldLastUpdated,
}

var requiredFields = []struct {
	field Field
	msg   string
}{
	{FieldTestCaseID, "Test Case ID is required"},
	{FieldTitle, "Title is required"},
	{FieldDescription, "Description is required"},
}

// ValidationErrors lists the messages for required fields left blank.
func (p *TestCasesPage) ValidationErrors(ctx context.Context) ([]string, error) {
	var errs []string
	for _, r := range requiredFields {
		v, err := p.Get(ctx, r.field)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(v) == "" {
			errs = append(errs, r.msg)
		}
	}
	return errs, nil
}

func (p *TestCasesPage) IsFormValid(ctx context.Context) (bool, error) {
	errs, err := p.ValidationErrors(ctx)
	return err == nil && len(errs) == 0, err
}
