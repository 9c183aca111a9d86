package automation

import (
	"sort"
	"strings"
	"time"

	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Automation is an affiliate's named sequence of delayed messages for one
// trigger. It starts inactive and may only be activated while it has at
// least one active step whose delays do not decrease with step order.
type Automation struct {
	shared.BaseAggregateRoot
	AffiliateID uuid.UUID
	Name        string
	TriggerType TriggerType
	IsActive    bool
	Steps       []*Step
}

// NewAutomation creates an inactive automation without steps
func NewAutomation(affiliateID uuid.UUID, name string, trigger TriggerType) (*Automation, error) {
	if affiliateID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_AFFILIATE", "Affiliate ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Automation name is required")
	}
	if !trigger.IsValid() {
		return nil, ErrInvalidTrigger
	}
	return &Automation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		AffiliateID:       affiliateID,
		Name:              name,
		TriggerType:       trigger,
		Steps:             make([]*Step, 0),
	}, nil
}

// OwnedBy reports whether the automation belongs to the affiliate
func (a *Automation) OwnedBy(affiliateID uuid.UUID) bool {
	return a.AffiliateID == affiliateID
}

// Update changes the name and trigger
func (a *Automation) Update(name string, trigger TriggerType) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Automation name is required")
	}
	if !trigger.IsValid() {
		return ErrInvalidTrigger
	}
	a.Name = name
	a.TriggerType = trigger
	a.touch()
	return nil
}

// AddStep appends a step. A zero StepOrder takes the next free position.
func (a *Automation) AddStep(in StepInput) (*Step, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	order := in.StepOrder
	if order == 0 {
		order = a.nextStepOrder()
	}
	if a.stepByOrder(order) != nil {
		return nil, ErrDuplicateStepOrder
	}

	now := time.Now()
	step := &Step{
		ID:           uuid.New(),
		AutomationID: a.ID,
		StepOrder:    order,
		DelayHours:   in.DelayHours,
		EmailSubject: strings.TrimSpace(in.EmailSubject),
		EmailBody:    in.EmailBody,
		IsActive:     in.IsActive == nil || *in.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	a.Steps = append(a.Steps, step)
	a.sortSteps()

	if a.IsActive {
		if err := ValidateDelayOrder(a.ActiveSteps()); err != nil {
			a.removeStep(step.ID)
			return nil, err
		}
	}
	a.touch()
	return step, nil
}

// UpdateStep replaces a step's editable fields
func (a *Automation) UpdateStep(stepID uuid.UUID, in StepInput) (*Step, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	step := a.Step(stepID)
	if step == nil {
		return nil, ErrStepNotFound
	}
	if in.StepOrder == 0 {
		in.StepOrder = step.StepOrder
	}
	if other := a.stepByOrder(in.StepOrder); other != nil && other.ID != stepID {
		return nil, ErrDuplicateStepOrder
	}

	prev := *step
	step.StepOrder = in.StepOrder
	step.DelayHours = in.DelayHours
	step.EmailSubject = strings.TrimSpace(in.EmailSubject)
	step.EmailBody = in.EmailBody
	if in.IsActive != nil {
		step.IsActive = *in.IsActive
	}
	step.UpdatedAt = time.Now()
	a.sortSteps()

	if a.IsActive {
		if err := a.checkActivatable(); err != nil {
			*step = prev
			a.sortSteps()
			return nil, err
		}
	}
	a.touch()
	return step, nil
}

// RemoveStep deletes a step. Removing the last active step deactivates the
// automation so it can never fire empty.
func (a *Automation) RemoveStep(stepID uuid.UUID) error {
	if !a.removeStep(stepID) {
		return ErrStepNotFound
	}
	if a.IsActive && len(a.ActiveSteps()) == 0 {
		a.IsActive = false
	}
	a.touch()
	return nil
}

// Activate turns the automation on
func (a *Automation) Activate() error {
	if err := a.checkActivatable(); err != nil {
		return err
	}
	a.IsActive = true
	a.touch()
	return nil
}

// Deactivate turns the automation off. Already scheduled executions are
// not affected.
func (a *Automation) Deactivate() {
	a.IsActive = false
	a.touch()
}

// ActiveSteps returns active steps ordered by StepOrder
func (a *Automation) ActiveSteps() []*Step {
	steps := make([]*Step, 0, len(a.Steps))
	for _, s := range a.Steps {
		if s.IsActive {
			steps = append(steps, s)
		}
	}
	return steps
}

// Step returns the step with the given ID or nil
func (a *Automation) Step(id uuid.UUID) *Step {
	for _, s := range a.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ValidateDelayOrder checks that delays never decrease across ordered steps
func ValidateDelayOrder(steps []*Step) error {
	for i := 1; i < len(steps); i++ {
		if steps[i].DelayHours < steps[i-1].DelayHours {
			return ErrNonMonotonicDelays
		}
	}
	return nil
}

func (a *Automation) checkActivatable() error {
	active := a.ActiveSteps()
	if len(active) == 0 {
		return ErrNoActiveSteps
	}
	return ValidateDelayOrder(active)
}

func (a *Automation) nextStepOrder() int {
	max := 0
	for _, s := range a.Steps {
		if s.StepOrder > max {
			max = s.StepOrder
		}
	}
	return max + 1
}

func (a *Automation) stepByOrder(order int) *Step {
	for _, s := range a.Steps {
		if s.StepOrder == order {
			return s
		}
	}
	return nil
}

func (a *Automation) removeStep(id uuid.UUID) bool {
	for i, s := range a.Steps {
		if s.ID == id {
			a.Steps = append(a.Steps[:i], a.Steps[i+1:]...)
			return true
		}
	}
	return false
}

func (a *Automation) sortSteps() {
	sort.SliceStable(a.Steps, func(i, j int) bool {
		return a.Steps[i].StepOrder < a.Steps[j].StepOrder
	})
}

func (a *Automation) touch() {
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}
