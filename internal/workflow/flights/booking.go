// -- internal/workflow/flights/booking.go --
package flights

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
	"github.com/Mukuloli/browser-automation-1/internal/agent"
	"github.com/Mukuloli/browser-automation-1/internal/browser"
	"github.com/Mukuloli/browser-automation-1/internal/interaction"
)

const flightsURL = "https://www.google.com/travel/flights"

// Phase turn budgets. Form filling needs room for date pickers and
// autocomplete; clicking a listed flight does not.
const (
	formFillTurns = 20
	selectTurns   = 8
	proceedTurns  = 15
)

// paymentHandoff is shown when the workflow reaches the payment boundary.
// Entering payment details is out of scope and blocked by policy anyway.
const paymentHandoff = "Reached the payment page. The automation stops here; " +
	"review the itinerary and complete payment yourself in the open browser."

// Workflow books a flight on Google Flights up to the payment boundary,
// asking the human to pick from the visible options.
type Workflow struct {
	sessionID string
	turns     *agent.TurnController
	exec      browser.Executor
	shots     agent.ScreenshotSource
	llm       schemas.LLMClient
	gateway   *interaction.Gateway
	registry  *interaction.Registry
	logger    *zap.Logger
}

// WorkflowDeps bundles the workflow's collaborators.
type WorkflowDeps struct {
	SessionID string
	Turns     *agent.TurnController
	Exec      browser.Executor
	Shots     agent.ScreenshotSource
	LLM       schemas.LLMClient
	Gateway   *interaction.Gateway
	Registry  *interaction.Registry
}

// NewWorkflow wires the flight booking workflow.
func NewWorkflow(deps WorkflowDeps, logger *zap.Logger) *Workflow {
	return &Workflow{
		sessionID: deps.SessionID,
		turns:     deps.Turns,
		exec:      deps.Exec,
		shots:     deps.Shots,
		llm:       deps.LLM,
		gateway:   deps.Gateway,
		registry:  deps.Registry,
		logger:    logger.Named("flights"),
	}
}

// Run executes the booking flow and returns the handoff message.
func (w *Workflow) Run(ctx context.Context, details schemas.BookingDetails) (msg string, err error) {
	if err := ValidateDetails(&details); err != nil {
		return "", err
	}
	goal := fmt.Sprintf("Book a flight from %s to %s", details.Origin, details.Destination)
	if err := w.registry.Begin(w.sessionID, goal); err != nil {
		return "", err
	}
	defer func() { w.registry.Finish(err) }()

	w.registry.SetStep(1, 4)
	if err = w.fillSearchForm(ctx, details); err != nil {
		return "", fmt.Errorf("search form phase failed: %w", err)
	}

	w.registry.SetStep(2, 4)
	choice, cerr := w.pickFlight(ctx)
	if cerr != nil {
		err = fmt.Errorf("flight selection phase failed: %w", cerr)
		return "", err
	}

	w.registry.SetStep(3, 4)
	if err = w.selectFlight(ctx, choice); err != nil {
		return "", fmt.Errorf("flight click phase failed: %w", err)
	}

	w.registry.SetStep(4, 4)
	if err = w.proceedToBooking(ctx); err != nil {
		return "", fmt.Errorf("booking phase failed: %w", err)
	}

	w.logger.Info("Booking flow reached payment boundary")
	return paymentHandoff, nil
}

// fillSearchForm navigates to Google Flights and drives the model through the
// search form.
func (w *Workflow) fillSearchForm(ctx context.Context, details schemas.BookingDetails) error {
	if err := w.exec.Navigate(ctx, flightsURL); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("Fill in the flight search form on this Google Flights page and run the search.\n")
	fmt.Fprintf(&b, "Origin: %s\nDestination: %s\nDeparture date: %s\n",
		details.Origin, details.Destination, details.Departure.Format(dateLayout))
	if details.RoundTrip {
		fmt.Fprintf(&b, "Return date: %s\n", details.Return.Format(dateLayout))
	} else {
		b.WriteString("Trip type: one-way (switch the selector if needed)\n")
	}
	fmt.Fprintf(&b, "Passengers: %d\nCabin: %s\n", details.Passengers, details.Cabin)
	b.WriteString("Use the autocomplete suggestions for airports. Finish by clicking Search and wait until results are listed.")

	shot, mime, err := w.shots.Screenshot(ctx)
	if err != nil {
		return err
	}
	_, err = w.turns.RunTurnsWithBudget(ctx, b.String(), shot, mime, formFillTurns)
	return err
}

// pickFlight describes the visible options with the fast vision model and
// asks the human which one to take.
func (w *Workflow) pickFlight(ctx context.Context) (string, error) {
	shot, mime, err := w.shots.Screenshot(ctx)
	if err != nil {
		return "", err
	}

	resp, err := w.llm.GenerateContent(ctx, schemas.GenerationRequest{
		Tier: schemas.TierFast,
		Contents: []schemas.Content{{
			Role: "user",
			Parts: []schemas.Part{
				{Text: "This screenshot shows flight search results. List up to 5 visible flight options, numbered, each with airline, departure/arrival times, duration, stops and price. Plain text only."},
				{InlineData: &schemas.InlineData{
					MIMEType: mime,
					Data:     base64.StdEncoding.EncodeToString(shot),
				}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("could not describe flight options: %w", err)
	}
	options := strings.TrimSpace(resp.Text())
	if options == "" {
		return "", fmt.Errorf("no flight options visible")
	}

	// The screenshot rides along so the human sees the options being chosen
	// between.
	question := fmt.Sprintf("These flights are available:\n\n%s\n\nWhich one should I select? (describe it or give the number)", options)
	answer, err := w.gateway.Ask(ctx, question, shot)
	if err != nil {
		return "", err
	}
	return answer, nil
}

// selectFlight clicks the option the human chose.
func (w *Workflow) selectFlight(ctx context.Context, choice string) error {
	shot, mime, err := w.shots.Screenshot(ctx)
	if err != nil {
		return err
	}
	prompt := fmt.Sprintf(
		"The user chose this flight from the visible results: %q.\nClick that flight option in the list to open it.", choice)
	_, err = w.turns.RunTurnsWithBudget(ctx, prompt, shot, mime, selectTurns)
	return err
}

// proceedToBooking advances through the airline handoff until the first page
// that asks for payment details, then stops.
func (w *Workflow) proceedToBooking(ctx context.Context) error {
	shot, mime, err := w.shots.Screenshot(ctx)
	if err != nil {
		return err
	}
	prompt := "Proceed with booking the selected flight: follow the booking/continue buttons, " +
		"pick the basic fare if asked, and fill nothing but required passenger name fields with placeholder text if unavoidable.\n" +
		"STOP as soon as a page asks for payment, card or billing details. " +
		"Do not enter any payment information. When you reach that page, reply with text describing it."
	_, err = w.turns.RunTurnsWithBudget(ctx, prompt, shot, mime, proceedTurns)
	return err
}
