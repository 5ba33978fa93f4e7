// -- cmd/bookflight.go --
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
	"github.com/Mukuloli/browser-automation-1/internal/config"
	"github.com/Mukuloli/browser-automation-1/internal/interaction"
	"github.com/Mukuloli/browser-automation-1/internal/observability"
	"github.com/Mukuloli/browser-automation-1/internal/safety"
	"github.com/Mukuloli/browser-automation-1/internal/workflow/flights"
)

var bookflightCmd = &cobra.Command{
	Use:   "bookflight",
	Short: "Guided flight search on Google Flights, stopping at the payment page.",
	RunE:  runBookflight,
}

func init() {
	bookflightCmd.Flags().String("from", "", "origin airport or city")
	bookflightCmd.Flags().String("to", "", "destination airport or city")
	bookflightCmd.Flags().String("date", "", "departure date (YYYY-MM-DD)")
	bookflightCmd.Flags().String("return", "", "return date for a round trip (YYYY-MM-DD)")
	bookflightCmd.Flags().Int("passengers", 1, "number of passengers (1-9)")
	bookflightCmd.Flags().String("cabin", "economy", "cabin class: economy, premium, business, first")
	_ = bookflightCmd.MarkFlagRequired("from")
	_ = bookflightCmd.MarkFlagRequired("to")
	_ = bookflightCmd.MarkFlagRequired("date")
	rootCmd.AddCommand(bookflightCmd)
}

func runBookflight(cmd *cobra.Command, _ []string) error {
	logger := observability.GetLogger()

	details, err := bookingDetailsFromFlags(cmd)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(flights.FormatSummary(details))
	fmt.Print("\nStart the booking automation? [yes/no]: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer != "yes" && answer != "y" {
		fmt.Println("Booking cancelled.")
		return nil
	}

	cfg, err := config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		return err
	}
	// A human picks the flight mid-run, so the browser stays visible.
	cfg.Browser.Headless = false

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	safety.ResetEmergencyStop()
	registry := interaction.NewRegistry()

	comps, err := initializeAutomation(ctx, cfg, registry, nil, logger)
	if err != nil {
		return err
	}
	defer comps.Shutdown()

	go stdinResponder(ctx, comps.gateway)

	workflow := flights.NewWorkflow(flights.WorkflowDeps{
		SessionID: comps.session.ID(),
		Turns:     comps.turns,
		Exec:      comps.session.Executor(),
		Shots:     comps.session,
		LLM:       comps.llmClient,
		Gateway:   comps.gateway,
		Registry:  registry,
	}, logger)

	msg, err := workflow.Run(ctx, details)
	if err != nil {
		return fmt.Errorf("flight booking failed: %w", err)
	}
	fmt.Printf("\n%s\n", msg)
	return nil
}

func bookingDetailsFromFlags(cmd *cobra.Command) (schemas.BookingDetails, error) {
	var details schemas.BookingDetails
	details.Origin, _ = cmd.Flags().GetString("from")
	details.Destination, _ = cmd.Flags().GetString("to")
	details.Passengers, _ = cmd.Flags().GetInt("passengers")
	details.Cabin, _ = cmd.Flags().GetString("cabin")

	dateStr, _ := cmd.Flags().GetString("date")
	departure, err := flights.ParseDate(dateStr)
	if err != nil {
		return details, err
	}
	details.Departure = departure

	if returnStr, _ := cmd.Flags().GetString("return"); returnStr != "" {
		ret, err := flights.ParseDate(returnStr)
		if err != nil {
			return details, err
		}
		details.Return = ret
		details.RoundTrip = true
	}

	if err := flights.ValidateDetails(&details); err != nil {
		return details, err
	}
	return details, nil
}
