package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"shoprag/internal/domain"
)

var orderJSON bool

var orderCmd = &cobra.Command{
	Use:   "order <order-id|tracking-number>",
	Short: "Show the shipping status of an order",
	Long: `Look up an order by id (with or without a leading #) or by tracking
number and derive its current shipping status.

Examples:
  shoprag order 123
  shoprag order "#123"
  shoprag order TRK1231017 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runOrder,
}

func init() {
	rootCmd.AddCommand(orderCmd)
	orderCmd.Flags().BoolVar(&orderJSON, "json", false, "output as JSON")
}

func runOrder(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	lookup, err := a.tracker.Lookup(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("order %s not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("order lookup failed: %w", err)
	}

	if orderJSON {
		output, _ := json.MarshalIndent(lookup, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	st := lookup.Status
	fmt.Printf("Order:    #%s\n", lookup.Order.OrderID)
	fmt.Printf("Placed:   %s\n", lookup.Order.PlacedAt.In(cfg.Order.Location()).Format("2006-01-02 15:04"))
	fmt.Printf("Status:   %s\n", st.Status)
	fmt.Printf("          %s\n", st.Message)
	if st.EstimatedDate != nil {
		fmt.Printf("Estimate: %s (%s)\n", st.EstimatedDate.In(cfg.Order.Location()).Format("2006-01-02"), st.EstimateKind)
	}
	tracking := st.TrackingNumber
	if !st.HasTracking {
		tracking += " (pending)"
	}
	fmt.Printf("Tracking: %s\n", tracking)
	if st.Anomaly != "" {
		fmt.Printf("Warning:  %s\n", st.Anomaly)
	}
	return nil
}
