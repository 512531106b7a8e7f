package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/client"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/middleware"
)

var (
	statusURL   string
	statusToken string
	statusSlots bool
	statusJSON  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what a running scheduler is playing now",
	Long: `Query a running scheduler for the active slot and the next change.

Without --token a short-lived token is minted from JWT_SECRET.

Examples:
  medusa-scheduler status --url http://localhost:8080
  medusa-scheduler status --slots --json
`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "http://localhost:8080", "Base URL of the scheduler")
	statusCmd.Flags().StringVar(&statusToken, "token", "", "Bearer token (default: minted from JWT_SECRET)")
	statusCmd.Flags().BoolVar(&statusSlots, "slots", false, "Also list every slot in order")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print raw JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	token := statusToken
	if token == "" {
		if err := loadConfig(); err != nil {
			return err
		}
		var err error
		token, err = middleware.GenerateJWT(0, "", cfg.JWTSecret, 5*time.Minute)
		if err != nil {
			return err
		}
	}

	c := client.New(statusURL, token)
	status, err := c.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}
	var slots []packets.SlotResponse
	if statusSlots {
		if slots, err = c.ListSlots(cmd.Context()); err != nil {
			return fmt.Errorf("list slots: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"status": status, "slots": slots})
	}
	printStatus(out, status, time.Now())
	if statusSlots {
		fmt.Fprintln(out)
		printSlots(out, slots)
	}
	return nil
}

func printStatus(w io.Writer, st packets.StatusResponse, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if !st.ScheduleEnabled {
		fmt.Fprintln(tw, "schedule:\tdisabled (no slots)")
		return
	}
	fmt.Fprintln(tw, "schedule:\tenabled")
	if st.CurrentSlot == nil {
		fmt.Fprintln(tw, "playing:\tnothing")
	} else {
		suffix := ""
		if st.UsingDefault {
			suffix = " [fallback]"
		}
		fmt.Fprintf(tw, "playing:\t%s (%s, %d items)%s\n",
			st.CurrentSlot.Name, st.CurrentSlot.SlotType, len(st.CurrentSlot.Items), suffix)
	}
	if st.NextChangeAt != nil {
		fmt.Fprintf(tw, "next change:\t%s (in %s)\n",
			st.NextChangeAt.Format(time.RFC3339), st.NextChangeAt.Sub(now).Round(time.Second))
	} else {
		fmt.Fprintln(tw, "next change:\tnone within the lookahead")
	}
	fmt.Fprintf(tw, "slots:\t%d\n", st.TotalSlots)
}

func printSlots(w io.Writer, slots []packets.SlotResponse) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tNAME\tTYPE\tWINDOW\tDAYS\tITEMS\tACTIVE")
	for _, s := range slots {
		window := "-"
		if s.TimeFrom != nil {
			window = s.TimeFrom.String() + "-"
			if s.TimeTo != nil {
				window += s.TimeTo.String()
			}
		}
		name := s.Name
		if s.IsDefault {
			name += " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%v\t%d\t%t\n",
			s.SortOrder, name, s.SlotType, window, []int(s.DaysOfWeek), len(s.Items), s.IsCurrentlyActive)
	}
}
