package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(auditCmd)
}

type auditRecordView struct {
	FrontendDomainID int    `json:"frontend_domain_id"`
	Model            string `json:"model"`
	TotalPages       int    `json:"total_pages"`
	Event            string `json:"event"`
	OccurredAt       string `json:"occurred_at"`
}

var auditCmd = &cobra.Command{
	Use:   "audit <frontend-domain-id>",
	Short: "Show a frontend's recorded publish/close history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		feID, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid frontend domain id %q: %v\n", args[0], err)
			os.Exit(1)
		}

		client := http.Client{Timeout: 5 * time.Second}
		req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/sessions/%d/audit", addr, feID), nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error building request: %v\n", err)
			os.Exit(1)
		}
		authorize(req)
		resp, err := client.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error fetching audit log: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			fmt.Fprintln(os.Stderr, "unauthorized: pass --admin-key (or set NNPSTATUS_ADMIN_KEY)")
			os.Exit(1)
		}
		if resp.StatusCode == http.StatusNotFound {
			fmt.Fprintln(os.Stderr, "backend has no admin database configured: audit log unavailable")
			os.Exit(1)
		}

		var records []auditRecordView
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			fmt.Fprintf(os.Stderr, "error decoding audit log: %v\n", err)
			os.Exit(1)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OCCURRED_AT\tEVENT\tMODEL\tTOTAL_PAGES")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", r.OccurredAt, r.Event, r.Model, r.TotalPages)
		}
		w.Flush()
	},
}
