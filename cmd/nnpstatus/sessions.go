package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

type sessionView struct {
	FrontendDomainID int    `json:"frontend_domain_id"`
	Model            string `json:"model"`
	TotalPages       int    `json:"total_pages"`
	DirPages         int    `json:"dir_pages"`
	State            string `json:"state"`
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List an nnpshare backend's open sessions",
	Run: func(cmd *cobra.Command, args []string) {
		client := http.Client{Timeout: 5 * time.Second}
		req, err := http.NewRequest(http.MethodGet, addr+"/sessions", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error building request: %v\n", err)
			os.Exit(1)
		}
		authorize(req)
		resp, err := client.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error listing sessions: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			fmt.Fprintln(os.Stderr, "unauthorized: pass --admin-key (or set NNPSTATUS_ADMIN_KEY)")
			os.Exit(1)
		}

		var sessions []sessionView
		if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
			fmt.Fprintf(os.Stderr, "error decoding sessions: %v\n", err)
			os.Exit(1)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FRONTEND\tMODEL\tTOTAL_PAGES\tDIR_PAGES\tSTATE")
		for _, s := range sessions {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", s.FrontendDomainID, s.Model, s.TotalPages, s.DirPages, s.State)
		}
		w.Flush()
	},
}
