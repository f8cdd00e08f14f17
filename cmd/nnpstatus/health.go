package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(healthCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of an nnpshare backend",
	Long:  "Check the health of an nnpshare backend. Returns exit code 0 if healthy, 1 otherwise.",
	Run: func(cmd *cobra.Command, args []string) {
		client := http.Client{Timeout: 5 * time.Second}
		req, err := http.NewRequest(http.MethodGet, addr+"/healthz", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error building request: %v\n", err)
			os.Exit(1)
		}
		authorize(req)
		resp, err := client.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error checking health: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "backend is unhealthy: %s\n", string(body))
			os.Exit(1)
		}

		fmt.Println("backend is healthy")
	},
}
