// Command nnpstatus is a small operator CLI for polling a running
// backend's diagnostics endpoint: health, the list of open sessions, and
// a session's audit trail.
package main

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var addr string
var adminKey string

var rootCmd = &cobra.Command{
	Use:   "nnpstatus",
	Short: "Query a running nnpshare backend's diagnostics endpoint",
}

// authorize attaches the Authorization header to req when an admin key was
// supplied via --admin-key or NNPSTATUS_ADMIN_KEY. /healthz never needs
// one; /sessions, /sessions/{id}/audit, and /metrics do whenever the
// backend was started with an admin database.
func authorize(req *http.Request) {
	key := adminKey
	if key == "" {
		key = os.Getenv("NNPSTATUS_ADMIN_KEY")
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "http://127.0.0.1:9090", "backend diagnostics endpoint base URL")
	rootCmd.PersistentFlags().StringVar(&adminKey, "admin-key", "", "admin key for the backend's gated diagnostics routes (or set NNPSTATUS_ADMIN_KEY)")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
