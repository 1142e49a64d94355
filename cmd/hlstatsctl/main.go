// Command hlstatsctl is the operator CLI for a running hlstatsd instance:
// pre-registering game servers, generating registration tokens, and checking
// daemon health.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var apiBase string

func main() {
	root := &cobra.Command{
		Use:   "hlstatsctl",
		Short: "Operator CLI for the hlstats daemon",
	}
	root.PersistentFlags().StringVar(&apiBase, "api", "http://127.0.0.1:9091", "base URL of the daemon's HTTP surface")

	root.AddCommand(serverCmd(), tokenCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func serverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage registered game servers",
	}

	var address, game string
	var port int
	register := &cobra.Command{
		Use:   "register",
		Short: "Register a game server so its packets are accepted in prod mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(map[string]any{
				"address": address,
				"port":    port,
				"game":    game,
			})
			if err != nil {
				return err
			}

			resp, err := httpClient().Post(apiBase+"/servers", "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("register server: %w", err)
			}
			defer resp.Body.Close()

			payload, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("register server: %s: %s", resp.Status, payload)
			}

			var out struct {
				ServerID int64  `json:"serverId"`
				Game     string `json:"game"`
			}
			if err := json.Unmarshal(payload, &out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			fmt.Printf("registered server %d (%s) at %s:%d\n", out.ServerID, out.Game, address, port)
			return nil
		},
	}
	register.Flags().StringVar(&address, "address", "", "server IP address")
	register.Flags().IntVar(&port, "port", 27015, "server game port")
	register.Flags().StringVar(&game, "game", "cstrike", "game family (cstrike, csgo, cs2)")
	register.MarkFlagRequired("address")

	cmd.AddCommand(register)
	return cmd
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Generate a fresh server registration token",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(uuid.NewString())
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the daemon's readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := httpClient().Get(apiBase + "/readyz")
			if err != nil {
				return fmt.Errorf("query readiness: %w", err)
			}
			defer resp.Body.Close()

			payload, _ := io.ReadAll(resp.Body)
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, payload, "", "  "); err != nil {
				fmt.Println(string(payload))
				return nil
			}
			fmt.Println(pretty.String())
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("daemon not ready (%s)", resp.Status)
			}
			return nil
		},
	}
}
