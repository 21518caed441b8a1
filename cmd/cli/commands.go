package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mauv0809/inhouse-ladder/internal/auth"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(queuesCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(leaveCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(tokenCmd)

	queuesCmd.Flags().Int64("channel", 0, "Only show queues of this channel")
	joinCmd.Flags().Int64("channel", 0, "Channel to join")
	joinCmd.Flags().Bool("force", false, "Add the player as an admin, skipping eligibility checks")
	leaveCmd.Flags().Bool("force", false, "Remove the player as an admin, even from a full queue")
	leaderboardCmd.Flags().Int("limit", 10, "Number of rows")
	leaderboardCmd.Flags().Bool("bottom", false, "Show the bottom of the ladder")
	recordCmd.Flags().Int("winner", 0, "Winning side: 0 for Radiant, 1 for Dire")
	tokenCmd.Flags().String("subject", "ladder-cli", "Subject of the token")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime, 0 for no expiry")
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/health", nil, false)
	},
}

var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "List the active queues",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint := "/queues"
		if channel, _ := cmd.Flags().GetInt64("channel"); channel != 0 {
			endpoint += "?channel=" + strconv.FormatInt(channel, 10)
		}
		return performRequest(http.MethodGet, endpoint, nil, false)
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <player>",
	Short: "Add a player, by id or name, to a channel's queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetInt64("channel")
		force, _ := cmd.Flags().GetBool("force")
		body := playerBody(args[0])
		body["channelId"] = channel
		if force {
			return performRequest(http.MethodPost, "/admin/queues/add", body, true)
		}
		return performRequest(http.MethodPost, "/queues/join", body, false)
	},
}

var leaveCmd = &cobra.Command{
	Use:   "leave <player>",
	Short: "Remove a player, by id or name, from their queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if force {
			return performRequest(http.MethodPost, "/admin/queues/kick", playerBody(args[0]), true)
		}
		return performRequest(http.MethodPost, "/queues/leave", playerBody(args[0]), false)
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the current season's leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		bottom, _ := cmd.Flags().GetBool("bottom")
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("bottom", strconv.FormatBool(bottom))
		return performRequest(http.MethodGet, "/leaderboard?"+q.Encode(), nil, false)
	},
}

var recordCmd = &cobra.Command{
	Use:   "record <queue-id>",
	Short: "Record the result of a balanced queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queueID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid queue id: %w", err)
		}
		winner, _ := cmd.Flags().GetInt("winner")
		body := map[string]any{"queueId": queueID, "winner": winner}
		return performRequest(http.MethodPost, "/admin/matches/from-queue", body, true)
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <queue-id>",
	Short: "Close a queue without recording a result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			return fmt.Errorf("invalid queue id: %w", err)
		}
		return performRequest(http.MethodPost, "/admin/queues/"+args[0]+"/close", nil, true)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin token from ADMIN_JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		signed, err := auth.IssueAdminToken(os.Getenv("ADMIN_JWT_SECRET"), subject, ttl)
		if err != nil {
			return err
		}
		fmt.Println(signed)
		return nil
	},
}

// playerBody addresses a player by id when arg is numeric and by name otherwise.
func playerBody(arg string) map[string]any {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return map[string]any{"playerId": id}
	}
	return map[string]any{"player": arg}
}

func performRequest(method, endpoint string, body any, admin bool) error {
	url := host + endpoint
	fmt.Printf("Making request to %s\n", url)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		if token == "" {
			return fmt.Errorf("admin command requires --token or LADDER_ADMIN_TOKEN")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(respBody))

	return nil
}
