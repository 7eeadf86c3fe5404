package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// ChatRequest represents the chat API request.
type ChatRequest struct {
	Message   string        `json:"message"`
	SessionID string        `json:"session_id,omitempty"`
	Filters   *FilterParams `json:"filters,omitempty"`
}

// ChatMetadata carries the retrieval and routing details of one turn.
type ChatMetadata struct {
	TotalFound      int    `json:"total_found"`
	Showing         int    `json:"showing"`
	HasMore         bool   `json:"has_more"`
	Intent          string `json:"intent"`
	ComplexityScore int    `json:"complexity_score"`
}

// ChatResponse represents the chat API response.
type ChatResponse struct {
	Answer      string        `json:"answer"`
	Grants      []GrantResult `json:"grants"`
	Metadata    ChatMetadata  `json:"metadata"`
	ModelUsed   string        `json:"model_used"`
	Confidence  float64       `json:"confidence"`
	Suggestions []string      `json:"suggestions,omitempty"`
}

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var newSession bool

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask about grant opportunities",
		Long: `Sends one conversational message to the grant assistant.

The session id is persisted in the client config, so follow-up messages
like "muestra más" continue the same conversation. Use --new to start over.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runChat(cmd, args[0], newSession, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&newSession, "new", false, "Start a new conversation session")

	return cmd
}

func runChat(cmd *cobra.Command, message string, newSession, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	sessionID := LoadSessionID()
	if newSession || sessionID == "" {
		sessionID = uuid.NewString()
	}

	resp, err := api.Post("/chat", ChatRequest{
		Message:   message,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(resp.Data, &chatResp); err != nil {
		return fmt.Errorf("failed to parse chat response: %w", err)
	}

	if err := SaveSessionID(sessionID); err != nil {
		fmt.Printf("warning: failed to persist session id: %v\n", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(chatResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(chatResp.Answer)

	if len(chatResp.Grants) > 0 {
		fmt.Printf("\nShowing %d of %d grants:\n\n", chatResp.Metadata.Showing, chatResp.Metadata.TotalFound)
		for i, grant := range chatResp.Grants {
			printGrant(i+1, grant)
			if i < len(chatResp.Grants)-1 {
				fmt.Println(strings.Repeat("-", 40))
			}
		}
		if chatResp.Metadata.HasMore {
			fmt.Println("\nSay \"muestra más\" to see the next grants.")
		}
	}

	if len(chatResp.Suggestions) > 0 {
		fmt.Println("\nSuggestions:")
		for _, s := range chatResp.Suggestions {
			fmt.Printf("  - %s\n", s)
		}
	}

	return nil
}
