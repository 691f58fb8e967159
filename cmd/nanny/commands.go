package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/nanny/internal/config"
)

// --- ask / chat ---

type chatReply struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
	Metadata       struct {
		Strategy string `json:"strategy"`
	} `json:"metadata"`
}

func sendMessage(ctx context.Context, client *apiClient, conversationID, message string) (chatReply, error) {
	resp, err := client.post(ctx, "/chat", map[string]string{
		"conversation_id": conversationID,
		"message":         message,
	})
	if err != nil {
		return chatReply{}, err
	}
	var reply chatReply
	if err := decodeJSON(resp, &reply); err != nil {
		return chatReply{}, err
	}
	return reply, nil
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question",
	Long: `Ask a single question.

Examples:
  nanny ask "My 3 month old has a fever of 38.5, what should I do?"
  nanny ask --conversation 1b2c... "And if it goes up at night?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationID, _ := cmd.Flags().GetString("conversation")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		reply, err := sendMessage(cmd.Context(), client, conversationID, strings.Join(args, " "))
		if err != nil {
			return err
		}

		fmt.Println(reply.Reply)
		printStatus("Conversation", "%s", reply.ConversationID)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationID, _ := cmd.Flags().GetString("conversation")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Type your question and press Enter. /exit or Ctrl-D to quit.")
		return chatLoop(cmd.Context(), client, conversationID, os.Stdin, os.Stdout)
	},
}

func chatLoop(ctx context.Context, client *apiClient, conversationID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, colorize(colorBold, "you")+"   ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/exit" || line == "/quit" {
			return nil
		}

		reply, err := sendMessage(ctx, client, conversationID, line)
		if err != nil {
			printError("%v", err)
			continue
		}
		conversationID = reply.ConversationID
		fmt.Fprintln(out, formatMessage(false, reply.Reply))
		fmt.Fprintln(out)
	}
}

func init() {
	askCmd.Flags().String("conversation", "", "continue an existing conversation")
	chatCmd.Flags().String("conversation", "", "resume an existing conversation")
}

// --- docs ---

type documentItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	Length    int       `json:"length"`
	CreatedAt time.Time `json:"created_at"`
}

func fetchDocuments(ctx context.Context, client *apiClient, limit int) ([]documentItem, error) {
	resp, err := client.get(ctx, fmt.Sprintf("/documents?limit=%d", limit))
	if err != nil {
		return nil, err
	}
	var docs []documentItem
	if err := decodeJSON(resp, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// documentUpload builds the POST /documents body from the add flags.
func documentUpload(text, url, file, title string) (map[string]string, error) {
	req := map[string]string{}
	if title != "" {
		req["title"] = title
	}

	switch {
	case text != "":
		req["type"] = "text"
		req["content"] = text
	case url != "":
		req["type"] = "url"
		req["url"] = url
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading file: %w", err)
		}
		base := filepath.Base(file)
		if strings.EqualFold(filepath.Ext(file), ".pdf") {
			req["type"] = "pdf"
			req["content"] = base64.StdEncoding.EncodeToString(data)
			req["filename"] = base
		} else {
			req["type"] = "text"
			req["content"] = string(data)
			if title == "" {
				req["title"] = strings.TrimSuffix(base, filepath.Ext(base))
			}
		}
	default:
		return nil, fmt.Errorf("one of --text, --url, or --file is required")
	}
	return req, nil
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage reference documents",
}

var docsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Upload a reference document",
	Long: `Upload a reference document. Documents are processed in the background
and used for answers once their status is "processed".

Examples:
  nanny docs add --text "Newborns feed 8 to 12 times a day." --title Feeding
  nanny docs add --url https://example.org/safe-sleep
  nanny docs add --file ./pediatric-guide.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		url, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")

		req, err := documentUpload(text, url, file, title)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/documents", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Uploaded document %s (%s)", result["id"], result["status"])
		return nil
	},
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reference documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		docs, err := fetchDocuments(cmd.Context(), client, limit)
		if err != nil {
			return err
		}

		if len(docs) == 0 {
			fmt.Println("No documents found.")
			return nil
		}

		for _, d := range docs {
			fmt.Printf("%s  %-10s  %-4s  %s\n",
				colorize(colorCyan, d.ID),
				statusLabel(d.Status),
				d.Type,
				truncate(d.Title, 60),
			)
			if d.Error != "" {
				fmt.Printf("    %s\n", colorize(colorRed, d.Error))
			}
		}
		return nil
	},
}

func statusLabel(status string) string {
	switch status {
	case "processed":
		return colorize(colorGreen, status)
	case "error":
		return colorize(colorRed, status)
	default:
		return colorize(colorYellow, status)
	}
}

var docsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a reference document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/documents/"+args[0])
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}

		printSuccess("Deleted document %s", args[0])
		return nil
	},
}

func init() {
	docsAddCmd.Flags().String("text", "", "text content to upload")
	docsAddCmd.Flags().String("url", "", "web page to fetch")
	docsAddCmd.Flags().String("file", "", "text or PDF file to upload")
	docsAddCmd.Flags().String("title", "", "title for the document")
	docsListCmd.Flags().Int("limit", 20, "maximum number of documents to list")
	docsCmd.AddCommand(docsAddCmd, docsListCmd, docsRmCmd)
}

// --- history ---

type conversationItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []struct {
		Content   string    `json:"content"`
		IsUser    bool      `json:"isUser"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"messages"`
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage conversation history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/conversations")
		if err != nil {
			return err
		}
		var convs []conversationItem
		if err := decodeJSON(resp, &convs); err != nil {
			return err
		}

		if len(convs) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		for _, c := range convs {
			fmt.Printf("%s  %s  %3d  %s\n",
				colorize(colorCyan, c.ID),
				c.UpdatedAt.Local().Format("2006-01-02 15:04"),
				len(c.Messages),
				c.Title,
			)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/conversations/"+args[0])
		if err != nil {
			return err
		}
		var c conversationItem
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		}

		fmt.Println(colorize(colorBold, c.Title))
		for _, m := range c.Messages {
			fmt.Println(formatMessage(m.IsUser, m.Content))
		}
		return nil
	},
}

var historyRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/conversations/"+args[0])
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}

		printSuccess("Deleted conversation %s", args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL conversations. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/conversations")
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}

		printSuccess("All conversations deleted")
		return nil
	},
}

func init() {
	historyShowCmd.Flags().Bool("json", false, "print the raw conversation JSON")
	historyClearCmd.Flags().Bool("confirm", false, "confirm deletion")
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyRmCmd, historyClearCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		printStep("Restart the server for the change to take effect")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}

// --- key ---

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the language-model API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Store the API key in the platform secret store",
	Long: `Store the API key in the platform secret store. When no key is given
as an argument it is read from standard input.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value string
		if len(args) == 1 {
			value = args[0]
		} else {
			fmt.Fprint(os.Stderr, "API key: ")
			var err error
			value, err = readSecret(os.Stdin)
			if err != nil {
				return err
			}
		}

		if err := config.SetCredential(value); err != nil {
			return err
		}

		printSuccess("API key stored")
		printStep("Restart the server to answer with the language model")
		return nil
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ClearCredential(); err != nil {
			return err
		}
		printSuccess("API key removed")
		return nil
	},
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading key: %w", err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("no key given")
	}
	return value, nil
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyClearCmd)
}
