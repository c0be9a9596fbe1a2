package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sdrbot-io/sdrbot/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "health":
		cmdHealth()
	case "chat":
		cmdChat()
	case "history":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: sdrbotctl history <session_id>")
			os.Exit(1)
		}
		cmdHistory(os.Args[2])
	case "end":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: sdrbotctl end <session_id>")
			os.Exit(1)
		}
		cmdEnd(os.Args[2])
	case "logs":
		cmdLogs(os.Args[2:])
	case "config":
		if len(os.Args) < 4 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: sdrbotctl config validate <path>")
			os.Exit(1)
		}
		cmdConfigValidate(os.Args[3])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func cmdHealth() {
	body, err := apiGet("/api/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

// cmdChat drives a conversation against the daemon from the terminal,
// mostly useful for trying prompts without the widget.
func cmdChat() {
	body, err := apiPost("/api/chat/start", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var session struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	json.Unmarshal(body, &session)

	fmt.Printf("session: %s\n\n", session.SessionID)
	fmt.Println(session.Message)
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			apiPost("/api/chat/end/"+session.SessionID, nil)
			break
		}

		body, err := apiPost("/api/chat/message", map[string]string{
			"sessionId": session.SessionID,
			"message":   line,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		var reply struct {
			Message string `json:"message"`
		}
		json.Unmarshal(body, &reply)
		fmt.Println(reply.Message)
		fmt.Println()
	}
}

func cmdHistory(sessionID string) {
	body, err := apiGet("/api/chat/history/" + sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var h struct {
		Status   string `json:"status"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	json.Unmarshal(body, &h)
	fmt.Printf("status: %s\n\n", h.Status)
	for _, m := range h.Messages {
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
	}
}

func cmdEnd(sessionID string) {
	body, err := apiPost("/api/chat/end/"+sessionID, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

func cmdLogs(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	level := fs.String("level", "", "Minimum level (info|warn|error)")
	limit := fs.Int("limit", 50, "Max entries")
	fs.Parse(args)

	query := fmt.Sprintf("?limit=%d", *limit)
	if *level != "" {
		query += "&level=" + *level
	}
	body, err := apiGet("/api/logs" + query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(body))
}

func cmdConfigValidate(path string) {
	if _, err := config.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config is valid")
}

// --- Helpers ---

func apiGet(path string) ([]byte, error) {
	return apiDo(http.MethodGet, path, nil)
}

func apiPost(path string, payload any) ([]byte, error) {
	return apiDo(http.MethodPost, path, payload)
}

func apiDo(method, path string, payload any) ([]byte, error) {
	base := envOr("SDRBOT_API_URL", "http://localhost:8080")

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, base+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := os.Getenv("SDRBOT_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

func prettyJSON(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage() {
	fmt.Println("sdrbotctl - qualification bot management CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  health               Check daemon health")
	fmt.Println("  chat                 Interactive chat session against the daemon")
	fmt.Println("  history <id>         Show a session transcript")
	fmt.Println("  end <id>             End a session")
	fmt.Println("  logs                 Tail recent daemon logs (--level, --limit)")
	fmt.Println("  config validate <p>  Validate config file")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  SDRBOT_API_URL  Daemon URL (default: http://localhost:8080)")
	fmt.Println("  SDRBOT_API_KEY  API key for authentication")
}
