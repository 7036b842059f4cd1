package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Seeds a conversation between two users over the long-poll transport.
// Tokens come from the identity provider; the server only verifies them.
//
//	SEED_TOKEN_A=... SEED_TOKEN_B=... go run scripts/seed-conversation.go 40

var apiBase = envOr("CHAT_SERVER", "http://localhost:8080") + "/api/v1"

type Session struct {
	ID       string `json:"sessionId"`
	Username string `json:"username"`
}

type Message struct {
	ID                string `json:"id"`
	SenderUsername    string `json:"senderUsername"`
	RecipientUsername string `json:"recipientUsername"`
	Content           string `json:"content"`
	Timestamp         int64  `json:"timestamp"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func openSession(token string) (*Session, error) {
	req, _ := http.NewRequest("POST", apiBase+"/poll/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("open session failed (%d): %s", resp.StatusCode, string(bodyBytes))
	}

	var result Session
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return &result, nil
}

func sendMessage(token, sessionID, recipient, content string) (*Message, error) {
	body, _ := json.Marshal(map[string]string{
		"recipientUsername": recipient,
		"content":           content,
	})

	req, _ := http.NewRequest("POST", apiBase+"/poll/sessions/"+sessionID+"/messages", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("send failed (%d): %s", resp.StatusCode, string(bodyBytes))
	}

	var result Message
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return &result, nil
}

func closeSession(token, sessionID string) {
	req, _ := http.NewRequest("DELETE", apiBase+"/poll/sessions/"+sessionID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if resp, err := http.DefaultClient.Do(req); err == nil {
		resp.Body.Close()
	}
}

func main() {
	tokens := []string{os.Getenv("SEED_TOKEN_A"), os.Getenv("SEED_TOKEN_B")}
	if tokens[0] == "" || tokens[1] == "" {
		fmt.Fprintln(os.Stderr, "SEED_TOKEN_A and SEED_TOKEN_B must be set")
		os.Exit(1)
	}

	count := 20
	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil || n <= 0 {
			fmt.Fprintf(os.Stderr, "invalid message count %q\n", os.Args[1])
			os.Exit(1)
		}
		count = n
	}

	fmt.Println("Opening sessions...")
	sessions := make([]*Session, 2)
	for i, token := range tokens {
		s, err := openSession(token)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open session %d: %v\n", i+1, err)
			os.Exit(1)
		}
		defer closeSession(token, s.ID)
		sessions[i] = s
		fmt.Printf("  ✓ %s (session %s)\n", s.Username, s.ID)
	}

	fmt.Printf("\nSending %d messages...\n", count)
	var sent []*Message
	for i := 0; i < count; i++ {
		from, to := i%2, (i+1)%2
		m, err := sendMessage(tokens[from], sessions[from].ID, sessions[to].Username,
			fmt.Sprintf("seed message %d from %s", i+1, sessions[from].Username))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to send message %d: %v\n", i+1, err)
			os.Exit(1)
		}
		sent = append(sent, m)
	}
	fmt.Printf("  ✓ %d messages stored\n", len(sent))

	output := map[string]interface{}{
		"users": []string{sessions[0].Username, sessions[1].Username},
		"first": time.UnixMilli(sent[0].Timestamp).Format(time.RFC3339Nano),
		"last":  time.UnixMilli(sent[len(sent)-1].Timestamp).Format(time.RFC3339Nano),
		"count": len(sent),
	}

	fmt.Println("\n" + "============================================================")
	fmt.Println("JSON OUTPUT (for scripts):")
	fmt.Println("============================================================")
	jsonOutput, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(jsonOutput))
}
