package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/league-chat/internal/websocket"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
	timeout   time.Duration
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "chatctl",
		Short:        "Development client for the direct message server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("CHAT_TOKEN")
			}
			return nil
		},
	}

	defaultServer := "http://localhost:8080"
	if envURL := os.Getenv("CHAT_SERVER"); envURL != "" {
		defaultServer = envURL
	}

	root.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "server base URL (env CHAT_SERVER)")
	root.PersistentFlags().StringVarP(&token, "token", "t", "", "bearer token from the identity provider (env CHAT_TOKEN)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(whoamiCmd(), listenCmd(), sendCmd(), historyCmd(), presenceCmd())
	return root
}

func requireToken() error {
	if token == "" {
		return fmt.Errorf("token required (--token or CHAT_TOKEN)")
	}
	return nil
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity bound to the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := NewAPIClient(serverURL, timeout).Me(token)
			if err != nil {
				return err
			}
			if me.Anonymous {
				fmt.Println("anonymous")
				return nil
			}
			fmt.Printf("%s (%s)\n", me.Username, me.ID)
			return nil
		},
	}
}

// listen: stay connected and print every frame until interrupted.
func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Connect and print presence and incoming messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conn, err := Dial(ctx, serverURL, token)
			if err != nil {
				return err
			}
			defer conn.Close()

			for frame := range conn.Frames(ctx) {
				printFrame(frame)
			}
			return conn.Err()
		},
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Send a direct message and wait for the acknowledgement",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			conn, err := Dial(ctx, serverURL, token)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.SendChat(args[0], args[1]); err != nil {
				return err
			}

			for frame := range conn.Frames(ctx) {
				switch frame.Type {
				case websocket.MessageTypeMessageAck:
					var ack struct {
						ID        string `json:"id"`
						Timestamp int64  `json:"timestamp"`
					}
					if err := json.Unmarshal(frame.Payload, &ack); err != nil {
						return err
					}
					fmt.Printf("sent %s at %s\n", ack.ID, time.UnixMilli(ack.Timestamp).Format(time.RFC3339))
					return nil
				case websocket.MessageTypeError:
					var e websocket.ErrorPayload
					if err := json.Unmarshal(frame.Payload, &e); err != nil {
						return err
					}
					return fmt.Errorf("%s: %s", e.Code, e.Message)
				}
			}
			if err := conn.Err(); err != nil {
				return err
			}
			return ctx.Err()
		},
	}
}

func historyCmd() *cobra.Command {
	var page, size int

	cmd := &cobra.Command{
		Use:   "history <peer>",
		Short: "Print the conversation with a peer, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(); err != nil {
				return err
			}

			messages, err := NewAPIClient(serverURL, timeout).History(token, args[0], page, size)
			if err != nil {
				return err
			}
			if len(messages) == 0 {
				fmt.Println("no messages")
				return nil
			}
			for _, m := range messages {
				fmt.Printf("[%s] %s -> %s: %s\n",
					time.UnixMilli(m.Timestamp).Format(time.RFC3339), m.SenderUsername, m.RecipientUsername, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page number, 0 is the most recent")
	cmd.Flags().IntVar(&size, "size", 0, "page size (server default when 0)")
	return cmd
}

func presenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presence [username]",
		Short: "Show whether a user is online, or list online users",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(); err != nil {
				return err
			}

			client := NewAPIClient(serverURL, timeout)
			if len(args) == 0 {
				users, err := client.OnlineUsers(token)
				if err != nil {
					return err
				}
				for _, u := range users {
					fmt.Println(u)
				}
				return nil
			}

			p, err := client.Presence(token, args[0])
			if err != nil {
				return err
			}
			state := "offline"
			if p.Online {
				state = fmt.Sprintf("online (%d sessions)", p.Sessions)
			}
			fmt.Printf("%s: %s\n", p.Username, state)
			return nil
		},
	}
}

func printFrame(frame *websocket.Message) {
	switch frame.Type {
	case websocket.MessageTypeConnected:
		var p websocket.ConnectedPayload
		if json.Unmarshal(frame.Payload, &p) == nil {
			fmt.Printf("connected as %s (session %s)\n", p.Username, p.SessionID)
		}
	case websocket.MessageTypePresence:
		var p websocket.PresencePayload
		if json.Unmarshal(frame.Payload, &p) == nil {
			fmt.Printf("* %s %s\n", p.Username, p.Event)
		}
	case websocket.MessageTypeChatMessage:
		var m struct {
			SenderUsername string `json:"senderUsername"`
			Content        string `json:"content"`
			Timestamp      int64  `json:"timestamp"`
		}
		if json.Unmarshal(frame.Payload, &m) == nil {
			fmt.Printf("[%s] %s: %s\n", time.UnixMilli(m.Timestamp).Format(time.Kitchen), m.SenderUsername, m.Content)
		}
	default:
		fmt.Printf("%s %s\n", frame.Type, string(frame.Payload))
	}
}
