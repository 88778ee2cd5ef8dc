// Parley CLI - command line client for the Parley messaging API
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/parley-chat/parley/clients/go/parley"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("PARLEY_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	userID := os.Getenv("PARLEY_USER")

	client := parley.NewClient(baseURL, userID)
	ctx := context.Background()
	cmd := os.Args[1]

	if cmd != "health" && userID == "" {
		fmt.Fprintln(os.Stderr, "PARLEY_USER must be set")
		os.Exit(1)
	}

	switch cmd {
	case "health":
		resp, err := client.Health(ctx)
		exitOnError(err)
		fmt.Printf("status: %v\n", resp["status"])

	case "login":
		name := userID
		if len(os.Args) > 2 {
			name = os.Args[2]
		}
		user, err := client.Provision(ctx, name, "", "")
		exitOnError(err)
		exitOnError(client.SetOnline(ctx, true))
		fmt.Printf("online as %s (%s)\n", user.Name, user.ExternalID)

	case "logout":
		exitOnError(client.SetOnline(ctx, false))
		fmt.Println("offline")

	case "users":
		users, err := client.Users(ctx)
		exitOnError(err)
		for _, u := range users {
			marker := " "
			if u.IsOnline {
				marker = "*"
			}
			fmt.Printf("%s %s  %s\n", marker, u.ExternalID, u.Name)
		}

	case "open":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: parley open <user_id>")
			os.Exit(1)
		}
		id, err := client.OpenConversation(ctx, os.Args[2])
		exitOnError(err)
		fmt.Println(id)

	case "inbox":
		convs, err := client.Conversations(ctx)
		exitOnError(err)
		for _, conv := range convs {
			line := fmt.Sprintf("%s  %s: %s", conv.ID, client.Other(conv), preview(conv.LastMessage))
			if n := conv.Unread[client.UserID]; n > 0 {
				line += fmt.Sprintf(" (%d unread)", n)
			}
			if other := client.TypingOther(conv); other != "" {
				line += "  [typing...]"
			}
			fmt.Println(line)
		}

	case "send":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: parley send <conversation_id> <text>")
			os.Exit(1)
		}
		msg, err := client.Send(ctx, os.Args[2], strings.Join(os.Args[3:], " "))
		exitOnError(err)
		if msg == nil {
			fmt.Println("conversation gone; send ignored")
			return
		}
		fmt.Printf("sent %s\n", msg.ID)

	case "read":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: parley read <conversation_id>")
			os.Exit(1)
		}
		convID := os.Args[2]
		msgs, err := client.Messages(ctx, convID)
		exitOnError(err)
		for _, msg := range msgs {
			ts := time.UnixMilli(msg.CreatedAt).Format("2006-01-02 15:04:05")
			fmt.Printf("[%s] %s: %s\n", ts, msg.SenderID, msg.Text)
		}
		exitOnError(client.MarkRead(ctx, convID))

	case "chat":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: parley chat <conversation_id>")
			os.Exit(1)
		}
		chat(ctx, client, os.Args[2])

	default:
		usage()
		os.Exit(1)
	}
}

// chat runs an interactive session on one conversation: each typed
// character counts as a keystroke for the typing signal, each line is
// a send.
func chat(ctx context.Context, client *parley.Client, conversationID string) {
	composer := parley.NewComposer(client, client.UserID, parley.DefaultTypingIdle)
	composer.Switch(conversationID)
	defer composer.Stop()

	fmt.Println("type messages, ctrl-d to quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		// A scanned line stands in for its keystrokes
		if err := composer.Keystroke(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		if _, err := client.Send(ctx, conversationID, line); err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if err := composer.MessageSent(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func preview(text string) string {
	if text == "" {
		return "(no messages yet)"
	}
	if len(text) > 40 {
		return text[:40] + "..."
	}
	return text
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Parley CLI

Usage: parley <command> [args]

Commands:
  health                      server health
  login [name]                provision and go online
  logout                      go offline
  users                       list other users
  open <user_id>              open (or find) a conversation
  inbox                       list conversations
  send <conversation_id> <t>  send a message
  read <conversation_id>      print messages and mark read
  chat <conversation_id>      interactive session

Environment:
  PARLEY_URL   server base URL (default http://localhost:8080)
  PARLEY_USER  your external user id`)
}
