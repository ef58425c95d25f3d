// Command chat is a terminal client for the assistant: it keeps the
// conversation in memory, streams answer fragments as they arrive and
// renders failures inline as assistant messages.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/manuelagm/portfolio-assistant/internal/assistant"
	"github.com/manuelagm/portfolio-assistant/internal/streamclient"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "assistant server base URL")
	flag.Parse()

	client := streamclient.New(*server)
	ctx := context.Background()

	var conversation []assistant.Message

	fmt.Println("Ask about Manuela (ctrl-d to quit).")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		conversation = append(conversation, assistant.Message{
			ID:      uuid.NewString(),
			Role:    assistant.RoleUser,
			Content: question,
		})

		var answer strings.Builder
		err := client.Chat(ctx, conversation, func(fragment string) {
			answer.WriteString(fragment)
			fmt.Print(fragment)
		})
		fmt.Println()

		if err != nil {
			// Render the failure as an assistant turn instead of dying.
			msg := err.Error()
			if errors.Is(err, streamclient.ErrAssistant) {
				msg = strings.TrimPrefix(msg, streamclient.ErrAssistant.Error()+": ")
			}
			fmt.Printf("[assistant] %s\n", msg)
			conversation = conversation[:len(conversation)-1]
			continue
		}

		conversation = append(conversation, assistant.Message{
			ID:      uuid.NewString(),
			Role:    assistant.RoleAssistant,
			Content: answer.String(),
		})
	}
}
