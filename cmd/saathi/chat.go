package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/saathi/pkg/audio"
	"github.com/Protocol-Lattice/saathi/pkg/conversation"
)

const chatHelp = `Type a question and press enter.
  /record <file>  answer a recorded audio file
  /stop           stop speaking
  /turns          print the conversation
  /quit           leave`

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to Saathi in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), os.Stdin, cmd.OutOrStdout())
		},
	}
}

func runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	notifier := conversation.NotifierFunc(func(n conversation.Notification) {
		fmt.Fprintf(out, "[%s] %s\n", n.Title, n.Message)
	})
	a, err := newApp(ctx, cfg, logger, appOptions{sessionID: uuid.NewString(), notifier: notifier})
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(out, chatHelp)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/stop":
			a.session.StopSpeaking()
		case line == "/turns":
			for _, t := range a.session.Turns() {
				printTurn(out, t)
			}
		case strings.HasPrefix(line, "/record"):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/record"))
			if path == "" {
				fmt.Fprintln(out, "usage: /record <file>")
				continue
			}
			turn, err := answerFile(ctx, a, path)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			turns := a.session.Turns()
			if !turn.IsError && len(turns) >= 2 {
				printTurn(out, turns[len(turns)-2])
			}
			printTurn(out, turn)
		default:
			turn, err := a.session.SubmitText(ctx, line)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			printTurn(out, turn)
		}
	}
}

// answerFile runs a recorded file through the voice path.
func answerFile(ctx context.Context, a *app, path string) (conversation.Turn, error) {
	a.mic.Next(&audio.FileMicrophone{Path: path})
	if err := a.session.StartRecording(ctx); err != nil {
		a.mic.Reset()
		// Capture failures were already reported as a notification.
		if errors.Is(err, conversation.ErrBusy) {
			return conversation.Turn{}, err
		}
		return conversation.Turn{}, nil
	}
	return a.session.StopRecording(ctx)
}

func printTurn(out io.Writer, t conversation.Turn) {
	switch {
	case t.IsError:
		fmt.Fprintf(out, "! %s\n", t.Text)
	case t.Sender == conversation.SenderUser:
		if t.LanguageCode != "" {
			fmt.Fprintf(out, "you %s: %s\n", t.LanguageCode, t.Text)
		} else {
			fmt.Fprintf(out, "you: %s\n", t.Text)
		}
	default:
		fmt.Fprintf(out, "saathi [%s]: %s\n", t.LanguageCode, t.Text)
	}
}
