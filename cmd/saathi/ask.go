package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/saathi/pkg/apperr"
	"github.com/Protocol-Lattice/saathi/pkg/audio"
)

func newAskCmd() *cobra.Command {
	var audioPath string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the answer",
		Args: func(cmd *cobra.Command, args []string) error {
			if audioPath == "" && len(args) == 0 {
				return errors.New("a question or --audio is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), audioPath)
		},
	}
	cmd.Flags().StringVar(&audioPath, "audio", "", "answer a recorded audio file instead of text")
	return cmd
}

func runAsk(ctx context.Context, out io.Writer, question, audioPath string) error {
	a, err := newApp(ctx, cfg, logger, appOptions{sessionID: uuid.NewString()})
	if err != nil {
		return err
	}
	defer a.Close()

	if audioPath != "" {
		a.mic.Next(&audio.FileMicrophone{Path: audioPath})
		if err := a.session.StartRecording(ctx); err != nil {
			return errors.New(apperr.UserMessage(err))
		}
		turn, err := a.session.StopRecording(ctx)
		if err != nil {
			return err
		}
		if turn.IsError {
			return errors.New(turn.Text)
		}
		turns := a.session.Turns()
		fmt.Fprintf(out, "heard: %s\n", turns[0].Text)
		fmt.Fprintf(out, "%s: %s\n", turn.LanguageCode, turn.Text)
		return nil
	}

	turn, err := a.session.SubmitText(ctx, question)
	if err != nil {
		return err
	}
	if turn.IsError {
		return errors.New(turn.Text)
	}
	fmt.Fprintf(out, "%s: %s\n", turn.LanguageCode, turn.Text)
	return nil
}
