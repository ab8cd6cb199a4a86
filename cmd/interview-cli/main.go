// Command interview-cli 在终端里进行一场模拟面试：逐行输入回答，面试官的语音保存为 mp3 文件。
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"careercoach-go/internal/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type globalOpts struct {
	server   string
	username string
	password string
	timeout  time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}

	root := &cobra.Command{
		Use:           "interview-cli",
		Short:         "Practice mock interviews from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("CAREERCOACH_SERVER", "http://localhost:8081"), "server base URL")
	root.PersistentFlags().StringVar(&opts.username, "username", os.Getenv("CAREERCOACH_USERNAME"), "account username")
	root.PersistentFlags().StringVar(&opts.password, "password", os.Getenv("CAREERCOACH_PASSWORD"), "account password")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "per-request timeout")

	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newResumeCmd(opts))
	root.AddCommand(newListCmd(opts))
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func login(ctx context.Context, opts *globalOpts) (*client.API, error) {
	if strings.TrimSpace(opts.username) == "" || opts.password == "" {
		return nil, fmt.Errorf("--username and --password are required")
	}
	api := client.NewAPI(opts.server, opts.timeout)
	if err := api.Login(ctx, opts.username, opts.password); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return api, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newStartCmd(opts *globalOpts) *cobra.Command {
	var req client.CreateInterview
	var audioDir string
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "start --role <job role>",
		Short: "Create a new interview and start answering",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(req.JobRole) == "" {
				return fmt.Errorf("--role is required")
			}
			if req.Title == "" {
				req.Title = req.JobRole + " mock interview"
			}
			ctx, cancel := signalContext()
			defer cancel()

			api, err := login(ctx, opts)
			if err != nil {
				return err
			}
			interview, err := api.CreateInterview(ctx, req)
			if err != nil {
				return err
			}
			color.Cyan("Interview %s created (%s, %s). Say hello to begin; Ctrl-D ends the session.", interview.ID, interview.JobRole, interview.Difficulty)
			return runLoop(ctx, api, interview.ID, audioDir, grace)
		},
	}
	cmd.Flags().StringVar(&req.JobRole, "role", "", "job role to interview for")
	cmd.Flags().StringVar(&req.Title, "title", "", "interview title")
	cmd.Flags().StringVar(&req.Difficulty, "difficulty", "Intermediate", "Beginner|Intermediate|Advanced")
	cmd.Flags().StringSliceVar(&req.Skills, "skills", nil, "skills to focus on")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "extra notes for the interviewer")
	cmd.Flags().StringVar(&audioDir, "audio-dir", "./interview-audio", "directory for interviewer audio")
	cmd.Flags().DurationVar(&grace, "grace", client.DefaultGrace, "pause before listening again when a turn has no audio")
	return cmd
}

func newResumeCmd(opts *globalOpts) *cobra.Command {
	var sessionID, audioDir string
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "resume --session <id>",
		Short: "Continue a pending interview",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(sessionID) == "" {
				return fmt.Errorf("--session is required")
			}
			ctx, cancel := signalContext()
			defer cancel()

			api, err := login(ctx, opts)
			if err != nil {
				return err
			}
			interview, err := api.GetInterview(ctx, sessionID)
			if err != nil {
				return err
			}
			for _, t := range interview.Conversation {
				printTurn(t.Role, t.Content)
			}
			if interview.Status != "pending" {
				color.Yellow("Interview is %s.", interview.Status)
				return nil
			}
			return runLoop(ctx, api, interview.ID, audioDir, grace)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "interview id")
	cmd.Flags().StringVar(&audioDir, "audio-dir", "./interview-audio", "directory for interviewer audio")
	cmd.Flags().DurationVar(&grace, "grace", client.DefaultGrace, "pause before listening again when a turn has no audio")
	return cmd
}

func newListCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your interviews",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			api, err := login(ctx, opts)
			if err != nil {
				return err
			}
			interviews, err := api.ListInterviews(ctx)
			if err != nil {
				return err
			}
			if len(interviews) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no interviews")
				return nil
			}
			for _, iv := range interviews {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", iv.ID, iv.Status, iv.Difficulty, iv.Title)
			}
			return nil
		},
	}
}

func printTurn(role, content string) {
	if role == "assistant" {
		color.Green("Interviewer: %s", content)
		return
	}
	color.White("You: %s", content)
}

func runLoop(ctx context.Context, api *client.API, sessionID, audioDir string, grace time.Duration) error {
	loop := &client.Loop{
		SessionID: sessionID,
		Listener:  client.NewLineListener(os.Stdin, func() { fmt.Print("> ") }),
		Submitter: api,
		Player: client.NewFilePlayer(audioDir, func(path string) {
			color.HiBlack("(audio saved to %s)", path)
		}),
		Grace: grace,
		Hooks: client.Hooks{
			OnReply: func(r *client.TurnReply) {
				printTurn("assistant", r.AssistantStatement)
			},
			OnError: func(err error) {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) {
					if apiErr.Retryable() {
						color.Yellow("The interviewer did not answer (%s). Repeat your answer to try again.", apiErr.Code)
					}
					return
				}
				color.Red("Error: %v. Repeat your answer to try again.", err)
			},
		},
	}

	err := loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}
	if loop.State() == client.StateCompleted {
		color.Cyan("Interview finished. Good luck!")
	}
	return nil
}
