package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/williamcory/skillchat/internal/app"
	"github.com/williamcory/skillchat/internal/components/chat"
	"github.com/williamcory/skillchat/internal/mock"
	"github.com/williamcory/skillchat/internal/styles"
	"github.com/williamcory/skillchat/sdk/skillchat"
)

var conversationFlag = &cli.StringFlag{
	Name:    "conversation",
	Aliases: []string{"c"},
	Usage:   "Conversation ID (default: the last one opened)",
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// chat
// =============================================================================

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:   "chat",
		Usage:  "Open the interactive chat (default)",
		Flags:  []cli.Flag{conversationFlag, &cli.BoolFlag{Name: "new", Usage: "Start a new conversation"}},
		Action: runChat,
	}
}

func runChat(c *cli.Context) error {
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	id := c.String("conversation")
	if id == "" && !c.Bool("new") {
		id = e.cfg.LastConversation
	}

	model := app.New(e.client, app.Options{
		ConversationID: id,
		OnConversation: func(id string) {
			e.cfg.LastConversation = id
			if err := e.cfg.Save(); err != nil {
				e.logger.Warn("save config", "error", err)
			}
		},
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	model.SetProgram(p)

	_, err = p.Run()
	return err
}

// =============================================================================
// send
// =============================================================================

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send one message and print the streamed reply",
		ArgsUsage: "MESSAGE",
		Flags:     []cli.Flag{conversationFlag},
		Action: func(c *cli.Context) error {
			text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if text == "" {
				return errors.New("usage: skillchat send MESSAGE")
			}

			e, err := setup(c, false)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			id := c.String("conversation")
			if id == "" {
				summary, err := e.client.CreateConversation(ctx, "")
				if err != nil {
					return err
				}
				id = summary.ID
				fmt.Fprintln(os.Stderr, styles.Dim.Render("conversation "+id))
			}

			conv := skillchat.NewConversation(id, nil)
			printer := newReplyPrinter(os.Stdout, isTerminal(os.Stdout))
			if err := e.client.Send(ctx, conv, text, skillchat.OnUpdate(printer.update)); err != nil {
				return err
			}
			printer.finish(conv.Messages())
			return nil
		},
	}
}

// replyPrinter writes reply text as it streams and skill results once the
// reply is complete.
type replyPrinter struct {
	w       io.Writer
	tty     bool
	printed map[string]int
	last    string
}

func newReplyPrinter(w io.Writer, tty bool) *replyPrinter {
	return &replyPrinter{w: w, tty: tty, printed: make(map[string]int)}
}

func (p *replyPrinter) update(snapshot []skillchat.Message) {
	for _, msg := range snapshot {
		if !msg.IsAssistant() || msg.Error {
			continue
		}
		text := msg.Text()
		n := p.printed[msg.ID]
		if len(text) <= n {
			continue
		}
		if p.last != "" && p.last != msg.ID {
			fmt.Fprintln(p.w)
		}
		fmt.Fprint(p.w, text[n:])
		p.printed[msg.ID] = len(text)
		p.last = msg.ID
	}
}

func (p *replyPrinter) finish(msgs []skillchat.Message) {
	if p.last != "" {
		fmt.Fprintln(p.w)
	}
	for _, msg := range msgs {
		sr := msg.SkillResult()
		if sr == nil {
			continue
		}
		if p.tty {
			fmt.Fprintln(p.w, chat.RenderSkill(*sr, 80))
			continue
		}
		fmt.Fprintf(p.w, "[%s]\n%s\n", sr.SkillName, sr.PrettyData())
	}
}

// =============================================================================
// conversations, history, usage
// =============================================================================

func conversationsCommand() *cli.Command {
	return &cli.Command{
		Name:    "conversations",
		Aliases: []string{"ls"},
		Usage:   "List conversations",
		Action: func(c *cli.Context) error {
			e, err := setup(c, false)
			if err != nil {
				return err
			}
			defer e.Close()

			list, err := e.client.ListConversations(c.Context)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No conversations yet.")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(styles.CardBorder)).
				Headers("ID", "TITLE", "UPDATED")
			for _, conv := range list {
				t.Row(conv.ID, conv.Title, conv.UpdatedAt)
			}
			fmt.Println(t)
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Print the messages of a conversation",
		ArgsUsage: "ID",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return errors.New("usage: skillchat history ID")
			}

			e, err := setup(c, false)
			if err != nil {
				return err
			}
			defer e.Close()

			msgs, err := e.client.ListMessages(c.Context, id)
			if err != nil {
				return err
			}
			width := 80
			if isTerminal(os.Stdout) {
				if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
					width = w
				}
			}
			for _, msg := range msgs {
				fmt.Println(chat.RenderMessage(msg, width, false))
				fmt.Println()
			}
			return nil
		},
	}
}

func usageCommand() *cli.Command {
	return &cli.Command{
		Name:      "usage",
		Usage:     "Show token usage of a conversation",
		ArgsUsage: "ID",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return errors.New("usage: skillchat usage ID")
			}

			e, err := setup(c, false)
			if err != nil {
				return err
			}
			defer e.Close()

			u, err := e.client.TokenUsage(c.Context, id)
			if err != nil {
				return err
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(styles.CardBorder)).
				Headers("MODEL", "INPUT", "OUTPUT", "CACHE W", "CACHE R", "CALLS", "COST")
			for _, m := range u.Models {
				t.Row(m.DisplayName(),
					skillchat.FormatTokens(m.InputTokens),
					skillchat.FormatTokens(m.OutputTokens),
					skillchat.FormatTokens(m.CacheWriteTokens),
					skillchat.FormatTokens(m.CacheReadTokens),
					fmt.Sprint(m.Calls),
					fmt.Sprintf("$%.4f", m.Cost))
			}
			t.Row("Total",
				skillchat.FormatTokens(u.TotalInputTokens),
				skillchat.FormatTokens(u.TotalOutputTokens),
				skillchat.FormatTokens(u.TotalCacheWriteTokens),
				skillchat.FormatTokens(u.TotalCacheReadTokens),
				fmt.Sprint(u.TotalAPICalls),
				fmt.Sprintf("$%.4f", u.TotalCostUSD))
			fmt.Println(t)
			return nil
		},
	}
}

// =============================================================================
// auth
// =============================================================================

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in with an emailed one-time code",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Account email"},
			&cli.StringFlag{Name: "code", Usage: "One-time code (prompted when omitted)"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c, false)
			if err != nil {
				return err
			}
			defer e.Close()

			in := bufio.NewReader(os.Stdin)
			email := c.String("email")
			if email == "" {
				if email, err = prompt(in, "Email: "); err != nil {
					return err
				}
			}

			code := c.String("code")
			if code == "" {
				if err := e.client.SendOTP(c.Context, email); err != nil {
					return err
				}
				if code, err = prompt(in, "Code sent to "+email+". Code: "); err != nil {
					return err
				}
			}

			if err := e.client.VerifyOTP(c.Context, email, code); err != nil {
				return err
			}
			e.cfg.SetSession(email, e.client.Cookies())
			if err := e.cfg.Save(); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Println("Logged in as " + email)
			return nil
		},
	}
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no input")
	}
	return line, nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "End the session and forget the saved cookies",
		Action: func(c *cli.Context) error {
			e, err := setup(c, false)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.client.Logout(c.Context); err != nil && !errors.Is(err, skillchat.ErrUnauthorized) {
				e.logger.Warn("logout", "error", err)
			}
			e.cfg.SetSession("", nil)
			return e.cfg.Save()
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the authenticated user",
		Action: func(c *cli.Context) error {
			e, err := setup(c, false)
			if err != nil {
				return err
			}
			defer e.Close()

			user, err := e.client.Me(c.Context)
			if errors.Is(err, skillchat.ErrUnauthorized) {
				return errors.New("not logged in, run: skillchat login")
			}
			if err != nil {
				return err
			}
			fmt.Println(user.Email)
			return nil
		},
	}
}

// =============================================================================
// mock
// =============================================================================

func mockCommand() *cli.Command {
	return &cli.Command{
		Name:  "mock",
		Usage: "Run the in-memory development backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:8000", Usage: "Listen address"},
			&cli.BoolFlag{Name: "wrap", Usage: `Wrap every frame as {"chunk": "<json>"}`},
			&cli.BoolFlag{Name: "line-framing", Usage: "Separate frames with a single newline"},
			&cli.DurationFlag{Name: "delay", Value: 30 * time.Millisecond, Usage: "Pause between streamed text batches"},
			&cli.BoolFlag{Name: "anthropic", Usage: "Answer chat messages with the Anthropic API"},
			&cli.StringFlag{Name: "model", Value: mock.DefaultAnthropicModel, Usage: "Anthropic model"},
			&cli.StringFlag{Name: "anthropic-key", EnvVars: []string{"ANTHROPIC_API_KEY"}, Usage: "Anthropic API key"},
			&cli.StringFlag{Name: "mock-api-key", Value: mock.DevAPIKey, Usage: `Accepted X-API-Key, "-" to disable`},
		},
		Action: func(c *cli.Context) error {
			level := skillchat.ParseLogLevel(c.String("log-level"))
			if level == skillchat.LevelOff {
				level = skillchat.LevelInfo
			}
			logger := skillchat.NewLogger(level, os.Stderr)

			opts := []mock.Option{
				mock.WithLogger(logger),
				mock.WithDelay(c.Duration("delay")),
				mock.WithAPIKey(c.String("mock-api-key")),
			}
			if c.Bool("wrap") {
				opts = append(opts, mock.WithWrap())
			}
			if c.Bool("line-framing") {
				opts = append(opts, mock.WithLineFraming())
			}
			if c.Bool("anthropic") {
				r, err := mock.NewAnthropicResponder(c.String("anthropic-key"), c.String("model"))
				if err != nil {
					return err
				}
				opts = append(opts, mock.WithResponder(r))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(os.Stderr, "mock backend on http://%s (api key %s, otp %s)\n", c.String("addr"), c.String("mock-api-key"), mock.DevOTP)
			return mock.NewServer(opts...).Run(ctx, c.String("addr"))
		},
	}
}
