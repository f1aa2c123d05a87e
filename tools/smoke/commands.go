package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	v1 "github.com/grebenindmitry/babilado-backend/shared/contracts/realtime/v1"
)

type credentials struct {
	username string
	password string
	create   bool
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&c.password, "password", "p", "", "password")
	cmd.Flags().BoolVar(&c.create, "create", false, "create the user before logging in")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
}

func (c *credentials) session(cmd *cobra.Command, api *apiClient) (session, error) {
	ctx := cmd.Context()
	if c.create {
		if _, err := api.createUser(ctx, c.username, c.password); err != nil {
			return session{}, err
		}
	}
	return api.login(ctx, c.username, c.password)
}

func newLoginCmd(opts *options) *cobra.Command {
	creds := &credentials{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Open (or extend) a session and print it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := newAPIClient(opts.server, opts.timeout)
			s, err := creds.session(cmd, api)
			if err != nil {
				return err
			}
			fmt.Printf("userid=%s sessionid=%s expires=%s\n",
				s.User.ID, s.ID, v1.FromUnixMilli(s.ExpiryTime).Format(time.RFC3339))
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func newSendCmd(opts *options) *cobra.Command {
	creds := &credentials{}
	var (
		to      string
		text    string
		msgType int
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one message over the websocket and wait for its event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			api := newAPIClient(opts.server, opts.timeout)

			s, err := creds.session(cmd, api)
			if err != nil {
				return err
			}
			recipient, err := api.lookup(ctx, s, to)
			if err != nil {
				return fmt.Errorf("resolve %q: %w", to, err)
			}

			c, err := dialLive(ctx, opts, creds.username, s)
			if err != nil {
				return err
			}
			defer c.close()

			sentAt := time.Now().UnixMilli()
			if err := c.send(ctx, v1.NewMessageRequest{
				Recipient: recipient.ID,
				MsgData:   text,
				TimeSent:  &sentAt,
				MsgType:   &msgType,
			}, opts.timeout); err != nil {
				return err
			}

			m, err := c.awaitMessage(ctx, opts.timeout, func(m v1.Message) bool {
				return m.Recipient == recipient.ID && m.MsgData == text
			})
			if err != nil {
				return err
			}
			fmt.Printf("OK: id=%s to=%s time_sent=%d\n", m.ID, recipient.Username, m.TimeSent)
			return nil
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&to, "to", "", "recipient username")
	cmd.Flags().StringVar(&text, "text", "hello from smoke", "message body")
	cmd.Flags().IntVar(&msgType, "type", 0, "message type")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newListenCmd(opts *options) *cobra.Command {
	creds := &credentials{}
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print newMessage events until interrupted or --for elapses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			api := newAPIClient(opts.server, opts.timeout)

			s, err := creds.session(cmd, api)
			if err != nil {
				return err
			}
			c, err := dialLive(ctx, opts, creds.username, s)
			if err != nil {
				return err
			}
			defer c.close()

			var deadline <-chan time.Time
			if duration > 0 {
				deadline = time.After(duration)
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-deadline:
					return nil
				case err := <-c.errCh:
					return err
				case ev, ok := <-c.inbox:
					if !ok {
						return errors.New("connection closed")
					}
					if ev.NewMessage == nil {
						continue
					}
					m := ev.NewMessage
					fmt.Printf("%s %s -> %s [%d] %s\n",
						v1.FromUnixMilli(m.TimeSent).Format(time.RFC3339), m.Sender, m.Recipient, m.MsgType, m.MsgData)
				}
			}
		},
	}
	creds.bind(cmd)
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (0 = until interrupted)")
	return cmd
}

// newRunCmd is the CI check: two fresh users, one message, delivery to both
// parties and presence in history.
func newRunCmd(opts *options) *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full end-to-end smoke scenario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			api := newAPIClient(opts.server, opts.timeout)

			suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
			password := "smoke-" + uuid.NewString()

			sessions := make([]session, 0, 2)
			for _, name := range []string{"smoke_a_" + suffix, "smoke_b_" + suffix} {
				if _, err := api.createUser(ctx, name, password); err != nil {
					return err
				}
				s, err := api.login(ctx, name, password)
				if err != nil {
					return err
				}
				sessions = append(sessions, s)
			}
			a, b := sessions[0], sessions[1]

			again, err := api.login(ctx, a.User.Username, password)
			if err != nil {
				return err
			}
			if again.ID != a.ID || again.ExpiryTime < a.ExpiryTime {
				return fmt.Errorf("session not extended: first=%s second=%s", a.ID, again.ID)
			}

			ca, err := dialLive(ctx, opts, "A", a)
			if err != nil {
				return err
			}
			defer ca.close()
			cb, err := dialLive(ctx, opts, "B", b)
			if err != nil {
				return err
			}
			defer cb.close()

			if opts.verbose {
				fmt.Printf("connected: A=%s B=%s\n", a.User.ID, b.User.ID)
			}

			// The gateway registers after the upgrade completes.
			time.Sleep(200 * time.Millisecond)

			if err := ca.send(ctx, v1.NewMessageRequest{Recipient: b.User.ID, MsgData: text}, opts.timeout); err != nil {
				return err
			}

			match := func(m v1.Message) bool {
				return m.Sender == a.User.ID && m.Recipient == b.User.ID && m.MsgData == text
			}
			got, err := cb.awaitMessage(ctx, opts.timeout, match)
			if err != nil {
				return err
			}
			if _, err := ca.awaitMessage(ctx, opts.timeout, match); err != nil {
				return fmt.Errorf("sender copy: %w", err)
			}

			history, err := api.messages(ctx, b, a.User.ID)
			if err != nil {
				return err
			}
			if !lo.ContainsBy(history, func(m v1.Message) bool { return m.ID == got.ID }) {
				return fmt.Errorf("history missing message %s", got.ID)
			}

			fmt.Printf("OK: A=%s B=%s message=%s\n", a.User.Username, b.User.Username, got.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "hello babilado 👋", "message body")
	return cmd
}
