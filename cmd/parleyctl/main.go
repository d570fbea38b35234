package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eldtechnologies/parley/agent"
)

var serverURL string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "ws://localhost:9190/ws", "chat server websocket URL")

	accountCmd.AddCommand(accountCreateCmd, accountDeleteCmd, accountListCmd)
	groupCmd.AddCommand(groupCreateCmd, groupDeleteCmd, groupListCmd)
	rootCmd.AddCommand(accountCmd, groupCmd, sendCmd, sendGroupCmd, listenCmd)
}

// dial connects to the server and builds an agent on top of the connection.
// The caller must defer conn.Close().
func dial(ctx context.Context) (*agent.Conn, *agent.Agent, error) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger().
		Level(zerolog.WarnLevel)

	conn, err := agent.Dial(ctx, serverURL, logger)
	if err != nil {
		return nil, nil, err
	}

	a, err := agent.New(ctx, conn, printMessage)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	conn.Attach(a)
	return conn, a, nil
}

func printMessage(msg agent.Message) {
	if msg.IsGroup() {
		fmt.Printf("[%s:%s @ %d] %s\n", msg.Group, msg.Sender, msg.Timestamp, msg.Body)
		return
	}
	fmt.Printf("[%s @ %d] %s\n", msg.Sender, msg.Timestamp, msg.Body)
}

// login logs the agent in, creating the account first if needed.
func login(ctx context.Context, conn *agent.Conn, a *agent.Agent, account string) error {
	if _, err := conn.CreateAccount(ctx, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	if _, err := a.Login(ctx, account); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "parleyctl",
	Short: "Command-line client for the parley chat server",
}

// account commands

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, _, err := dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		created, err := conn.CreateAccount(ctx, args[0])
		if err != nil {
			return err
		}
		if !created {
			return fmt.Errorf("account %q already exists", args[0])
		}
		fmt.Printf("created account %q\n", args[0])
		return nil
	},
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, _, err := dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		deleted, err := conn.DeleteAccount(ctx, args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no account %q", args[0])
		}
		fmt.Printf("deleted account %q\n", args[0])
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, _, err := dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		names, err := conn.ListAccounts(ctx, "")
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

// group commands

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create NAME MEMBER...",
	Short: "Create or replace a group",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, _, err := dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := conn.CreateGroup(ctx, args[0], args[1:]); err != nil {
			return err
		}
		fmt.Printf("created group %q with %d members\n", args[0], len(args)-1)
		return nil
	},
}

var groupDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, _, err := dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		deleted, err := conn.DeleteGroup(ctx, args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no group %q", args[0])
		}
		fmt.Printf("deleted group %q\n", args[0])
		return nil
	},
}

var groupListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, _, err := dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		names, err := conn.ListGroups(ctx, "")
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

// messaging commands

var fromAccount string

var sendCmd = &cobra.Command{
	Use:   "send RECIPIENT BODY",
	Short: "Send a direct message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, a, err := dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := login(ctx, conn, a, fromAccount); err != nil {
			return err
		}

		sent, err := a.SendToAccount(ctx, args[0], args[1], time.Now().UnixMilli())
		if err != nil {
			return err
		}
		if !sent {
			return fmt.Errorf("message rejected as duplicate")
		}
		fmt.Println("sent")
		return nil
	},
}

var sendGroupCmd = &cobra.Command{
	Use:   "send-group GROUP BODY",
	Short: "Send a message to a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, a, err := dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := login(ctx, conn, a, fromAccount); err != nil {
			return err
		}

		sent, err := a.SendToGroup(ctx, args[0], args[1], time.Now().UnixMilli())
		if err != nil {
			return err
		}
		if !sent {
			return fmt.Errorf("message rejected as duplicate")
		}
		fmt.Println("sent")
		return nil
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen ACCOUNT",
	Short: "Log in, fetch queued messages, and print messages as they arrive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, a, err := dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := login(ctx, conn, a, args[0]); err != nil {
			return err
		}
		if _, err := a.FetchUndelivered(ctx); err != nil {
			return err
		}

		fmt.Printf("listening as %q, ctrl-c to quit\n", args[0])

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		_, err = a.Logout(ctx)
		return err
	},
}

func init() {
	sendCmd.Flags().StringVar(&fromAccount, "as", "", "account to send as (required)")
	sendCmd.MarkFlagRequired("as")
	sendGroupCmd.Flags().StringVar(&fromAccount, "as", "", "account to send as (required)")
	sendGroupCmd.MarkFlagRequired("as")
}
