package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/Cine/internal/client"
	"github.com/dkeye/Cine/internal/core"
	"github.com/dkeye/Cine/internal/domain"
)

var (
	serverURL string
	name      string
	sessionID string
	create    bool
	stateFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cine-client",
		Short: "Headless participant for a Cine sync session",
		RunE:  run,
	}
	rootCmd.Flags().StringVar(&serverURL, "server", "ws://localhost:8080/api/ws/signal", "signal endpoint")
	rootCmd.Flags().StringVar(&name, "name", "", "display name (required)")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "session id to join")
	rootCmd.Flags().BoolVar(&create, "create", false, "create a new session instead of joining")
	rootCmd.Flags().StringVar(&stateFile, "state-file", ".cine-session.json", "persisted session record for rejoin")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	providers := newMemProviders()
	ctl, err := client.NewController(
		client.WithServerURL(serverURL),
		client.WithDisplayName(name),
		client.WithProviders(providers, providers, providers),
		client.WithStateFile(stateFile),
		client.WithChatHandler(func(m client.ChatMessage) {
			log.Info().Str("from", m.UserName).Str("text", m.Text).Msg("chat")
		}),
		client.WithPromotionHandler(func() {
			log.Info().Msg("this client is now the session host")
		}),
		client.WithUsersHandler(func(users []core.ParticipantDTO) {
			names := make([]string, 0, len(users))
			for _, u := range users {
				names = append(names, u.Name)
			}
			log.Info().Strs("participants", names).Msg("membership update")
		}),
	)
	if err != nil {
		return err
	}
	defer ctl.Close()

	if err := ctl.Connect(ctx); err != nil {
		return err
	}

	switch {
	case create:
		id, err := ctl.CreateSession(ctx)
		if err != nil {
			return err
		}
		log.Info().Str("session", string(id)).Msg("session created, share this id")
	case sessionID != "":
		if err := ctl.JoinSession(ctx, domain.SessionID(sessionID)); err != nil {
			return err
		}
		log.Info().Str("session", sessionID).Msg("joined session")
	default:
		log.Info().Msg("no --create or --session given, relying on persisted rejoin")
	}

	<-ctx.Done()

	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer leaveCancel()
	if err := ctl.LeaveSession(leaveCtx); err != nil {
		log.Warn().Err(err).Msg("leave session")
	}
	log.Info().Msg("client exited")
	return nil
}
