package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cbodonnell/wordrush/client/bot"
	"github.com/cbodonnell/wordrush/pkg/log"
	"github.com/cbodonnell/wordrush/pkg/version"
	"github.com/spf13/cobra"
)

func main() {
	var (
		serverURL string
		name      string
		bots      int
		delay     time.Duration
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:           "wordrush-bot",
		Short:         "Connects bots that play wordrush on their own.",
		Args:          cobra.ExactArgs(0),
		Version:       version.Get(),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedLogLevel, err := log.ParseLogLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(parsedLogLevel)
			if bots < 1 {
				return fmt.Errorf("invalid number of bots: %d", bots)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var wg sync.WaitGroup
			for i := 1; i <= bots; i++ {
				b := bot.NewBot(bot.NewBotOptions{
					ServerURL: serverURL,
					Name:      fmt.Sprintf("%s-%d", name, i),
					Delay:     delay,
				})
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := b.Run(ctx); err != nil {
						log.Error("Bot stopped: %v", err)
					}
				}()
			}
			wg.Wait()
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&serverURL, "server", "s", "ws://localhost:8080/ws", "websocket endpoint of the server")
	fs.StringVarP(&name, "name", "n", "bot", "name prefix for the bots")
	fs.IntVar(&bots, "bots", 1, "number of bots to connect")
	fs.DurationVar(&delay, "delay", time.Second, "pause before each selection")
	fs.StringVar(&logLevel, "log-level", "info", "error, warn, info, debug or trace")
	cmd.SetVersionTemplate("wordrush-bot {{.Version}}\n")

	if err := cmd.Execute(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}
