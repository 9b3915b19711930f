package commands

import (
	"context"
	"os"
	"syscall"

	"github.com/mailsift/mailsift/runtimer"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mailsift-cli",
	Short: "Verify e-mail addresses without sending mail",
	Long: `mailsift-cli checks e-mail addresses by escalating from syntax validation
over MX resolution up to live SMTP callback verification.`,
}

func Execute() {
	// An interrupt cancels the context, letting in-flight checks wind down
	sh := runtimer.New(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := rootCmd.ExecuteContext(sh.Context()); err != nil {
		os.Exit(1)
	}
}
