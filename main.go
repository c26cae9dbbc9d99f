package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/boardproject/boardadmin/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "boardadmin",
	Short: "Board admin dashboard client",
	Long:  "Command line admin dashboard for the board API: statistics, admin accounts and restoring members and posts",
}

func init() {
	cmd.Register(rootCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Println(err)
		stop()
		os.Exit(1)
	}
}
