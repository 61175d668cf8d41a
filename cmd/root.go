package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the yoteibot application
var rootCmd = &cobra.Command{
	Use:   "yoteibot",
	Short: "LINE bot that manages Google Calendar from natural-language messages",
	Long: `yoteibot receives LINE messages, interprets them as calendar requests
using OpenAI, and creates, updates, or deletes events in the user's
Google Calendar.

Users link their Google account once with the /auth command; after that,
messages like 「明日の15時から2時間、打ち合わせ」 become calendar events.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "yoteibot version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
