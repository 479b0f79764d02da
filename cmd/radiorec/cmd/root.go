package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"radiorec/cmd/radiorec/cmd/cancel"
	"radiorec/cmd/radiorec/cmd/export"
	"radiorec/cmd/radiorec/cmd/recorder"
	"radiorec/cmd/radiorec/cmd/schedule"
	"radiorec/cmd/radiorec/cmd/scheduler"
	"radiorec/cmd/radiorec/cmd/version"
)

var Verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "radiorec",
	Short: "Scheduled recording of internet radio streams",
	Long: `Scheduled recording of internet radio streams.
- The scheduler service times capture starts and advances recurring series
- The recorder service executes the captures with ffmpeg
- schedule/cancel/export manage jobs from the command line.`,
	TraverseChildren: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(scheduler.Cmd)
	rootCmd.AddCommand(recorder.Cmd)
	rootCmd.AddCommand(schedule.Cmd)
	rootCmd.AddCommand(cancel.Cmd)
	rootCmd.AddCommand(export.Cmd)
	rootCmd.AddCommand(version.Cmd)

	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
}
