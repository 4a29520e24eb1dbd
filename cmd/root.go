package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/tutorbar/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "tutorbar",
	Short: "Live learning progress panel",
	Long:  "tutorbar shows session time, completed topics and answer feedback from a tutoring backend in the terminal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (env vars use the TUTORBAR_ prefix)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(signalCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the --config file, if any, layered under TUTORBAR_* env
// vars and defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
