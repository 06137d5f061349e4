package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seankim-business/accord/internal/ui"
)

// Set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(GetVersionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// GetVersionString renders the version line shown by accord version.
func GetVersionString() string {
	return fmt.Sprintf("%s %s %s",
		ui.StyleBold.Render("accord"),
		ui.StyleCyan.Render(Version),
		ui.StyleDim.Render(fmt.Sprintf("(%s, %s)", GitCommit, BuildDate)),
	)
}
