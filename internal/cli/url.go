package cli

import (
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/tessro/weradio/internal/browser"
)

var (
	urlCopy     bool
	urlOpen     bool
	urlManifest bool
)

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the station URL",
	Long: `Prints the station's web page URL, or with --stream the live stream
manifest URL for use in other players.`,
	RunE: runURL,
}

func init() {
	urlCmd.Flags().BoolVar(&urlCopy, "copy", false, "copy the URL to the clipboard")
	urlCmd.Flags().BoolVar(&urlOpen, "open", false, "open the URL in a browser")
	urlCmd.Flags().BoolVar(&urlManifest, "stream", false, "use the live stream manifest URL")
	rootCmd.AddCommand(urlCmd)
}

func runURL(cmd *cobra.Command, args []string) error {
	target := cfg.WebURL()
	if urlManifest {
		target = cfg.ManifestURL()
	}

	copied := false
	if urlCopy {
		if err := clipboard.WriteAll(target); err != nil {
			fmt.Fprintf(os.Stderr, "Could not copy to clipboard: %v\n", err)
		} else {
			copied = true
		}
	}

	opened := false
	if urlOpen {
		if err := browser.Open(target); err != nil {
			fmt.Fprintf(os.Stderr, "Could not open browser: %v\n", err)
		} else {
			opened = true
		}
	}

	if JSONOutput() {
		return writeJSON(map[string]any{
			"url":    target,
			"copied": copied,
			"opened": opened,
		})
	}

	fmt.Println(target)
	if copied {
		fmt.Fprintln(os.Stderr, "Copied to clipboard.")
	}
	return nil
}
