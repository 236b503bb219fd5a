package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abdulachik/socialpilot/internal/content"
	"github.com/abdulachik/socialpilot/internal/platform"
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List supported platforms and their limits",
	RunE:  runPlatforms,
}

func init() {
	rootCmd.AddCommand(platformsCmd)
}

func runPlatforms(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tMAX TEXT\tMEDIA\tMAX MEDIA\tREQUIRES MEDIA\tOPTIMAL LENGTH\tHASHTAGS")

	for _, p := range platform.SupportedPlatforms() {
		req, _ := platform.GetRequirements(p.String())
		g, _ := content.For(p)

		media := make([]string, len(req.SupportedMediaTypes))
		for i, t := range req.SupportedMediaTypes {
			media[i] = string(t)
		}

		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%t\t%d-%d\t%d-%d\n",
			p,
			req.MaxTextLength,
			strings.Join(media, ","),
			req.MaxMediaCount,
			req.RequiresMedia,
			g.OptimalMinLength, g.OptimalMaxLength,
			g.OptimalHashtags[0], g.OptimalHashtags[1],
		)
	}
	return w.Flush()
}
