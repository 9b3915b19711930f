package commands

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type ReportSettings struct {
	OnlyInvalid bool
}

var reportSettings = &ReportSettings{}

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize check results",
	Long: `Read the JSON stream produced by check from stdin and summarize it. With
--only-invalid the rejected addresses are echoed instead, one per line, which
makes it easy to feed them into another tool.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if !isStdinPiped() {
			return errors.New("expecting check results on stdin")
		}

		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		start := time.Now()
		stats := ReportStats{
			Reasons: make(map[string]uint64),
		}

		decoder := json.NewDecoder(cmd.InOrStdin())
		for {
			var result CheckResult
			err := decoder.Decode(&result)
			if err == io.EOF {
				break
			}

			if err != nil {
				cmd.PrintErrln(err)
				return
			}

			if result.Valid {
				stats.Passed++
				continue
			}

			stats.Rejected++
			if result.Reason != "" {
				stats.Reasons[result.Reason]++
			}

			if reportSettings.OnlyInvalid {
				cmd.Println(result.Email)
			}
		}

		if reportSettings.OnlyInvalid {
			return
		}

		stats.Duration = time.Since(start).Milliseconds()

		jsonEncoder := json.NewEncoder(cmd.OutOrStdout())
		if err := jsonEncoder.Encode(stats); err != nil {
			cmd.PrintErrln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolVar(&reportSettings.OnlyInvalid, "only-invalid", false, "Only report rejected checks")
}
