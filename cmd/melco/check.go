package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zberg/go-melco/internal/check"
	"github.com/zberg/go-melco/pkg/melco"
)

var (
	warning  float64
	critical float64
	param    string
)

func init() {
	checkCmd.Flags().Float64VarP(&warning, "warning", "w", 0, "Warning threshold for temperature reads")
	checkCmd.Flags().Float64VarP(&critical, "critical", "c", 0, "Critical threshold for temperature reads")
	checkCmd.Flags().StringVar(&param, "param", "", "Value for SETTEMP, SETSTATE and SETMODE")

	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check <ac> <method> <address>",
	Short: "Monitoring check with Nagios exit codes",
	Long: fmt.Sprintf(`Run one method against group <ac> and exit 0 (OK), 1 (WARNING) or 2 (CRITICAL).

Methods: %s.
Temperature reads compare against --warning and --critical; failures exit 2
with the error kind in the message.`, strings.Join(check.MethodNames, ", ")),
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		th := check.Thresholds{Warning: warning, Critical: critical}
		os.Exit(runCheck(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], args[2], param, th))
	},
}

// runCheck prints the check result to out and returns the exit code.
func runCheck(ctx context.Context, out io.Writer, group, method, host, param string, th check.Thresholds) int {
	res := evaluate(ctx, group, method, host, param, th)
	fmt.Fprintln(out, res.Message)
	return res.Status.ExitCode()
}

func evaluate(ctx context.Context, group, method, host, param string, th check.Thresholds) check.Result {
	m, err := check.ParseMethod(method, param)
	if err != nil {
		return check.Failed(err)
	}
	client, err := melco.NewClient(host, clientOptions()...)
	if err != nil {
		return check.Failed(err)
	}
	return check.Run(ctx, client, group, m, th)
}
