package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cspderive",
	Short: "Derive a working Content Security Policy by observing a target origin",
	Long: `cspderive rewrites a target origin through a local proxy, injects a
maximally restrictive Content-Security-Policy-Report-Only header, and
relaxes the policy directive by directive as the browser reports
violations. The surviving policy is one the observed pages actually
satisfy.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
