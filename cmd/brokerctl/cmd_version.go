package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l2fabric/l2fabric/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("brokerctl " + version.Info())
	},
}
