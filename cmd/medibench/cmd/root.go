package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "medibench",
	Short: "Medical diagnosis ledger benchmark tool",
	Long:  "A command-line tool for generating synthetic read/write load against the diagnosis chaincode.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
