package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "ctriebench",
	Short: "Benchmark the ctrie concurrent trie",
}

func init() {
	rootCmd.AddCommand(runCmd)
}
