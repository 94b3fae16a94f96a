// Command ctriebench runs configurable read/write/mixed workloads
// against a ctrie.Trie across goroutines and reports throughput and
// latency percentiles.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("ctriebench failed")
		os.Exit(1)
	}
}
