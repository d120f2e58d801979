package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vectorkeep/vectorkeep"
	"github.com/vectorkeep/vectorkeep/internal/wal"
)

var walDir string

var rootCmd = &cobra.Command{
	Use:   "vectorkeepctl",
	Short: "Operator CLI for a vectorkeep data directory",
	Long:  `vectorkeepctl inspects and maintains a vectorkeep WAL directory out of band, without starting a network server.`,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report per-collection WAL stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := os.ReadDir(walDir)
		if err != nil {
			return fmt.Errorf("read wal dir: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			id, err := vectorkeep.ParseCollectionID(e.Name())
			if err != nil {
				continue
			}
			records, corrupted, err := wal.Replay(walDir + "/" + e.Name())
			if err != nil {
				fmt.Printf("%s: replay error: %v\n", id, err)
				continue
			}
			fmt.Printf("%s: %d records, torn_tail=%v\n", id, len(records), corrupted)
		}
		return nil
	},
}

var replayCheckCmd = &cobra.Command{
	Use:   "replay-check <collection-id>",
	Short: "Replay one collection's WAL and report whether it is clean",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := walDir + "/" + args[0]
		records, corrupted, err := wal.Replay(dir)
		if err != nil {
			return fmt.Errorf("replay %s: %w", dir, err)
		}
		fmt.Printf("%d records replayed\n", len(records))
		if corrupted {
			fmt.Println("warning: torn tail truncated at end of active segment")
		}
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact <collection-id>",
	Short: "Reopen a collection's WAL stream and compact sealed segments below its checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := walDir + "/" + args[0]
		stream, err := wal.Open(dir, 64<<20, nil)
		if err != nil {
			return fmt.Errorf("open %s: %w", dir, err)
		}
		defer stream.Close()

		removed, err := stream.CompactSegments()
		if err != nil {
			return fmt.Errorf("compact %s: %w", dir, err)
		}
		fmt.Printf("removed %d sealed segment(s) below checkpoint lsn %d\n", removed, stream.CheckpointLSN())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&walDir, "wal-dir", "./data/wal", "root WAL directory")
	rootCmd.AddCommand(statsCmd, replayCheckCmd, compactCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
