package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var cacheLimit int

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect persisted resources",
}

var cacheListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List persisted resources, optionally matching a query",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		found, err := a.player.Search(context.Background(), query, cacheLimit)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Println("No resources")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSIZE\tFETCHED")
		for _, info := range found {
			fmt.Fprintf(w, "%s\t%d\t%s\n", info.Key, info.Size, info.FetchedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict <key>",
	Short: "Forget a persisted resource so it is fetched again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		evicted, err := a.player.Evict(context.Background(), args[0])
		if err != nil {
			return err
		}
		if !evicted {
			return fmt.Errorf("%s is not cached", args[0])
		}
		fmt.Printf("Evicted %s\n", args[0])
		return nil
	},
}

func init() {
	cacheListCmd.Flags().IntVar(&cacheLimit, "limit", 50, "Maximum number of results")
	cacheCmd.AddCommand(cacheListCmd, cacheEvictCmd)
}
