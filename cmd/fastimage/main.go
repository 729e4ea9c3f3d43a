// Command fastimage exercises the image cache from the terminal: fetch
// URLs into the cache, print the cache report, or wipe it.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fastimage/fastimage"
)

var (
	flagCacheDir string
	flagMaxSize  string
	flagTTL      time.Duration
	flagVerbose  bool
)

func main() {
	root := &cobra.Command{
		Use:           "fastimage",
		Short:         "Disk-cached image fetcher",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", defaultCacheDir(), "cache root directory")
	root.PersistentFlags().StringVar(&flagMaxSize, "max-size", "50MiB", "cache size limit")
	root.PersistentFlags().DurationVar(&flagTTL, "ttl", 8*24*time.Hour, "entry time-to-live")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(fetchCmd(), statCmd(), clearCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fastimage:", err)
		os.Exit(1)
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [urls...]",
		Short: "Download images into the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			for _, url := range args {
				img, err := c.Get(cmd.Context(), url, fastimage.SpecOriginal)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", url, err)
					continue
				}
				b := img.Bounds()
				fmt.Printf("%s: %dx%d\n", url, b.Dx(), b.Dy())
			}
			fmt.Println()
			fmt.Println(c.Report())
			return nil
		},
	}
}

func statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Print the cache report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			s := c.Report()
			fmt.Println(s)
			if !s.LastScan.IsZero() {
				fmt.Printf("(%s on disk, last scan %s)\n",
					humanize.IBytes(uint64(s.SizeBytes)), humanize.Time(s.LastScan))
			}
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			c.Clear()
			return c.Close()
		},
	}
}

func newClient() (*fastimage.Client, error) {
	maxBytes, err := humanize.ParseBytes(flagMaxSize)
	if err != nil {
		return nil, fmt.Errorf("parse --max-size: %w", err)
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return fastimage.New(flagCacheDir,
		fastimage.WithMaxCacheBytes(int64(maxBytes)), //nolint:gosec // flag-sized values
		fastimage.WithTTL(flagTTL),
		fastimage.WithLogger(logger),
	)
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "fastimage")
	}
	return ".fastimage"
}
