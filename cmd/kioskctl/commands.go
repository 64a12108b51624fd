package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/migration"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "kioskctl",
		Short:         "maintenance jobs for the photo kiosk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logging.SetLevel(logging.LevelDebug)
			} else {
				logging.SetLevel(logging.LevelWarn)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(newRegenerateCmd(), newMigrateCmd(), newCacheCmd(), newVacuumCmd())
	return rootCmd
}

func newRegenerateCmd() *cobra.Command {
	var workerCount int
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "rebuild thumbnails and web images of every library photo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStores(cmd.Context(), workerCount)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			bar := newProgress(out, "regenerating")
			res, err := s.library.RegenerateAll(cmd.Context(), bar.Update)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d photos regenerated, %d failed\n", res.Total-res.Failed, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d photos failed to regenerate", res.Failed)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workerCount, "workers", "w", 0, "parallel workers (default: DERIVATIVE_WORKERS or auto)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "import legacy album directories into the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStores(cmd.Context(), 0)
			if err != nil {
				return err
			}
			defer s.Close()

			cfg := migration.Config{
				AlbumsDir:     s.config.LegacyAlbumsDir,
				ThumbnailsDir: s.config.LegacyThumbnailsDir,
				WebDir:        s.config.LegacyWebDir,
				Active:        s.config.LegacyActiveAlbums,
				Library:       s.library,
				Albums:        s.albums,
			}
			if s.db != nil {
				cfg.Marker = s.db
			}
			report, err := migration.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.PartialFailure() {
				return fmt.Errorf("%d files failed to migrate", report.Failed)
			}
			return nil
		},
	}
}

func newVacuumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "compact the SQLite document store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStores(cmd.Context(), 0)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.db == nil {
				return fmt.Errorf("vacuum needs STORAGE_BACKEND=sqlite, not %s", s.config.StorageBackend)
			}
			reclaimed, err := s.db.Vacuum(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database compacted, %d KB reclaimed\n", max(reclaimed, 0)>>10)
			return nil
		},
	}
}

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "inspect and trim the remote photo cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "show the number of cached photos and their size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStores(cmd.Context(), 0)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.cache.Stats()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}

	var quotaMB int64
	evictCmd := &cobra.Command{
		Use:   "evict",
		Short: "evict the oldest cached photos until the cache fits the quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStores(cmd.Context(), 0)
			if err != nil {
				return err
			}
			defer s.Close()

			quota := s.config.CacheQuotaBytes
			if cmd.Flags().Changed("quota") {
				if quotaMB < 0 {
					return fmt.Errorf("quota must not be negative")
				}
				quota = quotaMB << 20
			}
			res, err := s.cache.Evict(cmd.Context(), quota)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	evictCmd.Flags().Int64Var(&quotaMB, "quota", 0, "quota in MB (default: CACHE_QUOTA_MB)")

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "delete every cached remote photo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete every cached remote photo?")
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("aborted")
				}
			}

			s, err := openStores(cmd.Context(), 0)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.cache.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "remote cache cleared")
			return nil
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cacheCmd.AddCommand(statsCmd, evictCmd, clearCmd)
	return cacheCmd
}

// confirm asks a yes/no question on an interactive terminal. Without a
// terminal it refuses, so scripts must pass --yes.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, fmt.Errorf("not a terminal, pass --yes to confirm")
	}
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
