package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/customermatch/internal/config"
	"github.com/JonMunkholm/customermatch/internal/core"
	"github.com/JonMunkholm/customermatch/internal/geo"
)

func newZipsCmd(a *app) *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "zips",
		Short: "Manage zip code reference data",
	}
	cmd.PersistentFlags().StringVar(&backend, "zip-backend", "", "Zip source: csv, sqlite, postgres, redis")

	openSource := func(cmd *cobra.Command) (geo.Source, error) {
		if cmd.Flags().Changed("zip-backend") {
			a.cfg.Lookup.Backend = backend
		}
		src, err := geo.Open(cmd.Context(), a.cfg.Lookup)
		if err != nil {
			return nil, err
		}
		if src == nil {
			return nil, core.ErrNoZipSource
		}
		return src, nil
	}

	load := &cobra.Command{
		Use:   "load FILE",
		Short: "Import a zip,city,state[,country] CSV into the configured backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.EqualFold(a.cfg.Lookup.Backend, config.BackendCSV) && !cmd.Flags().Changed("zip-backend") {
				return fmt.Errorf("zip backend csv is read-only; choose sqlite, postgres or redis")
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			entries, stats, err := geo.ReadEntries(f)
			if err != nil {
				return err
			}

			src, err := openSource(cmd)
			if err != nil {
				return err
			}
			defer src.Close()

			n, err := src.Load(cmd.Context(), entries)
			if err != nil {
				return err
			}
			a.logger.Info("zips loaded",
				"backend", a.cfg.Lookup.Backend,
				"rows", stats.Rows,
				"skipped", stats.Skipped,
				"stored", n,
			)
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d zip codes (%d rows read, %d skipped)\n", n, stats.Rows, stats.Skipped)
			return nil
		},
	}

	lookup := &cobra.Command{
		Use:   "lookup CITY STATE [COUNTRY]",
		Short: "Show the zip codes stored for a place",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			country := "US"
			if len(args) == 3 {
				iso, ok := core.NewCountryNormalizer().Normalize(args[2])
				if !ok {
					return fmt.Errorf("unknown country %q", args[2])
				}
				country = iso
			}

			src, err := openSource(cmd)
			if err != nil {
				return err
			}
			defer src.Close()

			key := core.NewPlaceKey(args[0], args[1], country)
			zips, err := src.Lookup(cmd.Context(), key)
			if err != nil {
				return err
			}
			if len(zips) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: not found\n", key)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, strings.Join(zips, " "))
			return nil
		},
	}

	cmd.AddCommand(load, lookup)
	return cmd
}
