/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/seriesdb/seriesdb/log"
	"github.com/seriesdb/seriesdb/query"
	"github.com/seriesdb/seriesdb/status"
	"github.com/seriesdb/seriesdb/storage"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "seriesdbd",
	Short: "seriesdbd manages and serves a seriesdb time-series database",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(recoveryReportCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(searchCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

var initCmd = &cobra.Command{
	Use:   "init PATH",
	Short: "Lay down an empty database at PATH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base := args[0]
		metaPath, _ := cmd.Flags().GetString("meta-path")
		volumesPath, _ := cmd.Flags().GetString("volumes-path")
		numVolumes, _ := cmd.Flags().GetUint32("num-volumes")
		pageSizeHuman, _ := cmd.Flags().GetString("page-size")
		allocate, _ := cmd.Flags().GetString("allocate")

		pageSize, err := units.FromHumanSize(pageSizeHuman)
		if err != nil {
			return fmt.Errorf("invalid --page-size %q: %w", pageSizeHuman, err)
		}

		if err := storage.NewDatabase(base, metaPath, volumesPath, numVolumes, int(pageSize), allocate); err != nil {
			return err
		}
		fmt.Printf("database initialized at %s\n", base)
		return nil
	},
}

func init() {
	initCmd.Flags().String("meta-path", "", "Metadata store path (default PATH/meta.json)")
	initCmd.Flags().String("volumes-path", "", "Volume set path (default PATH/volumes)")
	initCmd.Flags().Uint32("num-volumes", 4, "Number of volumes in the set")
	initCmd.Flags().String("page-size", "64KB", "Page size (human-readable, e.g. 64KB, 1MB)")
	initCmd.Flags().String("allocate", "round-robin", "Volume allocation policy")
}

var serveCmd = &cobra.Command{
	Use:   "serve PATH",
	Short: "Open a database and run its sync worker until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := storage.Open(args[0])
		if err != nil {
			return err
		}

		fmt.Println("✓ storage opened, sync worker running")
		fmt.Printf("  Path: %s\n", args[0])

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nshutting down...")
		if err := st.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		fmt.Println("✓ shutdown complete")
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report PATH",
	Short: "Print a point-in-time summary of a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return storage.GenerateReport(args[0], os.Stdout)
	},
}

var recoveryReportCmd = &cobra.Command{
	Use:   "recovery-report PATH",
	Short: "Replay a database's input log and print the recovery report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return storage.GenerateRecoveryReport(args[0], os.Stdout)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Delete every on-disk artifact of a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		walPath, _ := cmd.Flags().GetString("wal-path")
		force, _ := cmd.Flags().GetBool("force")
		if err := storage.RemoveStorage(args[0], walPath, force); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

func init() {
	removeCmd.Flags().String("wal-path", "", "Input log path override (default NAME/inputlog)")
	removeCmd.Flags().Bool("force", false, "Continue past individual removal failures")
}

var writeCmd = &cobra.Command{
	Use:   "write PATH NAME TIMESTAMP VALUE",
	Short: "Append a single sample to a series",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := storage.Open(args[0])
		if err != nil {
			return err
		}
		defer st.Close()

		sess, err := st.CreateWriteSession()
		if err != nil {
			return err
		}
		defer sess.Close()

		var ts uint64
		var val float64
		if _, err := fmt.Sscanf(args[2], "%d", &ts); err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", args[2], err)
		}
		if _, err := fmt.Sscanf(args[3], "%g", &val); err != nil {
			return fmt.Errorf("invalid value %q: %w", args[3], err)
		}

		if err := sess.Write(storage.WriteRequest{Name: []byte(args[1]), Timestamp: ts, Value: val}); err != nil {
			return err
		}
		fmt.Println("✓ write committed")
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query PATH REQUEST_JSON",
	Short: "Run a query request against a database and print matching samples",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReadSession(args[0], func(sess *storage.Session) error {
			c := &collectPrinter{}
			return sess.Query(c, []byte(args[1]))
		})
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest PATH PREFIX",
	Short: "List metric/tag names starting with PREFIX",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withReadSession(args[0], func(sess *storage.Session) error {
			c := &collectPrinter{}
			return sess.Suggest(c, args[1], limit)
		})
	},
}

func init() {
	suggestCmd.Flags().Int("limit", 20, "Maximum number of suggestions")
}

var searchCmd = &cobra.Command{
	Use:   "search PATH WHERE_EXPR",
	Short: "List series matching a where-clause predicate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReadSession(args[0], func(sess *storage.Session) error {
			c := &collectPrinter{}
			return sess.Search(c, args[1])
		})
	},
}

func withReadSession(path string, fn func(sess *storage.Session) error) error {
	st, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := st.CreateWriteSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	return fn(sess)
}

// collectPrinter prints each sample as it arrives, the minimal query.Cursor
// a CLI needs without buffering everything into memory first.
type collectPrinter struct {
	n int
}

func (c *collectPrinter) Put(s query.Sample) bool {
	c.n++
	fmt.Printf("%d\t%d\t%d\t%g\n", c.n, s.ParamID, s.Timestamp, s.Payload.Value)
	return true
}

func (c *collectPrinter) SetError(err *status.Error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
}
func (c *collectPrinter) Complete() {}
