package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/enchanter-io/enchanter/exchange"
)

func importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge an exported payload into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			importer := exchange.NewImporter(app.store, app.ingestor, app.tracker, app.log)
			counts, err := importer.Import(cmd.Context(), data)
			if err != nil {
				return err
			}

			if counts.Total() == 0 {
				fmt.Println("nothing new to import")
				return nil
			}
			fmt.Printf("imported %d transactions, %d messages, %d updates, %d signatures\n",
				counts.Transactions, counts.Messages, counts.Updates, counts.Signatures)
			if counts.SkippedSignatures > 0 {
				fmt.Printf("skipped %d signatures that failed recovery\n", counts.SkippedSignatures)
			}
			return nil
		},
	}
}

func exportCommand() *cobra.Command {
	var outDir string
	var kind string

	cmd := &cobra.Command{
		Use:   "export <subdigest>",
		Short: "Export an entity and its signatures as a payload file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			exporter := exchange.NewExporter(app.store)

			var payload *exchange.Payload
			switch kind {
			case "transaction":
				payload, err = exporter.ExportTransaction(args[0])
			case "message":
				payload, err = exporter.ExportMessage(args[0])
			case "update":
				payload, err = exporter.ExportUpdate(args[0])
			default:
				return fmt.Errorf("unknown kind %q (transaction, message or update)", kind)
			}
			if err != nil {
				return err
			}

			data, err := payload.Encode()
			if err != nil {
				return err
			}

			path := filepath.Join(outDir, exchange.Filename(time.Now()))
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Printf("exported to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().StringVarP(&kind, "kind", "k", "transaction", "entity kind: transaction, message or update")
	return cmd
}
