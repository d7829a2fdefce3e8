package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/enchanter-io/enchanter/receipt"
)

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <subdigest>",
		Short: "Check the on-chain execution status of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			entry, err := app.store.GetTransaction(args[0])
			if err != nil {
				return err
			}
			firstSeen, err := app.store.TransactionFirstSeen(args[0])
			if err != nil {
				return err
			}

			oracle, err := app.chainClient(entry.ChainID)
			if err != nil {
				return err
			}
			defer oracle.Close()

			reconciler := receipt.NewReconciler(oracle, app.cfg.ReceiptLookbackBlocks, app.log)
			result := reconciler.RefreshSince(cmd.Context(), *entry, firstSeen)

			fmt.Printf("status: %s\n", result.Status)
			switch {
			case result.Status == receipt.StatusExecuted || result.Status == receipt.StatusFailed:
				fmt.Printf("transaction hash: %s\n", result.TxHash.Hex())
			case result.Err != nil:
				fmt.Printf("error: %v\n", result.Err)
			}
			return nil
		},
	}
}
