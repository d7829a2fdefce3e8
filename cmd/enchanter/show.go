package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	engerr "github.com/enchanter-io/enchanter/errors"
	"github.com/enchanter-io/enchanter/threshold"
	"github.com/enchanter-io/enchanter/walletconfig"
)

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <wallet>",
		Short: "List stored transactions, messages and updates for a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			wallet := args[0]

			txs, err := app.store.ListTransactions(wallet)
			if err != nil {
				return err
			}
			for _, tx := range txs {
				sub, _ := tx.Subdigest()
				fmt.Printf("transaction %s  space=%s nonce=%s chain=%s calls=%d\n",
					sub.Hex(), tx.Space, tx.Nonce, tx.ChainID, len(tx.Transactions))
			}

			msgs, err := app.store.ListMessages(wallet)
			if err != nil {
				return err
			}
			for _, msg := range msgs {
				sub, _ := msg.Subdigest()
				fmt.Printf("message     %s  chain=%s\n", sub.Hex(), msg.ChainID)
			}

			upds, err := app.store.ListUpdates(wallet)
			if err != nil {
				return err
			}
			for _, upd := range upds {
				sub, _ := upd.Subdigest()
				fmt.Printf("update      %s  imageHash=%s checkpoint=%d\n",
					sub.Hex(), upd.ImageHash, upd.Checkpoint)
			}
			return nil
		},
	}
}

func showCommand() *cobra.Command {
	var imageHash string

	cmd := &cobra.Command{
		Use:   "show <subdigest>",
		Short: "Show an entity, its signatures and threshold progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			sub := args[0]
			if err := printEntity(app, sub); err != nil {
				return err
			}

			sigs, err := app.store.ListSignatures(sub)
			if err != nil {
				return err
			}
			fmt.Printf("signatures: %d\n", len(sigs))

			// Threshold progress needs the wallet configuration, which
			// travels by image hash.
			if imageHash == "" {
				return nil
			}
			cfg, err := app.tracker.ConfigOfImageHash(cmd.Context(), imageHash)
			if err != nil {
				return err
			}
			if cfg == nil {
				return engerr.NewIncompleteConfigError("tracker cannot resolve configuration " + imageHash)
			}

			eval := threshold.EvaluateHex(cfg, common.HexToHash(sub), sigs)
			fmt.Printf("threshold: %d  total weight: %d  progress: %d%%  eligible: %v\n",
				eval.Threshold, eval.TotalWeight, eval.Progress, eval.Eligible)
			for _, addr := range eval.Unrecognized {
				fmt.Printf("warning: signature from non-member %s\n", addr.Hex())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&imageHash, "image-hash", "", "configuration image hash for threshold evaluation")
	return cmd
}

func printEntity(app *app, sub string) error {
	if tx, err := app.store.GetTransaction(sub); err == nil {
		data, _ := json.MarshalIndent(tx, "", "  ")
		fmt.Printf("transaction %s\n%s\n", sub, data)
		if ts, err := app.store.TransactionFirstSeen(sub); err == nil {
			fmt.Printf("first seen: %s\n", ts.Format(time.RFC3339))
		}
		return nil
	} else if !engerr.IsNotFound(err) {
		return err
	}

	if msg, err := app.store.GetMessage(sub); err == nil {
		data, _ := json.MarshalIndent(msg, "", "  ")
		fmt.Printf("message %s\n%s\n", sub, data)
		if ts, err := app.store.MessageFirstSeen(sub); err == nil {
			fmt.Printf("first seen: %s\n", ts.Format(time.RFC3339))
		}
		return nil
	} else if !engerr.IsNotFound(err) {
		return err
	}

	if upd, err := app.store.GetUpdate(sub); err == nil {
		data, _ := json.MarshalIndent(upd, "", "  ")
		fmt.Printf("update %s\n%s\n", sub, data)
		return nil
	} else if !engerr.IsNotFound(err) {
		return err
	}

	return engerr.NewNotFoundError("no entity stored under %s", sub)
}

func diffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <from-image-hash> <to-image-hash>",
		Short: "Show the signer-set delta between two configurations",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			from, err := resolveConfig(cmd, app, args[0])
			if err != nil {
				return err
			}
			to, err := resolveConfig(cmd, app, args[1])
			if err != nil {
				return err
			}

			d := walletconfig.Compare(from, to)
			if d.ThresholdChanged {
				fmt.Printf("- Threshold %d\n+ Threshold %d\n", d.FromThreshold, d.ToThreshold)
			}
			for _, s := range d.RemovedSigners {
				fmt.Printf("- %s (Weight %d)\n", s.Address, s.Weight)
			}
			for _, s := range d.AddedSigners {
				fmt.Printf("+ %s (Weight %d)\n", s.Address, s.Weight)
			}
			return nil
		},
	}
}

func resolveConfig(cmd *cobra.Command, app *app, imageHash string) (*walletconfig.Config, error) {
	cfg, err := app.tracker.ConfigOfImageHash(cmd.Context(), imageHash)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, engerr.NewIncompleteConfigError("tracker cannot resolve configuration " + imageHash)
	}
	return cfg, nil
}

func walletsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallets",
		Short: "Manage locally known wallets",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			wallets, err := app.store.ListWallets()
			if err != nil {
				return err
			}
			for _, w := range wallets {
				if w.Name != "" {
					fmt.Printf("%s  %s\n", w.Address, w.Name)
				} else {
					fmt.Println(w.Address)
				}
			}
			return nil
		},
	}
	cmd.AddCommand(walletsAddCommand(), walletsRenameCommand())
	return cmd
}

func walletsAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <address> [name]",
		Short: "Register a wallet address",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("%q is not an address", args[0])
			}
			address := common.HexToAddress(args[0]).Hex()
			name := ""
			if len(args) == 2 {
				name = args[1]
			}

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			inserted, err := app.store.PutWallet(address, name)
			if err != nil {
				return err
			}
			if !inserted {
				fmt.Printf("%s is already registered\n", address)
				return nil
			}
			fmt.Printf("registered %s\n", address)
			return nil
		},
	}
}

func walletsRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <address> <name>",
		Short: "Set the display name of a registered wallet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("%q is not an address", args[0])
			}
			address := common.HexToAddress(args[0]).Hex()

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.store.RenameWallet(address, args[1]); err != nil {
				return err
			}
			fmt.Printf("renamed %s to %q\n", address, args[1])
			return nil
		},
	}
}
