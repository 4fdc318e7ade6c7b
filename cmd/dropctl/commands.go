package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	merklecommitment "merkledrop/contexts/token-distribution/merkle-commitment"
	fileadapter "merkledrop/contexts/token-distribution/merkle-commitment/adapters/file"
	"merkledrop/contexts/token-distribution/merkle-commitment/application/commands"
	"merkledrop/contexts/token-distribution/merkle-commitment/application/queries"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var errInvalidEntries = errors.New("distribution has entries that do not verify")

type proofOutput struct {
	Root      string   `json:"root"`
	Recipient string   `json:"recipient"`
	Amount    string   `json:"amount"`
	Leaf      string   `json:"leaf"`
	Proof     []string `json:"proof"`
}

type verifyOutput struct {
	Root    string   `json:"root"`
	Checked int      `json:"checked"`
	Valid   bool     `json:"valid"`
	Invalid []string `json:"invalid,omitempty"`
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "dropctl",
		Short:        "Build and check Merkle airdrop commitments",
		SilenceUsage: true,
	}
	root.AddCommand(
		newBuildCmd(logger),
		newProofCmd(logger),
		newVerifyCmd(logger),
	)
	return root
}

func fileModule(cmd *cobra.Command, logger *slog.Logger) merklecommitment.Module {
	store := fileadapter.NewStore(logger)
	store.Stdin = cmd.InOrStdin()
	store.Stdout = cmd.OutOrStdout()
	return merklecommitment.NewFileModule(store, logger)
}

func newBuildCmd(logger *slog.Logger) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the commitment for an allocation list and write the distribution artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := fileModule(cmd, logger).Build.Execute(cmd.Context(), commands.BuildCommitmentCommand{
				Input:  input,
				Output: output,
			})
			if err != nil {
				return err
			}
			// The artifact itself owns stdout when it is streamed there.
			summary := cmd.OutOrStdout()
			if output == fileadapter.StdStream {
				summary = cmd.ErrOrStderr()
			}
			_, err = fmt.Fprintf(summary, "root %s leaves %d total %s\n",
				result.Distribution.Root.Hex(),
				result.Distribution.LeafCount,
				result.Distribution.Total.String(),
			)
			return err
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "allocation list (.csv, .json, .yaml) or - for JSON on stdin")
	cmd.Flags().StringVarP(&output, "output", "o", fileadapter.StdStream, "distribution artifact path or - for stdout")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newProofCmd(logger *slog.Logger) *cobra.Command {
	var input, recipient, amount string
	cmd := &cobra.Command{
		Use:   "proof",
		Short: "Print the proof for one recipient of an allocation list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !common.IsHexAddress(recipient) {
				return fmt.Errorf("recipient %q is not a hex address", recipient)
			}
			query := queries.GetProofQuery{Input: input, Recipient: common.HexToAddress(recipient)}
			if amount != "" {
				value, ok := new(big.Int).SetString(amount, 10)
				if !ok {
					return fmt.Errorf("amount %q is not a base-10 integer", amount)
				}
				query.Amount = value
			}
			result, err := fileModule(cmd, logger).Proof.Execute(cmd.Context(), query)
			if err != nil {
				return err
			}
			proof := make([]string, 0, len(result.Proof))
			for _, node := range result.Proof {
				proof = append(proof, node.Hex())
			}
			return writeJSON(cmd.OutOrStdout(), proofOutput{
				Root:      result.Root.Hex(),
				Recipient: result.Allocation.Recipient.Hex(),
				Amount:    result.Allocation.Amount.String(),
				Leaf:      result.Leaf.Hex(),
				Proof:     proof,
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "allocation list")
	cmd.Flags().StringVarP(&recipient, "recipient", "r", "", "recipient address")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "amount to prove; defaults to the recipient's first allocation")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("recipient")
	return cmd
}

func newVerifyCmd(logger *slog.Logger) *cobra.Command {
	var location, root string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check every proof of a distribution artifact against its root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := queries.VerifyDistributionQuery{Location: location}
			if root != "" {
				if len(root) != 66 {
					return fmt.Errorf("root %q must be a 0x-prefixed 32-byte hash", root)
				}
				hash := common.HexToHash(root)
				query.Root = &hash
			}
			result, err := fileModule(cmd, logger).Verify.Execute(cmd.Context(), query)
			if err != nil {
				return err
			}
			out := verifyOutput{Root: result.Root.Hex(), Checked: result.Checked, Valid: result.Valid()}
			for _, entry := range result.Invalid {
				out.Invalid = append(out.Invalid, entry.Recipient.Hex())
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !out.Valid {
				return fmt.Errorf("%w: %d of %d", errInvalidEntries, len(out.Invalid), out.Checked)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&location, "distribution", "d", "", "distribution artifact path or - for stdin")
	cmd.Flags().StringVar(&root, "root", "", "check against this root instead of the artifact's own")
	_ = cmd.MarkFlagRequired("distribution")
	return cmd
}

func writeJSON(w io.Writer, payload any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
