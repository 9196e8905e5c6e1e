package main

import (
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/blockvote/ledger"
	"github.com/luca-patrignani/blockvote/storage"
)

func verifyChainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-chain <state-file>",
		Short: "Audits the chain stored in a node state file",
		Args:  cobra.ExactArgs(1),
		RunE:  verifyChainFunc,
	}
}

func verifyChainFunc(c *cobra.Command, args []string) error {
	st, err := storage.NewFileStore(args[0]).Load()
	if err != nil {
		return err
	}
	report := ledger.AuditChain(st.Chain)
	printReport(c.OutOrStdout(), report, ledger.TallyVotes(st.Chain))
	if !report.Valid {
		return errChainInvalid
	}
	return nil
}
