package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/blockvote/ledger"
	"github.com/luca-patrignani/blockvote/network"
	"github.com/luca-patrignani/blockvote/wallet"
)

const (
	nodeKey      = "node"
	keyKey       = "key"
	senderKey    = "sender"
	recipientKey = "recipient"
	amountKey    = "amount"
	electionKey  = "election"
	timeoutKey   = "timeout"
)

func voteCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "vote",
		Short: "Signs a vote and submits it to a node",
		Args:  cobra.NoArgs,
		RunE:  voteFunc,
	}
	flags := c.Flags()
	flags.String(nodeKey, "127.0.0.1:5000", "node receiving the vote")
	flags.String(keyKey, "voter_private.pem", "PEM private key of the voter")
	flags.String(senderKey, "", "voter id (required)")
	flags.String(recipientKey, "", "candidate voted for (required)")
	flags.Int64(amountKey, 1, "vote weight")
	flags.String(electionKey, ledger.DefaultElectionID, "election id")
	flags.Duration(timeoutKey, network.DefaultTimeout, "request timeout")
	_ = c.MarkFlagRequired(senderKey)
	_ = c.MarkFlagRequired(recipientKey)
	return c
}

func voteFunc(c *cobra.Command, _ []string) error {
	flags := c.Flags()
	node, _ := flags.GetString(nodeKey)
	keyPath, _ := flags.GetString(keyKey)
	sender, _ := flags.GetString(senderKey)
	recipient, _ := flags.GetString(recipientKey)
	amount, _ := flags.GetInt64(amountKey)
	electionID, _ := flags.GetString(electionKey)
	timeout, _ := flags.GetDuration(timeoutKey)

	privPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return err
	}
	tx, err := signedVote(privPEM, sender, recipient, amount, electionID)
	if err != nil {
		return err
	}
	client := network.NewClient(network.WithTimeout(timeout))
	status, err := client.SubmitTransaction(c.Context(), node, tx)
	if err != nil {
		return err
	}
	fmt.Fprint(c.OutOrStdout(), pterm.Success.Sprintfln("Vote for %s submitted to %s (status %d)", recipient, node, status))
	return nil
}

// signedVote builds the request body of a vote signed with privPEM.
func signedVote(privPEM []byte, sender, recipient string, amount int64, electionID string) (network.TransactionRequest, error) {
	priv, err := wallet.ParsePrivateKey(privPEM)
	if err != nil {
		return network.TransactionRequest{}, err
	}
	sig, err := wallet.Sign(ledger.SigningMessage(sender, recipient, amount, electionID), privPEM)
	if err != nil {
		return network.TransactionRequest{}, fmt.Errorf("sign vote: %w", err)
	}
	return network.TransactionRequest{
		Sender:     sender,
		Recipient:  recipient,
		Amount:     &amount,
		Signature:  fmt.Sprintf("%x", sig),
		PublicKey:  string(wallet.PublicKeyPEM(&priv.PublicKey)),
		ElectionID: electionID,
	}, nil
}
