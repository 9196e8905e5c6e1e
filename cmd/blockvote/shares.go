package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/blockvote/shamir"
)

const (
	inKey        = "in"
	thresholdKey = "threshold"
	sharesKey    = "shares"
)

func splitCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "split",
		Short: "Splits a secret (such as a private key) into k-of-n shares",
		Args:  cobra.NoArgs,
		RunE:  splitFunc,
	}
	flags := c.Flags()
	flags.String(inKey, "-", "file holding the secret, - for stdin")
	flags.IntP(thresholdKey, "k", 3, "shares needed to recover the secret")
	flags.IntP(sharesKey, "n", 5, "shares to produce")
	return c
}

func splitFunc(c *cobra.Command, _ []string) error {
	flags := c.Flags()
	in, _ := flags.GetString(inKey)
	k, _ := flags.GetInt(thresholdKey)
	n, _ := flags.GetInt(sharesKey)

	secret, err := readInput(c, in)
	if err != nil {
		return err
	}
	shares, err := shamir.Split(secret, k, n)
	if err != nil {
		return err
	}
	for _, s := range shares {
		fmt.Fprintln(c.OutOrStdout(), s.String())
	}
	return nil
}

func recoverCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "recover [share...]",
		Short: "Recovers a secret from shares given as arguments or one per line",
		RunE:  recoverFunc,
	}
	flags := c.Flags()
	flags.String(inKey, "", "file holding one share per line, - for stdin")
	flags.String(outKey, "", "file the secret is written to instead of stdout")
	return c
}

func recoverFunc(c *cobra.Command, args []string) error {
	flags := c.Flags()
	in, _ := flags.GetString(inKey)
	out, _ := flags.GetString(outKey)

	lines := args
	if in != "" {
		data, err := readInput(c, in)
		if err != nil {
			return err
		}
		lines = append(lines, strings.Split(string(data), "\n")...)
	}
	var shares []shamir.Share
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		s, err := shamir.ParseShare(line)
		if err != nil {
			return err
		}
		shares = append(shares, s)
	}
	secret, err := shamir.Recover(shares)
	if err != nil {
		return err
	}
	if out != "" {
		return renameio.WriteFile(out, secret, 0o600)
	}
	_, err = c.OutOrStdout().Write(secret)
	return err
}

func readInput(c *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(bufio.NewReader(c.InOrStdin()))
	}
	return os.ReadFile(path)
}
