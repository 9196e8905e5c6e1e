package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/blockvote/wallet"
)

const (
	outKey   = "out"
	nameKey  = "name"
	forceKey = "force"
)

func keygenCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "keygen",
		Short: "Generates a voter RSA key pair",
		Args:  cobra.NoArgs,
		RunE:  keygenFunc,
	}
	flags := c.Flags()
	flags.String(outKey, ".", "directory the PEM files are written to")
	flags.String(nameKey, "voter", "file name prefix of the key pair")
	flags.Bool(forceKey, false, "overwrite existing key files")
	return c
}

func keygenFunc(c *cobra.Command, _ []string) error {
	flags := c.Flags()
	dir, _ := flags.GetString(outKey)
	name, _ := flags.GetString(nameKey)
	force, _ := flags.GetBool(forceKey)

	privPath := filepath.Join(dir, name+"_private.pem")
	pubPath := filepath.Join(dir, name+"_public.pem")
	if !force {
		for _, p := range []string{privPath, pubPath} {
			if _, err := os.Stat(p); !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%s already exists, use --%s to overwrite", p, forceKey)
			}
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.Start("Generating RSA key pair ...")
	keys, err := wallet.GenerateKeys()
	if err != nil {
		spinner.Fail()
		return err
	}
	if err := renameio.WriteFile(privPath, keys.Private, 0o600); err != nil {
		spinner.Fail()
		return err
	}
	if err := renameio.WriteFile(pubPath, keys.Public, 0o644); err != nil {
		spinner.Fail()
		return err
	}
	spinner.Success()
	fmt.Fprintln(c.OutOrStdout(), privPath)
	fmt.Fprintln(c.OutOrStdout(), pubPath)
	return nil
}
