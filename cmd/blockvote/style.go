package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/luca-patrignani/blockvote/ledger"
)

var errChainInvalid = errors.New("chain failed the integrity audit")

func printBanner() {
	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Block", pterm.FgCyan.ToStyle()),
		putils.LettersFromStringWithStyle("Vote", pterm.FgDarkGray.ToStyle()),
	).Render()
}

func printNodeInfo(addr, statePath, minerID string, useTLS bool) {
	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	pbox.WithTitle(pterm.LightGreen("|NODE|")).WithTitleTopCenter().Printfln(
		"API: %s://%s\nState: %s\nMiner: %s", scheme, addr, statePath, minerID)
}

// printReport renders the audit result and the tally of an offline chain.
func printReport(w io.Writer, report ledger.IntegrityReport, tally map[string]map[string]int64) {
	if report.Valid {
		fmt.Fprint(w, pterm.Success.Sprintfln("%d blocks checked, chain is valid", report.BlocksChecked))
	} else {
		fmt.Fprint(w, pterm.Error.Sprintfln("%d blocks checked, %d problems", report.BlocksChecked, len(report.Errors)))
		for _, e := range report.Errors {
			fmt.Fprintln(w, "  "+e)
		}
	}
	if len(tally) == 0 {
		return
	}
	data := pterm.TableData{{"Election", "Candidate", "Votes"}}
	elections := make([]string, 0, len(tally))
	for e := range tally {
		elections = append(elections, e)
	}
	slices.Sort(elections)
	for _, e := range elections {
		candidates := make([]string, 0, len(tally[e]))
		for c := range tally[e] {
			candidates = append(candidates, c)
		}
		slices.Sort(candidates)
		for _, c := range candidates {
			data = append(data, []string{e, c, strconv.FormatInt(tally[e][c], 10)})
		}
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return
	}
	fmt.Fprintln(w, table)
}
