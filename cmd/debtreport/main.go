/*
main.go - Debt report CLI

PURPOSE:
  Prints two tables straight from the ledger store:
  1. Accounts with a nonzero balance (the manually kept debt)
  2. Pending transactions grouped per customer (the itemized view)

  The two tables are independent views and may disagree.

COMMAND-LINE FLAGS:
  -config  Path to a config file (default: search ./config.yaml)
  -db      Overrides db.path (sqlite only)
  -user    Only customers whose name contains this (case-insensitive)

EXAMPLES:
  SHOPLEDGER_AUTH_JWT_SECRET=x ./debtreport -db shopledger.db -user ali
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/warp/shopledger/config"
	"github.com/warp/shopledger/ledger"
	"github.com/warp/shopledger/store"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	user := flag.String("user", "", "filter customers by name substring")
	flag.Parse()

	if err := run(*configPath, *dbPath, *user); err != nil {
		fmt.Fprintf(os.Stderr, "debtreport: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath, user string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}

	ctx := context.Background()
	backend, err := store.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer backend.Close()

	return report(ctx, os.Stdout, backend, user)
}

func report(ctx context.Context, w io.Writer, backend ledger.Backend, user string) error {
	accounts, err := ledger.NewDebts(backend).Accounts(ctx)
	if err != nil {
		return err
	}
	outstanding, err := ledger.NewTransactions(backend).ListOutstanding(ctx, user)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Account balances")
	balances := tablewriter.NewWriter(w)
	balances.SetHeader([]string{"Username", "Email", "Debt", "Last update"})
	for _, a := range debtors(accounts, user) {
		balances.Append([]string{a.Username, a.Email, a.DebtAmount.StringFixed(2), formatTime(a.LastDebtUpdate)})
	}
	balances.Render()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Outstanding transactions")
	pending := tablewriter.NewWriter(w)
	pending.SetHeader([]string{"User", "Total", "Count", "Last transaction"})
	for _, o := range outstanding {
		pending.Append([]string{o.User, o.Total.StringFixed(2), strconv.Itoa(o.Count), formatTime(o.LastTransactionAt)})
	}
	pending.Render()
	return nil
}

// debtors keeps accounts with a nonzero balance, largest first.
func debtors(accounts []ledger.Account, user string) []ledger.Account {
	user = strings.ToLower(user)
	out := make([]ledger.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.DebtAmount.IsZero() {
			continue
		}
		if user != "" && !strings.Contains(strings.ToLower(a.Username), user) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DebtAmount.GreaterThan(out[j].DebtAmount) })
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
