package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"digitalbank-console/core"
)

func customersCmd() *cobra.Command {
	var keyword string

	cmd := &cobra.Command{
		Use:   "customers",
		Short: "List or search customers (ADMIN)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, sess *core.Session) error {
				if err := requireAdmin(sess); err != nil {
					return err
				}
				var (
					customers []core.Customer
					err       error
				)
				if keyword != "" {
					customers, err = sess.Bank.SearchCustomers(ctx, keyword)
				} else {
					customers, err = sess.Bank.Customers(ctx)
				}
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tEMAIL")
				for _, c := range customers {
					fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, c.Email)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&keyword, "search", "s", "", "Filter by name keyword")
	return cmd
}

func accountsCmd() *cobra.Command {
	var page, size int
	var customer int64

	cmd := &cobra.Command{
		Use:   "accounts [account-id]",
		Short: "List accounts, or show one account's operation history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, sess *core.Session) error {
				if err := requireLogin(sess); err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				if len(args) == 1 {
					acc, err := sess.Bank.Account(ctx, args[0])
					if err != nil {
						return err
					}
					h, err := sess.Bank.AccountHistory(ctx, args[0], page, size)
					if err != nil {
						return err
					}
					owner := "-"
					if acc.Customer != nil {
						owner = acc.Customer.Name
					}
					fmt.Fprintf(w, "Account %s\t%s\t%s\towner %s\n", acc.ID, acc.Type, acc.Status, owner)
					fmt.Fprintf(w, "Balance %s\tpage %d/%d\n", h.Balance.StringFixed(2), h.CurrentPage+1, h.TotalPages)
					fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tDESCRIPTION")
					for _, op := range h.Operations {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", op.OperationDate, op.Type, op.Amount.StringFixed(2), op.Description)
					}
					return w.Flush()
				}

				var (
					accounts []core.BankAccount
					err      error
				)
				if customer > 0 {
					accounts, err = sess.Bank.CustomerAccounts(ctx, customer)
				} else {
					accounts, err = sess.Bank.Accounts(ctx)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tBALANCE\tCUSTOMER")
				for _, a := range accounts {
					owner := ""
					if a.Customer != nil {
						owner = a.Customer.Name
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Type, a.Status, a.Balance.StringFixed(2), owner)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "History page (0-based)")
	cmd.Flags().IntVar(&size, "size", 10, "History page size")
	cmd.Flags().Int64Var(&customer, "customer", 0, "Only accounts of this customer id")
	return cmd
}

func opsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Credit, debit or transfer between accounts",
	}

	var description string
	single := func(use, short string, run func(ctx context.Context, b *core.BankClient, account, amount string) error) *cobra.Command {
		c := &cobra.Command{
			Use:   use + " <account-id> <amount>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := core.ParseAmount(args[1]); err != nil {
					return err
				}
				return withSession(cmd, func(ctx context.Context, sess *core.Session) error {
					if err := requireLogin(sess); err != nil {
						return err
					}
					if err := run(ctx, sess.Bank, args[0], args[1]); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Operation completed")
					return nil
				})
			},
		}
		c.Flags().StringVarP(&description, "description", "d", "", "Operation description")
		return c
	}

	cmd.AddCommand(
		single("credit", "Credit an account", func(ctx context.Context, b *core.BankClient, account, amount string) error {
			amt, _ := core.ParseAmount(amount)
			return b.Credit(ctx, account, amt, description)
		}),
		single("debit", "Debit an account", func(ctx context.Context, b *core.BankClient, account, amount string) error {
			amt, _ := core.ParseAmount(amount)
			return b.Debit(ctx, account, amt, description)
		}),
		&cobra.Command{
			Use:   "transfer <from-account> <to-account> <amount>",
			Short: "Transfer between two accounts",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				amt, err := core.ParseAmount(args[2])
				if err != nil {
					return err
				}
				return withSession(cmd, func(ctx context.Context, sess *core.Session) error {
					if err := requireLogin(sess); err != nil {
						return err
					}
					if err := sess.Bank.Transfer(ctx, args[0], args[1], amt); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Transfer completed")
					return nil
				})
			},
		},
	)
	return cmd
}

func dashboardCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show account and customer totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, sess *core.Session) error {
				if err := requireLogin(sess); err != nil {
					return err
				}
				if raw {
					stats, err := sess.Bank.DashboardStats(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd, stats)
				}
				id := sess.State.Current()
				summary, err := sess.Bank.Summary(ctx, id != nil && id.IsAdmin())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				if id != nil && id.IsAdmin() {
					fmt.Fprintf(w, "Customers\t%s\n", strconv.Itoa(summary.Customers))
				}
				fmt.Fprintf(w, "Accounts\t%d\n", summary.Accounts)
				fmt.Fprintf(w, "Total balance\t%s\n", summary.TotalBalance.StringFixed(2))
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the back-end's /dashboard/stats payload")
	return cmd
}
