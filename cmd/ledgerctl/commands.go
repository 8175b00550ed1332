package main

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/infrastructure/auth"
	"github.com/primebond/ledger/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

func tickCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one payout scheduler tick now",
		Long: `Creates the next return for every investment whose payout date has
arrived and promotes pending returns that are due. Safe to run while the
server's own scheduler is active: returns are unique per investment and date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.payouts.RunTick(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, result, func(w io.Writer) {
				if result.Skipped {
					fmt.Fprintln(w, "tick skipped: another tick holds the lock")
					return
				}
				fmt.Fprintf(w, "due investments: %d\nreturns created: %d\nreturns promoted: %d\nfailed: %d\nduration: %s\n",
					result.Due, result.Created, result.Promoted, result.Failed, result.Duration)
			})
		},
	}
}

func confirmCmd(opts *globalOptions) *cobra.Command {
	var req appledger.ConfirmPaymentRequest
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a pending payment",
		Long: `Confirms a payment by --reference, or the latest pending payment of
--user with --type and --method. Confirming twice is reported, not failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Reference == "" && (req.UserID == "" || req.Type == "" || req.Method == "") {
				return fmt.Errorf("either --reference or all of --user, --type and --method are required")
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.payments.ConfirmPayment(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, result, func(w io.Writer) {
				state := "confirmed"
				if result.AlreadyConfirmed {
					state = "already confirmed"
				}
				fmt.Fprintf(w, "%s %s (%s %s %s)\n", result.Payment.Reference, state,
					result.Payment.Type, result.Payment.Amount.StringFixed(2), result.Payment.Currency)
				if result.MemberNumber != "" {
					fmt.Fprintf(w, "member number: %s\n", result.MemberNumber)
				}
				if result.FirstReturnID != nil {
					fmt.Fprintf(w, "first return: %s\n", result.FirstReturnID)
				}
			})
		},
	}
	cmd.Flags().StringVar(&req.Reference, "reference", "", "Payment reference")
	cmd.Flags().StringVar(&req.UserID, "user", "", "Member id")
	cmd.Flags().StringVar(&req.Type, "type", "", "Payment type (registration, investment, roi)")
	cmd.Flags().StringVar(&req.Method, "method", "", "Payment method (bank, cash, card, crypto)")
	return cmd
}

func withdrawCmd(opts *globalOptions) *cobra.Command {
	var userID, investmentID, returnID string
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Settle a due return to the member's payout method",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			invID, err := uuid.Parse(investmentID)
			if err != nil {
				return fmt.Errorf("invalid --investment: %w", err)
			}
			retID, err := uuid.Parse(returnID)
			if err != nil {
				return fmt.Errorf("invalid --return: %w", err)
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.settlement.Withdraw(cmd.Context(), appledger.WithdrawRequest{
				UserID:       userID,
				InvestmentID: invID,
				ReturnID:     retID,
			})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, result, func(w io.Writer) {
				fmt.Fprintf(w, "paid %s %s via %s (%s)\npayouts: %d/%d, investment %s\n",
					result.Amount.StringFixed(2), result.Currency, result.PayoutMethod, result.Reference,
					result.PayoutsMade, result.TotalPayouts, result.InvestmentStatus)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Member id")
	cmd.Flags().StringVar(&investmentID, "investment", "", "Investment id")
	cmd.Flags().StringVar(&returnID, "return", "", "Return id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("investment")
	_ = cmd.MarkFlagRequired("return")
	return cmd
}

func schedulePayoutCmd(opts *globalOptions) *cobra.Command {
	var investmentID, date string
	cmd := &cobra.Command{
		Use:   "schedule-payout",
		Short: "Schedule the next return of an investment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			invID, err := uuid.Parse(investmentID)
			if err != nil {
				return fmt.Errorf("invalid --investment: %w", err)
			}
			req := appledger.SetPayoutRequest{InvestmentID: invID}
			if date != "" {
				d, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				req.PayoutDate = &d
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.payouts.SetPayout(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, result, func(w io.Writer) {
				state := "created"
				if !result.Created {
					state = "already scheduled"
				}
				fmt.Fprintf(w, "return %s %s for %s (%s)\n", result.Return.ID, state,
					result.Return.PayoutDate.Format(time.DateOnly), result.Return.Status)
			})
		},
	}
	cmd.Flags().StringVar(&investmentID, "investment", "", "Investment id")
	cmd.Flags().StringVar(&date, "date", "", "Payout date (YYYY-MM-DD), defaults to the next payout date")
	_ = cmd.MarkFlagRequired("investment")
	return cmd
}

func plansCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List active investment plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			plans, err := a.plans.ListActivePlans(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, plans, func(w io.Writer) {
				for _, p := range plans {
					fmt.Fprintf(w, "%s  %-20s min %s  %d x %s\n",
						p.ID, p.Name, p.MinAmount.StringFixed(2), p.DurationInPeriods, p.Cadence)
				}
			})
		},
	}
}

func tokenCmd(opts *globalOptions) *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a member or operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.NewJWTService(cfg.JWT).Issue(userID, r)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, token, func(w io.Writer) {
				fmt.Fprintln(w, token.AccessToken)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id carried in the token")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleMember), "Role: member or admin")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
