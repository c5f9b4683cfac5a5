package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/davidahmann/checkout/internal/auth"
	"github.com/davidahmann/checkout/pkg/types"
)

const defaultAddr = "http://localhost:8080"

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

// failure marks an error raised after argument parsing succeeded.
type failure struct{ err error }

func (f failure) Error() string { return f.err.Error() }

func failed(format string, args ...any) error {
	return failure{err: fmt.Errorf(format, args...)}
}

type globals struct {
	addr    string
	token   string
	jsonOut bool
	client  *http.Client
	stdout  io.Writer
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args[1:])
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}
	fmt.Fprintln(stderr, err.Error())
	var f failure
	if errors.As(err, &f) {
		return 1
	}
	usage(stderr)
	return 2
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{client: &http.Client{Timeout: 30 * time.Second}, stdout: stdout}

	root := &cobra.Command{
		Use:           "checkout",
		Short:         "Drive the checkout API from the command line",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&g.addr, "addr", envOrDefault("CHECKOUT_ADDR", defaultAddr), "checkout API address")
	root.PersistentFlags().StringVar(&g.token, "token", envOrDefault("CHECKOUT_TOKEN", os.Getenv("CHECKOUT_DEV_TOKEN")), "bearer token")
	root.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "print raw JSON response")

	root.AddCommand(ordersCmd(g), vaultCmd(g), tokenCmd(stdout))
	return root
}

func ordersCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "orders", Short: "Create, amend, finalize and inspect orders"}

	var create types.CreateOrderRequest
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an order for a catalog product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if create.ProductRef == "" {
				return errors.New("orders create requires --product")
			}
			var order types.Order
			if err := g.call(cmd.Context(), http.MethodPost, "/v1/orders", create, &order); err != nil {
				return err
			}
			g.printOrder(order)
			return nil
		},
	}
	createCmd.Flags().StringVar(&create.ProductRef, "product", "", "catalog product ref (required)")
	createCmd.Flags().StringVar(&create.Region, "region", "", "tax region, such as CA")
	createCmd.Flags().StringVar(&create.PaymentMethod, "method", "", "payment method, such as paypal or venmo")
	createCmd.Flags().StringVar(&create.ShippingPreference, "shipping-preference", "", "GET_FROM_FILE | SET_PROVIDED_ADDRESS | NO_SHIPPING")
	createCmd.Flags().BoolVar(&create.Vault, "vault", false, "store the payment method on success")

	var amend types.AmendOrderRequest
	amendCmd := &cobra.Command{
		Use:   "amend <order_id>",
		Short: "Change the shipping region and recompute tax",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if amend.Region == "" {
				return errors.New("orders amend requires --region")
			}
			var order types.Order
			if err := g.call(cmd.Context(), http.MethodPost, "/v1/orders/"+args[0]+"/amend", amend, &order); err != nil {
				return err
			}
			g.printOrder(order)
			return nil
		},
	}
	amendCmd.Flags().StringVar(&amend.Region, "region", "", "new tax region (required)")

	var details string
	finalizeCmd := &cobra.Command{
		Use:   "finalize <order_id>",
		Short: "Capture an approved order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.FinalizeOrderRequest{}
			if details != "" {
				if !json.Valid([]byte(details)) {
					return errors.New("--details must be valid JSON")
				}
				req.Details = json.RawMessage(details)
			}
			var s types.Settlement
			if err := g.call(cmd.Context(), http.MethodPost, "/v1/orders/"+args[0]+"/finalize", req, &s); err != nil {
				return err
			}
			// A pending outcome answers 202 with no settlement.
			if s.ID == "" && !g.jsonOut {
				fmt.Fprintf(g.stdout, "id=%s status=PENDING finalize again later\n", args[0])
				return nil
			}
			g.printSettlement(s)
			return nil
		},
	}
	finalizeCmd.Flags().StringVar(&details, "details", "", "processor approval details as JSON")

	getCmd := &cobra.Command{
		Use:   "get <order_id>",
		Short: "Show an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var order types.Order
			if err := g.call(cmd.Context(), http.MethodGet, "/v1/orders/"+args[0], nil, &order); err != nil {
				return err
			}
			g.printOrder(order)
			return nil
		},
	}

	cmd.AddCommand(createCmd, amendCmd, finalizeCmd, getCmd)
	return cmd
}

func vaultCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "vault", Short: "Save a payment method and charge it later"}

	var setup types.SetupTokenRequest
	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Create a setup token for the buyer to approve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st types.SetupToken
			if err := g.call(cmd.Context(), http.MethodPost, "/v1/vault/setup-tokens", setup, &st); err != nil {
				return err
			}
			if !g.jsonOut {
				fmt.Fprintf(g.stdout, "id=%s status=%s approval_url=%s\n", st.ID, st.Status, st.ApprovalURL)
			}
			return nil
		},
	}
	setupCmd.Flags().StringVar(&setup.UsageType, "usage-type", "", "MERCHANT or PLATFORM")
	setupCmd.Flags().StringVar(&setup.CustomerType, "customer-type", "", "CONSUMER or BUSINESS")

	tokenizeCmd := &cobra.Command{
		Use:   "tokenize <setup_token_id>",
		Short: "Exchange an approved setup token for a payment token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pt types.PaymentToken
			if err := g.call(cmd.Context(), http.MethodPost, "/v1/vault/setup-tokens/"+args[0]+"/tokenize", nil, &pt); err != nil {
				return err
			}
			if !g.jsonOut {
				fmt.Fprintf(g.stdout, "payment_token=%s customer_id=%s\n", pt.ID, pt.CustomerID)
			}
			return nil
		},
	}

	var charge types.ChargeRequest
	chargeCmd := &cobra.Command{
		Use:   "charge <payment_token_id>",
		Short: "Charge a saved payment method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if charge.Amount == "" {
				return errors.New("vault charge requires --amount")
			}
			var s types.Settlement
			if err := g.call(cmd.Context(), http.MethodPost, "/v1/vault/payment-tokens/"+args[0]+"/charge", charge, &s); err != nil {
				return err
			}
			g.printSettlement(s)
			return nil
		},
	}
	chargeCmd.Flags().StringVar(&charge.Amount, "amount", "", "amount, such as 12.50 (required)")
	chargeCmd.Flags().StringVar(&charge.Currency, "currency", "USD", "ISO 4217 currency")
	chargeCmd.Flags().StringVar(&charge.Description, "description", "", "statement description")

	cmd.AddCommand(setupCmd, tokenizeCmd, chargeCmd)
	return cmd
}

func tokenCmd(stdout io.Writer) *cobra.Command {
	var secret, issuer, audience, subject, store string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a storefront token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" || subject == "" {
				return errors.New("token requires --secret and --subject")
			}
			signed, err := auth.NewStorefrontAuthenticator([]byte(secret), issuer, audience).Mint(subject, store, ttl)
			if err != nil {
				return failed("mint token: %v", err)
			}
			fmt.Fprintln(stdout, signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("CHECKOUT_JWT_SECRET"), "shared HS256 secret")
	cmd.Flags().StringVar(&issuer, "issuer", "storefront", "token issuer")
	cmd.Flags().StringVar(&audience, "audience", "checkout", "token audience")
	cmd.Flags().StringVar(&subject, "subject", "", "session or cart id (required)")
	cmd.Flags().StringVar(&store, "store", "", "storefront id")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "token lifetime")
	return cmd
}

// call sends body as JSON and decodes a 2xx reply into out. With --json the
// raw reply is printed instead.
func (g *globals) call(ctx context.Context, method, path string, body any, out any) error {
	respBody, status, err := httpDo(ctx, g.client, method, strings.TrimRight(g.addr, "/")+path, g.token, body)
	if err != nil {
		return failure{err: err}
	}
	if status < 200 || status > 299 {
		var apiErr types.Error
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Kind != "" {
			return failed("request failed: status=%d kind=%s error=%s", status, apiErr.Kind, apiErr.Error)
		}
		return failed("request failed: status=%d %s", status, strings.TrimSpace(string(respBody)))
	}
	if g.jsonOut {
		_, _ = g.stdout.Write(respBody)
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return failed("invalid response: %v", err)
	}
	return nil
}

func (g *globals) printOrder(o types.Order) {
	if g.jsonOut {
		return
	}
	fmt.Fprintf(g.stdout, "id=%s status=%s subtotal=%s tax=%s total=%s currency=%s\n",
		o.ID, o.Status, o.Amounts.Subtotal, o.Amounts.Tax, o.Amounts.Total, o.Amounts.Currency)
	if o.ApprovalURL != "" {
		fmt.Fprintf(g.stdout, "approval_url=%s\n", o.ApprovalURL)
	}
}

func (g *globals) printSettlement(s types.Settlement) {
	if g.jsonOut {
		return
	}
	fmt.Fprintf(g.stdout, "id=%s status=%s captures=%d\n", s.ID, s.Status, len(s.Captures))
	for _, c := range s.Captures {
		fmt.Fprintf(g.stdout, "capture=%s amount=%s %s\n", c.ID, c.Amount, c.Currency)
	}
	if s.VaultID != "" {
		fmt.Fprintf(g.stdout, "vault_id=%s\n", s.VaultID)
	}
}

func httpDo(ctx context.Context, client *http.Client, method, url, token string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}

func envOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Checkout CLI

Usage:
  checkout orders create --product REF [--region CA] [--method paypal] [--shipping-preference PREF] [--vault]
  checkout orders amend <order_id> --region REGION
  checkout orders finalize <order_id> [--details JSON]
  checkout orders get <order_id>
  checkout vault setup [--usage-type MERCHANT] [--customer-type CONSUMER]
  checkout vault tokenize <setup_token_id>
  checkout vault charge <payment_token_id> --amount 12.50 [--currency USD] [--description TEXT]
  checkout token --secret SECRET --subject ID [--store ID] [--ttl 15m]

Global flags: --addr URL --token TOKEN --json
`)
}
