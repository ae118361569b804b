package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/core"
)

// ErrUsage is returned for unknown subcommands or missing arguments.
var ErrUsage = errors.New("usage")

// ErrStockMismatch is returned by "verify" when any product fails reconciliation.
var ErrStockMismatch = errors.New("stock does not reconcile with movement history")

const usage = `Available: stock [low], product <id>, movements <product-id> [limit],
           sales [from] [to], credits [pending|settled], audit [days], verify`

// Run executes a one-shot CLI command, writing its result to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command\n%s", ErrUsage, usage)
	}

	switch args[0] {
	case "stock", "st":
		q := app.ProductQuery{ActiveOnly: true}
		if len(args) > 1 && args[1] == "low" {
			q.LowStockOnly = true
		}
		result, err := svc.ListProducts(ctx, q)
		if err != nil {
			return err
		}
		printStock(out, result.Products)

	case "product":
		if len(args) < 2 {
			return fmt.Errorf("%w: app product <id>", ErrUsage)
		}
		p, err := svc.GetProduct(ctx, args[1])
		if err != nil {
			return err
		}
		return writeJSON(out, p)

	case "movements", "mv":
		if len(args) < 2 {
			return fmt.Errorf("%w: app movements <product-id> [limit]", ErrUsage)
		}
		f := core.MovementFilter{ProductID: args[1]}
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil || n < 0 {
				return fmt.Errorf("%w: limit must be a non-negative integer", ErrUsage)
			}
			f.Limit = n
		}
		result, err := svc.ListMovements(ctx, f)
		if err != nil {
			return err
		}
		return writeJSON(out, result)

	case "sales":
		from, to, err := period(args[1:])
		if err != nil {
			return err
		}
		sum, err := svc.SalesSummary(ctx, from, to)
		if err != nil {
			return err
		}
		return writeJSON(out, sum)

	case "credits":
		f := core.CreditFilter{Status: core.CreditPending}
		if len(args) > 1 {
			f.Status = core.CreditStatus(args[1])
		}
		result, err := svc.ListCredits(ctx, f)
		if err != nil {
			return err
		}
		return writeJSON(out, result)

	case "audit":
		days := 30
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: days must be a positive integer", ErrUsage)
			}
			days = n
		}
		to := time.Now().UTC()
		sum, err := svc.GetAuditReport(ctx, core.AuditRequest{From: to.AddDate(0, 0, -days), To: to})
		if err != nil {
			return err
		}
		return writeJSON(out, sum)

	case "verify":
		result, err := svc.VerifyStock(ctx)
		if err != nil {
			return err
		}
		if err := writeJSON(out, result); err != nil {
			return err
		}
		if !result.OK() {
			return fmt.Errorf("%w: %d of %d products", ErrStockMismatch, len(result.Mismatches), result.Checked)
		}

	default:
		return fmt.Errorf("%w: unknown command %s\n%s", ErrUsage, args[0], usage)
	}
	return nil
}

// period parses optional YYYY-MM-DD bounds; the default is the current UTC day.
func period(args []string) (from, to time.Time, err error) {
	from = time.Now().UTC().Truncate(24 * time.Hour)
	to = from.AddDate(0, 0, 1)
	if len(args) > 0 {
		if from, err = time.Parse(time.DateOnly, args[0]); err != nil {
			return from, to, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrUsage)
		}
		to = from.AddDate(0, 0, 1)
	}
	if len(args) > 1 {
		if to, err = time.Parse(time.DateOnly, args[1]); err != nil {
			return from, to, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrUsage)
		}
	}
	return from, to, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStock(out io.Writer, products []core.Product) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTOCK\tREORDER\t")
	fmt.Fprintln(tw, strings.Repeat("-", 8)+"\t"+strings.Repeat("-", 8)+"\t----\t-----\t-------\t")
	for _, p := range products {
		stock := strconv.FormatInt(p.StockQuantity, 10)
		if !p.Type.TracksStock() {
			stock = "-"
		} else if p.IsLowStock() {
			stock += " LOW"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t\n", p.ID, p.Name, p.Type, stock, p.ReorderLevel)
	}
	tw.Flush()
}
