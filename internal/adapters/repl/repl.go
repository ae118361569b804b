package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/core"
)

// Cashier identifies who is operating the terminal; every cart command acts on
// this cashier's session.
type Cashier struct {
	ID   string
	Name string
}

var errExit = errors.New("exit")

// Run starts the interactive cashier terminal.
// It reads slash commands from reader until /exit or EOF.
func Run(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, cashier Cashier) {
	fmt.Println("Pharmacy POS")
	fmt.Printf("Cashier: %s (%s)\n", cashier.Name, cashier.ID)
	fmt.Println("Type /help for commands.")
	fmt.Println(strings.Repeat("-", 70))

	for {
		fmt.Print("\n> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if errors.Is(err, io.EOF) {
				return
			}
			continue
		}
		if !strings.HasPrefix(input, "/") {
			fmt.Println("Commands start with /. Type /help for the list.")
			continue
		}
		if err := dispatch(ctx, svc, reader, cashier, input); err != nil {
			if errors.Is(err, errExit) {
				fmt.Println("Goodbye!")
				return
			}
			printError(err)
		}
	}
}

func dispatch(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, cashier Cashier, input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "products", "p":
		result, err := svc.ListProducts(ctx, app.ProductQuery{Query: strings.Join(args, " "), ActiveOnly: true})
		if err != nil {
			return err
		}
		printProducts(result)

	case "low":
		result, err := svc.ListProducts(ctx, app.ProductQuery{LowStockOnly: true, ActiveOnly: true})
		if err != nil {
			return err
		}
		printProducts(result)

	case "product":
		if len(args) < 1 {
			fmt.Println("Usage: /product <id-or-name>")
			return nil
		}
		p, err := findProduct(ctx, svc, strings.Join(args, " "))
		if err != nil {
			return err
		}
		printProductDetail(p)

	case "new-product":
		handleNewProduct(ctx, reader, svc, cashier)

	case "add", "a":
		// /add <product> <unit> [qty]
		if len(args) < 2 {
			fmt.Println("Usage: /add <id-or-name> <unit> [qty]")
			return nil
		}
		qty := int64(1)
		nameArgs := args[:len(args)-1]
		unitArg := args[len(args)-1]
		if n, err := strconv.ParseInt(unitArg, 10, 64); err == nil && len(args) >= 3 {
			qty = n
			unitArg = args[len(args)-2]
			nameArgs = args[:len(args)-2]
		}
		if qty < 1 {
			fmt.Println("Quantity must be at least 1.")
			return nil
		}
		p, err := findProduct(ctx, svc, strings.Join(nameArgs, " "))
		if err != nil {
			return err
		}
		view, err := svc.AddToCart(ctx, cashier.ID, p.ID, core.UnitType(strings.ToLower(unitArg)))
		if err != nil {
			return err
		}
		if qty > 1 {
			idx := lineIndex(view, p.ID, core.UnitType(strings.ToLower(unitArg)))
			if view, err = svc.UpdateCartLine(ctx, cashier.ID, idx, qty-1); err != nil {
				fmt.Println("Added 1; the remaining quantity was rejected.")
				return err
			}
		}
		printCart(view)

	case "cart", "c":
		printCart(svc.Cart(ctx, cashier.ID))

	case "qty":
		// /qty <line> <delta>
		if len(args) < 2 {
			fmt.Println("Usage: /qty <line-no> <+n|-n>")
			return nil
		}
		line, err := lineArg(args[0])
		if err != nil {
			return err
		}
		delta, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid delta %q", args[1])
		}
		view, err := svc.UpdateCartLine(ctx, cashier.ID, line, delta)
		if err != nil {
			return err
		}
		printCart(view)

	case "rm":
		if len(args) < 1 {
			fmt.Println("Usage: /rm <line-no>")
			return nil
		}
		line, err := lineArg(args[0])
		if err != nil {
			return err
		}
		view, err := svc.RemoveCartLine(ctx, cashier.ID, line)
		if err != nil {
			return err
		}
		printCart(view)

	case "clear":
		printCart(svc.ClearCart(ctx, cashier.ID))

	case "customer":
		handleCustomer(ctx, reader, svc, cashier)

	case "pay":
		if len(args) < 1 {
			fmt.Println("Usage: /pay <cash|card|mobile|insurance|credit>")
			return nil
		}
		current := svc.Cart(ctx, cashier.ID)
		view, err := svc.SetCartCustomer(ctx, app.CartCustomerRequest{
			CashierID:     cashier.ID,
			PaymentMethod: core.PaymentMethod(strings.ToLower(args[0])),
			CustomerName:  current.CustomerName,
			CustomerPhone: current.CustomerPhone,
		})
		if err != nil {
			return err
		}
		printCart(view)

	case "checkout", "co":
		// /checkout [discount] [tax]
		req := app.CheckoutRequest{CashierID: cashier.ID, CashierName: cashier.Name}
		var err error
		if len(args) >= 1 {
			if req.Discount, err = decimal.NewFromString(args[0]); err != nil {
				return fmt.Errorf("invalid discount %q", args[0])
			}
		}
		if len(args) >= 2 {
			if req.Tax, err = decimal.NewFromString(args[1]); err != nil {
				return fmt.Errorf("invalid tax %q", args[1])
			}
		}
		printCart(svc.Cart(ctx, cashier.ID))
		if !confirm(reader, "Complete this sale?") {
			fmt.Println("Checkout cancelled.")
			return nil
		}
		sale, err := svc.Checkout(ctx, req)
		if err != nil {
			return err
		}
		printReceipt(sale)

	case "rx":
		if len(args) >= 1 {
			return loadPrescription(ctx, svc, cashier, args[0])
		}
		handlePrescriptionIntake(ctx, reader, svc, cashier)

	case "restock", "loss", "return":
		// /restock <product> <qty> <reason...>
		if len(args) < 3 {
			fmt.Printf("Usage: /%s <product-id> <base-units> <reason>\n", cmd)
			return nil
		}
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		delta := n
		if cmd == "loss" {
			delta = -n
		}
		res, err := svc.RecordStockMovement(ctx, app.RecordMovementRequest{
			ProductID: args[0],
			Kind:      core.MovementKind(cmd),
			Delta:     delta,
			Reason:    strings.Join(args[2:], " "),
			Actor:     cashier.ID,
		})
		if err != nil {
			return err
		}
		printMovementResult(res)

	case "count":
		// /count <product> <absolute> <reason...>
		if len(args) < 3 {
			fmt.Println("Usage: /count <product-id> <counted-base-units> <reason>")
			return nil
		}
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid count %q", args[1])
		}
		res, err := svc.RecordStockMovement(ctx, app.RecordMovementRequest{
			ProductID: args[0],
			Kind:      core.MovementCorrection,
			SetTo:     &n,
			Reason:    strings.Join(args[2:], " "),
			Actor:     cashier.ID,
		})
		if err != nil {
			return err
		}
		printMovementResult(res)

	case "history":
		if len(args) < 1 {
			fmt.Println("Usage: /history <product-id> [limit]")
			return nil
		}
		limit := 20
		if len(args) >= 2 {
			if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
				limit = n
			}
		}
		result, err := svc.ListMovements(ctx, core.MovementFilter{ProductID: args[0], Limit: limit})
		if err != nil {
			return err
		}
		printMovements(result)

	case "sales":
		from := startOfDay(time.Now())
		sum, err := svc.SalesSummary(ctx, from, from.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		printSummary(sum)

	case "credits":
		result, err := svc.ListCredits(ctx, core.CreditFilter{Status: core.CreditPending})
		if err != nil {
			return err
		}
		printCredits(result)

	case "settle":
		if len(args) < 1 {
			fmt.Println("Usage: /settle <credit-id>")
			return nil
		}
		c, err := svc.SettleCredit(ctx, args[0], cashier.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Credit %s settled: %s from %s.\n", c.ID, c.Amount.StringFixed(2), c.CustomerName)

	case "audit":
		// /audit [days]
		days := 30
		if len(args) >= 1 {
			if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
				days = n
			}
		}
		to := time.Now()
		sum, err := svc.GetAuditReport(ctx, core.AuditRequest{From: to.AddDate(0, 0, -days), To: to})
		if err != nil {
			return err
		}
		printAudit(sum)

	case "help", "h":
		printHelp()

	case "exit", "quit", "e", "q":
		return errExit

	default:
		fmt.Printf("Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

// findProduct accepts an exact product ID or a name fragment matching exactly one product.
func findProduct(ctx context.Context, svc app.ApplicationService, ref string) (*core.Product, error) {
	ref = strings.TrimSpace(ref)
	p, err := svc.GetProduct(ctx, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	result, err := svc.ListProducts(ctx, app.ProductQuery{Query: ref, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	switch len(result.Products) {
	case 0:
		return nil, fmt.Errorf("no product matches %q", ref)
	case 1:
		return &result.Products[0], nil
	}
	for i := range result.Products {
		if strings.EqualFold(result.Products[i].Name, ref) {
			return &result.Products[i], nil
		}
	}
	printProducts(result)
	return nil, fmt.Errorf("%d products match %q; use the product ID", len(result.Products), ref)
}

func lineIndex(v *core.CartView, productID string, unit core.UnitType) int {
	for i, l := range v.Lines {
		if l.ProductID == productID && l.UnitType == unit {
			return i
		}
	}
	return -1
}

// lineArg converts a 1-based line number as displayed into a cart index.
func lineArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid line number %q", s)
	}
	return n - 1, nil
}

func loadPrescription(ctx context.Context, svc app.ApplicationService, cashier Cashier, id string) error {
	res, err := svc.LoadPrescriptionIntoCart(ctx, cashier.ID, id)
	if err != nil {
		return err
	}
	printResolution(res.Resolution)
	printCart(res.Cart)
	return nil
}

func confirm(reader *bufio.Reader, question string) bool {
	fmt.Printf("%s (y/n): ", question)
	choice, _ := reader.ReadString('\n')
	choice = strings.TrimSpace(strings.ToLower(choice))
	return choice == "y" || choice == "yes"
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
