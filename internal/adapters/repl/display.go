package repl

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/core"
)

func printError(err error) {
	var stockErr *core.InsufficientStockError
	var conflict *core.ConcurrentStockConflictError
	switch {
	case errors.As(err, &conflict):
		fmt.Printf("Stock changed while checking out: only %d base units of %s remain. Adjust the cart and retry.\n",
			conflict.Available, conflict.ProductID)
	case errors.As(err, &stockErr):
		fmt.Printf("Not enough stock: %d base units available, %d requested.\n", stockErr.Available, stockErr.Requested)
	case errors.Is(err, core.ErrMissingCustomerForCredit):
		fmt.Println("Credit sales need a customer name and phone. Use /customer first.")
	default:
		fmt.Printf("Error: %v\n", err)
	}
}

func printProducts(result *app.ProductListResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 84))
	fmt.Printf("  %-36s %-24s %-10s %8s %s\n", "ID", "NAME", "TYPE", "STOCK", "UNITS")
	fmt.Println(strings.Repeat("-", 84))
	if len(result.Products) == 0 {
		fmt.Println("  No products found.")
		fmt.Println(strings.Repeat("=", 84))
		return
	}
	for _, p := range result.Products {
		stock := fmt.Sprintf("%d", p.StockQuantity)
		if !p.Type.TracksStock() {
			stock = "-"
		} else if p.IsLowStock() {
			stock += "!"
		}
		fmt.Printf("  %-36s %-24s %-10s %8s %s\n", p.ID, truncate(p.Name, 24), p.Type, stock, unitSummary(p.Units))
	}
	fmt.Println(strings.Repeat("=", 84))
}

func printProductDetail(p *core.Product) {
	fmt.Println()
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("  %s  (%s)\n", p.Name, p.ID)
	fmt.Printf("  Type:      %s   Category: %s\n", p.Type, p.Category)
	fmt.Printf("  Stock:     %d base units (reorder at %d)\n", p.StockQuantity, p.ReorderLevel)
	fmt.Printf("  Cost:      %s per base unit\n", p.CostPrice.StringFixed(2))
	if !p.IsActive {
		fmt.Println("  INACTIVE")
	}
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("  %-10s %-16s %10s %12s\n", "UNIT", "LABEL", "BASE QTY", "PRICE")
	for _, u := range p.Units {
		fmt.Printf("  %-10s %-16s %10d %12s\n", u.Type, u.Label, u.Quantity, u.Price.StringFixed(2))
	}
	fmt.Println(strings.Repeat("-", 60))
}

func printCart(v *core.CartView) {
	fmt.Println()
	fmt.Println(strings.Repeat("-", 70))
	if len(v.Lines) == 0 {
		fmt.Println("  Cart is empty.")
		fmt.Println(strings.Repeat("-", 70))
		return
	}
	fmt.Printf("  %-4s %-28s %-8s %6s %12s %12s\n", "#", "PRODUCT", "UNIT", "QTY", "PRICE", "TOTAL")
	fmt.Println(strings.Repeat("-", 70))
	for i, l := range v.Lines {
		fmt.Printf("  %-4d %-28s %-8s %6d %12s %12s\n",
			i+1, truncate(l.ProductName, 28), l.UnitType, l.Quantity, l.UnitPrice.StringFixed(2), l.LineTotal.StringFixed(2))
	}
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("  %-53s %12s\n", "SUBTOTAL", v.Subtotal.StringFixed(2))
	fmt.Printf("  Payment: %s", v.PaymentMethod)
	if v.CustomerName != "" {
		fmt.Printf("   Customer: %s %s", v.CustomerName, v.CustomerPhone)
	}
	fmt.Println()
	fmt.Println(strings.Repeat("-", 70))
}

func printReceipt(s *core.Sale) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("  SALE %s\n", s.ID)
	fmt.Printf("  %s   Cashier: %s\n", s.CreatedAt.Local().Format("2006-01-02 15:04"), s.CashierName)
	fmt.Println(strings.Repeat("-", 70))
	for _, l := range s.Items {
		fmt.Printf("  %-36s %4d x %10s %12s\n",
			truncate(l.ProductName+" ("+l.UnitLabel+")", 36), l.Quantity, l.UnitPrice.StringFixed(2), l.LineTotal.StringFixed(2))
	}
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("  %-53s %12s\n", "Subtotal", s.Subtotal.StringFixed(2))
	if !s.Discount.IsZero() {
		fmt.Printf("  %-53s %12s\n", "Discount", s.Discount.Neg().StringFixed(2))
	}
	if !s.Tax.IsZero() {
		fmt.Printf("  %-53s %12s\n", "Tax", s.Tax.StringFixed(2))
	}
	fmt.Printf("  %-53s %12s\n", "TOTAL", s.Total.StringFixed(2))
	fmt.Printf("  Paid by %s\n", s.PaymentMethod)
	if s.IsCredit {
		fmt.Printf("  On credit for %s (%s), credit ID %s\n", s.CustomerName, s.CustomerPhone, s.CreditSaleID)
	}
	fmt.Println(strings.Repeat("=", 70))
}

func printResolution(r *core.Resolution) {
	fmt.Println()
	fmt.Printf("Prescription for %s: %d of %d items mapped to products.\n",
		r.PatientName, len(r.Lines), len(r.Items))
	for _, w := range r.Warnings {
		fmt.Printf("  [%s] %s\n", w.Kind, w.Message)
	}
}

func printMovementResult(res *app.MovementResult) {
	if res.Movement == nil {
		fmt.Printf("Stock of %s already matches; nothing recorded.\n", res.Product.Name)
		return
	}
	m := res.Movement
	fmt.Printf("Recorded %s %+d for %s. Stock is now %d.\n", m.Kind, m.Delta, res.Product.Name, m.BalanceAfter)
}

func printMovements(result *app.MovementListResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 84))
	if len(result.Movements) == 0 {
		fmt.Println("  No movements found.")
		fmt.Println(strings.Repeat("=", 84))
		return
	}
	fmt.Printf("  %-17s %-11s %8s %9s %-12s %s\n", "WHEN", "KIND", "DELTA", "BALANCE", "ACTOR", "REASON")
	fmt.Println(strings.Repeat("-", 84))
	for _, m := range result.Movements {
		fmt.Printf("  %-17s %-11s %+8d %9d %-12s %s\n",
			m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Kind, m.Delta, m.BalanceAfter,
			truncate(m.Actor, 12), truncate(m.Reason, 28))
	}
	fmt.Println(strings.Repeat("=", 84))
}

func printSummary(s *core.SalesSummary) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("  SALES %s to %s\n", s.From.Local().Format("2006-01-02 15:04"), s.To.Local().Format("2006-01-02 15:04"))
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("  %-32s %14d\n", "Sales", s.Count)
	fmt.Printf("  %-32s %14s\n", "Gross", s.GrossTotal.StringFixed(2))
	fmt.Printf("  %-32s %14s\n", "Paid", s.PaidTotal.StringFixed(2))
	fmt.Printf("  %-32s %14s\n", "Credit issued", s.CreditIssued.StringFixed(2))
	fmt.Printf("  %-32s %14s\n", "Credit settled", s.CreditSettled.StringFixed(2))
	fmt.Printf("  %-32s %14s\n", "Outstanding credit", s.OutstandingCredit.StringFixed(2))
	fmt.Printf("  %-32s %14s\n", "Cost of goods", s.CostOfGoods.StringFixed(2))
	fmt.Println(strings.Repeat("=", 50))
}

func printCredits(result *app.CreditListResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 84))
	if len(result.Credits) == 0 {
		fmt.Println("  No pending credits.")
		fmt.Println(strings.Repeat("=", 84))
		return
	}
	fmt.Printf("  %-36s %-20s %-14s %10s\n", "CREDIT ID", "CUSTOMER", "PHONE", "AMOUNT")
	fmt.Println(strings.Repeat("-", 84))
	for _, c := range result.Credits {
		fmt.Printf("  %-36s %-20s %-14s %10s\n", c.ID, truncate(c.CustomerName, 20), c.CustomerPhone, c.Amount.StringFixed(2))
	}
	fmt.Println(strings.Repeat("=", 84))
}

func printAudit(s *core.AuditSummary) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 84))
	fmt.Printf("  STOCK AUDIT %s to %s\n", s.From.Format(time.DateOnly), s.To.Format(time.DateOnly))
	fmt.Println(strings.Repeat("-", 84))
	fmt.Printf("  %-24s %8s %8s %8s %8s %12s\n", "PRODUCT", "OPENING", "SOLD", "LOST", "CLOSING", "VALUE")
	for _, l := range s.Lines {
		fmt.Printf("  %-24s %8d %8d %8d %8d %12s\n",
			truncate(l.ProductName, 24), l.OpeningStock, l.TotalSold, l.TotalLost, l.CurrentStock, l.ClosingValue.StringFixed(2))
	}
	fmt.Println(strings.Repeat("-", 84))
	fmt.Printf("  Opening value %s   Closing value %s   COGS %s   Missing %s\n",
		s.TotalOpeningValue.StringFixed(2), s.TotalClosingValue.StringFixed(2),
		s.TotalCOGS.StringFixed(2), s.TotalMissingValue.StringFixed(2))

	if len(s.Reorders) > 0 {
		fmt.Println()
		fmt.Println("  REORDER")
		for _, r := range s.Reorders {
			fmt.Printf("  [%-8s] %-24s stock %6d  %.1f days left  order %d (%s)\n",
				r.Priority, truncate(r.ProductName, 24), r.CurrentStock, r.DaysOfStock, r.SuggestedReorder, r.ReorderValue.StringFixed(2))
		}
	}
	for _, a := range s.Anomalies {
		fmt.Printf("  ! %s\n", a.Message)
	}
	fmt.Println(strings.Repeat("=", 84))
}

func printHelp() {
	fmt.Println()
	fmt.Println("PHARMACY POS COMMANDS")
	fmt.Println(strings.Repeat("=", 66))
	fmt.Println()
	fmt.Println("  CATALOG")
	fmt.Println("  /products [name]                 List active products")
	fmt.Println("  /low                             Products at or below reorder level")
	fmt.Println("  /product <id-or-name>            Product detail with unit prices")
	fmt.Println("  /new-product                     Create a product (interactive)")
	fmt.Println()
	fmt.Println("  CART")
	fmt.Println("  /add <id-or-name> <unit> [qty]   Add units, e.g. /add paracetamol strip 2")
	fmt.Println("  /cart                            Show cart")
	fmt.Println("  /qty <line> <+n|-n>              Change a line quantity")
	fmt.Println("  /rm <line>                       Remove a line")
	fmt.Println("  /clear                           Empty the cart")
	fmt.Println("  /customer                        Set customer name and phone")
	fmt.Println("  /pay <method>                    cash, card, mobile, insurance or credit")
	fmt.Println("  /checkout [discount] [tax]       Complete the sale")
	fmt.Println()
	fmt.Println("  PRESCRIPTIONS")
	fmt.Println("  /rx                              Enter a prescription and load it into the cart")
	fmt.Println("  /rx <prescription-id>            Load a saved prescription into the cart")
	fmt.Println()
	fmt.Println("  STOCK")
	fmt.Println("  /restock <id> <n> <reason>       Receive n base units")
	fmt.Println("  /loss <id> <n> <reason>          Write off n base units")
	fmt.Println("  /return <id> <n> <reason>        Customer return of n base units")
	fmt.Println("  /count <id> <n> <reason>         Set stock to a counted quantity")
	fmt.Println("  /history <id> [limit]            Stock movement history")
	fmt.Println()
	fmt.Println("  REPORTS")
	fmt.Println("  /sales                           Today's sales summary")
	fmt.Println("  /credits                         Pending credit sales")
	fmt.Println("  /settle <credit-id>              Mark a credit as paid")
	fmt.Println("  /audit [days]                    Stock audit over the last n days (default 30)")
	fmt.Println()
	fmt.Println("  /help  /exit")
	fmt.Println(strings.Repeat("=", 66))
}

func unitSummary(units []core.Unit) string {
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = fmt.Sprintf("%s %s", u.Type, u.Price.StringFixed(2))
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
