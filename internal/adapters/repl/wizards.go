package repl

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/core"
)

func prompt(reader *bufio.Reader, label string) string {
	s, _ := promptLine(reader, label)
	return s
}

// promptLine reports ok=false once input is exhausted.
func promptLine(reader *bufio.Reader, label string) (string, bool) {
	fmt.Print(label)
	s, err := reader.ReadString('\n')
	return strings.TrimSpace(s), err == nil || s != ""
}

// promptCount asks until it gets a non-negative whole number; blank means 0.
// ok is false once input is exhausted.
func promptCount(reader *bufio.Reader, label string) (int64, bool) {
	for {
		s, ok := promptLine(reader, label)
		if !ok {
			return 0, false
		}
		if s == "" {
			return 0, true
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil && n >= 0 {
			return n, true
		}
		fmt.Println("  Enter a whole number of 0 or more.")
	}
}

// handleCustomer sets the customer on the cashier's cart, keeping the payment method.
func handleCustomer(ctx context.Context, reader *bufio.Reader, svc app.ApplicationService, cashier Cashier) {
	current := svc.Cart(ctx, cashier.ID)
	name := prompt(reader, fmt.Sprintf("Customer name [%s]: ", current.CustomerName))
	if name == "" {
		name = current.CustomerName
	}
	phone := prompt(reader, fmt.Sprintf("Customer phone [%s]: ", current.CustomerPhone))
	if phone == "" {
		phone = current.CustomerPhone
	}
	view, err := svc.SetCartCustomer(ctx, app.CartCustomerRequest{
		CashierID:     cashier.ID,
		CustomerName:  name,
		CustomerPhone: phone,
	})
	if err != nil {
		printError(err)
		return
	}
	printCart(view)
}

// handlePrescriptionIntake records a prescription line by line, saves it, and
// loads it into the cashier's cart.
func handlePrescriptionIntake(ctx context.Context, reader *bufio.Reader, svc app.ApplicationService, cashier Cashier) {
	patient := prompt(reader, "Patient name: ")
	if patient == "" {
		fmt.Println("Prescription cancelled.")
		return
	}
	phone := prompt(reader, "Patient phone (optional): ")
	prescriber := prompt(reader, "Prescriber (optional): ")

	fmt.Println("Enter items. Type 'done' when finished, 'cancel' to abort.")
	fmt.Println("Format per item: <medicine> | <dosage> | <frequency> | <duration>")
	fmt.Println("  Example: Paracetamol 500mg | 1 tablet | 3 times daily | 5 days")

	var items []core.PrescriptionItem
intake:
	for {
		raw, ok := promptLine(reader, fmt.Sprintf("  Item %d: ", len(items)+1))
		if !ok {
			raw = "cancel"
		}
		switch strings.ToLower(raw) {
		case "cancel":
			fmt.Println("Prescription cancelled.")
			return
		case "done":
			break intake
		case "":
			continue
		}
		parts := strings.Split(raw, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		if parts[0] == "" {
			fmt.Println("  Medicine name is required.")
			continue
		}
		items = append(items, core.PrescriptionItem{
			Medicine:  parts[0],
			Dosage:    parts[1],
			Frequency: parts[2],
			Duration:  parts[3],
		})
	}

	if len(items) == 0 {
		fmt.Println("No items entered. Prescription not saved.")
		return
	}
	rx, err := svc.SavePrescription(ctx, app.SavePrescriptionRequest{
		PatientName:  patient,
		PatientPhone: phone,
		Prescriber:   prescriber,
		Items:        items,
	})
	if err != nil {
		printError(err)
		return
	}
	fmt.Printf("Prescription saved (ID: %s).\n", rx.ID)
	if err := loadPrescription(ctx, svc, cashier, rx.ID); err != nil {
		printError(err)
	}
}

// handleNewProduct runs interactive product creation.
func handleNewProduct(ctx context.Context, reader *bufio.Reader, svc app.ApplicationService, cashier Cashier) {
	name := prompt(reader, "Name: ")
	if name == "" {
		fmt.Println("Product creation cancelled.")
		return
	}
	category := prompt(reader, "Category: ")
	ptype := core.ProductType(strings.ToLower(prompt(reader, "Type (tablets, syrup, individual, service, ...): ")))

	fmt.Println("Enter units. Type 'done' when finished.")
	fmt.Println("Format per unit: <unit-type> <base-qty> <price> [label]")
	fmt.Println("  Example: strip 10 18.00 Strip of 10")
	var units []core.Unit
	for {
		raw, ok := promptLine(reader, "  Unit: ")
		if !ok || strings.EqualFold(raw, "done") {
			break
		}
		if raw == "" {
			continue
		}
		parts := strings.Fields(raw)
		if len(parts) < 3 {
			fmt.Println("  Invalid format. Use: <unit-type> <base-qty> <price> [label]")
			continue
		}
		qty, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || qty < 1 {
			fmt.Println("  Invalid base quantity.")
			continue
		}
		price, err := decimal.NewFromString(parts[2])
		if err != nil || price.IsNegative() {
			fmt.Println("  Invalid price.")
			continue
		}
		label := strings.Join(parts[3:], " ")
		if label == "" {
			label = parts[0]
		}
		units = append(units, core.Unit{Type: core.UnitType(strings.ToLower(parts[0])), Label: label, Quantity: qty, Price: price})
	}

	var cost decimal.Decimal
	if s := prompt(reader, "Cost per base unit [0]: "); s != "" {
		c, err := decimal.NewFromString(s)
		if err != nil {
			fmt.Println("Invalid cost. Product not created.")
			return
		}
		cost = c
	}
	reorder, ok := promptCount(reader, "Reorder level [0]: ")
	if !ok {
		fmt.Println("Product creation cancelled.")
		return
	}
	var opening int64
	if ptype.TracksStock() {
		if opening, ok = promptCount(reader, "Opening stock in base units [0]: "); !ok {
			fmt.Println("Product creation cancelled.")
			return
		}
	}

	p, err := svc.SaveProduct(ctx, app.SaveProductRequest{
		Name:         name,
		Category:     category,
		Type:         ptype,
		Units:        units,
		ReorderLevel: reorder,
		CostPrice:    cost,
		IsActive:     true,
		OpeningStock: opening,
		Actor:        cashier.ID,
	})
	if err != nil {
		printError(err)
		return
	}
	printProductDetail(p)
}
