package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/asaidimu/go-sift/core/condition"
	"github.com/asaidimu/go-sift/core/dataset"
	"github.com/asaidimu/go-sift/core/transform"
	"github.com/asaidimu/go-sift/sqlite"
	"github.com/asaidimu/go-sift/utils"
)

type order struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
	Status string  `json:"status"`
}

const (
	peopleDDL = `CREATE TABLE people (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		age INTEGER,
		city TEXT,
		active BOOLEAN
	)`

	adultsInX = `{
		"and": [
			{"dimension": "age", "relation": "gte", "value": 30},
			{"dimension": "city", "relation": "eq", "value": "x"}
		]
	}`
)

func main() {
	ctx := context.Background()
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	registry, err := transform.NewRegistry(&transform.RegistryOptions{Logger: logger})
	if err != nil {
		log.Fatalf("Failed to create transform registry: %v", err)
	}
	unsubscribe := registry.Subscribe(transform.TransformSuccess, func(ctx context.Context, ev transform.Event) error {
		logger.Info("Transform finished",
			zap.String("invocation", ev.InvocationID),
			zap.String("transform", ev.Transform),
			zap.Int("input", ev.InputRows),
			zap.Int("output", ev.OutputRows),
		)
		return nil
	})
	defer unsubscribe()

	// --- In-memory object rows with two header rows ---
	source, err := dataset.NewObjectSource([]string{"age", "city"}, 2,
		map[string]any{"age": "Age", "city": "City"},
		map[string]any{"age": "years", "city": "code"},
		map[string]any{"age": 10, "city": "x"},
		map[string]any{"age": 30, "city": "y"},
		map[string]any{"age": 45, "city": "x"},
	)
	if err != nil {
		log.Fatalf("Failed to create source: %v", err)
	}

	cond, err := condition.ParseJSON([]byte(adultsInX), map[string]bool{condition.DimensionAttr: true})
	if err != nil {
		log.Fatalf("Failed to parse condition: %v", err)
	}
	result, err := registry.Apply(ctx, source, transform.Option{Type: "filter", Config: cond})
	if err != nil {
		log.Fatalf("Filter failed: %v", err)
	}
	printRows("In-memory result", result.Data)

	// --- A misconfigured condition fails instead of returning everything ---
	_, err = registry.Apply(ctx, source, transform.Option{
		Type:   "filter",
		Config: condition.Where("country").Eq("fr"),
	})
	fmt.Printf("\nUnknown dimension error:\n%v\n", err)

	// --- Object rows built from structs, filtered with a script relation ---
	orders, err := utils.StructsToRows([]order{
		{ID: "o-1", Amount: 12.5, Status: "paid"},
		{ID: "o-2", Amount: 230, Status: "paid"},
		{ID: "o-3", Amount: 99, Status: "refunded"},
	})
	if err != nil {
		log.Fatalf("Failed to convert orders: %v", err)
	}
	orderRows := make([]dataset.RawRow, len(orders))
	for i, o := range orders {
		orderRows[i] = o
	}
	orderSource, err := dataset.NewMemorySource(dataset.MemoryOptions{
		Format:     dataset.FormatObjectRows,
		Dimensions: []string{"id", "amount", "status"},
	}, orderRows)
	if err != nil {
		log.Fatalf("Failed to create order source: %v", err)
	}
	result, err = registry.Apply(ctx, orderSource, transform.Option{Type: "filter", Config: condition.And(
		condition.Where("status").Eq("paid"),
		condition.Where("amount").Script("value >= 100"),
	)})
	if err != nil {
		log.Fatalf("Order filter failed: %v", err)
	}
	printRows("\nLarge paid orders", result.Data)

	// --- SQLite table source ---
	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := seed(ctx, db); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	table, err := sqlite.NewTableSource(ctx, db, "people", &sqlite.TableSourceOptions{IncludeHeader: true, Logger: logger})
	if err != nil {
		log.Fatalf("Failed to load table: %v", err)
	}
	result, err = registry.Apply(ctx, table,
		transform.Option{Type: "filter", Config: condition.Where("active").Eq(true)},
		transform.Option{Type: "filter", Config: condition.Or(
			condition.Where("name").Matches("^[AE]"),
			condition.Where("age").Between(40, 60),
		)},
	)
	if err != nil {
		log.Fatalf("Filter chain failed: %v", err)
	}
	printRows("\nSQLite result", result.Data)
}

func seed(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, peopleDDL); err != nil {
		return err
	}
	people := []struct {
		name   string
		age    int
		city   string
		active bool
	}{
		{"Ada", 36, "London", true},
		{"Brian", 52, "Paris", true},
		{"Chen", 28, "Taipei", false},
		{"Eve", 61, "Paris", true},
		{"Femi", 44, "Lagos", false},
	}
	for _, p := range people {
		if _, err := db.ExecContext(ctx,
			"INSERT INTO people (name, age, city, active) VALUES (?, ?, ?, ?)",
			p.name, p.age, p.city, p.active); err != nil {
			return err
		}
	}
	return nil
}

func printRows(title string, rows []dataset.RawRow) {
	fmt.Println(title + ":")
	for _, row := range rows {
		b, _ := json.Marshal(row)
		fmt.Println("  " + string(b))
	}
}
