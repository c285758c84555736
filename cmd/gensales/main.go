package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"
)

type catalogItem struct {
	name     string
	category string
	price    float64
}

var catalog = []catalogItem{
	{"Espresso Beans 1kg", "drinks", 24.50},
	{"Green Tea Box", "drinks", 8.90},
	{"Cold Brew Bottle", "drinks", 4.75},
	{"Ceramic Mug", "kitchen", 12.00},
	{"Chef Knife", "kitchen", 49.90},
	{"Cutting Board", "kitchen", 18.50},
	{"Soy Candle", "home", 14.25},
	{"Wool Throw", "home", 59.00},
	{"Notebook A5", "stationery", 6.40},
	{"Fountain Pen", "stationery", 32.00},
}

func main() {
	var count, stores, days int
	var outputFile string
	flag.IntVar(&count, "count", 1000, "number of sale rows to generate")
	flag.IntVar(&stores, "stores", 3, "number of distinct stores")
	flag.IntVar(&days, "days", 45, "spread rows across this many trailing days")
	flag.StringVar(&outputFile, "output", "sales.csv", "output file")
	flag.Parse()

	if err := generateSales(count, stores, days, outputFile); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

func generateSales(count, stores, days int, outputFile string) error {
	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"timestamp", "store_id", "item", "category", "amount", "quantity_sold"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := 0; i < count; i++ {
		item := catalog[rng.Intn(len(catalog))]
		qty := 1 + rng.Intn(4)
		ts := now.Add(-time.Duration(rng.Intn(days*24*60)) * time.Minute)

		row := []string{
			ts.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("S%d", 1+rng.Intn(stores)),
			item.name,
			item.category,
			strconv.FormatFloat(item.price*float64(qty), 'f', 2, 64),
			strconv.Itoa(qty),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	log.Printf("generated %d sales to %s", count, outputFile)
	return nil
}
