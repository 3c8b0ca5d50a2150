package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/softstore/internal/infrastructure/logger"
	"github.com/yourorg/softstore/internal/repository"
	"github.com/yourorg/softstore/pkg/config"
	"github.com/yourorg/softstore/pkg/database"
)

// storectl is the administrative companion to the server: catalog entities and
// activation keys are provisioned here (or by the external admin UI), never
// through the public API.
func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "keys":
		handleKeys(args)
	case "products":
		handleProducts(args)
	case "company":
		handleCompany(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`storectl - softstore administration

Usage:
  storectl keys provision -product <id> -count <n>   generate unused activation keys
  storectl keys stock                                show unused keys per product
  storectl products list                             list the catalog
  storectl company delete -id <id>                   delete an unreferenced company
  storectl help`)
}

func connect() (*database.ConnectionPool, func()) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger("error")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}

	return pool, func() { pool.Close() }
}

func handleKeys(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: storectl keys <provision|stock>")
		return
	}

	switch args[0] {
	case "provision":
		provisionKeys(args[1:])
	case "stock":
		showStock()
	default:
		fmt.Printf("unknown keys command: %s\n", args[0])
	}
}

func provisionKeys(args []string) {
	fs := flag.NewFlagSet("provision", flag.ExitOnError)
	productID := fs.Int64("product", 0, "product id")
	count := fs.Int("count", 1, "number of keys to generate")
	fs.Parse(args)

	if *productID <= 0 || *count <= 0 {
		fmt.Fprintln(os.Stderr, "provision requires -product and a positive -count")
		os.Exit(1)
	}

	pool, closePool := connect()
	defer closePool()

	codes := make([]string, 0, *count)
	for i := 0; i < *count; i++ {
		codes = append(codes, uuid.NewString())
	}

	keys := repository.NewPostgresKeyRepository(pool.GetDB(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := keys.Provision(ctx, *productID, codes); err != nil {
		fmt.Fprintf(os.Stderr, "provision failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("provisioned %d key(s) for product %d\n", *count, *productID)
}

func showStock() {
	pool, closePool := connect()
	defer closePool()

	keys := repository.NewPostgresKeyRepository(pool.GetDB(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	counts, err := keys.CountUnused(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stock query failed: %v\n", err)
		os.Exit(1)
	}

	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tUNUSED KEYS")
	for _, id := range ids {
		fmt.Fprintf(w, "%d\t%d\n", id, counts[id])
	}
	w.Flush()
}

func handleProducts(args []string) {
	if len(args) < 1 || args[0] != "list" {
		fmt.Println("Usage: storectl products list")
		return
	}

	pool, closePool := connect()
	defer closePool()

	products := repository.NewPostgresProductRepository(pool.GetDB(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	list, err := products.List(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSLUG\tPRICE\tPUBLISHED")
	for _, p := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", p.ID, p.Title, p.Slug, p.Price, p.Published)
	}
	w.Flush()
}

func handleCompany(args []string) {
	if len(args) < 1 || args[0] != "delete" {
		fmt.Println("Usage: storectl company delete -id <id>")
		return
	}

	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "company id")
	fs.Parse(args[1:])

	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "delete requires -id")
		os.Exit(1)
	}

	pool, closePool := connect()
	defer closePool()

	companies := repository.NewPostgresCompanyRepository(pool.GetDB(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := companies.Delete(ctx, *id); err != nil {
		fmt.Fprintf(os.Stderr, "delete failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("company %d deleted\n", *id)
}
