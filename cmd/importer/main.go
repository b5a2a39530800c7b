// Command importer replaces the whole catalog with the contents of a
// free-form workbook. It is meant for the initial load of a new database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"wholesale_catalog/internal/repository"
	"wholesale_catalog/internal/spreadsheet"
	"wholesale_catalog/internal/store"
	"wholesale_catalog/pkg/logger"

	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "productos.db", "sqlite database file")
	dryRun := flag.Bool("dry-run", false, "only print what would be loaded")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: importer [flags] [productos.xlsx]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	file := "productos.xlsx"
	if flag.NArg() > 0 {
		file = flag.Arg(0)
	}
	if err := logger.Init(logger.Config{Level: "info", Format: "text", Output: "stdout"}); err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	if err := run(context.Background(), file, *dbPath, *dryRun); err != nil {
		logger.Error(context.Background(), "import failed", "file", file, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, file, dbPath string, dryRun bool) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := spreadsheet.ReadBulk(f)
	if err != nil {
		return err
	}
	if len(res.Products) == 0 {
		return fmt.Errorf("%s has no importable rows", file)
	}
	for _, line := range res.Skipped {
		logger.Warn(ctx, "row skipped: missing code or title", "row", line)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Código", "Título", "Precio", "Mín", "Múlt", "Stock", "Categoría")
	for _, p := range res.Products {
		if err := table.Append([]string{
			p.Codigo, p.Titulo, p.Precio.String(),
			strconv.Itoa(p.Minimo), strconv.Itoa(p.Multiplo), strconv.Itoa(p.Stock), p.Categoria,
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	if dryRun {
		logger.Info(ctx, "dry run, database untouched", "rows", len(res.Products), "skipped", len(res.Skipped))
		return nil
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx, db); err != nil {
		return err
	}
	n, err := repository.NewProductRepository(db).ReplaceAll(ctx, res.Products)
	if err != nil {
		return err
	}
	logger.Info(ctx, "catalog replaced", "imported", n, "skipped", len(res.Skipped), "db", dbPath)
	return nil
}
