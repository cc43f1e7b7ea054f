package main

import (
	"chat-relay/internal"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

func main() {
	_ = godotenv.Load()
	dbPath := flag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, idx:msg:, conv:, member:, user_conv:, user:)")
	flag.Parse()
	if *dbPath == "" {
		log.Fatal("No database path, set -db or BADGER_FILEPATH")
	}

	// BypassLockGuard allows opening while the relay holds the lock
	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLogger(nil))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	rows, err := internal.Scan(db, *prefix, internal.RelayMapper)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf("  ====== %s (%d keys) ======", *prefix, len(rows))))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Namespace", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, row := range rows {
		table.Append([]string{row.Key, colorType(row.Type), row.Timestamp, row.EntityID, row.Namespace, row.Detail})
	}
	table.Render()
}

func colorType(t string) string {
	switch t {
	case "DELETED":
		return color.Red.Sprint(t)
	case "TEXT", "IMAGE", "AUDIO", "FILE":
		return color.Cyan.Sprint(t)
	case "RAW":
		return color.Gray.Sprint(t)
	}
	return color.Yellow.Sprint(t)
}
