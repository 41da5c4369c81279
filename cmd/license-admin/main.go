package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"hexauth-server/config"
	"hexauth-server/internal/database"
	"hexauth-server/internal/license"
	"hexauth-server/internal/logging"
)

type tool struct {
	repo     *database.Repository
	licenses *license.Service
	app      *database.Application
	reader   *bufio.Reader
}

func main() {
	fmt.Println("========================================")
	fmt.Println(" License Administration Tool")
	fmt.Println("========================================")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logging.New(&logging.Config{Level: "WARN", Component: "license-admin"}))

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	t := &tool{
		repo:     repo,
		licenses: license.NewService(repo),
		reader:   bufio.NewReader(os.Stdin),
	}

	if !t.selectApplication() {
		os.Exit(1)
	}

	for {
		fmt.Println("\nOptions:")
		fmt.Println("  1. Generate license keys")
		fmt.Println("  2. Inspect a license key")
		fmt.Println("  3. List license keys")
		fmt.Println("  4. Ban a license key")
		fmt.Println("  5. Unban a license key")
		fmt.Println("  6. Switch application")
		fmt.Println("  7. Exit")
		fmt.Print("\nSelect option: ")

		switch t.readLine() {
		case "1":
			t.generateKeys()
		case "2":
			t.inspectKey()
		case "3":
			t.listKeys()
		case "4":
			t.banKey()
		case "5":
			t.unbanKey()
		case "6":
			t.selectApplication()
		case "7":
			fmt.Println("Goodbye!")
			os.Exit(0)
		default:
			fmt.Println("Invalid option")
		}
	}
}

func (t *tool) readLine() string {
	input, _ := t.reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func (t *tool) selectApplication() bool {
	fmt.Print("Owner ID: ")
	ownerID := t.readLine()
	fmt.Print("Application name: ")
	name := t.readLine()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	app, err := t.repo.GetApplication(ctx, ownerID, name)
	if err != nil {
		fmt.Printf("Lookup failed: %v\n", err)
		return false
	}
	if app == nil {
		fmt.Println("No such application")
		return false
	}

	t.app = app
	fmt.Printf("Using application %q (id %s)\n", app.Name, app.ID)
	return true
}

func (t *tool) generateKeys() {
	fmt.Println("\n--- Generate License Keys ---")
	fmt.Printf("Mask [%s]: ", t.app.LicenseMask)
	mask := t.readLine()
	if mask == "" {
		mask = t.app.LicenseMask
	}

	fmt.Print("Level: ")
	level := t.readLine()
	if level == "" {
		fmt.Println("Level is required")
		return
	}

	fmt.Print("Duration in days: ")
	days, err := strconv.Atoi(t.readLine())
	if err != nil || days <= 0 {
		fmt.Println("Invalid duration")
		return
	}

	fmt.Print("Count [1]: ")
	count, err := strconv.Atoi(t.readLine())
	if err != nil || count <= 0 {
		count = 1
	}

	fmt.Print("Note (optional): ")
	note := t.readLine()
	var notePtr *string
	if note != "" {
		notePtr = &note
	}
	generatedBy := "license-admin"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	keys, err := t.licenses.Generate(ctx, t.app.ID, mask, level,
		int64(days)*86400, count, notePtr, &generatedBy)
	if err != nil {
		fmt.Printf("Generation failed: %v\n", err)
		return
	}

	fmt.Printf("\nGenerated %d key(s):\n", len(keys))
	for _, k := range keys {
		fmt.Printf("  %s\n", k.Key)
	}
}

func (t *tool) inspectKey() {
	fmt.Print("\nKey: ")
	key := t.readLine()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lic, err := t.licenses.Get(ctx, t.app.ID, key)
	if err != nil {
		fmt.Printf("Lookup failed: %v\n", err)
		return
	}
	if lic == nil {
		fmt.Println("Key not found")
		return
	}

	fmt.Printf("\nKey:       %s\n", lic.Key)
	fmt.Printf("Status:    %s\n", lic.Status)
	fmt.Printf("Level:     %s\n", lic.Level)
	fmt.Printf("Duration:  %s\n", lic.Duration())
	fmt.Printf("Generated: %s", lic.GeneratedAt.Format(time.RFC3339))
	if lic.GeneratedBy != nil {
		fmt.Printf(" by %s", *lic.GeneratedBy)
	}
	fmt.Println()
	if lic.UsedAt != nil {
		fmt.Printf("Used:      %s", lic.UsedAt.Format(time.RFC3339))
		if lic.UsedBy != nil {
			fmt.Printf(" by %s", *lic.UsedBy)
		}
		fmt.Println()
		fmt.Printf("Expires:   %s\n", lic.UsedAt.Add(lic.Duration()).Format(time.RFC3339))
	}
	if lic.Note != nil {
		fmt.Printf("Note:      %s\n", *lic.Note)
	}
	if lic.BanReason != nil {
		fmt.Printf("Banned:    %s\n", *lic.BanReason)
	}
}

func (t *tool) listKeys() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	keys, err := t.licenses.List(ctx, t.app.ID)
	if err != nil {
		fmt.Printf("List failed: %v\n", err)
		return
	}

	fmt.Printf("\n%d key(s):\n", len(keys))
	for _, k := range keys {
		used := ""
		if k.UsedBy != nil {
			used = " used by " + *k.UsedBy
		}
		fmt.Printf("  %-45s %-8s level %s%s\n", k.Key, k.Status, k.Level, used)
	}
}

func (t *tool) banKey() {
	fmt.Print("\nKey: ")
	key := t.readLine()
	fmt.Print("Reason: ")
	reason := t.readLine()
	if reason == "" {
		reason = "Banned by operator"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.licenses.Ban(ctx, t.app.ID, key, reason); err != nil {
		fmt.Printf("Ban failed: %v\n", err)
		return
	}
	fmt.Println("Key banned")
}

func (t *tool) unbanKey() {
	fmt.Print("\nKey: ")
	key := t.readLine()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.licenses.Unban(ctx, t.app.ID, key); err != nil {
		fmt.Printf("Unban failed: %v\n", err)
		return
	}
	fmt.Println("Key unbanned")
}
