package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"modelarena/internal/client"
	"modelarena/internal/models"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "arena server base URL")
	prompt := flag.String("prompt", "", "prompt to send to both models")
	model1 := flag.String("model1", "gpt-4o", "model for slot A")
	model2 := flag.String("model2", "claude-3-5-sonnet-20241022", "model for slot B")
	listModels := flag.Bool("models", false, "list selectable models and exit")
	flag.Parse()

	c := client.New(client.Config{BaseURL: *server})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *listModels {
		descriptors, err := c.Models(ctx)
		if err != nil {
			log.Fatalf("Failed to list models: %v", err)
		}
		for _, d := range descriptors {
			fmt.Printf("%-30s %-10s in $%.4f/1K out $%.4f/1K\n",
				d.ID, d.Provider, d.InputPricePer1K, d.OutputPricePer1K)
		}
		return
	}

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "usage: arena-cli -prompt \"...\" [-model1 id] [-model2 id]")
		os.Exit(2)
	}

	req := models.ComparisonRequest{
		Prompt:   *prompt,
		ModelID1: *model1,
		ModelID2: *model2,
	}

	state := map[models.SlotID]models.EventData{}

	err := c.Compare(ctx, req, func(ev models.StreamEvent) error {
		state[ev.Slot] = ev.Data

		switch ev.Type {
		case models.EventStart:
			fmt.Printf("[%s] %s started\n", ev.Slot, ev.Data.Model)
		case models.EventToken:
			fmt.Printf("[%s] %s", ev.Slot, ev.Data.Delta)
			if ev.Data.Delta != "" {
				fmt.Println()
			}
		case models.EventComplete:
			fmt.Printf("[%s] done: %d tokens, $%.6f\n", ev.Slot, ev.Data.Tokens.Total, ev.Data.Cost)
		case models.EventError:
			fmt.Printf("[%s] failed: %s\n", ev.Slot, ev.Data.Error)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Comparison failed: %v", err)
	}

	fmt.Println("---")
	for _, slot := range []models.SlotID{models.SlotA, models.SlotB} {
		data := state[slot]
		fmt.Printf("%s (%s): tokens=%d cost=$%.6f\n", slot, data.Model, data.Tokens.Total, data.Cost)
	}
}
