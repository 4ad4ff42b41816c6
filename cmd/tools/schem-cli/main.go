package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/schematic"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/block"
)

const (
	defaultNATSURL = "nats://127.0.0.1:4222"
	timeFormat     = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		command = flag.String("cmd", "info", "Command: generate, info, get, set, offer, remove, keys, events")
		file    = flag.String("file", "", "Path to .schem file")
		name    = flag.String("name", "generated", "Schematic name (generate)")
		author  = flag.String("author", "", "Schematic author (generate)")
		seed    = flag.Int64("seed", 0, "Noise seed (generate)")
		size    = flag.String("size", "32,32,32", "Size X,Y,Z (generate)")
		noChest = flag.Bool("no-chest", false, "Do not place a chest (generate)")
		cell    = flag.String("cell", "0,0,0", "Cell X,Y,Z (get, set, offer, remove)")
		state   = flag.String("state", "", "Block state, e.g. chest[facing=north] (set)")
		key     = flag.String("key", "", "Data key ID, e.g. blockverse:facing (offer, remove)")
		value   = flag.String("value", "", "Value as JSON or plain string (offer)")
		natsURL = flag.String("nats", defaultNATSURL, "NATS server URL (events)")
		stream  = flag.String("stream", "BLOCKVERSE_EVENTS", "JetStream stream (events)")
		types   = flag.String("types", "", "Event types filter (comma-separated, events)")
	)
	flag.Parse()

	var err error
	switch *command {
	case "generate":
		err = generate(*file, *name, *author, *seed, *size, !*noChest)
	case "info":
		err = info(*file)
	case "get":
		err = get(*file, *cell)
	case "set":
		err = set(*file, *cell, *state)
	case "offer":
		err = offer(*file, *cell, *key, *value)
	case "remove":
		err = remove(*file, *cell, *key)
	case "keys":
		listKeys()
	case "events":
		err = tailEvents(*natsURL, *stream, parseStringList(*types))
	default:
		log.Fatalf("❌ Unknown command: %s", *command)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

func parseVec(s string) (vec.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return vec.Vec3{}, fmt.Errorf("expected X,Y,Z, got %q", s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return vec.Vec3{}, fmt.Errorf("bad coordinate %q: %w", p, err)
		}
		n[i] = v
	}
	return vec.Vec3{X: n[0], Y: n[1], Z: n[2]}, nil
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseValue принимает JSON (числа, true/false, строки в кавычках) или голую строку
func parseValue(k *data.Key, raw string) (any, error) {
	var payload any = raw
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
		payload = decoded
	}
	v, ok := k.Coerce(payload)
	if !ok {
		return nil, fmt.Errorf("value %q is not a valid %s", raw, k.Kind)
	}
	return v, nil
}

func requireFile(path string) error {
	if path == "" {
		return fmt.Errorf("-file is required")
	}
	return nil
}

func generate(path, name, author string, seed int64, sizeStr string, chest bool) error {
	if err := requireFile(path); err != nil {
		return err
	}
	size, err := parseVec(sizeStr)
	if err != nil {
		return err
	}
	opts := schematic.DefaultGenerateOptions()
	opts.Name = name
	opts.Author = author
	opts.Chest = chest

	s, err := schematic.Generate(seed, size, opts)
	if err != nil {
		return err
	}
	if err := schematic.WriteFile(path, s); err != nil {
		return err
	}
	fmt.Printf("✅ Generated %s (%s) -> %s\n", s.Name, s.ID, path)
	return printSummary(s)
}

func info(path string) error {
	if err := requireFile(path); err != nil {
		return err
	}
	s, err := schematic.ReadFile(path)
	if err != nil {
		return err
	}
	return printSummary(s)
}

func printSummary(s *schematic.Schematic) error {
	sum := s.Summarize()
	fmt.Printf("📦 %s\n", sum.Name)
	fmt.Printf("   ID:             %s\n", sum.ID)
	fmt.Printf("   Author:         %s\n", sum.Author)
	fmt.Printf("   Size:           %d x %d x %d\n", sum.Size.X, sum.Size.Y, sum.Size.Z)
	fmt.Printf("   Non-air blocks: %d\n", sum.NonAir)
	fmt.Printf("   Palette:        %d\n", sum.Palette)
	fmt.Printf("   Block entities: %d\n", sum.BlockEntities)
	fmt.Printf("   Entities:       %d\n", sum.Entities)
	fmt.Printf("   Created:        %s\n", sum.CreatedAt.UTC().Format(timeFormat))
	return nil
}

func get(path, cellStr string) error {
	if err := requireFile(path); err != nil {
		return err
	}
	c, err := parseVec(cellStr)
	if err != nil {
		return err
	}
	s, err := schematic.ReadFile(path)
	if err != nil {
		return err
	}
	if !s.Contains(c) {
		return fmt.Errorf("cell %s is outside of %v", c, s.Size())
	}

	fmt.Printf("📍 %s\n", c)
	fmt.Printf("   Block: %s\n", s.Block(c))
	fmt.Printf("   Fluid: %s\n", s.Fluid(c))
	fmt.Printf("   Biome: %s\n", s.Biome(c))
	for _, v := range s.Values(c) {
		fmt.Printf("   %s = %v\n", v.Key().ID, v.Payload())
	}
	if a, ok := s.BlockEntity(c); ok {
		raw := a.RawData()
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("   Block entity:")
		for _, k := range keys {
			fmt.Printf("     %s: %v\n", k, raw[k])
		}
	}
	return nil
}

func set(path, cellStr, stateStr string) error {
	if err := requireFile(path); err != nil {
		return err
	}
	c, err := parseVec(cellStr)
	if err != nil {
		return err
	}
	st, err := block.ParseState(stateStr)
	if err != nil {
		return err
	}
	s, err := schematic.ReadFile(path)
	if err != nil {
		return err
	}
	if !s.SetBlock(c, st) {
		return fmt.Errorf("cell %s is outside of %v", c, s.Size())
	}
	fmt.Printf("✅ %s = %s\n", c, st)
	return schematic.WriteFile(path, s)
}

// transact применяет транзакцию и сохраняет файл, только если она успешна
func transact(path, cellStr, keyID string, apply func(s *schematic.Schematic, c vec.Vec3, k *data.Key) (data.TransactionResult, error)) error {
	if err := requireFile(path); err != nil {
		return err
	}
	c, err := parseVec(cellStr)
	if err != nil {
		return err
	}
	k, ok := data.Lookup(keyID)
	if !ok {
		return fmt.Errorf("unknown key %q (see -cmd keys)", keyID)
	}
	s, err := schematic.ReadFile(path)
	if err != nil {
		return err
	}
	r, err := apply(s, c, k)
	if err != nil {
		return err
	}
	printResult(r)
	if !r.IsSuccessful() {
		return nil
	}
	return schematic.WriteFile(path, s)
}

func offer(path, cellStr, keyID, raw string) error {
	return transact(path, cellStr, keyID, func(s *schematic.Schematic, c vec.Vec3, k *data.Key) (data.TransactionResult, error) {
		payload, err := parseValue(k, raw)
		if err != nil {
			return data.TransactionResult{}, err
		}
		return s.Offer(c, k, payload), nil
	})
}

func remove(path, cellStr, keyID string) error {
	return transact(path, cellStr, keyID, func(s *schematic.Schematic, c vec.Vec3, k *data.Key) (data.TransactionResult, error) {
		return s.Remove(c, k), nil
	})
}

func printResult(r data.TransactionResult) {
	fmt.Printf("🔁 %s\n", r.Type)
	for _, group := range []struct {
		title  string
		values []data.Value
	}{
		{"success", r.Success},
		{"replaced", r.Replaced},
		{"rejected", r.Rejected},
	} {
		for _, v := range group.values {
			fmt.Printf("   %-8s %s = %v\n", group.title, v.Key().ID, v.Payload())
		}
	}
}

func listKeys() {
	keys := data.Keys()
	data.SortKeys(keys)
	for _, k := range keys {
		fmt.Printf("%-32s %s\n", k.ID, k.Kind)
	}
}

// tailEvents печатает события схематик из JetStream до Ctrl+C
func tailEvents(url, stream string, types []string) error {
	bus, err := eventbus.NewJetStreamBus(url, stream, 0)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(_ context.Context, ev *eventbus.Envelope) {
		fmt.Printf("[%s] %-24s %s src=%s %s\n",
			ev.Timestamp.UTC().Format(timeFormat), ev.EventType, ev.ID, ev.Source, ev.Payload)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	fmt.Printf("📡 Following %s on %s (Ctrl+C to stop)\n", stream, url)
	<-ctx.Done()
	return nil
}
