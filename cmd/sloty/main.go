// Copyright 2026 The Slotpack Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// sloty is a small REPL for poking at the slot containers by hand.
//
// Usage:
//
//	sloty [flags]
//
// Flags:
//
//	-c, --config      Config file (HuJSON: comments and trailing commas ok)
//	-o, --ordered     Insert table entries with the Ordered flag
//	    --fixed-id    Insert table entries with the FixedID flag
//	    --capacity    Initial capacity for all containers (default 0)
//	    --ext         Reserved ext words on the list (default 0)
//
// Commands (in REPL):
//
//	list push <num>            Append to the slot list
//	list at <id>               Read a list record
//	list trunc <n>             Drop the last n records
//	list clear                 Drop all records
//	map add <key> <num>        Allocate a map slot (32-bit handles)
//	map at <key>               Read a map record
//	map rm <key>               Remove a map record
//	map burn                   Drain the map free list
//	map64 ...                  Same commands on the 64-bit variant
//	table put <key> <num>      Insert or update a table entry
//	table get <key>            Look up a table entry
//	table del <key>            Tombstone a table entry
//	table scan [limit]         Walk the dense array in order
//	stats                      Show counts and capacities
//	bulk <n>                   Insert n random table entries
//	bench <n>                  Benchmark n table put+get pairs
//	dump <file>                Write a JSON snapshot (atomic)
//	help                       Show this help
//	exit / quit / q            Exit
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/peterh/liner"
	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/slotpack/slots/slotlist"
	"github.com/slotpack/slots/slotmap"
	"github.com/slotpack/slots/slottable"
)

// config holds the session knobs, loadable from a HuJSON file.
type config struct {
	Ordered  bool `json:"ordered"`
	FixedID  bool `json:"fixed_id"`
	Capacity int  `json:"capacity"`
	Ext      int  `json:"ext"`
}

// loadConfig reads a HuJSON config file.
func loadConfig(path string) (config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config{}, err
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return config{}, fmt.Errorf("invalid HuJSON: %w", err)
	}
	var cfg config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

type rec struct {
	Key string  `json:"key"`
	Val float64 `json:"val"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		cfg        config
	)
	pflag.StringVarP(&configPath, "config", "c", "", "config file (HuJSON)")
	pflag.BoolVarP(&cfg.Ordered, "ordered", "o", false, "insert table entries with the Ordered flag")
	pflag.BoolVar(&cfg.FixedID, "fixed-id", false, "insert table entries with the FixedID flag")
	pflag.IntVar(&cfg.Capacity, "capacity", 0, "initial capacity for all containers")
	pflag.IntVar(&cfg.Ext, "ext", 0, "reserved ext words on the list")
	pflag.Parse()

	if configPath != "" {
		fileCfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		// Flags override the file where explicitly set.
		merged := fileCfg
		pflag.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "ordered":
				merged.Ordered = cfg.Ordered
			case "fixed-id":
				merged.FixedID = cfg.FixedID
			case "capacity":
				merged.Capacity = cfg.Capacity
			case "ext":
				merged.Ext = cfg.Ext
			}
		})
		cfg = merged
	}

	r := &repl{
		cfg:    cfg,
		list:   slotlist.New[float64](cfg.Capacity, slotlist.WithExt[float64](cfg.Ext)),
		pool:   slotmap.New[rec](cfg.Capacity),
		pool64: slotmap.New64[rec](cfg.Capacity),
		table:  slottable.New[rec](cfg.Capacity),
		ids:    make(map[string]slotmap.ID),
		ids64:  make(map[string]slotmap.ID64),
	}
	return r.Run()
}

// repl is the interactive command loop.
type repl struct {
	cfg    config
	list   *slotlist.List[float64]
	pool   *slotmap.Map[rec]
	pool64 *slotmap.Map64[rec]
	table  *slottable.Table[rec]
	// ids and ids64 index the pools by user key; the pools themselves
	// are unordered and have no iteration.
	ids   map[string]slotmap.ID
	ids64 map[string]slotmap.ID64
	liner *liner.State
}

var commands = []string{
	"list", "map", "map64", "table", "stats", "bulk", "bench", "dump",
	"help", "exit", "quit",
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sloty_history")
}

// Run starts the REPL loop.
func (r *repl) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(func(line string) (c []string) {
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, strings.ToLower(line)) {
				c = append(c, cmd)
			}
		}
		return c
	})

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("sloty - slot container CLI (ordered=%v, fixed_id=%v, capacity=%d)\n",
		r.cfg.Ordered, r.cfg.FixedID, r.cfg.Capacity)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("sloty> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "list":
			r.cmdList(args)
		case "map":
			r.cmdMap(args)
		case "map64":
			r.cmdMap64(args)
		case "table":
			r.cmdTable(args)
		case "stats":
			r.cmdStats()
		case "bulk":
			r.cmdBulk(args)
		case "bench":
			r.cmdBench(args)
		case "dump":
			r.cmdDump(args)
		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

// saveHistory persists command history to disk.
func (r *repl) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *repl) printHelp() {
	fmt.Println(`Commands:
  list push <num>         Append to the slot list
  list at <id>            Read a list record
  list trunc <n>          Drop the last n records
  list clear              Drop all records
  map add <key> <num>     Allocate a map slot (32-bit handles)
  map at <key>            Read a map record
  map rm <key>            Remove a map record
  map burn                Drain the map free list
  map64 add|at|rm|burn    Same commands on the 64-bit variant
  table put <key> <num>   Insert or update a table entry
  table get <key>         Look up a table entry
  table del <key>         Tombstone a table entry
  table scan [limit]      Walk the dense array in order
  stats                   Show counts and capacities
  bulk <n>                Insert n random table entries
  bench <n>               Benchmark n table put+get pairs
  dump <file>             Write a JSON snapshot (atomic)
  exit                    Exit`)
}

func (r *repl) tableFlags() slottable.Flags {
	var flags slottable.Flags
	if r.cfg.Ordered {
		flags |= slottable.Ordered
	}
	if r.cfg.FixedID {
		flags |= slottable.FixedID
	}
	return flags
}

func (r *repl) cmdList(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: list push|at|trunc|clear ...")
		return
	}
	switch args[0] {
	case "push":
		if len(args) != 2 {
			fmt.Println("usage: list push <num>")
			return
		}
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Printf("bad number: %v\n", err)
			return
		}
		id, ok := r.list.Push(v)
		if !ok {
			fmt.Println("push failed: allocation failure")
			return
		}
		fmt.Printf("id=%d count=%d allocated=%d\n", id, r.list.Count(), r.list.Allocated())
	case "at":
		if len(args) != 2 {
			fmt.Println("usage: list at <id>")
			return
		}
		i, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			fmt.Printf("bad id: %v\n", err)
			return
		}
		p := r.list.At(slotlist.ID(i))
		if p == nil {
			fmt.Println("(out of range)")
			return
		}
		fmt.Printf("%g\n", *p)
	case "trunc":
		if len(args) != 2 {
			fmt.Println("usage: list trunc <n>")
			return
		}
		n, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			fmt.Printf("bad count: %v\n", err)
			return
		}
		if !r.list.Truncate(uint32(n)) {
			fmt.Printf("cannot truncate %d of %d\n", n, r.list.Count())
			return
		}
		fmt.Printf("count=%d\n", r.list.Count())
	case "clear":
		r.list.Clear()
		fmt.Println("cleared")
	default:
		fmt.Printf("unknown list command: %s\n", args[0])
	}
}

func (r *repl) cmdMap(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: map add|at|rm|burn ...")
		return
	}
	switch args[0] {
	case "add":
		if len(args) != 3 {
			fmt.Println("usage: map add <key> <num>")
			return
		}
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			fmt.Printf("bad number: %v\n", err)
			return
		}
		id, p, ok := r.pool.Add()
		if !ok {
			fmt.Println("add failed: allocation failure or pool full")
			return
		}
		*p = rec{Key: args[1], Val: v}
		r.ids[args[1]] = id
		fmt.Printf("id=%d:%d (0x%08x) count=%d\n", id.Index(), id.Version(), uint32(id), r.pool.Count())
	case "at":
		if len(args) != 2 {
			fmt.Println("usage: map at <key>")
			return
		}
		id, ok := r.ids[args[1]]
		if !ok {
			fmt.Println("(unknown key)")
			return
		}
		p := r.pool.At(id)
		if p == nil {
			fmt.Printf("id=%d:%d is stale\n", id.Index(), id.Version())
			return
		}
		fmt.Printf("%g\n", p.Val)
	case "rm":
		if len(args) != 2 {
			fmt.Println("usage: map rm <key>")
			return
		}
		id, ok := r.ids[args[1]]
		if !ok {
			fmt.Println("(unknown key)")
			return
		}
		if last := r.pool.Remove(id); last == nil {
			fmt.Printf("id=%d:%d is stale\n", id.Index(), id.Version())
			return
		}
		delete(r.ids, args[1])
		fmt.Printf("removed, count=%d\n", r.pool.Count())
	case "burn":
		r.pool.Burn()
		fmt.Printf("burned, count=%d used=%d\n", r.pool.Count(), r.pool.Used())
	default:
		fmt.Printf("unknown map command: %s\n", args[0])
	}
}

func (r *repl) cmdMap64(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: map64 add|at|rm|burn ...")
		return
	}
	switch args[0] {
	case "add":
		if len(args) != 3 {
			fmt.Println("usage: map64 add <key> <num>")
			return
		}
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			fmt.Printf("bad number: %v\n", err)
			return
		}
		id, p, ok := r.pool64.Add()
		if !ok {
			fmt.Println("add failed: allocation failure")
			return
		}
		*p = rec{Key: args[1], Val: v}
		r.ids64[args[1]] = id
		fmt.Printf("id=%d:%d count=%d\n", id.Index, id.Version, r.pool64.Count())
	case "at":
		if len(args) != 2 {
			fmt.Println("usage: map64 at <key>")
			return
		}
		id, ok := r.ids64[args[1]]
		if !ok {
			fmt.Println("(unknown key)")
			return
		}
		p := r.pool64.At(id)
		if p == nil {
			fmt.Printf("id=%d:%d is stale\n", id.Index, id.Version)
			return
		}
		fmt.Printf("%g\n", p.Val)
	case "rm":
		if len(args) != 2 {
			fmt.Println("usage: map64 rm <key>")
			return
		}
		id, ok := r.ids64[args[1]]
		if !ok {
			fmt.Println("(unknown key)")
			return
		}
		if last := r.pool64.Remove(id); last == nil {
			fmt.Printf("id=%d:%d is stale\n", id.Index, id.Version)
			return
		}
		delete(r.ids64, args[1])
		fmt.Printf("removed, count=%d\n", r.pool64.Count())
	case "burn":
		r.pool64.Burn()
		fmt.Printf("burned, count=%d used=%d\n", r.pool64.Count(), r.pool64.Used())
	default:
		fmt.Printf("unknown map64 command: %s\n", args[0])
	}
}

func byKey(key string) func(*rec) bool {
	return func(e *rec) bool { return e.Key == key }
}

func (r *repl) cmdTable(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: table put|get|del|scan ...")
		return
	}
	switch args[0] {
	case "put":
		if len(args) != 3 {
			fmt.Println("usage: table put <key> <num>")
			return
		}
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			fmt.Printf("bad number: %v\n", err)
			return
		}
		key := args[1]
		h := slottable.StrHash(key)
		if _, e := r.table.Find(h, byKey(key)); e != nil {
			e.Val = v
			fmt.Println("updated")
			return
		}
		id, e, ok := r.table.Insert(h, r.tableFlags())
		if !ok {
			fmt.Println("insert failed: allocation failure")
			return
		}
		*e = rec{Key: key, Val: v}
		fmt.Printf("id=%d active=%d used=%d\n", id, r.table.Count(), r.table.Used())
	case "get":
		if len(args) != 2 {
			fmt.Println("usage: table get <key>")
			return
		}
		id, e := r.table.Find(slottable.StrHash(args[1]), byKey(args[1]))
		if e == nil {
			fmt.Println("(not found)")
			return
		}
		fmt.Printf("id=%d %g\n", id, e.Val)
	case "del":
		if len(args) != 2 {
			fmt.Println("usage: table del <key>")
			return
		}
		if dead := r.table.Remove(slottable.StrHash(args[1]), byKey(args[1])); dead == nil {
			fmt.Println("(not found)")
			return
		}
		fmt.Printf("removed, active=%d used=%d\n", r.table.Count(), r.table.Used())
	case "scan":
		limit := uint32(100)
		if len(args) == 2 {
			n, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				fmt.Printf("bad limit: %v\n", err)
				return
			}
			limit = uint32(n)
		}
		var n uint32
		r.table.Each(func(id slottable.ID, e *rec) bool {
			fmt.Printf("  %4d: %s = %g\n", id, e.Key, e.Val)
			n++
			return n < limit
		})
		fmt.Printf("(%d of %d entries)\n", n, r.table.Count())
	default:
		fmt.Printf("unknown table command: %s\n", args[0])
	}
}

func (r *repl) cmdStats() {
	fmt.Printf("list:  count=%d allocated=%d\n", r.list.Count(), r.list.Allocated())
	fmt.Printf("map:   count=%d used=%d allocated=%d\n", r.pool.Count(), r.pool.Used(), r.pool.Allocated())
	fmt.Printf("map64: count=%d used=%d allocated=%d\n", r.pool64.Count(), r.pool64.Used(), r.pool64.Allocated())
	fmt.Printf("table: active=%d used=%d allocated=%d mem=%d bytes\n",
		r.table.Count(), r.table.Used(), r.table.Allocated(), r.table.MemUsage())
}

func (r *repl) cmdBulk(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: bulk <count>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		fmt.Println("bad count")
		return
	}
	flags := r.tableFlags()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("bulk-%08x", rand.Uint32())
		_, e, ok := r.table.Insert(slottable.StrHash(key), flags)
		if !ok {
			fmt.Printf("insert failed after %d entries\n", i)
			return
		}
		*e = rec{Key: key, Val: rand.Float64()}
	}
	fmt.Printf("inserted %d entries, active=%d\n", n, r.table.Count())
}

func (r *repl) cmdBench(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: bench <count>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		fmt.Println("bad count")
		return
	}
	tbl := slottable.New[rec](0)
	defer tbl.Free()

	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("bench-%d", i)
	}

	start := time.Now()
	for i, key := range keys {
		_, e, ok := tbl.Insert(slottable.StrHash(key), 0)
		if !ok {
			fmt.Printf("insert failed after %d entries\n", i)
			return
		}
		*e = rec{Key: key, Val: float64(i)}
	}
	putDur := time.Since(start)

	start = time.Now()
	var misses int
	for _, key := range keys {
		if _, e := tbl.Find(slottable.StrHash(key), byKey(key)); e == nil {
			misses++
		}
	}
	getDur := time.Since(start)

	fmt.Printf("put: %d ops in %v (%.0f ops/sec)\n", n, putDur, float64(n)/putDur.Seconds())
	fmt.Printf("get: %d ops in %v (%.0f ops/sec), %d misses\n", n, getDur, float64(n)/getDur.Seconds(), misses)
}

// snapshot is the dump file shape.
type snapshot struct {
	List  []float64      `json:"list"`
	Map   map[string]rec `json:"map"`
	Map64 map[string]rec `json:"map64"`
	Table []rec          `json:"table"`
}

func (r *repl) cmdDump(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: dump <file>")
		return
	}
	snap := snapshot{
		Map:   make(map[string]rec),
		Map64: make(map[string]rec),
	}
	for i := uint32(0); i < r.list.Count(); i++ {
		snap.List = append(snap.List, *r.list.At(slotlist.ID(i)))
	}
	for key, id := range r.ids {
		if p := r.pool.At(id); p != nil {
			snap.Map[key] = *p
		}
	}
	for key, id := range r.ids64 {
		if p := r.pool64.At(id); p != nil {
			snap.Map64[key] = *p
		}
	}
	r.table.Each(func(id slottable.ID, e *rec) bool {
		snap.Table = append(snap.Table, *e)
		return true
	})

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		fmt.Printf("encoding snapshot: %v\n", err)
		return
	}
	if err := atomic.WriteFile(args[0], strings.NewReader(string(data)+"\n")); err != nil {
		fmt.Printf("writing %s: %v\n", args[0], err)
		return
	}
	fmt.Printf("wrote %s (%d bytes)\n", args[0], len(data)+1)
}
