// Package trace implements the trace-file loader, one of the external
// collaborators spec.md §1 deliberately keeps out of the simulation core:
// it turns a directory of per-core trace files into ordered Instr slices.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ehrlich-b/cachesim/internal/model"
)

// opRead/opWrite/opOther are the line-leading op codes of spec.md §6.
const (
	opRead  = "0"
	opWrite = "1"
	opOther = "2"
)

// Load reads every file in dir whose name begins with inputName and ends
// in ".data", parses each as one core's instruction stream, and returns
// them ordered by file name (spec.md §6: "ordering across cores is not
// part of this specification"; sorting by name just makes runs
// reproducible across platforms).
func Load(dir, inputName string) ([][]model.Instr, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("trace: reading %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, inputName) && strings.HasSuffix(name, ".data") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("trace: no files matching %q*.data in %s: %w", inputName, dir, os.ErrNotExist)
	}

	traces := make([][]model.Instr, len(names))
	for i, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("trace: opening %s: %w", name, err)
		}
		instrs, err := parse(f, name)
		f.Close()
		if err != nil {
			return nil, err
		}
		traces[i] = instrs
	}
	return traces, nil
}

// LoadFS is Load's counterpart over an fs.FS, used by cmd/coherence to
// serve its embedded built-in trace pair.
func LoadFS(fsys fs.FS, inputName string) ([][]model.Instr, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("trace: reading embedded traces: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, inputName) && strings.HasSuffix(name, ".data") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("trace: no embedded files matching %q*.data", inputName)
	}

	traces := make([][]model.Instr, len(names))
	for i, name := range names {
		f, err := fsys.Open(name)
		if err != nil {
			return nil, fmt.Errorf("trace: opening embedded %s: %w", name, err)
		}
		instrs, err := parse(f, name)
		f.Close()
		if err != nil {
			return nil, err
		}
		traces[i] = instrs
	}
	return traces, nil
}

// parse reads one trace file's lines into Instr values (spec.md §6: `<op>
// <hex_operand>`, no blank lines).
func parse(r io.Reader, filename string) ([]model.Instr, error) {
	scanner := bufio.NewScanner(r)
	var instrs []model.Instr
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			return nil, fmt.Errorf("trace: %s:%d: blank lines are not permitted", filename, lineNo)
		}
		instr, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("trace: %s:%d: %w", filename, lineNo, err)
		}
		instrs = append(instrs, instr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trace: %s: %w", filename, err)
	}
	return instrs, nil
}

func parseLine(line string) (model.Instr, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return model.Instr{}, fmt.Errorf("malformed trace line %q: expected \"<op> <hex_operand>\"", line)
	}

	operand, err := strconv.ParseUint(fields[1], 16, 32)
	if err != nil {
		return model.Instr{}, fmt.Errorf("malformed hex operand %q: %w", fields[1], err)
	}

	switch fields[0] {
	case opRead:
		return model.Read(model.Addr(operand)), nil
	case opWrite:
		return model.Write(model.Addr(operand)), nil
	case opOther:
		return model.Other(uint32(operand)), nil
	default:
		return model.Instr{}, fmt.Errorf("malformed trace op %q: expected 0, 1, or 2", fields[0])
	}
}
