// Package budget tracks token spend against a daily cost cap via an
// append-only ledger file. Workers and the heartbeat reaper consult
// WithinBudget before doing expensive external work; when it returns
// false they suspend rather than exit (SPEC_FULL.md §4.3).
package budget

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PricePerToken gives the static per-token prices used to cost a
// ledger entry. Rates are in fractional dollars per token.
type PricePerToken struct {
	Input  float64
	Output float64
}

// DefaultPrices is a conservative placeholder rate table; real
// deployments override it via configuration.
var DefaultPrices = PricePerToken{Input: 0.000003, Output: 0.000015}

// Ledger is an append-only, mutex-protected cost journal backed by a
// single file on disk. Each line is one record: the file is never
// rewritten, only appended to, so a crash mid-write loses at most the
// partial last line.
type Ledger struct {
	mu     sync.Mutex
	path   string
	prices PricePerToken
	dailyCap float64
}

// record is one line of the ledger.
type record struct {
	Timestamp time.Time
	Worker    string
	Feature   string
	TokensIn  int64
	TokensOut int64
	Cost      float64
}

// Open prepares a Ledger backed by path, creating parent directories as
// needed. dailyCap <= 0 means unlimited.
func Open(path string, prices PricePerToken, dailyCap float64) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("budget: prepare dir: %w", err)
	}
	return &Ledger{path: path, prices: prices, dailyCap: dailyCap}, nil
}

// Record computes the cost of a builder call under the static price
// table and appends one line to the ledger.
func (l *Ledger) Record(worker, feature string, tokensIn, tokensOut int64) error {
	cost := float64(tokensIn)*l.prices.Input + float64(tokensOut)*l.prices.Output

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("budget: open ledger: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s,%s,%s,%d,%d,%.6f\n",
		time.Now().UTC().Format(time.RFC3339), worker, feature, tokensIn, tokensOut, cost)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("budget: append ledger: %w", err)
	}
	return nil
}

// DailyTotal sums the cost of every ledger entry whose timestamp falls
// on the current UTC calendar day.
func (l *Ledger) DailyTotal() (float64, error) {
	records, err := l.readAll()
	if err != nil {
		return 0, err
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	var total float64
	for _, r := range records {
		if r.Timestamp.UTC().Truncate(24 * time.Hour).Equal(today) {
			total += r.Cost
		}
	}
	return total, nil
}

// WithinBudget reports whether today's running total is still under the
// configured daily cap. A non-positive cap means no limit.
func (l *Ledger) WithinBudget() (bool, error) {
	if l.dailyCap <= 0 {
		return true, nil
	}
	total, err := l.DailyTotal()
	if err != nil {
		return false, err
	}
	return total < l.dailyCap, nil
}

func (l *Ledger) readAll() ([]record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("budget: open ledger: %w", err)
	}
	defer f.Close()

	var out []record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r record
		fields := splitCSVLine(scanner.Text())
		if len(fields) != 6 {
			continue
		}
		var err error
		r.Timestamp, err = time.Parse(time.RFC3339, fields[0])
		if err != nil {
			continue
		}
		r.Worker = fields[1]
		r.Feature = fields[2]
		fmt.Sscanf(fields[3], "%d", &r.TokensIn)
		fmt.Sscanf(fields[4], "%d", &r.TokensOut)
		fmt.Sscanf(fields[5], "%f", &r.Cost)
		out = append(out, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("budget: scan ledger: %w", err)
	}
	return out, nil
}

func splitCSVLine(line string) []string {
	var fields []string
	start := 0
	for i := 0; i < len(line); i++ {
		if line[i] == ',' {
			fields = append(fields, line[start:i])
			start = i + 1
		}
	}
	fields = append(fields, line[start:])
	return fields
}
