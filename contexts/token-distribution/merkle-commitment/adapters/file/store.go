package file

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"merkledrop/contexts/token-distribution/merkle-commitment/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/merkle-commitment/domain/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"
)

// StdStream is the location that maps to the process standard streams.
const StdStream = "-"

// Store reads allocation lists (CSV, JSON, YAML) and reads/writes distribution
// artifacts (JSON). The format is chosen by file extension.
type Store struct {
	Stdin  io.Reader
	Stdout io.Writer
	Logger *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{Stdin: os.Stdin, Stdout: os.Stdout, Logger: logger}
}

type allocationRecord struct {
	Address   string     `json:"address" yaml:"address"`
	Recipient string     `json:"recipient" yaml:"recipient"`
	Amount    amountText `json:"amount" yaml:"amount"`
}

// amountText accepts both quoted and bare JSON numbers without float rounding.
type amountText string

func (a *amountText) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*a = amountText(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	*a = amountText(number.String())
	return nil
}

func (r allocationRecord) toEntity() (entities.Allocation, error) {
	address := strings.TrimSpace(r.Address)
	if address == "" {
		address = strings.TrimSpace(r.Recipient)
	}
	return entities.ParseAllocation(address, strings.TrimSpace(string(r.Amount)))
}

func (s *Store) LoadAllocations(_ context.Context, location string) ([]entities.Allocation, error) {
	format, err := formatOf(location)
	if err != nil {
		return nil, err
	}
	reader, closeFn, err := s.open(location)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var allocations []entities.Allocation
	switch format {
	case "csv":
		allocations, err = decodeCSV(reader)
	case "json":
		allocations, err = decodeRecords(reader, func(r io.Reader, out *[]allocationRecord) error {
			return json.NewDecoder(r).Decode(out)
		})
	case "yaml":
		allocations, err = decodeRecords(reader, func(r io.Reader, out *[]allocationRecord) error {
			return yaml.NewDecoder(r).Decode(out)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("load allocations from %s: %w", location, err)
	}

	s.logger().Debug("allocations loaded",
		"event", "merkle_commitment_allocations_loaded",
		"module", "token-distribution/merkle-commitment",
		"layer", "adapter",
		"location", location,
		"count", len(allocations),
	)
	return allocations, nil
}

func decodeCSV(reader io.Reader) ([]entities.Allocation, error) {
	csvReader := csv.NewReader(reader)
	csvReader.Comment = '#'
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	var allocations []entities.Allocation
	line := 0
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(record) < 2 {
			return nil, fmt.Errorf("%w: line %d has %d fields", domainerrors.ErrInvalidAllocation, line, len(record))
		}
		// Header row.
		if line == 1 && !common.IsHexAddress(strings.TrimSpace(record[0])) {
			continue
		}
		allocation, err := entities.ParseAllocation(strings.TrimSpace(record[0]), strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		allocations = append(allocations, allocation)
	}
	return allocations, nil
}

func decodeRecords(reader io.Reader, decode func(io.Reader, *[]allocationRecord) error) ([]entities.Allocation, error) {
	var records []allocationRecord
	if err := decode(reader, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInvalidAllocation, err)
	}
	allocations := make([]entities.Allocation, 0, len(records))
	for i, record := range records {
		allocation, err := record.toEntity()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		allocations = append(allocations, allocation)
	}
	return allocations, nil
}

type distributionDocument struct {
	Root      string          `json:"root"`
	LeafCount int             `json:"leaf_count"`
	Depth     int             `json:"depth"`
	Total     string          `json:"total"`
	Entries   []entryDocument `json:"entries"`
}

type entryDocument struct {
	Recipient string   `json:"recipient"`
	Amount    string   `json:"amount"`
	Leaf      string   `json:"leaf"`
	Proof     []string `json:"proof"`
}

func fromDistribution(distribution entities.Distribution) distributionDocument {
	doc := distributionDocument{
		Root:      distribution.Root.Hex(),
		LeafCount: distribution.LeafCount,
		Depth:     distribution.Depth,
		Total:     "0",
		Entries:   make([]entryDocument, 0, len(distribution.Entries)),
	}
	if distribution.Total != nil {
		doc.Total = distribution.Total.String()
	}
	for _, entry := range distribution.Entries {
		doc.Entries = append(doc.Entries, entryDocument{
			Recipient: entry.Recipient.Hex(),
			Amount:    entry.Amount.String(),
			Leaf:      entry.Leaf.Hex(),
			Proof:     hashesToHex(entry.Proof),
		})
	}
	return doc
}

func (d distributionDocument) toEntity() (entities.Distribution, error) {
	total, ok := new(big.Int).SetString(d.Total, 10)
	if !ok {
		return entities.Distribution{}, fmt.Errorf("%w: total %q", domainerrors.ErrInvalidDistribution, d.Total)
	}
	root, err := parseHash(d.Root)
	if err != nil {
		return entities.Distribution{}, err
	}
	distribution := entities.Distribution{
		Root:      root,
		LeafCount: d.LeafCount,
		Depth:     d.Depth,
		Total:     total,
		Entries:   make([]entities.DistributionEntry, 0, len(d.Entries)),
	}
	for i, entry := range d.Entries {
		allocation, err := entities.ParseAllocation(entry.Recipient, entry.Amount)
		if err != nil {
			return entities.Distribution{}, fmt.Errorf("entry %d: %w", i, err)
		}
		leaf, err := parseHash(entry.Leaf)
		if err != nil {
			return entities.Distribution{}, fmt.Errorf("entry %d: %w", i, err)
		}
		proof := make([]common.Hash, 0, len(entry.Proof))
		for _, sibling := range entry.Proof {
			hash, err := parseHash(sibling)
			if err != nil {
				return entities.Distribution{}, fmt.Errorf("entry %d: %w", i, err)
			}
			proof = append(proof, hash)
		}
		distribution.Entries = append(distribution.Entries, entities.DistributionEntry{
			Recipient: allocation.Recipient,
			Amount:    allocation.Amount,
			Leaf:      leaf,
			Proof:     proof,
		})
	}
	return distribution, nil
}

func (s *Store) WriteDistribution(_ context.Context, location string, distribution entities.Distribution) error {
	payload, err := json.MarshalIndent(fromDistribution(distribution), "", "  ")
	if err != nil {
		return err
	}
	payload = append(payload, '\n')

	if location == StdStream {
		_, err := s.stdout().Write(payload)
		return err
	}
	if dir := filepath.Dir(location); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	// Write then rename so readers never observe a partial artifact.
	tmp := location + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, location); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	s.logger().Info("distribution written",
		"event", "merkle_commitment_distribution_written",
		"module", "token-distribution/merkle-commitment",
		"layer", "adapter",
		"location", location,
		"root", distribution.Root.Hex(),
		"entries", len(distribution.Entries),
	)
	return nil
}

func (s *Store) ReadDistribution(_ context.Context, location string) (entities.Distribution, error) {
	reader, closeFn, err := s.open(location)
	if err != nil {
		return entities.Distribution{}, err
	}
	defer closeFn()

	var doc distributionDocument
	if err := json.NewDecoder(reader).Decode(&doc); err != nil {
		return entities.Distribution{}, fmt.Errorf("%w: %v", domainerrors.ErrInvalidDistribution, err)
	}
	return doc.toEntity()
}

func (s *Store) open(location string) (io.Reader, func(), error) {
	if location == StdStream {
		if s.Stdin == nil {
			return os.Stdin, func() {}, nil
		}
		return s.Stdin, func() {}, nil
	}
	f, err := os.Open(location)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func (s *Store) stdout() io.Writer {
	if s.Stdout == nil {
		return os.Stdout
	}
	return s.Stdout
}

func (s *Store) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func formatOf(location string) (string, error) {
	if location == StdStream {
		return "json", nil
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".csv":
		return "csv", nil
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("%w: %q", domainerrors.ErrUnsupportedFormat, filepath.Ext(location))
	}
}

func hashesToHex(hashes []common.Hash) []string {
	out := make([]string, 0, len(hashes))
	for _, hash := range hashes {
		out = append(out, hash.Hex())
	}
	return out
}

func parseHash(value string) (common.Hash, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(value))
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: hash %q", domainerrors.ErrInvalidDistribution, value)
	}
	return common.BytesToHash(raw), nil
}
