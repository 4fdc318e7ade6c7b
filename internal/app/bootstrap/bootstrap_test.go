package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"merkledrop/contexts/token-distribution/claim-engine/adapters/ledger"
	contractsv1 "merkledrop/contracts/gen/events/v1"
	"merkledrop/internal/platform/messaging"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseOwner(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "valid", raw: " 0x00000000000000000000000000000000000000a1 "},
		{name: "missing", raw: "", wantErr: true},
		{name: "not hex", raw: "owner", wantErr: true},
		{name: "zero", raw: "0x0000000000000000000000000000000000000000", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			owner, err := parseOwner(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got owner %s", owner.Hex())
				}
				return
			}
			if err != nil {
				t.Fatalf("parse owner: %v", err)
			}
			if owner != common.HexToAddress("0xa1") {
				t.Fatalf("unexpected owner %s", owner.Hex())
			}
		})
	}
}

func TestNormalizeAddr(t *testing.T) {
	for input, want := range map[string]string{"": ":8080", "9090": ":9090", ":7070": ":7070"} {
		if got := normalizeAddr(input); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestLedgerFundingRejectsInvalidSupply(t *testing.T) {
	memLedger := ledger.NewMemoryLedger(common.HexToAddress("0xa1"), nil)
	for _, raw := range []string{"", "0", "-5", "ten"} {
		if _, err := newLedgerFunding(memLedger, raw, nil); err == nil {
			t.Fatalf("expected supply %q to be rejected", raw)
		}
	}
}

func TestLedgerFundingMintsOncePerTokenFromBus(t *testing.T) {
	holder := common.HexToAddress("0xa1")
	token := common.HexToAddress("0xbeef")
	memLedger := ledger.NewMemoryLedger(holder, nil)
	funding, err := newLedgerFunding(memLedger, "3500000", nil)
	if err != nil {
		t.Fatalf("new funding: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := messaging.NewBus(nil, nil)
	if err := bus.Subscribe(ctx, claimTokenSetTopic, "test", funding.Handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	data, _ := json.Marshal(map[string]string{"token": token.Hex()})
	for i, id := range []string{"evt-1", "evt-2"} {
		err := bus.Publish(ctx, claimTokenSetTopic, contractsv1.Envelope{
			EventID:          id,
			EventType:        claimTokenSetTopic,
			OccurredAt:       time.Unix(int64(i), 0).UTC(),
			SourceService:    "claim-engine",
			SchemaVersion:    contractsv1.CurrentSchemaVersion,
			PartitionKeyPath: "drop_id",
			PartitionKey:     "default",
			Data:             data,
		})
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	want := big.NewInt(3500000)
	deadline := time.Now().Add(2 * time.Second)
	for {
		balance, err := memLedger.BalanceOf(ctx, token, holder)
		if err == nil && balance.Cmp(want) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("holder balance = %v (err %v), want %s", balance, err, want)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The second event is a rebind of the same token and must not mint again.
	time.Sleep(50 * time.Millisecond)
	balance, err := memLedger.BalanceOf(ctx, token, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(want) != 0 {
		t.Fatalf("holder balance = %s after duplicate bind, want %s", balance, want)
	}
}

func TestLedgerFundingRejectsMalformedPayload(t *testing.T) {
	funding, err := newLedgerFunding(ledger.NewMemoryLedger(common.HexToAddress("0xa1"), nil), "1", nil)
	if err != nil {
		t.Fatalf("new funding: %v", err)
	}
	err = funding.Handle(context.Background(), contractsv1.Envelope{
		EventType: claimTokenSetTopic,
		Data:      json.RawMessage(`{"token":"nope"}`),
	})
	if err == nil {
		t.Fatal("expected malformed token to be rejected")
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestEventAuditConsumesEveryDropTopic(t *testing.T) {
	out := &lockedBuffer{}
	audit := eventAudit{logger: slog.New(slog.NewJSONHandler(out, nil))}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := messaging.NewBus(nil, nil)
	if err := audit.subscribe(ctx, bus); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i, topic := range dropEventTopics {
		err := bus.Publish(ctx, topic, contractsv1.Envelope{
			EventID:          "evt-" + topic,
			EventType:        topic,
			OccurredAt:       time.Unix(int64(i), 0).UTC(),
			SourceService:    "claim-engine",
			SchemaVersion:    contractsv1.CurrentSchemaVersion,
			PartitionKeyPath: "drop_id",
			PartitionKey:     "default",
			Data:             json.RawMessage(`{"drop_id":"default"}`),
		})
		if err != nil {
			t.Fatalf("publish %s: %v", topic, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		logged := out.String()
		missing := ""
		for _, topic := range dropEventTopics {
			if !strings.Contains(logged, `"event_id":"evt-`+topic+`"`) {
				missing = topic
				break
			}
		}
		if missing == "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("audit did not record %s; log=%s", missing, logged)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventAuditRejectsMalformedPayload(t *testing.T) {
	audit := eventAudit{logger: slog.New(slog.NewJSONHandler(&lockedBuffer{}, nil))}
	err := audit.Handle(context.Background(), contractsv1.Envelope{
		EventType: claimTokenSetTopic,
		Data:      json.RawMessage(`{`),
	})
	if err == nil {
		t.Fatal("expected malformed payload to be rejected")
	}
}
